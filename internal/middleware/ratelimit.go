package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(key string) bool
	Reset(key string)
}

// SlidingWindowLimiter admits at most limit requests per key in any trailing
// window. A request is recorded only after it passes the check, so the
// limit-th request is admitted and the one after it is rejected.
type SlidingWindowLimiter struct {
	enabled  bool
	limit    int
	window   time.Duration
	exempt   map[string]bool
	windows  map[string]*slidingWindow
	mu       sync.RWMutex
	logger   *logrus.Logger
	now      func() time.Time
	idleTTL  time.Duration
	interval time.Duration
}

// slidingWindow is marked evicted under its own lock when it leaves the map,
// so a caller holding a stale pointer knows to fetch a fresh one.
type slidingWindow struct {
	mu      sync.Mutex
	stamps  []time.Time
	evicted bool
}

// NewSlidingWindowLimiter creates the per-user chat limiter
func NewSlidingWindowLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) *SlidingWindowLimiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	exempt := make(map[string]bool, len(cfg.Exempt))
	for _, id := range cfg.Exempt {
		exempt[id] = true
	}

	return &SlidingWindowLimiter{
		enabled:  cfg.Enabled,
		limit:    cfg.RequestsPerMinute,
		window:   window,
		exempt:   exempt,
		windows:  make(map[string]*slidingWindow),
		logger:   logger,
		now:      time.Now,
		idleTTL:  10 * window,
		interval: 5 * time.Minute,
	}
}

// Allow checks and records a request for key at the current time
func (r *SlidingWindowLimiter) Allow(key string) bool {
	return r.AllowAt(key, r.now())
}

// AllowAt checks and records a request for key at now
func (r *SlidingWindowLimiter) AllowAt(key string, now time.Time) bool {
	if !r.enabled || r.exempt[key] {
		return true
	}

	for {
		if allowed, ok := r.admit(r.getWindow(key), key, now); ok {
			return allowed
		}
	}
}

// admit checks and records now in w. ok is false when w was evicted after
// the caller fetched it.
func (r *SlidingWindowLimiter) admit(w *slidingWindow, key string, now time.Time) (allowed, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.evicted {
		return false, false
	}

	w.prune(now, r.window)
	if len(w.stamps) >= r.limit {
		r.logger.WithFields(logrus.Fields{
			"uid":    key,
			"count":  len(w.stamps),
			"limit":  r.limit,
			"window": r.window,
		}).Warn("Rate limit exceeded")
		return false, true
	}

	w.stamps = append(w.stamps, now)
	return true, true
}

// Reset forgets the window for key
func (r *SlidingWindowLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.windows[key]; ok {
		w.mu.Lock()
		w.evicted = true
		w.mu.Unlock()
		delete(r.windows, key)
	}
}

func (r *SlidingWindowLimiter) getWindow(key string) *slidingWindow {
	r.mu.RLock()
	w, exists := r.windows[key]
	r.mu.RUnlock()

	if exists {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if w, exists := r.windows[key]; exists {
		return w
	}

	w = &slidingWindow{}
	r.windows[key] = w
	return w
}

// prune drops timestamps that are at least window old
func (w *slidingWindow) prune(now time.Time, window time.Duration) {
	keep := w.stamps[:0]
	for _, t := range w.stamps {
		if now.Sub(t) < window {
			keep = append(keep, t)
		}
	}
	w.stamps = keep
}

// Run evicts idle windows until ctx is cancelled
func (r *SlidingWindowLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictIdle(r.now())
		}
	}
}

func (r *SlidingWindowLimiter) evictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, w := range r.windows {
		w.mu.Lock()
		idle := len(w.stamps) == 0 || now.Sub(w.stamps[len(w.stamps)-1]) >= r.idleTTL
		if idle {
			w.evicted = true
		}
		w.mu.Unlock()
		if idle {
			delete(r.windows, key)
			evicted++
		}
	}

	if evicted > 0 {
		r.logger.WithField("evicted", evicted).Debug("Evicted idle rate limit windows")
	}
	return evicted
}

// IPRateLimiter implements per-client token buckets for the upload routes
type IPRateLimiter struct {
	enabled         bool
	limiters        map[string]*rate.Limiter
	mu              sync.RWMutex
	rpm             int
	burst           int
	logger          *logrus.Logger
	cleanupInterval time.Duration
}

// NewIPRateLimiter creates a new token-bucket limiter keyed by client IP
func NewIPRateLimiter(cfg *config.IPLimitConfig, logger *logrus.Logger) *IPRateLimiter {
	if !cfg.Enabled {
		return &IPRateLimiter{enabled: false}
	}

	return &IPRateLimiter{
		enabled:         true,
		limiters:        make(map[string]*rate.Limiter),
		rpm:             cfg.RequestsPerMinute,
		burst:           cfg.Burst,
		logger:          logger,
		cleanupInterval: 1 * time.Hour,
	}
}

// Allow checks if a client is allowed to make a request
func (r *IPRateLimiter) Allow(ip string) bool {
	if !r.enabled {
		return true
	}

	allowed := r.getLimiter(ip).Allow()
	if !allowed {
		r.logger.WithField("ip", ip).Warn("Upload rate limit exceeded")
	}

	return allowed
}

// Reset resets the rate limiter for a client
func (r *IPRateLimiter) Reset(ip string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.limiters, ip)
	r.mu.Unlock()
}

func (r *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[ip]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists := r.limiters[ip]; exists {
		return limiter
	}

	// Rate per second = RPM / 60
	rps := float64(r.rpm) / 60.0
	limiter = rate.NewLimiter(rate.Limit(rps), r.burst)
	r.limiters[ip] = limiter

	return limiter
}

// Run clears the limiter map when it grows past a threshold, until ctx is cancelled
func (r *IPRateLimiter) Run(ctx context.Context) {
	if !r.enabled {
		return
	}

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if len(r.limiters) > 10000 {
				r.logger.Warn("IP limiter map size exceeded threshold, clearing")
				r.limiters = make(map[string]*rate.Limiter)
			}
			r.mu.Unlock()
		}
	}
}

// LimitByIP rejects requests whose client IP has exhausted its bucket
func LimitByIP(limiter RateLimiter, proxies *TrustedProxies, metrics *Metrics, onReject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(proxies.ClientIP(r)) {
				if metrics != nil {
					metrics.RecordRateLimitExceeded("ocr")
				}
				onReject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TrustedProxies decides when X-Forwarded-For may be believed. A nil or
// empty set trusts nobody and always yields the peer address.
type TrustedProxies struct {
	nets []*net.IPNet
}

// NewTrustedProxies parses IPs and CIDRs. A bare IP trusts that host only.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	p := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			if ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		p.nets = append(p.nets, ipNet)
	}
	return p, nil
}

func (p *TrustedProxies) trusts(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address. X-Forwarded-For is read only when
// the peer is a trusted proxy, walking right to left past other trusted
// hops so a client cannot choose its own key by prepending entries.
func (p *TrustedProxies) ClientIP(r *http.Request) string {
	peer := RemoteIP(r)
	if p == nil || len(p.nets) == 0 || !p.trusts(net.ParseIP(peer)) {
		return peer
	}

	fwd := r.Header.Values("X-Forwarded-For")
	if len(fwd) == 0 {
		return peer
	}
	hops := strings.Split(strings.Join(fwd, ","), ",")

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		ip := net.ParseIP(hop)
		if ip == nil {
			break
		}
		client = hop
		if !p.trusts(ip) {
			break
		}
	}
	return client
}

// RemoteIP returns the host part of the connection's peer address
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityMiddleware provides input checks
type SecurityMiddleware struct {
	maxMessageLength int
	logger           *logrus.Logger
}

// NewSecurityMiddleware creates security middleware
func NewSecurityMiddleware(maxMessageLength int, logger *logrus.Logger) *SecurityMiddleware {
	return &SecurityMiddleware{
		maxMessageLength: maxMessageLength,
		logger:           logger,
	}
}

// ValidateInput performs input validation
func (s *SecurityMiddleware) ValidateInput(text string) error {
	if s.maxMessageLength > 0 && len([]rune(text)) > s.maxMessageLength {
		return fmt.Errorf("message too long: %d characters", len([]rune(text)))
	}
	return nil
}
