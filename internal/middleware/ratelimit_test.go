package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLimiter(limit int) *SlidingWindowLimiter {
	return NewSlidingWindowLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: limit,
		Window:            time.Minute,
		Exempt:            []string{"guest"},
	}, quietLogger())
}

func TestSlidingWindowBoundary(t *testing.T) {
	const limit = 20
	l := newLimiter(limit)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < limit; i++ {
		if !l.AllowAt("u1", start.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}

	// Request T+1 inside the window is rejected and not recorded
	if l.AllowAt("u1", start.Add(30*time.Second)) {
		t.Fatal("request T+1 allowed, want rejected")
	}
	// Once the first stamp ages out only 19 remain, unless the rejection was stored
	if !l.AllowAt("u1", start.Add(60*time.Second)) {
		t.Fatal("rejected request was recorded in the window")
	}
}

func TestSlidingWindowSlides(t *testing.T) {
	l := newLimiter(2)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	l.AllowAt("u1", start)
	l.AllowAt("u1", start.Add(10*time.Second))
	if l.AllowAt("u1", start.Add(59*time.Second)) {
		t.Fatal("third request inside window allowed")
	}

	// The first stamp is exactly 60s old and falls out of the window
	if !l.AllowAt("u1", start.Add(60*time.Second)) {
		t.Fatal("request after the first stamp expired was rejected")
	}
	if l.AllowAt("u1", start.Add(61*time.Second)) {
		t.Fatal("window should be full again")
	}

	// A full quiet minute frees the window
	if !l.AllowAt("u1", start.Add(3*time.Minute)) {
		t.Fatal("request after a quiet minute rejected")
	}
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	l := newLimiter(1)
	now := time.Now()

	if !l.AllowAt("a", now) || l.AllowAt("a", now) {
		t.Fatal("user a should get exactly one request")
	}
	if !l.AllowAt("b", now) {
		t.Fatal("user b must not be affected by user a")
	}
}

func TestSlidingWindowGuestExempt(t *testing.T) {
	l := newLimiter(1)
	now := time.Now()
	for i := 0; i < 50; i++ {
		if !l.AllowAt("guest", now) {
			t.Fatalf("guest rejected at request %d", i+1)
		}
	}
}

func TestSlidingWindowDisabled(t *testing.T) {
	l := NewSlidingWindowLimiter(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 1}, quietLogger())
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.AllowAt("u", now) {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}

func TestSlidingWindowConcurrentSameUser(t *testing.T) {
	const limit = 25
	l := newLimiter(limit)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.AllowAt("same", now) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("allowed %d concurrent requests, want exactly %d", allowed, limit)
	}
}

func TestSlidingWindowEvictIdle(t *testing.T) {
	l := newLimiter(3)
	start := time.Now()
	for i := 0; i < 5; i++ {
		l.AllowAt(fmt.Sprintf("user-%d", i), start)
	}
	if n := l.evictIdle(start.Add(time.Minute)); n != 0 {
		t.Fatalf("evicted %d fresh windows", n)
	}
	if n := l.evictIdle(start.Add(time.Hour)); n != 5 {
		t.Fatalf("evicted %d idle windows, want 5", n)
	}
}

func TestSlidingWindowEvictedWindowIsNotReused(t *testing.T) {
	l := newLimiter(3)
	start := time.Now()

	l.AllowAt("u1", start)
	stale := l.getWindow("u1")
	if n := l.evictIdle(start.Add(time.Hour)); n != 1 {
		t.Fatalf("evicted %d windows", n)
	}

	// A caller that fetched the window before eviction must not record into it
	if _, ok := l.admit(stale, "u1", start.Add(time.Hour)); ok {
		t.Fatal("admit recorded into an evicted window")
	}

	if !l.AllowAt("u1", start.Add(time.Hour)) {
		t.Fatal("request after eviction rejected")
	}
	l.mu.RLock()
	w := l.windows["u1"]
	l.mu.RUnlock()
	if w == nil || w == stale || len(w.stamps) != 1 {
		t.Fatalf("request not recorded in a fresh window: %+v", w)
	}
}

func TestSlidingWindowResetMarksEvicted(t *testing.T) {
	l := newLimiter(1)
	now := time.Now()

	l.AllowAt("u1", now)
	stale := l.getWindow("u1")
	l.Reset("u1")

	if _, ok := l.admit(stale, "u1", now); ok {
		t.Fatal("admit recorded into a reset window")
	}
	if !l.AllowAt("u1", now) {
		t.Fatal("reset did not free the window")
	}
}

func TestSlidingWindowEvictionUnderLoad(t *testing.T) {
	const limit = 50
	l := newLimiter(limit)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				l.evictIdle(now.Add(-time.Hour))
			}
			if l.AllowAt("busy", now) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Eviction at a time before every stamp never frees a live window
	if allowed != limit {
		t.Fatalf("allowed %d requests, want %d", allowed, limit)
	}
}

func TestIPRateLimiterBurst(t *testing.T) {
	l := NewIPRateLimiter(&config.IPLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}, quietLogger())
	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatal("burst requests rejected")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("request over burst allowed")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatal("other IP rejected")
	}
	l.Reset("1.2.3.4")
	if !l.Allow("1.2.3.4") {
		t.Fatal("reset did not restore the bucket")
	}
}

func TestLimitByIPMiddleware(t *testing.T) {
	l := NewIPRateLimiter(&config.IPLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}, quietLogger())
	h := LimitByIP(l, nil, NewMetrics(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/ocr/image", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.9"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		proxies *TrustedProxies
		remote  string
		xff     string
		want    string
	}{
		{"no proxies ignores header", nil, "198.51.100.4:1234", "1.1.1.1", "198.51.100.4"},
		{"untrusted peer ignores header", proxies, "198.51.100.4:1234", "1.1.1.1", "198.51.100.4"},
		{"trusted peer without header", proxies, "192.168.1.9:1234", "", "192.168.1.9"},
		{"trusted peer single hop", proxies, "192.168.1.9:1234", "203.0.113.7", "203.0.113.7"},
		{"spoofed prefix is skipped", proxies, "10.0.0.2:1234", "6.6.6.6, 203.0.113.7, 10.0.0.5", "203.0.113.7"},
		{"all hops trusted", proxies, "10.0.0.2:1234", "10.0.0.7, 10.0.0.5", "10.0.0.7"},
		{"garbage hop stops the walk", proxies, "10.0.0.2:1234", "203.0.113.7, nonsense", "10.0.0.2"},
		{"ipv6 peer", nil, "[2001:db8::1]:443", "1.1.1.1", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := tt.proxies.ClientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	for _, entry := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := NewTrustedProxies([]string{entry}); err == nil {
			t.Errorf("%q accepted", entry)
		}
	}
	p, err := NewTrustedProxies([]string{" ", "::1"})
	if err != nil || len(p.nets) != 1 {
		t.Fatalf("p = %+v, err = %v", p, err)
	}
}

func TestLimitByIPIgnoresSpoofedHeader(t *testing.T) {
	l := NewIPRateLimiter(&config.IPLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}, quietLogger())
	h := LimitByIP(l, nil, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/ocr/image", nil)
		req.RemoteAddr = "198.51.100.4:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
}

func TestValidateInput(t *testing.T) {
	s := NewSecurityMiddleware(5, quietLogger())
	if err := s.ValidateInput("héllo"); err != nil {
		t.Errorf("5 runes rejected: %v", err)
	}
	if err := s.ValidateInput("hello!"); err == nil {
		t.Error("6 runes accepted")
	}
}
