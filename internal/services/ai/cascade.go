package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// CascadeName is the provider name of an overall failure
const CascadeName = "cascade"

// Recorder receives per-attempt and per-cascade outcomes
type Recorder interface {
	RecordAIRequest(provider, status string, duration time.Duration)
	RecordCascadeOutcome(provider string)
}

// Cascade tries providers in order until one succeeds. There are no
// retries: each provider gets at most one call per Generate.
type Cascade struct {
	providers []Provider
	keys      map[string]bool
	timeout   time.Duration
	deadline  time.Duration
	metrics   Recorder
	logger    *logrus.Logger
}

// NewCascade takes the providers in priority order. metrics may be nil.
func NewCascade(cfg *config.ProvidersConfig, providers []Provider, metrics Recorder, logger *logrus.Logger) *Cascade {
	return &Cascade{
		providers: providers,
		keys:      cfg.ProviderKeys(),
		timeout:   cfg.Timeout,
		deadline:  cfg.Deadline,
		metrics:   metrics,
		logger:    logger,
	}
}

// Configured reports which providers have a credential
func (c *Cascade) Configured() map[string]bool {
	out := make(map[string]bool, len(c.keys))
	for k, v := range c.keys {
		out[k] = v
	}
	return out
}

// Providers returns the active provider names in order
func (c *Cascade) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate returns the first successful reply, or a cascade Failure whose
// Reason lists every provider's reason. Calls run on a context detached
// from ctx's cancellation; each is bounded by the per-call timeout and, when
// an overall deadline is configured, by an even share of what remains of it.
func (c *Cascade) Generate(ctx context.Context, req models.GenerationRequest) models.ProviderResponse {
	if len(c.providers) == 0 {
		c.recordOutcome("none")
		return models.Failure(CascadeName, "no providers configured")
	}

	base := context.WithoutCancel(ctx)
	start := time.Now()
	reasons := make([]string, 0, len(c.providers))

	for i, p := range c.providers {
		budget := c.timeout
		if c.deadline > 0 {
			remaining := c.deadline - time.Since(start)
			if remaining <= 0 {
				for _, skipped := range c.providers[i:] {
					reasons = append(reasons, fmt.Sprintf("%s: skipped, deadline exceeded", skipped.Name()))
				}
				break
			}
			share := remaining / time.Duration(len(c.providers)-i)
			if budget <= 0 || share < budget {
				budget = share
			}
		}

		resp := c.attempt(base, p, req, budget)
		if resp.OK {
			c.recordOutcome(resp.Provider)
			return resp
		}

		c.logger.WithFields(logrus.Fields{
			"provider": p.Name(),
			"reason":   resp.Reason,
		}).Warn("AI provider failed")
		reasons = append(reasons, fmt.Sprintf("%s: %s", p.Name(), resp.Reason))
	}

	c.recordOutcome("none")
	return models.Failure(CascadeName, strings.Join(reasons, "; "))
}

func (c *Cascade) attempt(ctx context.Context, p Provider, req models.GenerationRequest, budget time.Duration) (resp models.ProviderResponse) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = models.Failure(p.Name(), fmt.Sprintf("panic: %v", r))
		}
		if resp.Provider == "" {
			resp.Provider = p.Name()
		}
		status := "success"
		if !resp.OK {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordAIRequest(p.Name(), status, time.Since(start))
		}
		c.logger.WithFields(logrus.Fields{
			"provider": p.Name(),
			"status":   status,
			"duration": time.Since(start),
		}).Debug("AI provider attempt")
	}()

	return p.Attempt(ctx, req)
}

func (c *Cascade) recordOutcome(provider string) {
	if c.metrics != nil {
		c.metrics.RecordCascadeOutcome(provider)
	}
}
