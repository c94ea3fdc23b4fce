package ai

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
)

type fakeProvider struct {
	name  string
	reply models.ProviderResponse
	delay time.Duration
	panic bool

	mu       sync.Mutex
	calls    int
	deadline time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Attempt(ctx context.Context, req models.GenerationRequest) models.ProviderResponse {
	f.mu.Lock()
	f.calls++
	if dl, ok := ctx.Deadline(); ok {
		f.deadline = time.Until(dl)
	}
	f.mu.Unlock()

	if f.panic {
		panic("adapter bug")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.Failure(f.name, ctx.Err().Error())
		}
	}
	return f.reply
}

func ok(name, text string) *fakeProvider {
	return &fakeProvider{name: name, reply: models.Success(name, text)}
}

func failing(name string) *fakeProvider {
	return &fakeProvider{name: name, reply: models.Failure(name, name+" down")}
}

type outcomes struct {
	mu       sync.Mutex
	attempts []string
	winner   []string
}

func (o *outcomes) RecordAIRequest(provider, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, provider+":"+status)
}

func (o *outcomes) RecordCascadeOutcome(provider string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.winner = append(o.winner, provider)
}

func newCascade(cfg config.ProvidersConfig, metrics Recorder, providers ...Provider) *Cascade {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	return NewCascade(&cfg, providers, metrics, quietLogger())
}

func TestCascadeStopsAtFirstSuccess(t *testing.T) {
	a, b, c, d := failing("gemini"), failing("groq"), ok("cohere", "answer"), ok("huggingface", "unused")
	rec := &outcomes{}
	cascade := newCascade(config.ProvidersConfig{}, rec, a, b, c, d)

	resp := cascade.Generate(context.Background(), models.GenerationRequest{Prompt: "prompt"})
	if !resp.OK || resp.Text != "answer" || resp.Provider != "cohere" {
		t.Fatalf("resp = %+v", resp)
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Fatalf("calls = %d %d %d", a.calls, b.calls, c.calls)
	}
	if d.calls != 0 {
		t.Fatal("provider after the first success was invoked")
	}
	want := []string{"gemini:error", "groq:error", "cohere:success"}
	if strings.Join(rec.attempts, ",") != strings.Join(want, ",") {
		t.Fatalf("attempts = %v", rec.attempts)
	}
	if rec.winner[0] != "cohere" {
		t.Fatalf("winner = %v", rec.winner)
	}
}

func TestCascadeAllFail(t *testing.T) {
	cascade := newCascade(config.ProvidersConfig{}, nil, failing("gemini"), failing("groq"))

	resp := cascade.Generate(context.Background(), models.GenerationRequest{Prompt: "prompt"})
	if resp.OK || resp.Provider != CascadeName {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Reason != "gemini: gemini down; groq: groq down" {
		t.Fatalf("reason = %q", resp.Reason)
	}
}

func TestCascadeNoProviders(t *testing.T) {
	rec := &outcomes{}
	resp := newCascade(config.ProvidersConfig{}, rec).Generate(context.Background(), models.GenerationRequest{Prompt: "prompt"})
	if resp.OK || resp.Provider != CascadeName {
		t.Fatalf("resp = %+v", resp)
	}
	if len(rec.winner) != 1 || rec.winner[0] != "none" {
		t.Fatalf("winner = %v", rec.winner)
	}
}

func TestCascadeTimeoutIsPerCall(t *testing.T) {
	slow := &fakeProvider{name: "gemini", delay: time.Second, reply: models.Success("gemini", "late")}
	fast := ok("groq", "quick")
	cascade := newCascade(config.ProvidersConfig{Timeout: 50 * time.Millisecond}, nil, slow, fast)

	start := time.Now()
	resp := cascade.Generate(context.Background(), models.GenerationRequest{Prompt: "prompt"})
	if !resp.OK || resp.Provider != "groq" {
		t.Fatalf("resp = %+v", resp)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("slow provider not bounded: %v", elapsed)
	}
}

func TestCascadeIgnoresCallerCancellation(t *testing.T) {
	p := &fakeProvider{name: "gemini", delay: 20 * time.Millisecond, reply: models.Success("gemini", "done")}
	cascade := newCascade(config.ProvidersConfig{}, nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if resp := cascade.Generate(ctx, models.GenerationRequest{Prompt: "prompt"}); !resp.OK {
		t.Fatalf("cancelled caller aborted the call: %+v", resp)
	}
}

func TestCascadeDeadlineSplitsBudget(t *testing.T) {
	a, b := failing("gemini"), failing("groq")
	cascade := newCascade(config.ProvidersConfig{Timeout: time.Minute, Deadline: 10 * time.Second}, nil, a, b)
	cascade.Generate(context.Background(), models.GenerationRequest{Prompt: "prompt"})

	if a.deadline > 5*time.Second || a.deadline < 4*time.Second {
		t.Fatalf("first provider budget = %v, want about 5s", a.deadline)
	}
	if b.deadline > 10*time.Second || b.deadline < 9*time.Second {
		t.Fatalf("last provider budget = %v, want about 10s", b.deadline)
	}
}

func TestCascadeRecoversPanics(t *testing.T) {
	bad := &fakeProvider{name: "gemini", panic: true}
	cascade := newCascade(config.ProvidersConfig{}, nil, bad, ok("groq", "fine"))

	resp := cascade.Generate(context.Background(), models.GenerationRequest{Prompt: "prompt"})
	if !resp.OK || resp.Provider != "groq" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestConfiguredListsAllProviders(t *testing.T) {
	cfg := config.ProvidersConfig{Cohere: config.ProviderConfig{APIKey: "c"}}
	keys := newCascade(cfg, nil).Configured()
	if len(keys) != 4 || !keys["cohere"] || keys["gemini"] || keys["groq"] || keys["huggingface"] {
		t.Fatalf("keys = %v", keys)
	}
}
