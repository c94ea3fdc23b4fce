package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sirupsen/logrus"
)

type hits struct{ hit, miss int }

func (h *hits) RecordCacheHit()  { h.hit++ }
func (h *hits) RecordCacheMiss() { h.miss++ }

func newTestCache(maxSize int, rec Recorder) Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewCache(&config.CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: maxSize}, rec, log)
}

func TestCacheRoundTrip(t *testing.T) {
	rec := &hits{}
	c := newTestCache(10, rec)
	ctx := context.Background()
	data := []byte("png bytes")

	if _, ok := c.Get(ctx, "image", data); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(ctx, "image", data, &models.OCRResult{Status: models.OCRStatusSuccess, Text: "hello"})

	got, ok := c.Get(ctx, "image", data)
	if !ok || got.Text != "hello" {
		t.Fatalf("got %+v, %v", got, ok)
	}
	if rec.hit != 1 || rec.miss != 1 {
		t.Fatalf("hits = %+v", rec)
	}

	// Returned results are copies
	got.Text = "changed"
	again, _ := c.Get(ctx, "image", data)
	if again.Text != "hello" {
		t.Fatal("cached entry mutated through returned pointer")
	}
}

func TestCacheKeyIncludesKind(t *testing.T) {
	c := newTestCache(10, nil)
	ctx := context.Background()
	data := []byte("same bytes")

	c.Set(ctx, "image", data, &models.OCRResult{Text: "img"})
	if _, ok := c.Get(ctx, "pdf", data); ok {
		t.Fatal("pdf lookup hit an image entry")
	}
}

func TestCacheFlushesWhenFull(t *testing.T) {
	c := newTestCache(2, nil)
	ctx := context.Background()

	c.Set(ctx, "image", []byte("a"), &models.OCRResult{Text: "a"})
	c.Set(ctx, "image", []byte("b"), &models.OCRResult{Text: "b"})
	c.Set(ctx, "image", []byte("c"), &models.OCRResult{Text: "c"})

	if _, ok := c.Get(ctx, "image", []byte("c")); !ok {
		t.Fatal("latest entry missing")
	}
	if _, ok := c.Get(ctx, "image", []byte("a")); ok {
		t.Fatal("expected older entries flushed")
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewCache(&config.CacheConfig{Enabled: false}, nil, nil)
	ctx := context.Background()
	c.Set(ctx, "image", []byte("a"), &models.OCRResult{Text: "a"})
	if _, ok := c.Get(ctx, "image", []byte("a")); ok {
		t.Fatal("disabled cache returned a hit")
	}
}
