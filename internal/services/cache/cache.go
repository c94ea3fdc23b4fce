package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service caches extraction results keyed by upload content
type Service interface {
	Get(ctx context.Context, kind string, data []byte) (*models.OCRResult, bool)
	Set(ctx context.Context, kind string, data []byte, result *models.OCRResult) error
}

// Recorder receives hit/miss events
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

type entry struct {
	result    models.OCRResult
	createdAt time.Time
}

// Cache implements Service on go-cache
type Cache struct {
	enabled bool
	cache   *cache.Cache
	logger  *logrus.Logger
	metrics Recorder
	maxSize int
}

// NewCache creates a new OCR result cache
func NewCache(cfg *config.CacheConfig, metrics Recorder, logger *logrus.Logger) Service {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		enabled: true,
		cache:   cache.New(cfg.TTL, cfg.TTL*2),
		logger:  logger,
		metrics: metrics,
		maxSize: cfg.MaxSize,
	}
}

// Get returns a copy of the cached result for the upload
func (c *Cache) Get(ctx context.Context, kind string, data []byte) (*models.OCRResult, bool) {
	if !c.enabled {
		return nil, false
	}

	key := generateKey(kind, data)
	if val, found := c.cache.Get(key); found {
		e := val.(*entry)
		c.logger.WithFields(logrus.Fields{
			"kind": kind,
			"key":  key[:12],
			"age":  time.Since(e.createdAt),
		}).Debug("OCR cache hit")
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		result := e.result
		return &result, true
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
	return nil, false
}

// Set stores the result for the upload
func (c *Cache) Set(ctx context.Context, kind string, data []byte, result *models.OCRResult) error {
	if !c.enabled || result == nil {
		return nil
	}

	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.maxSize {
			c.logger.Warn("OCR cache full, flushing")
			c.cache.Flush()
		}
	}

	key := generateKey(kind, data)
	c.cache.SetDefault(key, &entry{result: *result, createdAt: time.Now()})
	c.logger.WithFields(logrus.Fields{
		"kind":  kind,
		"key":   key[:12],
		"bytes": len(data),
	}).Debug("OCR result cached")

	return nil
}

func generateKey(kind string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
