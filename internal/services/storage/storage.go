package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Storage is a session backend. Implementations return copies, so callers
// may mutate the returned session freely and persist it with SaveSession.
type Storage interface {
	// GetSession returns nil, nil when uid has no session yet.
	GetSession(ctx context.Context, uid string) (*models.ChatSession, error)
	SaveSession(ctx context.Context, session *models.ChatSession) error
	DeleteSession(ctx context.Context, uid string) error
	CountSessions(ctx context.Context) (int, error)
	Close() error
}

// NewStorage builds the backend named by cfg.Storage.Type
func NewStorage(cfg *config.Config, logger *logrus.Logger) (Storage, error) {
	switch cfg.Storage.Type {
	case "redis":
		return NewRedisStorage(&cfg.Storage.Redis, logger)
	case "memory":
		return NewMemoryStorage(logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func sessionKey(uid string) string {
	return "session:" + uid
}

// RedisStorage implements storage using Redis
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisStorage(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("addr", cfg.Addr).Info("Connected to redis session storage")

	return &RedisStorage{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (r *RedisStorage) GetSession(ctx context.Context, uid string) (*models.ChatSession, error) {
	data, err := r.client.Get(ctx, sessionKey(uid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", uid, err)
	}

	return &session, nil
}

func (r *RedisStorage) SaveSession(ctx context.Context, session *models.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, sessionKey(session.UserID), data, r.ttl).Err()
}

func (r *RedisStorage) DeleteSession(ctx context.Context, uid string) error {
	return r.client.Del(ctx, sessionKey(uid)).Err()
}

func (r *RedisStorage) CountSessions(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// MemoryStorage implements storage using in-memory cache
type MemoryStorage struct {
	sessions *cache.Cache
	logger   *logrus.Logger
}

// NewMemoryStorage keeps sessions for the lifetime of the process
func NewMemoryStorage(logger *logrus.Logger) *MemoryStorage {
	return &MemoryStorage{
		sessions: cache.New(cache.NoExpiration, cache.NoExpiration),
		logger:   logger,
	}
}

func (m *MemoryStorage) GetSession(ctx context.Context, uid string) (*models.ChatSession, error) {
	if val, found := m.sessions.Get(sessionKey(uid)); found {
		session := val.(models.ChatSession)
		return &session, nil
	}
	return nil, nil
}

func (m *MemoryStorage) SaveSession(ctx context.Context, session *models.ChatSession) error {
	m.sessions.Set(sessionKey(session.UserID), *session, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) DeleteSession(ctx context.Context, uid string) error {
	m.sessions.Delete(sessionKey(uid))
	return nil
}

func (m *MemoryStorage) CountSessions(ctx context.Context) (int, error) {
	return m.sessions.ItemCount(), nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
