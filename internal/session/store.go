package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/redis"
)

// Store tracks which chat users have passed the verification gate.
type Store interface {
	IsVerified(ctx context.Context, userID int64) (bool, error)
	Verify(ctx context.Context, userID int64) error
	Revoke(ctx context.Context, userID int64) error
}

// NewStore builds the backend named in the config. "memory" keeps
// verification in-process, which means everyone re-verifies after a
// restart; "redis" survives restarts and is shared across replicas.
func NewStore(cfg config.SessionConfig, rdb *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("session backend redis requires a redis client")
		}
		return NewRedisStore(rdb, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// MemoryStore holds verified users in a process-local set.
type MemoryStore struct {
	mu       sync.RWMutex
	verified map[int64]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{verified: make(map[int64]struct{})}
}

func (s *MemoryStore) IsVerified(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.verified[userID]
	return ok, nil
}

func (s *MemoryStore) Verify(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[userID] = struct{}{}
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verified, userID)
	return nil
}

// RedisStore keeps verification flags in Redis under a per-user key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) IsVerified(ctx context.Context, userID int64) (bool, error) {
	return s.client.Exists(ctx, s.client.SessionKey(userID))
}

func (s *RedisStore) Verify(ctx context.Context, userID int64) error {
	return s.client.Set(ctx, s.client.SessionKey(userID), "1", s.ttl)
}

func (s *RedisStore) Revoke(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.client.SessionKey(userID))
}
