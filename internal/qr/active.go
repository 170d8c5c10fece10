package qr

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ActiveStore keeps the single live payload for each program, expiring it after ttl.
type ActiveStore interface {
	Set(ctx context.Context, programID, payload string, ttl time.Duration) error
	// Get returns "" when no live payload exists.
	Get(ctx context.Context, programID string) (string, error)
}

// RedisActiveStore keys active payloads by program with native expiry.
type RedisActiveStore struct {
	client *redis.Client
	prefix string
}

// NewRedisActiveStore builds a store using keys "<prefix><programID>".
func NewRedisActiveStore(client *redis.Client, prefix string) *RedisActiveStore {
	if prefix == "" {
		prefix = "qr:active:"
	}
	return &RedisActiveStore{client: client, prefix: prefix}
}

func (s *RedisActiveStore) Set(ctx context.Context, programID, payload string, ttl time.Duration) error {
	return errors.Wrap(s.client.Set(ctx, s.prefix+programID, payload, ttl).Err(), "store active qr")
}

func (s *RedisActiveStore) Get(ctx context.Context, programID string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+programID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load active qr")
	}
	return v, nil
}

// MemoryActiveStore is a process-local store for dev and tests.
type MemoryActiveStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	payload string
	expires time.Time
}

// NewMemoryActiveStore creates an empty store.
func NewMemoryActiveStore() *MemoryActiveStore {
	return &MemoryActiveStore{now: time.Now, items: make(map[string]memoryItem)}
}

func (s *MemoryActiveStore) Set(_ context.Context, programID, payload string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[programID] = memoryItem{payload: payload, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryActiveStore) Get(_ context.Context, programID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[programID]
	if !ok {
		return "", nil
	}
	if !s.now().Before(it.expires) {
		delete(s.items, programID)
		return "", nil
	}
	return it.payload, nil
}
