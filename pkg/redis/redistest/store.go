// Package redistest provides an in-memory stand-in for the redis command surface.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	teevoredis "github.com/teevo/fulfilment-backend/pkg/redis"
)

// Store is a map-backed redis.Cmdable. TTLs are ignored.
type Store struct {
	mu   sync.Mutex
	data map[string]string
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// NewClient returns a redis client wired to a fresh in-memory store.
func NewClient() (*teevoredis.Client, *Store) {
	store := NewStore()
	return teevoredis.NewWithStore(store), store
}

func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

func (s *Store) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (s *Store) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (s *Store) Get(_ context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *Store) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	s.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (s *Store) Del(_ context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := s.data[key]; ok {
			delete(s.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}
