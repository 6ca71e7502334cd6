package querycache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process LRU store with optional TTL. Values are returned as stored, so
// pointer values keep their identity across hits.
type MemoryStore[T any] struct {
	lru *lru.LRU[string, T]
}

// NewMemoryStore returns a store holding at most size entries (0 for unbounded) that expire after
// ttl (0 for never).
func NewMemoryStore[T any](size int, ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{lru: lru.NewLRU[string, T](size, nil, ttl)}
}

func (s *MemoryStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *MemoryStore[T]) Set(_ context.Context, key string, v T) error {
	s.lru.Add(key, v)
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore[T]) Len() int { return s.lru.Len() }

// Purge drops every entry.
func (s *MemoryStore[T]) Purge() { s.lru.Purge() }
