// Package cache holds the key-value contract shared by cache backends and an in-process implementation.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrKeyNotFound = errors.New("cache: key not found")

// Memory is a bounded LRU used when no Redis address is configured.
// Expiry is tracked per entry so callers keep choosing the ttl on each write.
type Memory struct {
	lru *expirable.LRU[string, memoryItem]
	now func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewMemory(maxKeys int) *Memory {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &Memory{
		lru: expirable.NewLRU[string, memoryItem](maxKeys, nil, 0),
		now: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	item, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		m.lru.Remove(key)
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), item.value...), nil
}

// SetWithTTL stores value. A zero ttl never expires. When full, the least recently used key is evicted.
func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, item)
	return nil
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
