package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryClient es el driver por instancia, sobre go-cache. Las entradas
// vencidas se purgan cada minuto.
type MemoryClient struct {
	prefix string
	items  *gocache.Cache
	mu     sync.Mutex // serializa Incr
}

func NewMemory(prefix string, defaultTTL time.Duration) *MemoryClient {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &MemoryClient{prefix: prefix, items: gocache.New(defaultTTL, time.Minute)}
}

func (m *MemoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.items.Get(m.prefix + key)
	if !ok {
		return "", ErrMiss
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	}
	return "", ErrMiss
}

func (m *MemoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.items.Set(m.prefix+key, value, ttl)
	return nil
}

func (m *MemoryClient) Delete(_ context.Context, key string) error {
	m.items.Delete(m.prefix + key)
	return nil
}

func (m *MemoryClient) Incr(_ context.Context, key string) (int64, error) {
	k := m.prefix + key
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.items.Add(k, int64(1), gocache.NoExpiration); err == nil {
		return 1, nil
	}
	return m.items.IncrementInt64(k, 1)
}

func (m *MemoryClient) Ping(context.Context) error { return nil }

func (m *MemoryClient) Close() error {
	m.items.Flush()
	return nil
}
