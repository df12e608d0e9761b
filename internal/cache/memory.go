package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache (thread-safe).
type memoryClient struct {
	prefix string
	c      *gocache.Cache
}

// NewMemory crea un cliente in-process. Las entradas expiradas se purgan cada minuto.
func NewMemory(prefix string) Client {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	exp := ttl
	if ttl <= 0 {
		exp = gocache.NoExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, exp)
	return nil
}

func (m *memoryClient) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	k := prefixed(m.prefix, key)
	exp := ttl
	if ttl <= 0 {
		exp = gocache.NoExpiration
	}
	_ = m.c.Add(k, int64(0), exp) // falla si ya existe
	n, err := m.c.IncrementInt64(k, 1)
	if err != nil {
		return 0, 0, err
	}
	var left time.Duration
	if _, expAt, ok := m.c.GetWithExpiration(k); ok && !expAt.IsZero() {
		left = time.Until(expAt)
	}
	return n, left, nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
