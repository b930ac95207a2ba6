package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is the lookup-cache abstraction. The process runs with the in-memory
// implementation unless Redis is configured; callers never know which.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]entry
}

type entry struct {
	val []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{
		m: make(map[string]entry),
	}
}

func (c *Memory) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return false, nil
	}

	return true, unmarshalJSON(e.val, dest)
}

func (c *Memory) SetJSON(_ context.Context, key string, val any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	raw, err := marshalJSON(val)

	if err != nil {
		return err
	}

	c.mu.Lock()
	c.m[key] = entry{val: raw, exp: time.Now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()

	return nil
}
