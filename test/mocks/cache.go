package mocks

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hundredk/challenge-tracker/internal/cache"
)

var _ cache.Cache = (*MockCache)(nil)

// ErrCacheDown is returned by every operation while a MockCache is failing.
var ErrCacheDown = errors.New("mock cache unavailable")

// MockCache is an in-memory mock implementation of the Cache interface
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data    map[string]string
	ttl     map[string]time.Duration
	failing bool
	mu      sync.RWMutex
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
		ttl:  make(map[string]time.Duration),
	}
}

// SetFailing makes every subsequent call return ErrCacheDown.
func (m *MockCache) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return "", ErrCacheDown
	}
	return m.data[key], nil // "" for missing keys, like RedisCache
}

// Set stores a value in the mock cache
func (m *MockCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return ErrCacheDown
	}
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		return errors.New("mock cache stores strings only")
	}
	m.ttl[key] = expiration
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return ErrCacheDown
	}
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttl, key)
	}
	return nil
}

// Exists checks if keys exist in the mock cache
func (m *MockCache) Exists(_ context.Context, keys ...string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return 0, ErrCacheDown
	}
	var count int64
	for _, key := range keys {
		if _, exists := m.data[key]; exists {
			count++
		}
	}
	return count, nil
}

// Incr increments a key's value
func (m *MockCache) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return 0, ErrCacheDown
	}
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

// Expire records the expiration of a key. Keys never actually expire.
func (m *MockCache) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return ErrCacheDown
	}
	if _, ok := m.data[key]; ok {
		m.ttl[key] = expiration
	}
	return nil
}

// TTL returns the recorded expiration of a key
func (m *MockCache) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return 0, ErrCacheDown
	}
	return m.ttl[key], nil
}

// SetNX sets a key only if it doesn't exist (for distributed locking)
func (m *MockCache) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return false, ErrCacheDown
	}
	_, exists := m.data[key]
	m.mu.Unlock()

	if exists {
		return false, nil
	}
	return true, m.Set(context.Background(), key, value, expiration)
}

// Health reports ErrCacheDown while failing
func (m *MockCache) Health(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return ErrCacheDown
	}
	return nil
}

// Close is a no-op for mock
func (m *MockCache) Close() error {
	return nil
}

// Keys returns the number of stored keys.
func (m *MockCache) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Clear resets the mock cache (useful for tests)
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
	m.ttl = make(map[string]time.Duration)
}
