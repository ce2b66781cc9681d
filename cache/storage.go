package cache

import (
	"context"
	"strings"
	"sync"
)

// Storage is simple string-keyed persistence with no transactional guarantees.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// PrefixRemover is implemented by storages that can drop every key under a prefix.
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string) error
}

// MemoryStorage is an in-memory Storage for tests and cache-less deployments.
type MemoryStorage struct {
	mu      sync.RWMutex
	items   map[string]string
	failGet error
	failSet error
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string]string{}}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failGet != nil {
		return "", false, m.failGet
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	delete(m.items, key)
	return nil
}

func (m *MemoryStorage) RemovePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

// FailWith makes reads and/or writes return the given errors; nil clears.
func (m *MemoryStorage) FailWith(getErr, setErr error) {
	m.mu.Lock()
	m.failGet = getErr
	m.failSet = setErr
	m.mu.Unlock()
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Keys returns every stored key.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}
