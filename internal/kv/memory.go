package kv

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store, used for tests and ephemeral servers.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
	used    int
	quota   int
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := applyOptions(opts)
	return &Memory{entries: make(map[string]string), quota: o.quota}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldSize := 0
	if old, ok := m.entries[key]; ok {
		oldSize = entrySize(key, old)
	}
	if err := checkQuota(m.quota, m.used, oldSize, key, value); err != nil {
		return err
	}
	m.entries[key] = value
	m.used += entrySize(key, value) - oldSize
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.entries, key)
	}
	return nil
}

// Keys returns all keys in sorted order.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Used returns the number of bytes currently stored.
func (m *Memory) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func (m *Memory) Close() error { return nil }
