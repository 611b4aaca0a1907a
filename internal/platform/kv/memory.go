package kv

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryStore keeps everything in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	values    map[string][]byte
	sequences map[string]int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:    make(map[string][]byte),
		sequences: make(map[string]int64),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = cloneBytes(value)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// GetByPrefix implements Store.
func (m *MemoryStore) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]json.RawMessage, 0)
	for k, v := range m.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, cloneBytes(v))
		}
	}
	return out, nil
}

// Next implements Sequencer.
func (m *MemoryStore) Next(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[name]++
	return m.sequences[name], nil
}

// SeedIfAbsent implements Sequencer.
func (m *MemoryStore) SeedIfAbsent(ctx context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sequences[name]; !ok {
		m.sequences[name] = value
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
