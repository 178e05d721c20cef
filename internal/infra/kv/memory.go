package kv

import (
	"context"
	"sync"
)

// Memory is a process-local store, used in tests and with STORE_DRIVER=memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailWrites makes SetMany fail, to exercise all-or-nothing updates.
	FailWrites error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or nil when absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// SetMany stores all values, or none when FailWrites is set.
func (m *Memory) SetMany(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	for k, v := range values {
		cp := make([]byte, len(v))
		copy(cp, v)
		m.data[k] = cp
	}
	return nil
}

// Put stores a raw value, bypassing FailWrites. Tests use it to seed
// malformed documents.
func (m *Memory) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
