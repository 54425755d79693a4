package storage

import (
	"context"
	"sync"
)

var _ Slots = (*MemorySlots)(nil)

// MemorySlots keeps slots in process memory. Used by tests and for ephemeral runs.
type MemorySlots struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{items: map[string][]byte{}}
}

func (m *MemorySlots) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemorySlots) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}
