// Package keystore holds the private halves of rotation keys created on this device.
package keystore

import (
	"context"
	"sync"

	"github.com/demesne/go-demesne-server/types"
)

// SecureStore is a key-value store for secret material. Access is atomic per key.
type SecureStore interface {
	// Get returns types.ErrKeyNotFound when nothing is stored under id
	Get(ctx context.Context, id string) (string, error)
	Set(ctx context.Context, id string, value string) error
	Delete(ctx context.Context, id string) error
}

// MemorySecureStore keeps secrets in process memory (debug mode and tests)
type MemorySecureStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySecureStore() *MemorySecureStore {
	return &MemorySecureStore{values: make(map[string]string)}
}

func (m *MemorySecureStore) Get(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[id]
	if !ok {
		return "", types.ErrKeyNotFound
	}
	return v, nil
}

func (m *MemorySecureStore) Set(ctx context.Context, id string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[id] = value
	return nil
}

func (m *MemorySecureStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, id)
	return nil
}
