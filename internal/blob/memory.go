package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps media in process memory. Used when no S3 backend is
// configured and as the test double; contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string

	// PutErr, when set, is returned by Put. Lets tests simulate an
	// unreachable backend.
	PutErr error

	// PutDelay, when set, makes Put block before storing. Lets tests
	// exercise the upload timeout race.
	PutDelay func()
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Put stores bytes under a fresh storage key.
func (m *MemoryStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if m.PutDelay != nil {
		m.PutDelay()
	}
	if m.PutErr != nil {
		return "", m.PutErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := NewStorageKey()
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = cp
	m.types[key] = contentType
	m.mu.Unlock()
	return key, nil
}

// Resolve returns a synthetic URL for a stored object.
func (m *MemoryStore) Resolve(ctx context.Context, storageID string) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[storageID]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("memory://%s", storageID), nil
}

// Get returns stored bytes and content type, for tests.
func (m *MemoryStore) Get(storageID string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[storageID]
	return data, m.types[storageID], ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
