package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"clipdigest/internal/services"
)

// MemoryBlobStore is an in-memory blobstore.Store for tests.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutCalls counts uploads per key, useful for idempotence assertions.
	PutCalls map[string]int
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		objects:  make(map[string][]byte),
		PutCalls: make(map[string]int),
	}
}

func (m *MemoryBlobStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "blobstore", "get",
			fmt.Sprintf("object %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryBlobStore) PutFile(_ context.Context, key, localPath, _ string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return services.Wrap(services.ErrStorage, "blobstore", "put", "read local file", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.PutCalls[key]++
	return nil
}

func (m *MemoryBlobStore) PutBytes(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.PutCalls[key]++
	return nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryBlobStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", services.Wrap(services.ErrNotFound, "blobstore", "sign",
			fmt.Sprintf("object %q not found", key), nil)
	}
	return fmt.Sprintf("https://blob.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

// Content returns the stored bytes for key, or nil.
func (m *MemoryBlobStore) Content(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key]
}

// Seed stores data under key without counting it as a Put.
func (m *MemoryBlobStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}
