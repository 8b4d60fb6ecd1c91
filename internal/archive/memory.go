package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryArchiver is an in-memory implementation of the Archiver
// interface, useful for testing. Safe for concurrent use.
type MemoryArchiver struct {
	mu      sync.RWMutex
	name    string
	objects map[string][]byte
}

var _ Archiver = (*MemoryArchiver)(nil)

// NewMemoryArchiver creates a new in-memory archiver with the given name.
func NewMemoryArchiver(name string) *MemoryArchiver {
	return &MemoryArchiver{
		name:    name,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryArchiver) Put(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemoryArchiver) Get(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("export not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory archiver.
func (m *MemoryArchiver) ValidateSetup(context.Context) error {
	return nil
}
