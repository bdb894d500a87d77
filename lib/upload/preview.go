package upload

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Preview is a display-only rendition of a selected file
type Preview struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// PreviewStore owns preview resources. Every acquired reference must be
// released exactly once when the preview is superseded, removed or torn down.
type PreviewStore interface {
	Acquire(ctx context.Context, preview Preview) (string, error)
	Release(ref string)
}

// MemoryPreviews keeps previews in process memory
type MemoryPreviews struct {
	mu    sync.RWMutex
	items map[string]Preview
}

// NewMemoryPreviews creates an empty in-memory preview store
func NewMemoryPreviews() *MemoryPreviews {
	return &MemoryPreviews{items: make(map[string]Preview)}
}

// Acquire stores preview under a new reference
func (m *MemoryPreviews) Acquire(_ context.Context, preview Preview) (string, error) {
	ref := uuid.NewString()
	m.mu.Lock()
	m.items[ref] = preview
	m.mu.Unlock()
	return ref, nil
}

// Release drops the preview behind ref
func (m *MemoryPreviews) Release(ref string) {
	m.mu.Lock()
	delete(m.items, ref)
	m.mu.Unlock()
}

// Get returns the preview behind ref
func (m *MemoryPreviews) Get(ref string) (Preview, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[ref]
	return p, ok
}

// Len returns the number of live previews
func (m *MemoryPreviews) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
