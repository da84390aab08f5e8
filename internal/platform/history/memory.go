package history

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository for tests and the export command.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, resourceType string, id uuid.UUID, version int) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ResourceType == resourceType && e.ResourceID == id && e.VersionID == version {
			return e, nil
		}
	}
	return nil, ErrVersionNotFound
}

func (r *MemoryRepository) List(_ context.Context, resourceType string, id uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.ResourceType == resourceType && e.ResourceID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionID > out[j].VersionID })
	total := len(out)
	if offset >= total {
		return []*Entry{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return out[offset:end], total, nil
}
