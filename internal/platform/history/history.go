// Package history keeps an append-only snapshot of every version of a
// mutable registry record (currently facilities) so edits can be audited.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrVersionNotFound = errors.New("history version not found")

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entry is a single stored version of a record.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   uuid.UUID       `json:"resource_id"`
	VersionID    int             `json:"version_id"`
	Resource     json.RawMessage `json:"resource"`
	Action       Action          `json:"action"`
	ChangedBy    *uuid.UUID      `json:"changed_by,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

type Repository interface {
	Save(ctx context.Context, e *Entry) error
	Get(ctx context.Context, resourceType string, resourceID uuid.UUID, versionID int) (*Entry, error)
	List(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Entry, int, error)
}

// Tracker is called by domain services on every write.
type Tracker struct {
	repo Repository
	now  func() time.Time
}

func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

func (t *Tracker) record(ctx context.Context, resourceType string, id uuid.UUID, version int, resource interface{}, action Action, by *uuid.UUID) error {
	data, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("history: marshal %s: %w", resourceType, err)
	}
	return t.repo.Save(ctx, &Entry{
		ID:           uuid.New(),
		ResourceType: resourceType,
		ResourceID:   id,
		VersionID:    version,
		Resource:     data,
		Action:       action,
		ChangedBy:    by,
		Timestamp:    t.now().UTC(),
	})
}

// RecordCreate stores version 1.
func (t *Tracker) RecordCreate(ctx context.Context, resourceType string, id uuid.UUID, resource interface{}, by *uuid.UUID) error {
	return t.record(ctx, resourceType, id, 1, resource, ActionCreate, by)
}

// RecordUpdate stores resource as version. Callers pass the version the
// record carries after the write.
func (t *Tracker) RecordUpdate(ctx context.Context, resourceType string, id uuid.UUID, version int, resource interface{}, by *uuid.UUID) error {
	return t.record(ctx, resourceType, id, version, resource, ActionUpdate, by)
}

// RecordDelete stores a null snapshot at version.
func (t *Tracker) RecordDelete(ctx context.Context, resourceType string, id uuid.UUID, version int, by *uuid.UUID) error {
	return t.record(ctx, resourceType, id, version, nil, ActionDelete, by)
}

func (t *Tracker) GetVersion(ctx context.Context, resourceType string, id uuid.UUID, version int) (*Entry, error) {
	return t.repo.Get(ctx, resourceType, id, version)
}

func (t *Tracker) ListVersions(ctx context.Context, resourceType string, id uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return t.repo.List(ctx, resourceType, id, limit, offset)
}
