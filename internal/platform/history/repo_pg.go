package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfl/mfl/internal/platform/db"
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const entryCols = `id, resource_type, resource_id, version_id, resource, action, changed_by, timestamp`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.ResourceType, &e.ResourceID, &e.VersionID, &e.Resource, &e.Action, &e.ChangedBy, &e.Timestamp)
	return &e, err
}

func (r *PGRepository) Save(ctx context.Context, e *Entry) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO resource_history (`+entryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ResourceType, e.ResourceID, e.VersionID, e.Resource, e.Action, e.ChangedBy, e.Timestamp)
	if err != nil {
		return fmt.Errorf("save history version: %w", err)
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, resourceType string, id uuid.UUID, version int) (*Entry, error) {
	e, err := scanEntry(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+entryCols+` FROM resource_history
		WHERE resource_type = $1 AND resource_id = $2 AND version_id = $3`,
		resourceType, id, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history version: %w", err)
	}
	return e, nil
}

func (r *PGRepository) List(ctx context.Context, resourceType string, id uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM resource_history
		WHERE resource_type = $1 AND resource_id = $2`,
		resourceType, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history versions: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+entryCols+` FROM resource_history
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY version_id DESC
		LIMIT $3 OFFSET $4`,
		resourceType, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list history versions: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
