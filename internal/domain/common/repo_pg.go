package common

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/db"
)

// -- Geography --

type geoRepoPG struct {
	pool *pgxpool.Pool
}

func NewGeographyRepo(pool *pgxpool.Pool) GeographyRepository {
	return &geoRepoPG{pool: pool}
}

func (r *geoRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *geoRepoPG) CreateCounty(ctx context.Context, c *County) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO counties (id, name, code) VALUES ($1, $2, $3)
		RETURNING created, updated`,
		c.ID, c.Name, c.Code).Scan(&c.Created, &c.Updated)
}

func (r *geoRepoPG) GetCounty(ctx context.Context, id uuid.UUID) (*County, error) {
	var c County
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, code, created, updated FROM counties WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Code, &c.Created, &c.Updated)
	if err != nil {
		return nil, apperr.NoRows(err, "county")
	}
	return &c, nil
}

func (r *geoRepoPG) UpdateCounty(ctx context.Context, c *County) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE counties SET name = $2, code = $3, updated = NOW() WHERE id = $1`, c.ID, c.Name, c.Code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("county")
	}
	return nil
}

func (r *geoRepoPG) ListCounties(ctx context.Context, limit, offset int) ([]*County, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM counties`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, code, created, updated FROM counties
		ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*County
	for rows.Next() {
		var c County
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Created, &c.Updated); err != nil {
			return nil, 0, err
		}
		out = append(out, &c)
	}
	return out, total, rows.Err()
}

const constituencyCols = `c.id, c.name, c.code, c.county_id, co.name, c.created, c.updated`

func scanConstituency(row pgx.Row) (*Constituency, error) {
	var c Constituency
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.CountyID, &c.CountyName, &c.Created, &c.Updated)
	return &c, err
}

func (r *geoRepoPG) CreateConstituency(ctx context.Context, c *Constituency) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO constituencies (id, name, code, county_id) VALUES ($1, $2, $3, $4)
		RETURNING created, updated`,
		c.ID, c.Name, c.Code, c.CountyID).Scan(&c.Created, &c.Updated)
}

func (r *geoRepoPG) GetConstituency(ctx context.Context, id uuid.UUID) (*Constituency, error) {
	c, err := scanConstituency(r.conn(ctx).QueryRow(ctx, `
		SELECT `+constituencyCols+` FROM constituencies c
		JOIN counties co ON co.id = c.county_id
		WHERE c.id = $1`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "constituency")
	}
	return c, nil
}

func (r *geoRepoPG) UpdateConstituency(ctx context.Context, c *Constituency) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE constituencies SET name = $2, code = $3, county_id = $4, updated = NOW()
		WHERE id = $1`, c.ID, c.Name, c.Code, c.CountyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("constituency")
	}
	return nil
}

func (r *geoRepoPG) ListConstituencies(ctx context.Context, countyID *uuid.UUID, limit, offset int) ([]*Constituency, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM constituencies WHERE ($1::uuid IS NULL OR county_id = $1)`,
		countyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+constituencyCols+` FROM constituencies c
		JOIN counties co ON co.id = c.county_id
		WHERE ($1::uuid IS NULL OR c.county_id = $1)
		ORDER BY c.name LIMIT $2 OFFSET $3`, countyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Constituency
	for rows.Next() {
		c, err := scanConstituency(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

const wardCols = `w.id, w.name, w.code, w.constituency_id, c.name, c.county_id, co.name, w.created, w.updated`

const wardFrom = ` FROM wards w
	JOIN constituencies c ON c.id = w.constituency_id
	JOIN counties co ON co.id = c.county_id`

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(&w.ID, &w.Name, &w.Code, &w.ConstituencyID, &w.ConstituencyName,
		&w.CountyID, &w.CountyName, &w.Created, &w.Updated)
	return &w, err
}

func (r *geoRepoPG) CreateWard(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO wards (id, name, code, constituency_id) VALUES ($1, $2, $3, $4)
		RETURNING created, updated`,
		w.ID, w.Name, w.Code, w.ConstituencyID).Scan(&w.Created, &w.Updated)
}

func (r *geoRepoPG) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	w, err := scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardCols+wardFrom+` WHERE w.id = $1`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "ward")
	}
	return w, nil
}

func (r *geoRepoPG) UpdateWard(ctx context.Context, w *Ward) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE wards SET name = $2, code = $3, constituency_id = $4, updated = NOW()
		WHERE id = $1`, w.ID, w.Name, w.Code, w.ConstituencyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ward")
	}
	return nil
}

func (r *geoRepoPG) ListWards(ctx context.Context, constituencyID *uuid.UUID, limit, offset int) ([]*Ward, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM wards WHERE ($1::uuid IS NULL OR constituency_id = $1)`,
		constituencyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+wardCols+wardFrom+`
		WHERE ($1::uuid IS NULL OR w.constituency_id = $1)
		ORDER BY w.name LIMIT $2 OFFSET $3`, constituencyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

// -- Contacts --

type contactRepoPG struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) ContactRepository {
	return &contactRepoPG{pool: pool}
}

func (r *contactRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *contactRepoPG) CreateType(ctx context.Context, ct *ContactType) error {
	ct.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO contact_types (id, name, description) VALUES ($1, $2, $3)
		RETURNING created`, ct.ID, ct.Name, ct.Description).Scan(&ct.Created)
}

func (r *contactRepoPG) GetType(ctx context.Context, id uuid.UUID) (*ContactType, error) {
	var ct ContactType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description, created FROM contact_types WHERE id = $1`, id).
		Scan(&ct.ID, &ct.Name, &ct.Description, &ct.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "contact type")
	}
	return &ct, nil
}

func (r *contactRepoPG) ListTypes(ctx context.Context, limit, offset int) ([]*ContactType, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM contact_types`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, description, created FROM contact_types
		ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*ContactType
	for rows.Next() {
		var ct ContactType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Description, &ct.Created); err != nil {
			return nil, 0, err
		}
		out = append(out, &ct)
	}
	return out, total, rows.Err()
}

const contactSelect = `SELECT c.id, c.contact, c.contact_type_id, t.name, c.created
	FROM contacts c JOIN contact_types t ON t.id = c.contact_type_id`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.Contact, &c.ContactTypeID, &c.ContactTypeName, &c.Created)
	return &c, err
}

func (r *contactRepoPG) Create(ctx context.Context, c *Contact) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO contacts (id, contact, contact_type_id) VALUES ($1, $2, $3)
		RETURNING created`, c.ID, c.Contact, c.ContactTypeID).Scan(&c.Created)
}

func (r *contactRepoPG) Get(ctx context.Context, id uuid.UUID) (*Contact, error) {
	c, err := scanContact(r.conn(ctx).QueryRow(ctx, contactSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "contact")
	}
	return c, nil
}

func (r *contactRepoPG) FindByValue(ctx context.Context, typeID uuid.UUID, value string) (*Contact, error) {
	c, err := scanContact(r.conn(ctx).QueryRow(ctx,
		contactSelect+` WHERE c.contact_type_id = $1 AND c.contact = $2`, typeID, value))
	if err != nil {
		return nil, apperr.NoRows(err, "contact")
	}
	return c, nil
}

func (r *contactRepoPG) List(ctx context.Context, limit, offset int) ([]*Contact, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, contactSelect+` ORDER BY c.created DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
