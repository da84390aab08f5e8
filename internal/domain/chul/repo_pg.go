package chul

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
)

// -- Lookups --

type lookupRepoPG struct {
	pool *pgxpool.Pool
}

func NewLookupRepo(pool *pgxpool.Pool) LookupRepository {
	return &lookupRepoPG{pool: pool}
}

func (r *lookupRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *lookupRepoPG) CreateStatus(ctx context.Context, s *Status) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO chu_statuses (id, name, description) VALUES ($1, $2, $3) RETURNING created`,
		s.ID, s.Name, s.Description).Scan(&s.Created)
}

func (r *lookupRepoPG) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	var s Status
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description, created FROM chu_statuses WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "status")
	}
	return &s, nil
}

func (r *lookupRepoPG) ListStatuses(ctx context.Context, limit, offset int) ([]*Status, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM chu_statuses`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, description, created FROM chu_statuses ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Status
	for rows.Next() {
		var s Status
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *lookupRepoPG) CreateApprover(ctx context.Context, a *Approver) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO chu_approvers (id, name, abbreviation, description) VALUES ($1, $2, $3, $4) RETURNING created`,
		a.ID, a.Name, a.Abbreviation, a.Description).Scan(&a.Created)
}

func (r *lookupRepoPG) GetApprover(ctx context.Context, id uuid.UUID) (*Approver, error) {
	var a Approver
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, abbreviation, description, created FROM chu_approvers WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Abbreviation, &a.Description, &a.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "approver")
	}
	return &a, nil
}

func (r *lookupRepoPG) ListApprovers(ctx context.Context, limit, offset int) ([]*Approver, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM chu_approvers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, abbreviation, description, created FROM chu_approvers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Approver
	for rows.Next() {
		var a Approver
		if err := rows.Scan(&a.ID, &a.Name, &a.Abbreviation, &a.Description, &a.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &a)
	}
	return items, total, rows.Err()
}

func (r *lookupRepoPG) CreateApprovalStatus(ctx context.Context, s *ApprovalStatus) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO chu_approval_statuses (id, name, description) VALUES ($1, $2, $3) RETURNING created`,
		s.ID, s.Name, s.Description).Scan(&s.Created)
}

func (r *lookupRepoPG) GetApprovalStatus(ctx context.Context, id uuid.UUID) (*ApprovalStatus, error) {
	var s ApprovalStatus
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description, created FROM chu_approval_statuses WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "approval status")
	}
	return &s, nil
}

func (r *lookupRepoPG) ListApprovalStatuses(ctx context.Context, limit, offset int) ([]*ApprovalStatus, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM chu_approval_statuses`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, description, created FROM chu_approval_statuses ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ApprovalStatus
	for rows.Next() {
		var s ApprovalStatus
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

// -- Shared --

// unitGeoJoin joins a unit aliased u through its facility to the county.
const unitGeoJoin = `
	JOIN facilities f ON f.id = u.facility_id
	JOIN wards wa ON wa.id = f.ward_id
	JOIN constituencies c ON c.id = wa.constituency_id
	JOIN counties co ON co.id = c.county_id`

func scopeClause(scope auth.Scope, idx int) (string, []interface{}) {
	switch scope.Level {
	case auth.ScopeNational:
		return "", nil
	case auth.ScopeCounty:
		return fmt.Sprintf(` AND co.id = $%d`, idx), []interface{}{scope.CountyID}
	case auth.ScopeConstituency:
		return fmt.Sprintf(` AND c.id = $%d`, idx), []interface{}{scope.ConstituencyID}
	default:
		return ` AND FALSE`, nil
	}
}

func listContacts(ctx context.Context, q db.Querier, linkTable, ownerCol string, ownerID uuid.UUID) ([]*common.Contact, error) {
	rows, err := q.Query(ctx, `
		SELECT c.id, c.contact, c.contact_type_id, ct.name, c.created
		FROM `+linkTable+` l
		JOIN contacts c ON c.id = l.contact_id
		JOIN contact_types ct ON ct.id = c.contact_type_id
		WHERE l.`+ownerCol+` = $1
		ORDER BY l.created`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*common.Contact
	for rows.Next() {
		var c common.Contact
		if err := rows.Scan(&c.ID, &c.Contact, &c.ContactTypeID, &c.ContactTypeName, &c.Created); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func createApproval(ctx context.Context, q db.Querier, table, ownerCol string, ownerID uuid.UUID, a *Approval) error {
	a.ID = uuid.New()
	var date *string
	if a.ApprovalDate != "" {
		date = &a.ApprovalDate
	}
	return q.QueryRow(ctx, `
		INSERT INTO `+table+` (id, `+ownerCol+`, approver_id, approval_status_id, comment, approval_date)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::date, CURRENT_DATE))
		RETURNING to_char(approval_date, 'YYYY-MM-DD'), created`,
		a.ID, ownerID, a.ApproverID, a.ApprovalStatusID, a.Comment, date,
	).Scan(&a.ApprovalDate, &a.Created)
}

func listApprovals(ctx context.Context, q db.Querier, table, ownerCol string, ownerID uuid.UUID) ([]*Approval, error) {
	rows, err := q.Query(ctx, `
		SELECT a.id, a.approver_id, ap.name, a.approval_status_id, s.name, a.comment,
			to_char(a.approval_date, 'YYYY-MM-DD'), a.created
		FROM `+table+` a
		JOIN chu_approvers ap ON ap.id = a.approver_id
		JOIN chu_approval_statuses s ON s.id = a.approval_status_id
		WHERE a.`+ownerCol+` = $1
		ORDER BY a.created DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.ApproverID, &a.ApproverName, &a.ApprovalStatusID, &a.ApprovalStatusName,
			&a.Comment, &a.ApprovalDate, &a.Created); err != nil {
			return nil, err
		}
		owner := ownerID
		if ownerCol == "health_unit_id" {
			a.HealthUnitID = &owner
		} else {
			a.HealthWorkerID = &owner
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

// -- Units --

type unitRepoPG struct {
	pool *pgxpool.Pool
}

func NewUnitRepo(pool *pgxpool.Pool) UnitRepository {
	return &unitRepoPG{pool: pool}
}

func (r *unitRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const unitCols = `u.id, u.code, u.name, u.facility_id, f.name, u.status_id, s.name, u.households_monitored,
	to_char(u.date_established, 'YYYY-MM-DD'), wa.name, c.id, co.id, co.name, u.created, u.updated`

const unitFrom = ` FROM community_health_units u
	JOIN chu_statuses s ON s.id = u.status_id` + unitGeoJoin

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.Code, &u.Name, &u.FacilityID, &u.FacilityName, &u.StatusID, &u.StatusName,
		&u.HouseholdsMonitored, &u.DateEstablished, &u.WardName, &u.ConstituencyID, &u.CountyID, &u.CountyName,
		&u.Created, &u.Updated)
	return &u, err
}

func (r *unitRepoPG) Create(ctx context.Context, u *Unit) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO community_health_units (id, name, facility_id, status_id, households_monitored, date_established)
		VALUES ($1, $2, $3, $4, $5, $6::date)
		RETURNING code, created, updated`,
		u.ID, u.Name, u.FacilityID, u.StatusID, u.HouseholdsMonitored, u.DateEstablished,
	).Scan(&u.Code, &u.Created, &u.Updated)
}

func (r *unitRepoPG) Get(ctx context.Context, id uuid.UUID) (*Unit, error) {
	u, err := scanUnit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+unitCols+unitFrom+` WHERE u.id = $1 AND NOT u.deleted`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "community health unit")
	}
	return u, nil
}

func (r *unitRepoPG) Update(ctx context.Context, u *Unit) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE community_health_units SET name = $2, facility_id = $3, status_id = $4,
			households_monitored = $5, date_established = $6::date, updated = NOW()
		WHERE id = $1 AND NOT deleted`,
		u.ID, u.Name, u.FacilityID, u.StatusID, u.HouseholdsMonitored, u.DateEstablished)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("community health unit")
	}
	return nil
}

func (r *unitRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE community_health_units SET deleted = TRUE, updated = NOW() WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("community health unit")
	}
	return nil
}

func (r *unitRepoPG) List(ctx context.Context, scope auth.Scope, filter UnitFilter, limit, offset int) ([]*Unit, int, error) {
	where, args := scopeClause(scope, 1)
	where = ` WHERE NOT u.deleted` + where
	idx := len(args) + 1

	if filter.Name != "" {
		where += fmt.Sprintf(` AND u.name ILIKE $%d`, idx)
		args = append(args, "%"+filter.Name+"%")
		idx++
	}
	if filter.Facility != nil {
		where += fmt.Sprintf(` AND u.facility_id = $%d`, idx)
		args = append(args, *filter.Facility)
		idx++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(` AND u.status_id = $%d`, idx)
		args = append(args, *filter.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+unitFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + unitCols + unitFrom + where +
		fmt.Sprintf(` ORDER BY u.created DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *unitRepoPG) AddContact(ctx context.Context, unitID, contactID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO chu_contacts (id, health_unit_id, contact_id) VALUES ($1, $2, $3)
		ON CONFLICT (health_unit_id, contact_id) DO NOTHING`, uuid.New(), unitID, contactID)
	return err
}

func (r *unitRepoPG) ListContacts(ctx context.Context, unitID uuid.UUID) ([]*common.Contact, error) {
	return listContacts(ctx, r.conn(ctx), "chu_contacts", "health_unit_id", unitID)
}

func (r *unitRepoPG) CreateApproval(ctx context.Context, a *Approval) error {
	return createApproval(ctx, r.conn(ctx), "chu_approvals", "health_unit_id", *a.HealthUnitID, a)
}

func (r *unitRepoPG) ListApprovals(ctx context.Context, unitID uuid.UUID) ([]*Approval, error) {
	return listApprovals(ctx, r.conn(ctx), "chu_approvals", "health_unit_id", unitID)
}

// -- Workers --

type workerRepoPG struct {
	pool *pgxpool.Pool
}

func NewWorkerRepo(pool *pgxpool.Pool) WorkerRepository {
	return &workerRepoPG{pool: pool}
}

func (r *workerRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const workerCols = `hw.id, hw.first_name, hw.last_name, hw.id_number, hw.health_unit_id, u.name,
	hw.is_active, hw.created, hw.updated`

const workerFrom = ` FROM community_health_workers hw
	JOIN community_health_units u ON u.id = hw.health_unit_id` + unitGeoJoin

func scanWorker(row pgx.Row) (*Worker, error) {
	var w Worker
	err := row.Scan(&w.ID, &w.FirstName, &w.LastName, &w.IDNumber, &w.HealthUnitID, &w.HealthUnitName,
		&w.IsActive, &w.Created, &w.Updated)
	w.Name = FullName(w.FirstName, w.LastName)
	return &w, err
}

func (r *workerRepoPG) Create(ctx context.Context, w *Worker) error {
	w.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO community_health_workers (id, first_name, last_name, id_number, health_unit_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created, updated`,
		w.ID, w.FirstName, w.LastName, w.IDNumber, w.HealthUnitID, w.IsActive,
	).Scan(&w.Created, &w.Updated)
}

func (r *workerRepoPG) Get(ctx context.Context, id uuid.UUID) (*Worker, error) {
	w, err := scanWorker(r.conn(ctx).QueryRow(ctx,
		`SELECT `+workerCols+workerFrom+` WHERE hw.id = $1 AND NOT hw.deleted`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "community health worker")
	}
	return w, nil
}

func (r *workerRepoPG) Update(ctx context.Context, w *Worker) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE community_health_workers SET first_name = $2, last_name = $3, id_number = $4,
			health_unit_id = $5, is_active = $6, updated = NOW()
		WHERE id = $1 AND NOT deleted`,
		w.ID, w.FirstName, w.LastName, w.IDNumber, w.HealthUnitID, w.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("community health worker")
	}
	return nil
}

func (r *workerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE community_health_workers SET deleted = TRUE, updated = NOW() WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("community health worker")
	}
	return nil
}

func (r *workerRepoPG) List(ctx context.Context, scope auth.Scope, unitID *uuid.UUID, limit, offset int) ([]*Worker, int, error) {
	where, args := scopeClause(scope, 1)
	where = ` WHERE NOT hw.deleted AND NOT u.deleted` + where
	idx := len(args) + 1
	if unitID != nil {
		where += fmt.Sprintf(` AND hw.health_unit_id = $%d`, idx)
		args = append(args, *unitID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+workerFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + workerCols + workerFrom + where +
		fmt.Sprintf(` ORDER BY hw.created DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, rows.Err()
}

func (r *workerRepoPG) AddContact(ctx context.Context, workerID, contactID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO chw_contacts (id, health_worker_id, contact_id) VALUES ($1, $2, $3)
		ON CONFLICT (health_worker_id, contact_id) DO NOTHING`, uuid.New(), workerID, contactID)
	return err
}

func (r *workerRepoPG) ListContacts(ctx context.Context, workerID uuid.UUID) ([]*common.Contact, error) {
	return listContacts(ctx, r.conn(ctx), "chw_contacts", "health_worker_id", workerID)
}

func (r *workerRepoPG) CreateApproval(ctx context.Context, a *Approval) error {
	return createApproval(ctx, r.conn(ctx), "chw_approvals", "health_worker_id", *a.HealthWorkerID, a)
}

func (r *workerRepoPG) ListApprovals(ctx context.Context, workerID uuid.UUID) ([]*Approval, error) {
	return listApprovals(ctx, r.conn(ctx), "chw_approvals", "health_worker_id", workerID)
}
