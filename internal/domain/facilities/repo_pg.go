package facilities

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

func (r *lookupRepoPG) count(ctx context.Context, table string) (int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&total)
	return total, err
}

func (r *lookupRepoPG) CreateOwnerType(ctx context.Context, ot *OwnerType) error {
	ot.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO owner_types (id, name, description) VALUES ($1, $2, $3) RETURNING created`,
		ot.ID, ot.Name, ot.Description).Scan(&ot.Created)
}

func (r *lookupRepoPG) GetOwnerType(ctx context.Context, id uuid.UUID) (*OwnerType, error) {
	var ot OwnerType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description, created FROM owner_types WHERE id = $1`, id).
		Scan(&ot.ID, &ot.Name, &ot.Description, &ot.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "owner type")
	}
	return &ot, nil
}

func (r *lookupRepoPG) ListOwnerTypes(ctx context.Context, limit, offset int) ([]*OwnerType, int, error) {
	total, err := r.count(ctx, "owner_types")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, description, created FROM owner_types ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*OwnerType
	for rows.Next() {
		var ot OwnerType
		if err := rows.Scan(&ot.ID, &ot.Name, &ot.Description, &ot.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &ot)
	}
	return items, total, rows.Err()
}

const ownerCols = `o.id, o.code, o.name, o.abbreviation, o.description, o.owner_type_id, ot.name, o.created`

func scanOwner(row pgx.Row) (*Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.Code, &o.Name, &o.Abbreviation, &o.Description, &o.OwnerTypeID, &o.OwnerTypeName, &o.Created)
	return &o, err
}

func (r *lookupRepoPG) CreateOwner(ctx context.Context, o *Owner) error {
	o.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO owners (id, name, abbreviation, description, owner_type_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING code, created`,
		o.ID, o.Name, o.Abbreviation, o.Description, o.OwnerTypeID).Scan(&o.Code, &o.Created)
}

func (r *lookupRepoPG) GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error) {
	o, err := scanOwner(r.conn(ctx).QueryRow(ctx, `
		SELECT `+ownerCols+` FROM owners o JOIN owner_types ot ON ot.id = o.owner_type_id
		WHERE o.id = $1`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "owner")
	}
	return o, nil
}

func (r *lookupRepoPG) ListOwners(ctx context.Context, limit, offset int) ([]*Owner, int, error) {
	total, err := r.count(ctx, "owners")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ownerCols+` FROM owners o JOIN owner_types ot ON ot.id = o.owner_type_id
		ORDER BY o.name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *lookupRepoPG) CreateFacilityType(ctx context.Context, ft *FacilityType) error {
	ft.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO facility_types (id, name, sub_division) VALUES ($1, $2, $3) RETURNING created`,
		ft.ID, ft.Name, ft.SubDivision).Scan(&ft.Created)
}

func (r *lookupRepoPG) GetFacilityType(ctx context.Context, id uuid.UUID) (*FacilityType, error) {
	var ft FacilityType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, sub_division, created FROM facility_types WHERE id = $1`, id).
		Scan(&ft.ID, &ft.Name, &ft.SubDivision, &ft.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "facility type")
	}
	return &ft, nil
}

func (r *lookupRepoPG) ListFacilityTypes(ctx context.Context, limit, offset int) ([]*FacilityType, int, error) {
	total, err := r.count(ctx, "facility_types")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, sub_division, created FROM facility_types ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*FacilityType
	for rows.Next() {
		var ft FacilityType
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.SubDivision, &ft.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &ft)
	}
	return items, total, rows.Err()
}

func (r *lookupRepoPG) CreateKephLevel(ctx context.Context, k *KephLevel) error {
	k.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO keph_levels (id, name, value, description) VALUES ($1, $2, $3, $4) RETURNING created`,
		k.ID, k.Name, k.Value, k.Description).Scan(&k.Created)
}

func (r *lookupRepoPG) GetKephLevel(ctx context.Context, id uuid.UUID) (*KephLevel, error) {
	var k KephLevel
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, value, description, created FROM keph_levels WHERE id = $1`, id).
		Scan(&k.ID, &k.Name, &k.Value, &k.Description, &k.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "keph level")
	}
	return &k, nil
}

func (r *lookupRepoPG) ListKephLevels(ctx context.Context, limit, offset int) ([]*KephLevel, int, error) {
	total, err := r.count(ctx, "keph_levels")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, value, description, created FROM keph_levels ORDER BY value LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*KephLevel
	for rows.Next() {
		var k KephLevel
		if err := rows.Scan(&k.ID, &k.Name, &k.Value, &k.Description, &k.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &k)
	}
	return items, total, rows.Err()
}

func (r *lookupRepoPG) CreateChangeReason(ctx context.Context, cr *ChangeReason) error {
	cr.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO change_reasons (id, reason, description) VALUES ($1, $2, $3) RETURNING created`,
		cr.ID, cr.Reason, cr.Description).Scan(&cr.Created)
}

func (r *lookupRepoPG) GetChangeReason(ctx context.Context, id uuid.UUID) (*ChangeReason, error) {
	var cr ChangeReason
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, reason, description, created FROM change_reasons WHERE id = $1`, id).
		Scan(&cr.ID, &cr.Reason, &cr.Description, &cr.Created)
	if err != nil {
		return nil, apperr.NoRows(err, "change reason")
	}
	return &cr, nil
}

func (r *lookupRepoPG) ListChangeReasons(ctx context.Context, limit, offset int) ([]*ChangeReason, int, error) {
	total, err := r.count(ctx, "change_reasons")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, reason, description, created FROM change_reasons ORDER BY reason LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ChangeReason
	for rows.Next() {
		var cr ChangeReason
		if err := rows.Scan(&cr.ID, &cr.Reason, &cr.Description, &cr.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &cr)
	}
	return items, total, rows.Err()
}

// -- Facilities --

type facilityRepoPG struct {
	pool *pgxpool.Pool
}

func NewFacilityRepo(pool *pgxpool.Pool) FacilityRepository {
	return &facilityRepoPG{pool: pool}
}

func (r *facilityRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const facilityCols = `f.id, f.code, f.name, f.official_name, f.abbreviation, f.description,
	f.facility_type_id, ft.name, f.keph_level_id, k.name, f.owner_id, o.name, ot.name,
	f.ward_id, w.name, c.id, c.name, co.id, co.name,
	f.number_of_beds, f.number_of_cots, f.open_whole_day, f.open_weekends, f.open_public_holidays,
	f.latitude, f.longitude, f.version_id, f.created, f.updated`

const facilityFrom = ` FROM facilities f
	JOIN facility_types ft ON ft.id = f.facility_type_id
	LEFT JOIN keph_levels k ON k.id = f.keph_level_id
	JOIN owners o ON o.id = f.owner_id
	JOIN owner_types ot ON ot.id = o.owner_type_id
	JOIN wards w ON w.id = f.ward_id
	JOIN constituencies c ON c.id = w.constituency_id
	JOIN counties co ON co.id = c.county_id`

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(&f.ID, &f.Code, &f.Name, &f.OfficialName, &f.Abbreviation, &f.Description,
		&f.FacilityTypeID, &f.FacilityTypeName, &f.KephLevelID, &f.KephLevelName,
		&f.OwnerID, &f.OwnerName, &f.OwnerTypeName,
		&f.WardID, &f.WardName, &f.ConstituencyID, &f.ConstituencyName, &f.CountyID, &f.CountyName,
		&f.NumberOfBeds, &f.NumberOfCots, &f.OpenWholeDay, &f.OpenWeekends, &f.OpenPublicHolidays,
		&f.Latitude, &f.Longitude, &f.VersionID, &f.Created, &f.Updated)
	return &f, err
}

// scopeClause restricts a facility query joined as in facilityFrom to the
// caller's area.
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

func (r *facilityRepoPG) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO facilities (id, name, official_name, abbreviation, description,
			facility_type_id, keph_level_id, owner_id, ward_id, number_of_beds, number_of_cots,
			open_whole_day, open_weekends, open_public_holidays, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING code, version_id, created, updated`,
		f.ID, f.Name, f.OfficialName, f.Abbreviation, f.Description,
		f.FacilityTypeID, f.KephLevelID, f.OwnerID, f.WardID, f.NumberOfBeds, f.NumberOfCots,
		f.OpenWholeDay, f.OpenWeekends, f.OpenPublicHolidays, f.Latitude, f.Longitude,
	).Scan(&f.Code, &f.VersionID, &f.Created, &f.Updated)
}

func (r *facilityRepoPG) Get(ctx context.Context, id uuid.UUID) (*Facility, error) {
	f, err := scanFacility(r.conn(ctx).QueryRow(ctx,
		`SELECT `+facilityCols+facilityFrom+` WHERE f.id = $1 AND NOT f.deleted`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "facility")
	}
	return f, nil
}

func (r *facilityRepoPG) Update(ctx context.Context, f *Facility) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE facilities SET name = $2, official_name = $3, abbreviation = $4, description = $5,
			owner_id = $6, ward_id = $7, number_of_beds = $8, number_of_cots = $9,
			open_whole_day = $10, open_weekends = $11, open_public_holidays = $12,
			latitude = $13, longitude = $14, version_id = version_id + 1, updated = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING version_id, updated`,
		f.ID, f.Name, f.OfficialName, f.Abbreviation, f.Description,
		f.OwnerID, f.WardID, f.NumberOfBeds, f.NumberOfCots,
		f.OpenWholeDay, f.OpenWeekends, f.OpenPublicHolidays, f.Latitude, f.Longitude,
	).Scan(&f.VersionID, &f.Updated)
	return apperr.NoRows(err, "facility")
}

func (r *facilityRepoPG) SetClassification(ctx context.Context, id uuid.UUID, typeID uuid.UUID, kephID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE facilities SET facility_type_id = $2, keph_level_id = $3,
			version_id = version_id + 1, updated = NOW()
		WHERE id = $1 AND NOT deleted`, id, typeID, kephID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("facility")
	}
	return nil
}

func (r *facilityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE facilities SET deleted = TRUE, version_id = version_id + 1, updated = NOW()
		WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("facility")
	}
	return nil
}

func (r *facilityRepoPG) List(ctx context.Context, scope auth.Scope, filter ListFilter, limit, offset int) ([]*Facility, int, error) {
	where := ` WHERE NOT f.deleted`
	var args []interface{}
	idx := 1

	clause, scopeArgs := scopeClause(scope, idx)
	where += clause
	args = append(args, scopeArgs...)
	idx += len(scopeArgs)

	if filter.Name != "" {
		where += fmt.Sprintf(` AND f.name ILIKE $%d`, idx)
		args = append(args, "%"+filter.Name+"%")
		idx++
	}
	for _, f := range []struct {
		col string
		val *uuid.UUID
	}{
		{"co.id", filter.County},
		{"c.id", filter.Constituency},
		{"f.ward_id", filter.Ward},
		{"f.facility_type_id", filter.FacilityType},
		{"f.keph_level_id", filter.KephLevel},
		{"f.owner_id", filter.Owner},
	} {
		if f.val == nil {
			continue
		}
		where += fmt.Sprintf(` AND %s = $%d`, f.col, idx)
		args = append(args, *f.val)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+facilityFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + facilityCols + facilityFrom + where +
		fmt.Sprintf(` ORDER BY f.name, f.code LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

func (r *facilityRepoPG) ListWithCoordinates(ctx context.Context, scope auth.Scope) ([]*Facility, error) {
	clause, args := scopeClause(scope, 1)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+facilityCols+facilityFrom+`
		WHERE NOT f.deleted AND f.latitude IS NOT NULL AND f.longitude IS NOT NULL`+clause+`
		ORDER BY f.code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *facilityRepoPG) AddContact(ctx context.Context, facilityID, contactID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO facility_contacts (id, facility_id, contact_id) VALUES ($1, $2, $3)
		ON CONFLICT (facility_id, contact_id) DO NOTHING`,
		uuid.New(), facilityID, contactID)
	return err
}

func (r *facilityRepoPG) ListContacts(ctx context.Context, facilityID uuid.UUID) ([]*common.Contact, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, c.contact, c.contact_type_id, ct.name, c.created
		FROM facility_contacts fc
		JOIN contacts c ON c.id = fc.contact_id
		JOIN contact_types ct ON ct.id = c.contact_type_id
		WHERE fc.facility_id = $1
		ORDER BY fc.created`, facilityID)
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

const upgradeCols = `u.id, u.facility_id, u.facility_type_id, ft.name, u.keph_level_id, k.name,
	u.previous_facility_type_name, u.previous_keph_level_name, u.reason_id, cr.reason,
	u.is_upgrade, u.created_by, u.created`

func (r *facilityRepoPG) CreateUpgrade(ctx context.Context, u *FacilityUpgrade) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO facility_upgrades (id, facility_id, facility_type_id, keph_level_id,
			previous_facility_type_name, previous_keph_level_name, reason_id, is_upgrade, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created`,
		u.ID, u.FacilityID, u.FacilityTypeID, u.KephLevelID,
		u.PreviousFacilityTypeName, u.PreviousKephLevelName, u.ReasonID, u.IsUpgrade, u.CreatedBy,
	).Scan(&u.Created)
}

func (r *facilityRepoPG) ListUpgrades(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*FacilityUpgrade, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM facility_upgrades WHERE facility_id = $1`, facilityID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+upgradeCols+`
		FROM facility_upgrades u
		JOIN facility_types ft ON ft.id = u.facility_type_id
		LEFT JOIN keph_levels k ON k.id = u.keph_level_id
		JOIN change_reasons cr ON cr.id = u.reason_id
		WHERE u.facility_id = $1
		ORDER BY u.created DESC
		LIMIT $2 OFFSET $3`, facilityID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*FacilityUpgrade
	for rows.Next() {
		var u FacilityUpgrade
		if err := rows.Scan(&u.ID, &u.FacilityID, &u.FacilityTypeID, &u.FacilityTypeName,
			&u.KephLevelID, &u.KephLevelName, &u.PreviousFacilityTypeName, &u.PreviousKephLevelName,
			&u.ReasonID, &u.Reason, &u.IsUpgrade, &u.CreatedBy, &u.Created); err != nil {
			return nil, 0, err
		}
		items = append(items, &u)
	}
	return items, total, rows.Err()
}
