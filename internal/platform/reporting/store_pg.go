package reporting

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfl/mfl/internal/platform/db"
)

const registryFrom = ` FROM facilities f
	JOIN wards w ON w.id = f.ward_id
	JOIN constituencies c ON c.id = w.constituency_id
	JOIN owners o ON o.id = f.owner_id`

// registryColumn is the facility-side reference to each dimension.
var registryColumn = map[Dimension]string{
	DimCounty:       "c.county_id",
	DimConstituency: "w.constituency_id",
	DimWard:         "f.ward_id",
	DimFacilityType: "f.facility_type_id",
	DimKephLevel:    "f.keph_level_id",
	DimOwner:        "f.owner_id",
	DimOwnerType:    "o.owner_type_id",
}

type dimensionTable struct {
	from string
	// refs maps each relation to its column on the rows aliased x.
	refs map[Dimension]string
}

var dimensionTables = map[Dimension]dimensionTable{
	DimCounty:       {from: ` FROM counties x`},
	DimConstituency: {from: ` FROM constituencies x`, refs: map[Dimension]string{DimCounty: "x.county_id"}},
	DimWard: {
		from: ` FROM wards x JOIN constituencies p ON p.id = x.constituency_id`,
		refs: map[Dimension]string{DimConstituency: "x.constituency_id", DimCounty: "p.county_id"},
	},
	DimFacilityType: {from: ` FROM facility_types x`},
	DimKephLevel:    {from: ` FROM keph_levels x`},
	DimOwner:        {from: ` FROM owners x`, refs: map[Dimension]string{DimOwnerType: "x.owner_type_id"}},
	DimOwnerType:    {from: ` FROM owner_types x`},
}

var nameTables = map[Dimension]string{
	DimCounty:       "counties",
	DimConstituency: "constituencies",
	DimWard:         "wards",
	DimFacilityType: "facility_types",
	DimKephLevel:    "keph_levels",
	DimOwner:        "owners",
	DimOwnerType:    "owner_types",
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

// registryWhere renders q against the registry joins starting at $idx.
func registryWhere(q Query, idx int) (string, []interface{}, error) {
	where := ` WHERE NOT f.deleted`
	var args []interface{}
	for _, p := range q.Predicates() {
		col, ok := registryColumn[p.Dimension]
		if !ok {
			return "", nil, fmt.Errorf("reporting: unknown dimension %q", p.Dimension)
		}
		where += fmt.Sprintf(" AND %s = $%d", col, idx)
		args = append(args, p.ID)
		idx++
	}
	return where, args, nil
}

func (s *PGStore) Instances(ctx context.Context, d Dimension, where Query) ([]Instance, error) {
	t, ok := dimensionTables[d]
	if !ok {
		return nil, fmt.Errorf("reporting: unknown dimension %q", d)
	}
	rels := d.Relations()
	cols := []string{"x.id", "x.name"}
	for _, r := range rels {
		cols = append(cols, t.refs[r])
	}

	query := `SELECT ` + strings.Join(cols, ", ") + t.from + ` WHERE TRUE`
	var args []interface{}
	for i, p := range where.Predicates() {
		col, ok := t.refs[p.Dimension]
		if !ok {
			return nil, fmt.Errorf("%w: %s rows cannot be filtered by %s", ErrBadFilter, d, p.Dimension)
		}
		query += fmt.Sprintf(" AND %s = $%d", col, i+1)
		args = append(args, p.ID)
	}
	query += ` ORDER BY x.name`

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Instance
	for rows.Next() {
		inst := Instance{Refs: make(map[Dimension]uuid.UUID, len(rels))}
		refs := make([]uuid.UUID, len(rels))
		dest := []interface{}{&inst.ID, &inst.Name}
		for i := range refs {
			dest = append(dest, &refs[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, r := range rels {
			inst.Refs[r] = refs[i]
		}
		items = append(items, inst)
	}
	return items, rows.Err()
}

func (s *PGStore) Count(ctx context.Context, q Query) (int, error) {
	where, args, err := registryWhere(q, 1)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+registryFrom+where, args...).Scan(&n)
	return n, err
}

func (s *PGStore) CountBy(ctx context.Context, q Query, by ...Dimension) (map[GroupKey]int, error) {
	if len(by) == 0 || len(by) > 2 {
		return nil, fmt.Errorf("reporting: CountBy needs one or two dimensions, got %d", len(by))
	}
	var cols []string
	for _, d := range by {
		col, ok := registryColumn[d]
		if !ok {
			return nil, fmt.Errorf("reporting: unknown dimension %q", d)
		}
		cols = append(cols, fmt.Sprintf("COALESCE(%s, '%s'::uuid)", col, uuid.Nil))
	}
	where, args, err := registryWhere(q, 1)
	if err != nil {
		return nil, err
	}
	group := "1"
	if len(by) == 2 {
		group = "1, 2"
	}
	query := `SELECT ` + strings.Join(cols, ", ") + `, COUNT(*)` + registryFrom + where + ` GROUP BY ` + group

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[GroupKey]int)
	for rows.Next() {
		var key GroupKey
		var n int
		dest := []interface{}{&key[0]}
		if len(by) == 2 {
			dest = append(dest, &key[1])
		}
		if err := rows.Scan(append(dest, &n)...); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (s *PGStore) SumBedsCots(ctx context.Context, q Query, d Dimension) ([]BedsCots, error) {
	col, ok := registryColumn[d]
	if !ok {
		return nil, fmt.Errorf("reporting: unknown dimension %q", d)
	}
	where, args, err := registryWhere(q, 1)
	if err != nil {
		return nil, err
	}
	query := `SELECT x.id, x.name,
		COALESCE(SUM(f.number_of_beds), 0), COALESCE(SUM(f.number_of_cots), 0)` +
		registryFrom + ` JOIN ` + nameTables[d] + ` x ON x.id = ` + col +
		where + ` GROUP BY x.id, x.name ORDER BY x.name`

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BedsCots
	for rows.Next() {
		var b BedsCots
		if err := rows.Scan(&b.ID, &b.Name, &b.Beds, &b.Cots); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (s *PGStore) Changes(ctx context.Context, f ChangeFilter) ([]Change, error) {
	query := `SELECT u.id, u.facility_id, f.name, f.code, c.county_id,
			ft.name, k.name, u.previous_facility_type_name, u.previous_keph_level_name,
			r.reason, u.is_upgrade, u.created
		FROM facility_upgrades u
		JOIN facilities f ON f.id = u.facility_id
		JOIN wards w ON w.id = f.ward_id
		JOIN constituencies c ON c.id = w.constituency_id
		JOIN facility_types ft ON ft.id = u.facility_type_id
		LEFT JOIN keph_levels k ON k.id = u.keph_level_id
		JOIN change_reasons r ON r.id = u.reason_id
		WHERE NOT f.deleted`
	var args []interface{}
	idx := 1

	if f.IsUpgrade != nil {
		query += fmt.Sprintf(" AND u.is_upgrade = $%d", idx)
		args = append(args, *f.IsUpgrade)
		idx++
	}
	for _, since := range f.Since {
		query += fmt.Sprintf(" AND u.created >= $%d", idx)
		args = append(args, since)
		idx++
	}
	if f.County != nil {
		query += fmt.Sprintf(" AND c.county_id = $%d", idx)
		args = append(args, *f.County)
	}
	query += ` ORDER BY u.created DESC, u.id DESC`

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Change
	for rows.Next() {
		var ch Change
		if err := rows.Scan(&ch.ID, &ch.FacilityID, &ch.FacilityName, &ch.FacilityCode, &ch.CountyID,
			&ch.FacilityType, &ch.KephLevel, &ch.PreviousFacilityType, &ch.PreviousKephLevel,
			&ch.Reason, &ch.IsUpgrade, &ch.Created); err != nil {
			return nil, err
		}
		items = append(items, ch)
	}
	return items, rows.Err()
}
