package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
)

// -- Users --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `u.id, u.email, u.first_name, u.last_name, u.other_names, u.username, u.employee_number,
	u.is_national, u.is_active, u.is_staff, u.is_superuser, u.password_hash, u.date_joined, u.last_login,
	uc.county_id, ucon.constituency_id, c.county_id`

const userFrom = ` FROM users u
	LEFT JOIN user_counties uc ON uc.user_id = u.id AND uc.active
	LEFT JOIN user_constituencies ucon ON ucon.user_id = u.id AND ucon.active
	LEFT JOIN constituencies c ON c.id = ucon.constituency_id`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.OtherNames, &u.Username, &u.EmployeeNumber,
		&u.IsNational, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.PasswordHash, &u.DateJoined, &u.LastLogin,
		&u.CountyID, &u.ConstituencyID, &u.constituencyCountyID)
	return &u, err
}

func (r *userRepoPG) loadGroups(ctx context.Context, items []*User) error {
	if len(items) == 0 {
		return nil
	}
	ids := lo.Map(items, func(u *User, _ int) uuid.UUID { return u.ID })
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT user_id, group_id FROM user_groups WHERE user_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byUser := lo.KeyBy(items, func(u *User) uuid.UUID { return u.ID })
	for _, u := range items {
		u.Groups = []uuid.UUID{}
	}
	for rows.Next() {
		var userID, groupID uuid.UUID
		if err := rows.Scan(&userID, &groupID); err != nil {
			return err
		}
		byUser[userID].Groups = append(byUser[userID].Groups, groupID)
	}
	return rows.Err()
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, other_names, username, employee_number,
			is_national, is_active, is_staff, is_superuser, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING date_joined`,
		u.ID, u.Email, u.FirstName, u.LastName, u.OtherNames, u.Username, u.EmployeeNumber,
		u.IsNational, u.IsActive, u.IsStaff, u.IsSuperuser, u.PasswordHash,
	).Scan(&u.DateJoined)
}

func (r *userRepoPG) getWhere(ctx context.Context, clause string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+userFrom+` WHERE NOT u.deleted AND `+clause, arg))
	if err != nil {
		return nil, apperr.NoRows(err, "user")
	}
	if err := r.loadGroups(ctx, []*User{u}); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepoPG) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getWhere(ctx, `u.id = $1`, id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getWhere(ctx, `lower(u.email) = lower($1)`, email)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET email = $2, first_name = $3, last_name = $4, other_names = $5, username = $6,
			employee_number = $7, is_national = $8, is_active = $9, is_staff = $10, is_superuser = $11
		WHERE id = $1 AND NOT deleted`,
		u.ID, u.Email, u.FirstName, u.LastName, u.OtherNames, u.Username,
		u.EmployeeNumber, u.IsNational, u.IsActive, u.IsStaff, u.IsSuperuser)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET deleted = TRUE, is_active = FALSE WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, scope auth.Scope, limit, offset int) ([]*User, int, error) {
	where := ` WHERE NOT u.deleted`
	var args []interface{}
	switch scope.Level {
	case auth.ScopeNational:
	case auth.ScopeCounty:
		where += ` AND (uc.county_id = $1 OR c.county_id = $1)`
		args = append(args, scope.CountyID)
	case auth.ScopeConstituency:
		where += ` AND ucon.constituency_id = $1`
		args = append(args, scope.ConstituencyID)
	default:
		where += ` AND FALSE`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+userFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(args) + 1
	query := `SELECT ` + userCols + userFrom + where +
		fmt.Sprintf(` ORDER BY u.date_joined DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadGroups(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *userRepoPG) SetGroups(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, g := range lo.Uniq(groupIDs) {
		if _, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`, userID, g); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepoPG) replaceAssignment(ctx context.Context, table, col string, userID uuid.UUID, id *uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`UPDATE `+table+` SET active = FALSE WHERE user_id = $1 AND active`, userID); err != nil {
		return err
	}
	if id == nil {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO `+table+` (id, user_id, `+col+`) VALUES ($1, $2, $3)`, uuid.New(), userID, *id)
	return err
}

func (r *userRepoPG) SetCounty(ctx context.Context, userID uuid.UUID, countyID *uuid.UUID) error {
	return r.replaceAssignment(ctx, "user_counties", "county_id", userID, countyID)
}

func (r *userRepoPG) SetConstituency(ctx context.Context, userID uuid.UUID, constituencyID *uuid.UUID) error {
	return r.replaceAssignment(ctx, "user_constituencies", "constituency_id", userID, constituencyID)
}

func (r *userRepoPG) SetPassword(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	return err
}

func (r *userRepoPG) AddPasswordHistory(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO user_password_history (id, user_id, password_hash) VALUES ($1, $2, $3)`,
		uuid.New(), userID, hash)
	return err
}

func (r *userRepoPG) RecentPasswords(ctx context.Context, userID uuid.UUID, n int) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT password_hash FROM user_password_history
		WHERE user_id = $1 ORDER BY created DESC LIMIT $2`, userID, n)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *userRepoPG) TouchLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	return err
}

// -- Groups --

type groupRepoPG struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) GroupRepository {
	return &groupRepoPG{pool: pool}
}

func (r *groupRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const groupCols = `g.id, g.name, g.is_national, g.is_regulator, g.is_administrator, g.created,
	COALESCE(array_agg(p.codename ORDER BY p.codename) FILTER (WHERE p.codename IS NOT NULL), '{}')`

const groupFrom = ` FROM auth_groups g
	LEFT JOIN auth_group_permissions gp ON gp.group_id = g.id
	LEFT JOIN auth_permissions p ON p.id = gp.permission_id`

func scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.IsNational, &g.IsRegulator, &g.IsAdministrator, &g.Created, &g.Permissions)
	return &g, err
}

func (r *groupRepoPG) Create(ctx context.Context, g *Group) error {
	g.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO auth_groups (id, name, is_national, is_regulator, is_administrator)
		VALUES ($1, $2, $3, $4, $5) RETURNING created`,
		g.ID, g.Name, g.IsNational, g.IsRegulator, g.IsAdministrator).Scan(&g.Created)
	if err != nil {
		return err
	}
	if len(g.Permissions) == 0 {
		return nil
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO auth_group_permissions (group_id, permission_id)
		SELECT $1, id FROM auth_permissions WHERE codename = ANY($2)`, g.ID, g.Permissions)
	return err
}

func (r *groupRepoPG) Get(ctx context.Context, id uuid.UUID) (*Group, error) {
	g, err := scanGroup(r.conn(ctx).QueryRow(ctx,
		`SELECT `+groupCols+groupFrom+` WHERE g.id = $1 GROUP BY g.id`, id))
	if err != nil {
		return nil, apperr.NoRows(err, "group")
	}
	return g, nil
}

func (r *groupRepoPG) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+groupCols+groupFrom+` WHERE g.id = ANY($1) GROUP BY g.id ORDER BY g.name`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (r *groupRepoPG) List(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM auth_groups`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+groupCols+groupFrom+` GROUP BY g.id ORDER BY g.name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *groupRepoPG) ListPermissions(ctx context.Context) ([]*Permission, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, codename, name FROM auth_permissions ORDER BY codename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Codename, &p.Name); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}
