package users

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
)

const passwordHistoryDepth = 5

var usernamePattern = regexp.MustCompile(`^\w+$`)

// AreaLookup resolves the county or constituency a user is assigned to.
type AreaLookup interface {
	GetCounty(ctx context.Context, id uuid.UUID) (*common.County, error)
	GetConstituency(ctx context.Context, id uuid.UUID) (*common.Constituency, error)
}

type Service struct {
	users    UserRepository
	groups   GroupRepository
	areas    AreaLookup
	tx       db.Transactor
	hashCost int
}

func NewService(users UserRepository, groups GroupRepository, areas AreaLookup, tx db.Transactor) *Service {
	return &Service{users: users, groups: groups, areas: areas, tx: tx, hashCost: bcrypt.DefaultCost}
}

func invalidRef(err error, field string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("%s does not exist", field)
	}
	return err
}

// CheckPasswordQuality requires at least 8 characters with a letter and a digit.
func CheckPasswordQuality(pw string) error {
	if len(pw) < 8 {
		return apperr.Invalid("password must be at least 8 characters long")
	}
	hasLetter := strings.IndexFunc(pw, unicode.IsLetter) >= 0
	hasDigit := strings.IndexFunc(pw, unicode.IsDigit) >= 0
	if !hasLetter || !hasDigit {
		return apperr.Invalid("password must contain at least one letter and one digit")
	}
	return nil
}

func (s *Service) hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func visible(scope auth.Scope, u *User) bool {
	switch scope.Level {
	case auth.ScopeNational:
		return true
	case auth.ScopeCounty:
		return (u.CountyID != nil && *u.CountyID == scope.CountyID) ||
			(u.constituencyCountyID != nil && *u.constituencyCountyID == scope.CountyID)
	case auth.ScopeConstituency:
		return u.ConstituencyID != nil && *u.ConstituencyID == scope.ConstituencyID
	default:
		return false
	}
}

func (s *Service) validateUser(u *User) error {
	u.Email = strings.TrimSpace(u.Email)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	if u.Email == "" {
		return apperr.Invalid("email is required")
	}
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return apperr.Invalid("enter a valid email address")
	}
	if u.FirstName == "" {
		return apperr.Invalid("first_name is required")
	}
	if u.LastName == "" {
		return apperr.Invalid("last_name is required")
	}
	if u.Username != nil && !usernamePattern.MatchString(*u.Username) {
		return apperr.Invalid("username may only contain letters, digits and underscores")
	}
	return nil
}

// placeUser checks the county or constituency assignment exists and lies
// within the caller's area.
func (s *Service) placeUser(ctx context.Context, u *User) error {
	if u.CountyID != nil && u.ConstituencyID != nil {
		return apperr.Invalid("a user is assigned to a county or a constituency, not both")
	}
	u.constituencyCountyID = nil
	if u.CountyID != nil {
		if _, err := s.areas.GetCounty(ctx, *u.CountyID); err != nil {
			return invalidRef(err, "county")
		}
	}
	if u.ConstituencyID != nil {
		c, err := s.areas.GetConstituency(ctx, *u.ConstituencyID)
		if err != nil {
			return invalidRef(err, "constituency")
		}
		u.constituencyCountyID = &c.CountyID
	}

	scope := auth.ScopeFromContext(ctx)
	if scope.Level == auth.ScopeNational {
		return nil
	}
	if u.IsNational {
		return apperr.Forbidden("only national users can create national users")
	}
	if !visible(scope, u) {
		return apperr.Forbidden("user must be assigned within your area")
	}
	return nil
}

func (s *Service) checkGroups(ctx context.Context, ids []uuid.UUID) error {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := s.groups.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return apperr.Invalid("one or more groups do not exist")
	}
	return nil
}

// checkPrivileges guards the account flags and group memberships that widen
// a user's access. prev is nil when the user is being created. Superuser,
// staff and administrator groups are granted by administrators only;
// national groups by national users only. Nobody changes their own.
func (s *Service) checkPrivileges(ctx context.Context, prev, u *User) error {
	var before User
	if prev != nil {
		before = *prev
	}
	p := auth.PrincipalFromContext(ctx)
	added := lo.Without(lo.Uniq(u.Groups), before.Groups...)
	flagsChanged := u.IsSuperuser != before.IsSuperuser || u.IsStaff != before.IsStaff || u.IsNational != before.IsNational

	if self := p.UserUUID(); prev != nil && self != nil && *self == u.ID {
		removed := lo.Without(before.Groups, u.Groups...)
		if flagsChanged || len(added) > 0 || len(removed) > 0 {
			return apperr.Forbidden("you cannot change your own groups or account flags")
		}
	}

	isAdmin := p != nil && p.IsAdmin
	if !isAdmin && (u.IsSuperuser != before.IsSuperuser || u.IsStaff != before.IsStaff) {
		return apperr.Forbidden("only administrators can change superuser or staff status")
	}
	if len(added) == 0 {
		return nil
	}
	groups, err := s.groups.GetMany(ctx, added)
	if err != nil {
		return err
	}
	national := p.Scope().Level == auth.ScopeNational
	for _, g := range groups {
		if g.IsAdministrator && !isAdmin {
			return apperr.Forbidden("only administrators can grant administrator groups")
		}
		if g.IsNational && !national {
			return apperr.Forbidden("only national users can grant national groups")
		}
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	u := &req.User
	if err := s.validateUser(u); err != nil {
		return nil, err
	}
	if err := CheckPasswordQuality(req.Password); err != nil {
		return nil, err
	}
	if err := s.placeUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.checkGroups(ctx, u.Groups); err != nil {
		return nil, err
	}
	if err := s.checkPrivileges(ctx, nil, u); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	var created *User
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if err := s.users.SetGroups(ctx, u.ID, u.Groups); err != nil {
			return err
		}
		if err := s.users.SetCounty(ctx, u.ID, u.CountyID); err != nil {
			return err
		}
		if err := s.users.SetConstituency(ctx, u.ID, u.ConstituencyID); err != nil {
			return err
		}
		if err := s.users.AddPasswordHistory(ctx, u.ID, hash); err != nil {
			return err
		}
		created, err = s.users.Get(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetUser returns a user the caller can see. Callers can always see themselves.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := auth.PrincipalFromContext(ctx)
	if self := p.UserUUID(); self != nil && *self == id {
		return u, nil
	}
	if !visible(p.Scope(), u) {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, u *User) (*User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validateUser(u); err != nil {
		return nil, err
	}
	if err := s.placeUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.checkGroups(ctx, u.Groups); err != nil {
		return nil, err
	}
	if err := s.checkPrivileges(ctx, existing, u); err != nil {
		return nil, err
	}
	u.PasswordHash = existing.PasswordHash

	var updated *User
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if err := s.users.SetGroups(ctx, u.ID, u.Groups); err != nil {
			return err
		}
		if !sameID(existing.CountyID, u.CountyID) {
			if err := s.users.SetCounty(ctx, u.ID, u.CountyID); err != nil {
				return err
			}
		}
		if !sameID(existing.ConstituencyID, u.ConstituencyID) {
			if err := s.users.SetConstituency(ctx, u.ID, u.ConstituencyID); err != nil {
				return err
			}
		}
		updated, err = s.users.Get(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DeleteUser hides the user and deactivates the account.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if self := auth.PrincipalFromContext(ctx).UserUUID(); self != nil && *self == id {
		return apperr.Invalid("you cannot delete your own account")
	}
	return s.users.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, auth.ScopeFromContext(ctx), limit, offset)
}

// ChangePassword replaces the password of userID. The new password may not
// repeat any of the last five.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, pc *PasswordChange) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pc.OldPassword)) != nil {
		return apperr.Invalid("old password is incorrect")
	}
	if pc.NewPassword1 != pc.NewPassword2 {
		return apperr.Invalid("the two password fields didn't match")
	}
	if err := CheckPasswordQuality(pc.NewPassword1); err != nil {
		return err
	}
	recent, err := s.users.RecentPasswords(ctx, userID, passwordHistoryDepth)
	if err != nil {
		return err
	}
	for _, old := range append(recent, u.PasswordHash) {
		if bcrypt.CompareHashAndPassword([]byte(old), []byte(pc.NewPassword1)) == nil {
			return apperr.Invalid("you cannot reuse one of your last %d passwords", passwordHistoryDepth)
		}
	}
	hash, err := s.hash(pc.NewPassword1)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetPassword(ctx, userID, hash); err != nil {
			return err
		}
		return s.users.AddPasswordHistory(ctx, userID, hash)
	})
}

// -- Authentication --

func invalidGrant() error {
	return &OAuthError{Code: "invalid_grant", Description: "Invalid credentials given."}
}

// Authenticate checks an email/password pair and returns the caller it
// belongs to.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*auth.Principal, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, invalidGrant()
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, invalidGrant()
	}
	p, err := s.Principal(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// Principal folds the user's groups into the permissions and flags a token carries.
func (s *Service) Principal(ctx context.Context, u *User) (*auth.Principal, error) {
	groups, err := s.groups.GetMany(ctx, u.Groups)
	if err != nil {
		return nil, err
	}
	perms := lo.Uniq(lo.FlatMap(groups, func(g *Group, _ int) []string { return g.Permissions }))
	return &auth.Principal{
		UserID:         u.ID.String(),
		Email:          u.Email,
		Permissions:    perms,
		IsNational:     u.IsNational || lo.ContainsBy(groups, func(g *Group) bool { return g.IsNational }),
		IsAdmin:        u.IsSuperuser || lo.ContainsBy(groups, func(g *Group) bool { return g.IsAdministrator }),
		CountyID:       u.CountyID,
		ConstituencyID: u.ConstituencyID,
	}, nil
}

// -- Groups --

func (s *Service) CreateGroup(ctx context.Context, g *Group) error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return apperr.Invalid("group name is required")
	}
	p := auth.PrincipalFromContext(ctx)
	if g.IsAdministrator && (p == nil || !p.IsAdmin) {
		return apperr.Forbidden("only administrators can create administrator groups")
	}
	if g.IsNational && p.Scope().Level != auth.ScopeNational {
		return apperr.Forbidden("only national users can create national groups")
	}
	g.Permissions = lo.Uniq(g.Permissions)
	if len(g.Permissions) > 0 {
		known, err := s.groups.ListPermissions(ctx)
		if err != nil {
			return err
		}
		codenames := lo.Map(known, func(p *Permission, _ int) string { return p.Codename })
		if missing, _ := lo.Difference(g.Permissions, codenames); len(missing) > 0 {
			return apperr.Invalid("unknown permission %s", missing[0])
		}
	}
	if g.Permissions == nil {
		g.Permissions = []string{}
	}
	return s.groups.Create(ctx, g)
}

func (s *Service) GetGroup(ctx context.Context, id uuid.UUID) (*Group, error) {
	return s.groups.Get(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	return s.groups.List(ctx, limit, offset)
}

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.groups.ListPermissions(ctx)
}
