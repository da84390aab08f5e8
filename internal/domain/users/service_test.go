package users

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
)

// -- Mock Repositories --

type mockAreas struct {
	counties       map[uuid.UUID]*common.County
	constituencies map[uuid.UUID]*common.Constituency
}

func (m *mockAreas) GetCounty(_ context.Context, id uuid.UUID) (*common.County, error) {
	if c, ok := m.counties[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("county")
}

func (m *mockAreas) GetConstituency(_ context.Context, id uuid.UUID) (*common.Constituency, error) {
	if c, ok := m.constituencies[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("constituency")
}

type mockUserRepo struct {
	areas   *mockAreas
	users   map[uuid.UUID]*User
	deleted map[uuid.UUID]bool
	history map[uuid.UUID][]string
	logins  map[uuid.UUID]int
}

func newMockUserRepo(areas *mockAreas) *mockUserRepo {
	return &mockUserRepo{
		areas:   areas,
		users:   make(map[uuid.UUID]*User),
		deleted: make(map[uuid.UUID]bool),
		history: make(map[uuid.UUID][]string),
		logins:  make(map[uuid.UUID]int),
	}
}

// load returns a copy with the constituency county joined in, like the SQL query.
func (m *mockUserRepo) load(u *User) *User {
	out := *u
	out.Groups = append([]uuid.UUID{}, u.Groups...)
	out.constituencyCountyID = nil
	if u.ConstituencyID != nil {
		if c, ok := m.areas.constituencies[*u.ConstituencyID]; ok {
			out.constituencyCountyID = &c.CountyID
		}
	}
	return &out
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	u.ID = uuid.New()
	u.DateJoined = time.Now()
	stored := *u
	stored.Groups = nil
	stored.CountyID, stored.ConstituencyID = nil, nil
	m.users[u.ID] = &stored
	return nil
}

func (m *mockUserRepo) Get(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok || m.deleted[id] {
		return nil, apperr.NotFound("user")
	}
	return m.load(u), nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for id, u := range m.users {
		if u.Email == email && !m.deleted[id] {
			return m.load(u), nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	stored, ok := m.users[u.ID]
	if !ok || m.deleted[u.ID] {
		return apperr.NotFound("user")
	}
	stored.Email, stored.FirstName, stored.LastName = u.Email, u.FirstName, u.LastName
	stored.OtherNames, stored.Username, stored.EmployeeNumber = u.OtherNames, u.Username, u.EmployeeNumber
	stored.IsNational, stored.IsActive, stored.IsStaff = u.IsNational, u.IsActive, u.IsStaff
	stored.IsSuperuser = u.IsSuperuser
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok || m.deleted[id] {
		return apperr.NotFound("user")
	}
	m.deleted[id] = true
	m.users[id].IsActive = false
	return nil
}

func (m *mockUserRepo) List(_ context.Context, scope auth.Scope, limit, offset int) ([]*User, int, error) {
	var out []*User
	for id, u := range m.users {
		if m.deleted[id] {
			continue
		}
		if l := m.load(u); visible(scope, l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockUserRepo) SetGroups(_ context.Context, userID uuid.UUID, groupIDs []uuid.UUID) error {
	m.users[userID].Groups = append([]uuid.UUID{}, groupIDs...)
	return nil
}

func (m *mockUserRepo) SetCounty(_ context.Context, userID uuid.UUID, countyID *uuid.UUID) error {
	m.users[userID].CountyID = countyID
	return nil
}

func (m *mockUserRepo) SetConstituency(_ context.Context, userID uuid.UUID, constituencyID *uuid.UUID) error {
	m.users[userID].ConstituencyID = constituencyID
	return nil
}

func (m *mockUserRepo) SetPassword(_ context.Context, userID uuid.UUID, hash string) error {
	m.users[userID].PasswordHash = hash
	return nil
}

func (m *mockUserRepo) AddPasswordHistory(_ context.Context, userID uuid.UUID, hash string) error {
	m.history[userID] = append([]string{hash}, m.history[userID]...)
	return nil
}

func (m *mockUserRepo) RecentPasswords(_ context.Context, userID uuid.UUID, n int) ([]string, error) {
	h := m.history[userID]
	if len(h) > n {
		h = h[:n]
	}
	return append([]string{}, h...), nil
}

func (m *mockUserRepo) TouchLogin(_ context.Context, userID uuid.UUID) error {
	m.logins[userID]++
	now := time.Now()
	m.users[userID].LastLogin = &now
	return nil
}

type mockGroupRepo struct {
	groups      map[uuid.UUID]*Group
	permissions []*Permission
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{
		groups: make(map[uuid.UUID]*Group),
		permissions: []*Permission{
			{ID: uuid.New(), Codename: "facilities.add_facility", Name: "Can add facility"},
			{ID: uuid.New(), Codename: "facilities.change_facility", Name: "Can change facility"},
			{ID: uuid.New(), Codename: "reporting.view_reports", Name: "Can view reports"},
		},
	}
}

func (m *mockGroupRepo) Create(_ context.Context, g *Group) error {
	g.ID = uuid.New()
	g.Created = time.Now()
	m.groups[g.ID] = g
	return nil
}

func (m *mockGroupRepo) Get(_ context.Context, id uuid.UUID) (*Group, error) {
	if g, ok := m.groups[id]; ok {
		return g, nil
	}
	return nil, apperr.NotFound("group")
}

func (m *mockGroupRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]*Group, error) {
	var out []*Group
	for _, id := range ids {
		if g, ok := m.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGroupRepo) List(_ context.Context, limit, offset int) ([]*Group, int, error) {
	var out []*Group
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, len(out), nil
}

func (m *mockGroupRepo) ListPermissions(context.Context) ([]*Permission, error) {
	return m.permissions, nil
}

// -- Fixture --

type fixture struct {
	svc    *Service
	users  *mockUserRepo
	groups *mockGroupRepo

	nairobi, mombasa uuid.UUID
	westlands        uuid.UUID
	mvita            uuid.UUID
}

func newFixture() *fixture {
	areas := &mockAreas{
		counties:       make(map[uuid.UUID]*common.County),
		constituencies: make(map[uuid.UUID]*common.Constituency),
	}
	fx := &fixture{nairobi: uuid.New(), mombasa: uuid.New(), westlands: uuid.New(), mvita: uuid.New()}
	areas.counties[fx.nairobi] = &common.County{ID: fx.nairobi, Name: "Nairobi", Code: 47}
	areas.counties[fx.mombasa] = &common.County{ID: fx.mombasa, Name: "Mombasa", Code: 1}
	areas.constituencies[fx.westlands] = &common.Constituency{ID: fx.westlands, Name: "Westlands", CountyID: fx.nairobi}
	areas.constituencies[fx.mvita] = &common.Constituency{ID: fx.mvita, Name: "Mvita", CountyID: fx.mombasa}

	fx.users = newMockUserRepo(areas)
	fx.groups = newMockGroupRepo()
	fx.svc = NewService(fx.users, fx.groups, areas, db.NoopTransactor{})
	fx.svc.hashCost = bcrypt.MinCost
	return fx
}

func nationalCtx() context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{UserID: "admin", IsNational: true, IsAdmin: true})
}

func countyCtx(county uuid.UUID) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{UserID: uuid.NewString(), CountyID: &county})
}

func (fx *fixture) user(t *testing.T, email string, county, constituency *uuid.UUID) *User {
	t.Helper()
	u, err := fx.svc.CreateUser(nationalCtx(), &CreateUserRequest{
		User: User{
			Email: email, FirstName: "Jane", LastName: "Doe", IsActive: true,
			CountyID: county, ConstituencyID: constituency,
		},
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// -- Tests --

func TestCheckPasswordQuality(t *testing.T) {
	tests := []struct {
		pw string
		ok bool
	}{
		{"secret123", true},
		{"short1", false},
		{"lettersonly", false},
		{"1234567890", false},
		{"Pässwörd9", true},
	}
	for _, tt := range tests {
		err := CheckPasswordQuality(tt.pw)
		if (err == nil) != tt.ok {
			t.Errorf("CheckPasswordQuality(%q) = %v, want ok=%v", tt.pw, err, tt.ok)
		}
	}
}

func TestService_CreateUser(t *testing.T) {
	fx := newFixture()
	u := fx.user(t, "jane@example.com", &fx.nairobi, nil)

	if u.ID == uuid.Nil {
		t.Fatal("expected id")
	}
	if u.CountyID == nil || *u.CountyID != fx.nairobi {
		t.Errorf("expected county assignment, got %v", u.CountyID)
	}
	if u.PasswordHash == "secret123" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")) != nil {
		t.Error("expected a bcrypt hash of the password")
	}
	if len(fx.users.history[u.ID]) != 1 {
		t.Errorf("expected initial password in history, got %d", len(fx.users.history[u.ID]))
	}
}

func TestService_CreateUser_Validation(t *testing.T) {
	fx := newFixture()
	bad := "bad name"
	missing := uuid.New()

	tests := []struct {
		name string
		req  CreateUserRequest
	}{
		{"no email", CreateUserRequest{User: User{FirstName: "a", LastName: "b"}, Password: "secret123"}},
		{"bad email", CreateUserRequest{User: User{Email: "not-an-email", FirstName: "a", LastName: "b"}, Password: "secret123"}},
		{"no first name", CreateUserRequest{User: User{Email: "a@b.co", LastName: "b"}, Password: "secret123"}},
		{"bad username", CreateUserRequest{User: User{Email: "a@b.co", FirstName: "a", LastName: "b", Username: &bad}, Password: "secret123"}},
		{"weak password", CreateUserRequest{User: User{Email: "a@b.co", FirstName: "a", LastName: "b"}, Password: "password"}},
		{"unknown county", CreateUserRequest{User: User{Email: "a@b.co", FirstName: "a", LastName: "b", CountyID: &missing}, Password: "secret123"}},
		{"county and constituency", CreateUserRequest{User: User{Email: "a@b.co", FirstName: "a", LastName: "b", CountyID: &fx.nairobi, ConstituencyID: &fx.westlands}, Password: "secret123"}},
		{"unknown group", CreateUserRequest{User: User{Email: "a@b.co", FirstName: "a", LastName: "b", Groups: []uuid.UUID{missing}}, Password: "secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.CreateUser(nationalCtx(), &tt.req)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
	if len(fx.users.users) != 0 {
		t.Errorf("expected nothing persisted, got %d users", len(fx.users.users))
	}
}

func TestService_CreateUser_OutsideArea(t *testing.T) {
	fx := newFixture()
	ctx := countyCtx(fx.nairobi)

	_, err := fx.svc.CreateUser(ctx, &CreateUserRequest{
		User:     User{Email: "m@example.com", FirstName: "a", LastName: "b", ConstituencyID: &fx.mvita},
		Password: "secret123",
	})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	u, err := fx.svc.CreateUser(ctx, &CreateUserRequest{
		User:     User{Email: "w@example.com", FirstName: "a", LastName: "b", ConstituencyID: &fx.westlands},
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("constituency inside own county: %v", err)
	}
	if u.ConstituencyID == nil || *u.ConstituencyID != fx.westlands {
		t.Errorf("expected Westlands assignment, got %v", u.ConstituencyID)
	}
}

func TestService_ListUsers_Scoped(t *testing.T) {
	fx := newFixture()
	fx.user(t, "a@example.com", &fx.nairobi, nil)
	fx.user(t, "b@example.com", nil, &fx.westlands)
	fx.user(t, "c@example.com", &fx.mombasa, nil)
	fx.user(t, "d@example.com", nil, nil)

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"national", nationalCtx(), 4},
		{"county includes its constituencies", countyCtx(fx.nairobi), 2},
		{"constituency", auth.WithPrincipal(context.Background(), &auth.Principal{ConstituencyID: &fx.westlands}), 1},
		{"no assignment", auth.WithPrincipal(context.Background(), &auth.Principal{UserID: "x"}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := fx.svc.ListUsers(tt.ctx, 30, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.want {
				t.Errorf("expected %d users, got %d", tt.want, total)
			}
		})
	}
}

func TestService_GetUser_Self(t *testing.T) {
	fx := newFixture()
	u := fx.user(t, "self@example.com", nil, nil)

	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{UserID: u.ID.String()})
	if _, err := fx.svc.GetUser(ctx, u.ID); err != nil {
		t.Errorf("expected self to be visible, got %v", err)
	}
	other := fx.user(t, "other@example.com", &fx.mombasa, nil)
	if _, err := fx.svc.GetUser(ctx, other.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_UpdateUser(t *testing.T) {
	fx := newFixture()
	u := fx.user(t, "jane@example.com", &fx.nairobi, nil)
	g := &Group{Name: "Officers", Permissions: []string{"facilities.add_facility"}}
	if err := fx.svc.CreateGroup(nationalCtx(), g); err != nil {
		t.Fatalf("create group: %v", err)
	}

	upd := *u
	upd.FirstName = "Janet"
	upd.CountyID = nil
	upd.ConstituencyID = &fx.westlands
	upd.Groups = []uuid.UUID{g.ID}
	got, err := fx.svc.UpdateUser(nationalCtx(), &upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.FirstName != "Janet" || got.CountyID != nil || got.ConstituencyID == nil {
		t.Errorf("unexpected user after update: %+v", got)
	}
	if len(got.Groups) != 1 || got.Groups[0] != g.ID {
		t.Errorf("expected group assignment, got %v", got.Groups)
	}
	if got.PasswordHash != u.PasswordHash {
		t.Error("update must not change the password")
	}
}

func privilegedGroups(t *testing.T, fx *fixture) (admin, national *Group) {
	t.Helper()
	admin = &Group{Name: "Admins", IsAdministrator: true, Permissions: []string{"facilities.add_facility"}}
	national = &Group{Name: "National", IsNational: true, Permissions: []string{"reporting.view_reports"}}
	for _, g := range []*Group{admin, national} {
		if err := fx.svc.CreateGroup(nationalCtx(), g); err != nil {
			t.Fatalf("create group: %v", err)
		}
	}
	return admin, national
}

func TestService_UpdateUser_SelfEscalation(t *testing.T) {
	fx := newFixture()
	admin, _ := privilegedGroups(t, fx)
	u := fx.user(t, "jane@example.com", &fx.nairobi, nil)
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{UserID: u.ID.String(), CountyID: &fx.nairobi})

	tests := []struct {
		name   string
		change func(*User)
	}{
		{"superuser", func(u *User) { u.IsSuperuser = true }},
		{"staff", func(u *User) { u.IsStaff = true }},
		{"admin group", func(u *User) { u.Groups = []uuid.UUID{admin.ID} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd := *u
			tt.change(&upd)
			if _, err := fx.svc.UpdateUser(ctx, &upd); !errors.Is(err, apperr.ErrForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}

	stored := fx.users.users[u.ID]
	if stored.IsSuperuser || stored.IsStaff || len(stored.Groups) != 0 {
		t.Errorf("expected stored user unchanged, got %+v", stored)
	}
	p, err := fx.svc.Authenticate(context.Background(), "jane@example.com", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.IsAdmin || p.IsNational {
		t.Errorf("expected no elevated principal, got admin=%v national=%v", p.IsAdmin, p.IsNational)
	}

	upd := *u
	upd.FirstName = "Janet"
	if _, err := fx.svc.UpdateUser(ctx, &upd); err != nil {
		t.Errorf("expected plain profile edits on self to succeed, got %v", err)
	}
}

func TestService_UpdateUser_SelfGroupsLocked(t *testing.T) {
	fx := newFixture()
	g := &Group{Name: "Officers", Permissions: []string{"facilities.add_facility"}}
	if err := fx.svc.CreateGroup(nationalCtx(), g); err != nil {
		t.Fatalf("create group: %v", err)
	}
	u, err := fx.svc.CreateUser(nationalCtx(), &CreateUserRequest{
		User:     User{Email: "boss@example.com", FirstName: "a", LastName: "b", IsSuperuser: true, Groups: []uuid.UUID{g.ID}},
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{UserID: u.ID.String(), IsAdmin: true})
	upd := *u
	upd.Groups = nil
	if _, err := fx.svc.UpdateUser(ctx, &upd); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected dropping own groups to be forbidden, got %v", err)
	}
	upd = *u
	upd.IsSuperuser = false
	if _, err := fx.svc.UpdateUser(ctx, &upd); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected changing own superuser flag to be forbidden, got %v", err)
	}
}

func TestService_UpdateUser_SameCountyEscalation(t *testing.T) {
	fx := newFixture()
	admin, national := privilegedGroups(t, fx)
	plain := &Group{Name: "Officers", Permissions: []string{"facilities.add_facility"}}
	if err := fx.svc.CreateGroup(nationalCtx(), plain); err != nil {
		t.Fatalf("create group: %v", err)
	}
	other := fx.user(t, "colleague@example.com", &fx.nairobi, nil)
	ctx := countyCtx(fx.nairobi)

	tests := []struct {
		name   string
		change func(*User)
	}{
		{"superuser", func(u *User) { u.IsSuperuser = true }},
		{"staff", func(u *User) { u.IsStaff = true }},
		{"admin group", func(u *User) { u.Groups = []uuid.UUID{admin.ID} }},
		{"national group", func(u *User) { u.Groups = []uuid.UUID{national.ID} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd := *other
			tt.change(&upd)
			if _, err := fx.svc.UpdateUser(ctx, &upd); !errors.Is(err, apperr.ErrForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
	if stored := fx.users.users[other.ID]; stored.IsSuperuser || stored.IsStaff || len(stored.Groups) != 0 {
		t.Errorf("expected stored user unchanged, got %+v", stored)
	}

	upd := *other
	upd.Groups = []uuid.UUID{plain.ID}
	got, err := fx.svc.UpdateUser(ctx, &upd)
	if err != nil {
		t.Fatalf("expected an ordinary group to be assignable, got %v", err)
	}
	if len(got.Groups) != 1 || got.Groups[0] != plain.ID {
		t.Errorf("expected group assignment, got %v", got.Groups)
	}

	upd = *other
	upd.IsStaff = true
	upd.Groups = []uuid.UUID{admin.ID, national.ID}
	got, err = fx.svc.UpdateUser(nationalCtx(), &upd)
	if err != nil {
		t.Fatalf("expected a national administrator to grant access, got %v", err)
	}
	if !got.IsStaff || len(got.Groups) != 2 {
		t.Errorf("unexpected user after grant: %+v", got)
	}
}

func TestService_CreateUser_PrivilegedByCounty(t *testing.T) {
	fx := newFixture()
	admin, national := privilegedGroups(t, fx)
	ctx := countyCtx(fx.nairobi)

	tests := []struct {
		name string
		user User
	}{
		{"superuser", User{IsSuperuser: true}},
		{"staff", User{IsStaff: true}},
		{"admin group", User{Groups: []uuid.UUID{admin.ID}}},
		{"national group", User{Groups: []uuid.UUID{national.ID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			u.Email, u.FirstName, u.LastName = "new@example.com", "a", "b"
			u.CountyID = &fx.nairobi
			_, err := fx.svc.CreateUser(ctx, &CreateUserRequest{User: u, Password: "secret123"})
			if !errors.Is(err, apperr.ErrForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
	if len(fx.users.users) != 0 {
		t.Errorf("expected nothing persisted, got %d users", len(fx.users.users))
	}
}

func TestService_DeleteUser(t *testing.T) {
	fx := newFixture()
	u := fx.user(t, "gone@example.com", nil, nil)

	if err := fx.svc.DeleteUser(nationalCtx(), u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fx.svc.GetUser(nationalCtx(), u.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected deleted user to be hidden, got %v", err)
	}
	if _, ok := fx.users.users[u.ID]; !ok {
		t.Error("expected soft delete to keep the row")
	}

	self := fx.user(t, "self@example.com", nil, nil)
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{UserID: self.ID.String(), IsNational: true})
	if err := fx.svc.DeleteUser(ctx, self.ID); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected self delete to be rejected, got %v", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	fx := newFixture()
	g := &Group{Name: "Admins", IsAdministrator: true, Permissions: []string{"facilities.add_facility", "reporting.view_reports"}}
	g2 := &Group{Name: "Reports", IsNational: true, Permissions: []string{"reporting.view_reports"}}
	for _, grp := range []*Group{g, g2} {
		if err := fx.svc.CreateGroup(nationalCtx(), grp); err != nil {
			t.Fatalf("create group: %v", err)
		}
	}
	u, err := fx.svc.CreateUser(nationalCtx(), &CreateUserRequest{
		User: User{
			Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", IsActive: true,
			CountyID: &fx.nairobi, Groups: []uuid.UUID{g.ID, g2.ID},
		},
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	p, err := fx.svc.Authenticate(context.Background(), "jane@example.com", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.UserID != u.ID.String() {
		t.Errorf("expected subject %s, got %s", u.ID, p.UserID)
	}
	if !p.IsAdmin || !p.IsNational {
		t.Errorf("expected flags from groups, got admin=%v national=%v", p.IsAdmin, p.IsNational)
	}
	if len(p.Permissions) != 2 {
		t.Errorf("expected 2 distinct permissions, got %v", p.Permissions)
	}
	if p.CountyID == nil || *p.CountyID != fx.nairobi {
		t.Errorf("expected county on principal, got %v", p.CountyID)
	}
	if fx.users.logins[u.ID] != 1 {
		t.Errorf("expected last login to be recorded")
	}
}

func TestService_Authenticate_InvalidGrant(t *testing.T) {
	fx := newFixture()
	fx.user(t, "jane@example.com", nil, nil)
	inactive := fx.user(t, "off@example.com", nil, nil)
	fx.users.users[inactive.ID].IsActive = false

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "jane@example.com", "wrong1234"},
		{"unknown user", "nobody@example.com", "secret123"},
		{"inactive", "off@example.com", "secret123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Authenticate(context.Background(), tt.email, tt.password)
			var oerr *OAuthError
			if !errors.As(err, &oerr) || oerr.Code != "invalid_grant" {
				t.Errorf("expected invalid_grant, got %v", err)
			}
		})
	}
}

func TestService_ChangePassword(t *testing.T) {
	fx := newFixture()
	u := fx.user(t, "jane@example.com", nil, nil)
	ctx := context.Background()

	if err := fx.svc.ChangePassword(ctx, u.ID, &PasswordChange{OldPassword: "nope", NewPassword1: "another12", NewPassword2: "another12"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected wrong old password to be rejected, got %v", err)
	}
	if err := fx.svc.ChangePassword(ctx, u.ID, &PasswordChange{OldPassword: "secret123", NewPassword1: "another12", NewPassword2: "another13"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected mismatch to be rejected, got %v", err)
	}

	passwords := []string{"secret123", "second12", "third123", "fourth12", "fifth123", "sixth123"}
	for i := 1; i < len(passwords); i++ {
		if err := fx.svc.ChangePassword(ctx, u.ID, &PasswordChange{
			OldPassword: passwords[i-1], NewPassword1: passwords[i], NewPassword2: passwords[i],
		}); err != nil {
			t.Fatalf("change to %s: %v", passwords[i], err)
		}
	}

	current := passwords[len(passwords)-1]
	if err := fx.svc.ChangePassword(ctx, u.ID, &PasswordChange{OldPassword: current, NewPassword1: "third123", NewPassword2: "third123"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected reuse of a recent password to be rejected, got %v", err)
	}
	if err := fx.svc.ChangePassword(ctx, u.ID, &PasswordChange{OldPassword: current, NewPassword1: "secret123", NewPassword2: "secret123"}); err != nil {
		t.Errorf("expected a password older than the last five to be allowed, got %v", err)
	}
}

func TestService_CreateGroup(t *testing.T) {
	fx := newFixture()
	g := &Group{Name: "  Viewers ", Permissions: []string{"reporting.view_reports", "reporting.view_reports"}}
	if err := fx.svc.CreateGroup(nationalCtx(), g); err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Name != "Viewers" || len(g.Permissions) != 1 {
		t.Errorf("unexpected group: %+v", g)
	}

	err := fx.svc.CreateGroup(nationalCtx(), &Group{Name: "Bad", Permissions: []string{"nope.nothing"}})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected unknown permission to be rejected, got %v", err)
	}
	if err := fx.svc.CreateGroup(nationalCtx(), &Group{}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected missing name to be rejected, got %v", err)
	}
}

func TestService_CreateGroup_PrivilegedByCounty(t *testing.T) {
	fx := newFixture()
	ctx := countyCtx(fx.nairobi)
	if err := fx.svc.CreateGroup(ctx, &Group{Name: "Admins", IsAdministrator: true}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected administrator group to be forbidden, got %v", err)
	}
	if err := fx.svc.CreateGroup(ctx, &Group{Name: "National", IsNational: true}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected national group to be forbidden, got %v", err)
	}
	if err := fx.svc.CreateGroup(ctx, &Group{Name: "Officers"}); err != nil {
		t.Errorf("expected a plain group to be allowed, got %v", err)
	}
}
