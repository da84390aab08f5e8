package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/platform/auth"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	// Get and GetByEmail skip deleted users and load groups and assignments.
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, scope auth.Scope, limit, offset int) ([]*User, int, error)

	SetGroups(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID) error
	// SetCounty and SetConstituency replace the active assignment; nil clears it.
	SetCounty(ctx context.Context, userID uuid.UUID, countyID *uuid.UUID) error
	SetConstituency(ctx context.Context, userID uuid.UUID, constituencyID *uuid.UUID) error

	SetPassword(ctx context.Context, userID uuid.UUID, hash string) error
	AddPasswordHistory(ctx context.Context, userID uuid.UUID, hash string) error
	// RecentPasswords returns up to n hashes, newest first.
	RecentPasswords(ctx context.Context, userID uuid.UUID, n int) ([]string, error)
	TouchLogin(ctx context.Context, userID uuid.UUID) error
}

type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	Get(ctx context.Context, id uuid.UUID) (*Group, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*Group, error)
	List(ctx context.Context, limit, offset int) ([]*Group, int, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
}
