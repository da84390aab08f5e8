package facilities

import (
	"context"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/platform/auth"
)

type LookupRepository interface {
	CreateOwnerType(ctx context.Context, ot *OwnerType) error
	GetOwnerType(ctx context.Context, id uuid.UUID) (*OwnerType, error)
	ListOwnerTypes(ctx context.Context, limit, offset int) ([]*OwnerType, int, error)

	CreateOwner(ctx context.Context, o *Owner) error
	GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error)
	ListOwners(ctx context.Context, limit, offset int) ([]*Owner, int, error)

	CreateFacilityType(ctx context.Context, ft *FacilityType) error
	GetFacilityType(ctx context.Context, id uuid.UUID) (*FacilityType, error)
	ListFacilityTypes(ctx context.Context, limit, offset int) ([]*FacilityType, int, error)

	CreateKephLevel(ctx context.Context, k *KephLevel) error
	GetKephLevel(ctx context.Context, id uuid.UUID) (*KephLevel, error)
	ListKephLevels(ctx context.Context, limit, offset int) ([]*KephLevel, int, error)

	CreateChangeReason(ctx context.Context, r *ChangeReason) error
	GetChangeReason(ctx context.Context, id uuid.UUID) (*ChangeReason, error)
	ListChangeReasons(ctx context.Context, limit, offset int) ([]*ChangeReason, int, error)
}

type FacilityRepository interface {
	Create(ctx context.Context, f *Facility) error
	// Get returns a non-deleted facility with its derived geography.
	Get(ctx context.Context, id uuid.UUID) (*Facility, error)
	// Update writes the mutable columns and bumps version_id.
	Update(ctx context.Context, f *Facility) error
	// SetClassification changes type and keph level and bumps version_id.
	SetClassification(ctx context.Context, id uuid.UUID, typeID uuid.UUID, kephID *uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, scope auth.Scope, filter ListFilter, limit, offset int) ([]*Facility, int, error)
	// ListWithCoordinates returns every visible facility that has both a
	// latitude and a longitude.
	ListWithCoordinates(ctx context.Context, scope auth.Scope) ([]*Facility, error)

	AddContact(ctx context.Context, facilityID, contactID uuid.UUID) error
	ListContacts(ctx context.Context, facilityID uuid.UUID) ([]*common.Contact, error)

	CreateUpgrade(ctx context.Context, u *FacilityUpgrade) error
	ListUpgrades(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*FacilityUpgrade, int, error)
}
