package common

import (
	"context"

	"github.com/google/uuid"
)

type GeographyRepository interface {
	CreateCounty(ctx context.Context, c *County) error
	GetCounty(ctx context.Context, id uuid.UUID) (*County, error)
	UpdateCounty(ctx context.Context, c *County) error
	ListCounties(ctx context.Context, limit, offset int) ([]*County, int, error)

	CreateConstituency(ctx context.Context, c *Constituency) error
	GetConstituency(ctx context.Context, id uuid.UUID) (*Constituency, error)
	UpdateConstituency(ctx context.Context, c *Constituency) error
	// ListConstituencies filters by county when countyID is non-nil.
	ListConstituencies(ctx context.Context, countyID *uuid.UUID, limit, offset int) ([]*Constituency, int, error)

	CreateWard(ctx context.Context, w *Ward) error
	GetWard(ctx context.Context, id uuid.UUID) (*Ward, error)
	UpdateWard(ctx context.Context, w *Ward) error
	ListWards(ctx context.Context, constituencyID *uuid.UUID, limit, offset int) ([]*Ward, int, error)
}

type ContactRepository interface {
	CreateType(ctx context.Context, ct *ContactType) error
	GetType(ctx context.Context, id uuid.UUID) (*ContactType, error)
	ListTypes(ctx context.Context, limit, offset int) ([]*ContactType, int, error)

	Create(ctx context.Context, c *Contact) error
	Get(ctx context.Context, id uuid.UUID) (*Contact, error)
	// FindByValue returns apperr.ErrNotFound when no contact matches.
	FindByValue(ctx context.Context, typeID uuid.UUID, value string) (*Contact, error)
	List(ctx context.Context, limit, offset int) ([]*Contact, int, error)
}
