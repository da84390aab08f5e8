package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Instance is a row of a dimension table.
type Instance struct {
	ID   uuid.UUID
	Name string
	// Refs holds the dimension's own relation columns, e.g. the county of a
	// constituency.
	Refs map[Dimension]uuid.UUID
}

// GroupKey identifies a group of facilities by up to two dimension ids.
type GroupKey [2]uuid.UUID

type BedsCots struct {
	ID   uuid.UUID
	Name string
	Beds int
	Cots int
}

// Change is a facility upgrade record joined with the live facility.
type Change struct {
	ID                   uuid.UUID
	FacilityID           uuid.UUID
	FacilityName         string
	FacilityCode         int
	CountyID             uuid.UUID
	FacilityType         string
	KephLevel            *string
	PreviousFacilityType string
	PreviousKephLevel    *string
	Reason               string
	IsUpgrade            bool
	Created              time.Time
}

// ChangeFilter narrows the change-log. Every Since entry is applied as its
// own created >= bound.
type ChangeFilter struct {
	IsUpgrade *bool
	Since     []time.Time
	County    *uuid.UUID
}

// Store reads the facility registry and change-log. Deleted facilities are
// never counted.
type Store interface {
	// Instances lists the rows of d matching where, ordered by name. where
	// may only reference d's relations.
	Instances(ctx context.Context, d Dimension, where Query) ([]Instance, error)
	Count(ctx context.Context, q Query) (int, error)
	// CountBy groups facilities by one or two dimensions. A facility with no
	// value for a dimension is keyed by uuid.Nil.
	CountBy(ctx context.Context, q Query, by ...Dimension) (map[GroupKey]int, error)
	// SumBedsCots groups facilities by d and sums their beds and cots,
	// ordered by name. Only groups with facilities are returned.
	SumBedsCots(ctx context.Context, q Query, d Dimension) ([]BedsCots, error)
	// Changes lists matching change records, newest first.
	Changes(ctx context.Context, f ChangeFilter) ([]Change, error)
}
