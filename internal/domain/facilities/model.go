package facilities

import (
	"time"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/domain/common"
)

// ResourceType is the history key for facility snapshots.
const ResourceType = "facility"

type OwnerType struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

type Owner struct {
	ID            uuid.UUID `json:"id"`
	Code          int       `json:"code"`
	Name          string    `json:"name"`
	Abbreviation  *string   `json:"abbreviation,omitempty"`
	Description   *string   `json:"description,omitempty"`
	OwnerTypeID   uuid.UUID `json:"owner_type"`
	OwnerTypeName string    `json:"owner_type_name,omitempty"`
	Created       time.Time `json:"created"`
}

type FacilityType struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	SubDivision *string   `json:"sub_division,omitempty"`
	Created     time.Time `json:"created"`
}

type KephLevel struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Value       int       `json:"value"`
	Description *string   `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

type ChangeReason struct {
	ID          uuid.UUID `json:"id"`
	Reason      string    `json:"reason"`
	Description *string   `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

// Facility is a registered health facility. The ward, constituency and
// county fields beyond WardID are derived from the ward on every read.
type Facility struct {
	ID                 uuid.UUID         `json:"id"`
	Code               int               `json:"code"`
	Name               string            `json:"name"`
	OfficialName       *string           `json:"official_name,omitempty"`
	Abbreviation       *string           `json:"abbreviation,omitempty"`
	Description        *string           `json:"description,omitempty"`
	FacilityTypeID     uuid.UUID         `json:"facility_type"`
	FacilityTypeName   string            `json:"facility_type_name,omitempty"`
	KephLevelID        *uuid.UUID        `json:"keph_level"`
	KephLevelName      *string           `json:"keph_level_name,omitempty"`
	OwnerID            uuid.UUID         `json:"owner"`
	OwnerName          string            `json:"owner_name,omitempty"`
	OwnerTypeName      string            `json:"owner_type_name,omitempty"`
	WardID             uuid.UUID         `json:"ward"`
	WardName           string            `json:"ward_name,omitempty"`
	ConstituencyID     uuid.UUID         `json:"constituency"`
	ConstituencyName   string            `json:"constituency_name,omitempty"`
	CountyID           uuid.UUID         `json:"county"`
	CountyName         string            `json:"county_name,omitempty"`
	NumberOfBeds       *int              `json:"number_of_beds"`
	NumberOfCots       *int              `json:"number_of_cots"`
	OpenWholeDay       bool              `json:"open_whole_day"`
	OpenWeekends       bool              `json:"open_weekends"`
	OpenPublicHolidays bool              `json:"open_public_holidays"`
	Latitude           *float64          `json:"latitude"`
	Longitude          *float64          `json:"longitude"`
	VersionID          int               `json:"version_id"`
	Contacts           []*common.Contact `json:"facility_contacts,omitempty"`
	Created            time.Time         `json:"created"`
	Updated            time.Time         `json:"updated"`
}

// CreateRequest is the facility create body. NewOwner creates the owner
// inline; FacilityContacts are looked up or created by type and value.
type CreateRequest struct {
	Facility
	NewOwner         *Owner                `json:"new_owner,omitempty"`
	FacilityContacts []common.ContactInput `json:"facility_contacts,omitempty"`
}

// FacilityUpgrade is an immutable record of a classification change. The
// previous names are frozen at the time of the change.
type FacilityUpgrade struct {
	ID                       uuid.UUID  `json:"id"`
	FacilityID               uuid.UUID  `json:"facility"`
	FacilityTypeID           uuid.UUID  `json:"facility_type"`
	FacilityTypeName         string     `json:"facility_type_name,omitempty"`
	KephLevelID              *uuid.UUID `json:"keph_level"`
	KephLevelName            *string    `json:"keph_level_name,omitempty"`
	PreviousFacilityTypeName string     `json:"previous_facility_type"`
	PreviousKephLevelName    *string    `json:"previous_keph_level"`
	ReasonID                 uuid.UUID  `json:"reason"`
	Reason                   string     `json:"reason_name,omitempty"`
	IsUpgrade                bool       `json:"is_upgrade"`
	CreatedBy                *uuid.UUID `json:"created_by,omitempty"`
	Created                  time.Time  `json:"created"`
}

type UpgradeRequest struct {
	FacilityType uuid.UUID  `json:"facility_type"`
	KephLevel    *uuid.UUID `json:"keph_level"`
	Reason       uuid.UUID  `json:"reason"`
	IsUpgrade    *bool      `json:"is_upgrade"`
}

// ListFilter narrows facility listings. Nil fields are ignored.
type ListFilter struct {
	Name         string
	County       *uuid.UUID
	Constituency *uuid.UUID
	Ward         *uuid.UUID
	FacilityType *uuid.UUID
	KephLevel    *uuid.UUID
	Owner        *uuid.UUID
}
