package common

import (
	"time"

	"github.com/google/uuid"
)

// County, Constituency and Ward form the administrative hierarchy every
// facility is placed in.
type County struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Code    int       `json:"code"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

type Constituency struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Code       int       `json:"code"`
	CountyID   uuid.UUID `json:"county"`
	CountyName string    `json:"county_name,omitempty"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

type Ward struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Code             int       `json:"code"`
	ConstituencyID   uuid.UUID `json:"constituency"`
	ConstituencyName string    `json:"constituency_name,omitempty"`
	CountyID         uuid.UUID `json:"county"`
	CountyName       string    `json:"county_name,omitempty"`
	Created          time.Time `json:"created"`
	Updated          time.Time `json:"updated"`
}

type ContactType struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

type Contact struct {
	ID              uuid.UUID `json:"id"`
	Contact         string    `json:"contact"`
	ContactTypeID   uuid.UUID `json:"contact_type"`
	ContactTypeName string    `json:"contact_type_name,omitempty"`
	Created         time.Time `json:"created"`
}

// ContactInput is the nested {contact_type, contact} pair accepted by the
// facility, unit and worker create endpoints.
type ContactInput struct {
	ContactType uuid.UUID `json:"contact_type"`
	Contact     string    `json:"contact"`
}
