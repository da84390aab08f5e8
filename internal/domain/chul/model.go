package chul

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/domain/common"
)

// Dates (date_established, approval_date) travel as YYYY-MM-DD strings.
const dateLayout = "2006-01-02"

type Status struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

type Approver struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	Description  *string   `json:"description,omitempty"`
	Created      time.Time `json:"created"`
}

type ApprovalStatus struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

// Unit is a community health unit attached to a facility. Geography is
// derived from the facility's ward.
type Unit struct {
	ID                  uuid.UUID         `json:"id"`
	Code                int               `json:"code"`
	Name                string            `json:"name"`
	FacilityID          uuid.UUID         `json:"facility"`
	FacilityName        string            `json:"facility_name,omitempty"`
	StatusID            uuid.UUID         `json:"status"`
	StatusName          string            `json:"status_name,omitempty"`
	HouseholdsMonitored int               `json:"households_monitored"`
	DateEstablished     *string           `json:"date_established"`
	WardName            string            `json:"ward_name,omitempty"`
	ConstituencyID      uuid.UUID         `json:"constituency"`
	CountyID            uuid.UUID         `json:"county"`
	CountyName          string            `json:"county_name,omitempty"`
	Contacts            []*common.Contact `json:"contacts,omitempty"`
	Created             time.Time         `json:"created"`
	Updated             time.Time         `json:"updated"`
}

type CreateUnitRequest struct {
	Unit
	Contacts []common.ContactInput `json:"contacts,omitempty"`
}

// Approval records an approver's decision on a unit or a worker. Exactly
// one of HealthUnitID/HealthWorkerID is set.
type Approval struct {
	ID                 uuid.UUID  `json:"id"`
	HealthUnitID       *uuid.UUID `json:"health_unit,omitempty"`
	HealthWorkerID     *uuid.UUID `json:"health_worker,omitempty"`
	ApproverID         uuid.UUID  `json:"approver"`
	ApproverName       string     `json:"approver_name,omitempty"`
	ApprovalStatusID   uuid.UUID  `json:"approval_status"`
	ApprovalStatusName string     `json:"approval_status_name,omitempty"`
	Comment            *string    `json:"comment,omitempty"`
	ApprovalDate       string     `json:"approval_date"`
	Created            time.Time  `json:"created"`
}

type Worker struct {
	ID             uuid.UUID         `json:"id"`
	FirstName      string            `json:"first_name"`
	LastName       *string           `json:"last_name"`
	Name           string            `json:"name"`
	IDNumber       *string           `json:"id_number"`
	HealthUnitID   uuid.UUID         `json:"health_unit"`
	HealthUnitName string            `json:"health_unit_name,omitempty"`
	IsActive       bool              `json:"is_active"`
	Contacts       []*common.Contact `json:"contacts,omitempty"`
	Created        time.Time         `json:"created"`
	Updated        time.Time         `json:"updated"`
}

type CreateWorkerRequest struct {
	Worker
	Contacts []common.ContactInput `json:"contacts,omitempty"`
}

// FullName joins the first and last name, dropping the gap when the last
// name is missing.
func FullName(first string, last *string) string {
	if last == nil {
		return strings.TrimSpace(first)
	}
	return strings.TrimSpace(first + " " + *last)
}

type UnitFilter struct {
	Name     string
	Facility *uuid.UUID
	Status   *uuid.UUID
}
