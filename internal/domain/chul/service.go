package chul

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/domain/facilities"
	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
)

// FacilityLookup returns a facility visible to the caller.
type FacilityLookup interface {
	GetFacility(ctx context.Context, id uuid.UUID) (*facilities.Facility, error)
}

type ContactEnsurer interface {
	EnsureContact(ctx context.Context, in common.ContactInput) (*common.Contact, error)
}

type Service struct {
	lookups    LookupRepository
	units      UnitRepository
	workers    WorkerRepository
	facilities FacilityLookup
	contacts   ContactEnsurer
	tx         db.Transactor
}

func NewService(lookups LookupRepository, units UnitRepository, workers WorkerRepository,
	facilities FacilityLookup, contacts ContactEnsurer, tx db.Transactor) *Service {
	return &Service{
		lookups:    lookups,
		units:      units,
		workers:    workers,
		facilities: facilities,
		contacts:   contacts,
		tx:         tx,
	}
}

// -- Lookups --

func (s *Service) CreateStatus(ctx context.Context, st *Status) error {
	if strings.TrimSpace(st.Name) == "" {
		return apperr.Invalid("status name is required")
	}
	return s.lookups.CreateStatus(ctx, st)
}

func (s *Service) ListStatuses(ctx context.Context, limit, offset int) ([]*Status, int, error) {
	return s.lookups.ListStatuses(ctx, limit, offset)
}

func (s *Service) CreateApprover(ctx context.Context, a *Approver) error {
	if strings.TrimSpace(a.Name) == "" {
		return apperr.Invalid("approver name is required")
	}
	if strings.TrimSpace(a.Abbreviation) == "" {
		return apperr.Invalid("approver abbreviation is required")
	}
	return s.lookups.CreateApprover(ctx, a)
}

func (s *Service) ListApprovers(ctx context.Context, limit, offset int) ([]*Approver, int, error) {
	return s.lookups.ListApprovers(ctx, limit, offset)
}

func (s *Service) CreateApprovalStatus(ctx context.Context, st *ApprovalStatus) error {
	if strings.TrimSpace(st.Name) == "" {
		return apperr.Invalid("approval status name is required")
	}
	return s.lookups.CreateApprovalStatus(ctx, st)
}

func (s *Service) ListApprovalStatuses(ctx context.Context, limit, offset int) ([]*ApprovalStatus, int, error) {
	return s.lookups.ListApprovalStatuses(ctx, limit, offset)
}

// -- Units --

func validDate(field string, v *string) error {
	if v == nil {
		return nil
	}
	if _, err := time.Parse(dateLayout, *v); err != nil {
		return apperr.Invalid("%s must be a date in YYYY-MM-DD format", field)
	}
	return nil
}

func unitVisible(scope auth.Scope, u *Unit) bool {
	switch scope.Level {
	case auth.ScopeNational:
		return true
	case auth.ScopeCounty:
		return u.CountyID == scope.CountyID
	case auth.ScopeConstituency:
		return u.ConstituencyID == scope.ConstituencyID
	default:
		return false
	}
}

func (s *Service) validateUnit(ctx context.Context, u *Unit) error {
	if strings.TrimSpace(u.Name) == "" {
		return apperr.Invalid("name is required")
	}
	if u.HouseholdsMonitored < 0 {
		return apperr.Invalid("households_monitored cannot be negative")
	}
	if err := validDate("date_established", u.DateEstablished); err != nil {
		return err
	}
	if u.FacilityID == uuid.Nil {
		return apperr.Invalid("facility is required")
	}
	if _, err := s.facilities.GetFacility(ctx, u.FacilityID); err != nil {
		return invalidRef(err, "facility")
	}
	if u.StatusID == uuid.Nil {
		return apperr.Invalid("status is required")
	}
	if _, err := s.lookups.GetStatus(ctx, u.StatusID); err != nil {
		return invalidRef(err, "status")
	}
	return nil
}

func validateContacts(in []common.ContactInput) error {
	for i, c := range in {
		if c.ContactType == uuid.Nil || strings.TrimSpace(c.Contact) == "" {
			return apperr.Invalid("contacts[%d]: contact_type and contact are required", i)
		}
	}
	return nil
}

func (s *Service) CreateUnit(ctx context.Context, req *CreateUnitRequest) (*Unit, error) {
	u := &req.Unit
	if err := s.validateUnit(ctx, u); err != nil {
		return nil, err
	}
	if err := validateContacts(req.Contacts); err != nil {
		return nil, err
	}

	var created *Unit
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.units.Create(ctx, u); err != nil {
			return err
		}
		for _, in := range req.Contacts {
			c, err := s.contacts.EnsureContact(ctx, in)
			if err != nil {
				return err
			}
			if err := s.units.AddContact(ctx, u.ID, c.ID); err != nil {
				return err
			}
		}
		var err error
		created, err = s.loadUnit(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) loadUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	u, err := s.units.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Contacts, err = s.units.ListContacts(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	u, err := s.loadUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if !unitVisible(auth.ScopeFromContext(ctx), u) {
		return nil, apperr.NotFound("community health unit")
	}
	return u, nil
}

func (s *Service) UpdateUnit(ctx context.Context, u *Unit) (*Unit, error) {
	if _, err := s.GetUnit(ctx, u.ID); err != nil {
		return nil, err
	}
	if err := s.validateUnit(ctx, u); err != nil {
		return nil, err
	}
	if err := s.units.Update(ctx, u); err != nil {
		return nil, err
	}
	return s.loadUnit(ctx, u.ID)
}

func (s *Service) DeleteUnit(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetUnit(ctx, id); err != nil {
		return err
	}
	return s.units.Delete(ctx, id)
}

func (s *Service) ListUnits(ctx context.Context, filter UnitFilter, limit, offset int) ([]*Unit, int, error) {
	return s.units.List(ctx, auth.ScopeFromContext(ctx), filter, limit, offset)
}

func (s *Service) validateApproval(ctx context.Context, a *Approval) error {
	if a.ApproverID == uuid.Nil {
		return apperr.Invalid("approver is required")
	}
	if _, err := s.lookups.GetApprover(ctx, a.ApproverID); err != nil {
		return invalidRef(err, "approver")
	}
	if a.ApprovalStatusID == uuid.Nil {
		return apperr.Invalid("approval_status is required")
	}
	if _, err := s.lookups.GetApprovalStatus(ctx, a.ApprovalStatusID); err != nil {
		return invalidRef(err, "approval_status")
	}
	if a.ApprovalDate != "" {
		return validDate("approval_date", &a.ApprovalDate)
	}
	return nil
}

func (s *Service) ApproveUnit(ctx context.Context, unitID uuid.UUID, a *Approval) error {
	if _, err := s.GetUnit(ctx, unitID); err != nil {
		return err
	}
	if err := s.validateApproval(ctx, a); err != nil {
		return err
	}
	a.HealthUnitID = &unitID
	a.HealthWorkerID = nil
	return s.units.CreateApproval(ctx, a)
}

func (s *Service) ListUnitApprovals(ctx context.Context, unitID uuid.UUID) ([]*Approval, error) {
	if _, err := s.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	return s.units.ListApprovals(ctx, unitID)
}

// -- Workers --

func (s *Service) validateWorker(ctx context.Context, w *Worker) error {
	w.FirstName = strings.TrimSpace(w.FirstName)
	if w.FirstName == "" {
		return apperr.Invalid("first_name is required")
	}
	if w.IDNumber != nil {
		v := strings.TrimSpace(*w.IDNumber)
		if v == "" {
			w.IDNumber = nil
		} else {
			w.IDNumber = &v
		}
	}
	if w.HealthUnitID == uuid.Nil {
		return apperr.Invalid("health_unit is required")
	}
	if _, err := s.GetUnit(ctx, w.HealthUnitID); err != nil {
		return invalidRef(err, "health_unit")
	}
	return nil
}

func (s *Service) CreateWorker(ctx context.Context, req *CreateWorkerRequest) (*Worker, error) {
	w := &req.Worker
	if err := s.validateWorker(ctx, w); err != nil {
		return nil, err
	}
	if err := validateContacts(req.Contacts); err != nil {
		return nil, err
	}

	var created *Worker
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.workers.Create(ctx, w); err != nil {
			return err
		}
		for _, in := range req.Contacts {
			c, err := s.contacts.EnsureContact(ctx, in)
			if err != nil {
				return err
			}
			if err := s.workers.AddContact(ctx, w.ID, c.ID); err != nil {
				return err
			}
		}
		var err error
		created, err = s.loadWorker(ctx, w.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) loadWorker(ctx context.Context, id uuid.UUID) (*Worker, error) {
	w, err := s.workers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Contacts, err = s.workers.ListContacts(ctx, id); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorker returns a worker whose unit is visible to the caller.
func (s *Service) GetWorker(ctx context.Context, id uuid.UUID) (*Worker, error) {
	w, err := s.loadWorker(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetUnit(ctx, w.HealthUnitID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("community health worker")
		}
		return nil, err
	}
	return w, nil
}

func (s *Service) UpdateWorker(ctx context.Context, w *Worker) (*Worker, error) {
	if _, err := s.GetWorker(ctx, w.ID); err != nil {
		return nil, err
	}
	if err := s.validateWorker(ctx, w); err != nil {
		return nil, err
	}
	if err := s.workers.Update(ctx, w); err != nil {
		return nil, err
	}
	return s.loadWorker(ctx, w.ID)
}

func (s *Service) DeleteWorker(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetWorker(ctx, id); err != nil {
		return err
	}
	return s.workers.Delete(ctx, id)
}

func (s *Service) ListWorkers(ctx context.Context, unitID *uuid.UUID, limit, offset int) ([]*Worker, int, error) {
	return s.workers.List(ctx, auth.ScopeFromContext(ctx), unitID, limit, offset)
}

func (s *Service) ApproveWorker(ctx context.Context, workerID uuid.UUID, a *Approval) error {
	if _, err := s.GetWorker(ctx, workerID); err != nil {
		return err
	}
	if err := s.validateApproval(ctx, a); err != nil {
		return err
	}
	a.HealthWorkerID = &workerID
	a.HealthUnitID = nil
	return s.workers.CreateApproval(ctx, a)
}

func (s *Service) ListWorkerApprovals(ctx context.Context, workerID uuid.UUID) ([]*Approval, error) {
	if _, err := s.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}
	return s.workers.ListApprovals(ctx, workerID)
}

func invalidRef(err error, field string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("%s does not exist", field)
	}
	return err
}
