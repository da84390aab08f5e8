package facilities

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
	"github.com/mfl/mfl/internal/platform/history"
)

// WardLookup resolves the ward a facility is placed in.
type WardLookup interface {
	GetWard(ctx context.Context, id uuid.UUID) (*common.Ward, error)
}

// ContactEnsurer finds or creates a shared contact record.
type ContactEnsurer interface {
	EnsureContact(ctx context.Context, in common.ContactInput) (*common.Contact, error)
}

type Service struct {
	lookups    LookupRepository
	facilities FacilityRepository
	wards      WardLookup
	contacts   ContactEnsurer
	tx         db.Transactor
	history    *history.Tracker
}

func NewService(lookups LookupRepository, facilities FacilityRepository, wards WardLookup,
	contacts ContactEnsurer, tx db.Transactor, tracker *history.Tracker) *Service {
	return &Service{
		lookups:    lookups,
		facilities: facilities,
		wards:      wards,
		contacts:   contacts,
		tx:         tx,
		history:    tracker,
	}
}

// -- Lookups --

func (s *Service) CreateOwnerType(ctx context.Context, ot *OwnerType) error {
	if strings.TrimSpace(ot.Name) == "" {
		return apperr.Invalid("owner type name is required")
	}
	return s.lookups.CreateOwnerType(ctx, ot)
}

func (s *Service) ListOwnerTypes(ctx context.Context, limit, offset int) ([]*OwnerType, int, error) {
	return s.lookups.ListOwnerTypes(ctx, limit, offset)
}

func (s *Service) validateOwner(ctx context.Context, o *Owner) error {
	if strings.TrimSpace(o.Name) == "" {
		return apperr.Invalid("owner name is required")
	}
	if o.OwnerTypeID == uuid.Nil {
		return apperr.Invalid("owner_type is required")
	}
	ot, err := s.lookups.GetOwnerType(ctx, o.OwnerTypeID)
	if err != nil {
		return invalidRef(err, "owner_type")
	}
	o.OwnerTypeName = ot.Name
	return nil
}

func (s *Service) CreateOwner(ctx context.Context, o *Owner) error {
	if err := s.validateOwner(ctx, o); err != nil {
		return err
	}
	return s.lookups.CreateOwner(ctx, o)
}

func (s *Service) GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error) {
	return s.lookups.GetOwner(ctx, id)
}

func (s *Service) ListOwners(ctx context.Context, limit, offset int) ([]*Owner, int, error) {
	return s.lookups.ListOwners(ctx, limit, offset)
}

func (s *Service) CreateFacilityType(ctx context.Context, ft *FacilityType) error {
	if strings.TrimSpace(ft.Name) == "" {
		return apperr.Invalid("facility type name is required")
	}
	return s.lookups.CreateFacilityType(ctx, ft)
}

func (s *Service) ListFacilityTypes(ctx context.Context, limit, offset int) ([]*FacilityType, int, error) {
	return s.lookups.ListFacilityTypes(ctx, limit, offset)
}

func (s *Service) CreateKephLevel(ctx context.Context, k *KephLevel) error {
	if strings.TrimSpace(k.Name) == "" {
		return apperr.Invalid("keph level name is required")
	}
	if k.Value <= 0 {
		return apperr.Invalid("keph level value must be a positive number")
	}
	return s.lookups.CreateKephLevel(ctx, k)
}

func (s *Service) ListKephLevels(ctx context.Context, limit, offset int) ([]*KephLevel, int, error) {
	return s.lookups.ListKephLevels(ctx, limit, offset)
}

func (s *Service) CreateChangeReason(ctx context.Context, cr *ChangeReason) error {
	if strings.TrimSpace(cr.Reason) == "" {
		return apperr.Invalid("reason is required")
	}
	return s.lookups.CreateChangeReason(ctx, cr)
}

func (s *Service) ListChangeReasons(ctx context.Context, limit, offset int) ([]*ChangeReason, int, error) {
	return s.lookups.ListChangeReasons(ctx, limit, offset)
}

// -- Facilities --

func validateFacility(f *Facility) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Invalid("name is required")
	}
	if f.WardID == uuid.Nil {
		return apperr.Invalid("ward is required")
	}
	if f.NumberOfBeds != nil && *f.NumberOfBeds < 0 {
		return apperr.Invalid("number_of_beds cannot be negative")
	}
	if f.NumberOfCots != nil && *f.NumberOfCots < 0 {
		return apperr.Invalid("number_of_cots cannot be negative")
	}
	if (f.Latitude == nil) != (f.Longitude == nil) {
		return apperr.Invalid("latitude and longitude must be given together")
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		return apperr.Invalid("latitude must be between -90 and 90")
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		return apperr.Invalid("longitude must be between -180 and 180")
	}
	return nil
}

// inScope reports whether a facility placed in w is visible to scope.
func inScope(scope auth.Scope, w *common.Ward) bool {
	switch scope.Level {
	case auth.ScopeNational:
		return true
	case auth.ScopeCounty:
		return w.CountyID == scope.CountyID
	case auth.ScopeConstituency:
		return w.ConstituencyID == scope.ConstituencyID
	default:
		return false
	}
}

func facilityInScope(scope auth.Scope, f *Facility) bool {
	return inScope(scope, &common.Ward{ID: f.WardID, ConstituencyID: f.ConstituencyID, CountyID: f.CountyID})
}

// placeInWard checks the ward exists and is inside the caller's area.
func (s *Service) placeInWard(ctx context.Context, wardID uuid.UUID) error {
	w, err := s.wards.GetWard(ctx, wardID)
	if err != nil {
		return invalidRef(err, "ward")
	}
	if !inScope(auth.ScopeFromContext(ctx), w) {
		return apperr.Forbidden("ward is outside your area")
	}
	return nil
}

func (s *Service) checkClassification(ctx context.Context, typeID uuid.UUID, kephID *uuid.UUID) (*FacilityType, *KephLevel, error) {
	if typeID == uuid.Nil {
		return nil, nil, apperr.Invalid("facility_type is required")
	}
	ft, err := s.lookups.GetFacilityType(ctx, typeID)
	if err != nil {
		return nil, nil, invalidRef(err, "facility_type")
	}
	if kephID == nil {
		return ft, nil, nil
	}
	k, err := s.lookups.GetKephLevel(ctx, *kephID)
	if err != nil {
		return nil, nil, invalidRef(err, "keph_level")
	}
	return ft, k, nil
}

// CreateFacility registers a facility together with an optional inline owner
// and its contacts. Nothing is persisted unless every part is valid.
func (s *Service) CreateFacility(ctx context.Context, req *CreateRequest) (*Facility, error) {
	f := &req.Facility
	if err := validateFacility(f); err != nil {
		return nil, err
	}
	if _, _, err := s.checkClassification(ctx, f.FacilityTypeID, f.KephLevelID); err != nil {
		return nil, err
	}
	if req.NewOwner == nil && f.OwnerID == uuid.Nil {
		return nil, apperr.Invalid("owner or new_owner is required")
	}
	if req.NewOwner != nil {
		if err := s.validateOwner(ctx, req.NewOwner); err != nil {
			return nil, err
		}
	}
	for i, c := range req.FacilityContacts {
		if c.ContactType == uuid.Nil || strings.TrimSpace(c.Contact) == "" {
			return nil, apperr.Invalid("facility_contacts[%d]: contact_type and contact are required", i)
		}
	}
	if err := s.placeInWard(ctx, f.WardID); err != nil {
		return nil, err
	}

	var created *Facility
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if req.NewOwner != nil {
			if err := s.lookups.CreateOwner(ctx, req.NewOwner); err != nil {
				return err
			}
			f.OwnerID = req.NewOwner.ID
		} else if _, err := s.lookups.GetOwner(ctx, f.OwnerID); err != nil {
			return invalidRef(err, "owner")
		}

		if err := s.facilities.Create(ctx, f); err != nil {
			return err
		}
		for _, in := range req.FacilityContacts {
			c, err := s.contacts.EnsureContact(ctx, in)
			if err != nil {
				return err
			}
			if err := s.facilities.AddContact(ctx, f.ID, c.ID); err != nil {
				return err
			}
		}

		var err error
		created, err = s.loadFacility(ctx, f.ID)
		if err != nil {
			return err
		}
		return s.history.RecordCreate(ctx, ResourceType, created.ID, created, auth.PrincipalFromContext(ctx).UserUUID())
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) loadFacility(ctx context.Context, id uuid.UUID) (*Facility, error) {
	f, err := s.facilities.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Contacts, err = s.facilities.ListContacts(ctx, id); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFacility returns a facility the caller can see. Facilities outside the
// caller's area are reported as not found.
func (s *Service) GetFacility(ctx context.Context, id uuid.UUID) (*Facility, error) {
	f, err := s.loadFacility(ctx, id)
	if err != nil {
		return nil, err
	}
	if !facilityInScope(auth.ScopeFromContext(ctx), f) {
		return nil, apperr.NotFound("facility")
	}
	return f, nil
}

// UpdateFacility changes the descriptive fields of a facility. Type and keph
// level are only changed through UpgradeFacility so every change is logged.
func (s *Service) UpdateFacility(ctx context.Context, f *Facility) (*Facility, error) {
	existing, err := s.GetFacility(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	if f.FacilityTypeID != uuid.Nil && f.FacilityTypeID != existing.FacilityTypeID {
		return nil, apperr.Invalid("facility_type can only be changed through an upgrade")
	}
	if f.KephLevelID != nil && (existing.KephLevelID == nil || *f.KephLevelID != *existing.KephLevelID) {
		return nil, apperr.Invalid("keph_level can only be changed through an upgrade")
	}
	if f.OwnerID == uuid.Nil {
		f.OwnerID = existing.OwnerID
	}
	if f.WardID == uuid.Nil {
		f.WardID = existing.WardID
	}
	if err := validateFacility(f); err != nil {
		return nil, err
	}
	if f.WardID != existing.WardID {
		if err := s.placeInWard(ctx, f.WardID); err != nil {
			return nil, err
		}
	}

	var updated *Facility
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if f.OwnerID != existing.OwnerID {
			if _, err := s.lookups.GetOwner(ctx, f.OwnerID); err != nil {
				return invalidRef(err, "owner")
			}
		}
		if err := s.facilities.Update(ctx, f); err != nil {
			return err
		}
		var err error
		if updated, err = s.loadFacility(ctx, f.ID); err != nil {
			return err
		}
		return s.history.RecordUpdate(ctx, ResourceType, updated.ID, updated.VersionID, updated,
			auth.PrincipalFromContext(ctx).UserUUID())
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFacility soft-deletes a facility.
func (s *Service) DeleteFacility(ctx context.Context, id uuid.UUID) error {
	existing, err := s.GetFacility(ctx, id)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.facilities.Delete(ctx, id); err != nil {
			return err
		}
		return s.history.RecordDelete(ctx, ResourceType, id, existing.VersionID+1,
			auth.PrincipalFromContext(ctx).UserUUID())
	})
}

func (s *Service) ListFacilities(ctx context.Context, filter ListFilter, limit, offset int) ([]*Facility, int, error) {
	return s.facilities.List(ctx, auth.ScopeFromContext(ctx), filter, limit, offset)
}

func (s *Service) ListWithCoordinates(ctx context.Context) ([]*Facility, error) {
	return s.facilities.ListWithCoordinates(ctx, auth.ScopeFromContext(ctx))
}

// -- Classification changes --

// UpgradeFacility records a change of facility type and keph level and
// applies it to the facility in the same transaction.
func (s *Service) UpgradeFacility(ctx context.Context, id uuid.UUID, req UpgradeRequest) (*FacilityUpgrade, error) {
	existing, err := s.GetFacility(ctx, id)
	if err != nil {
		return nil, err
	}
	ft, keph, err := s.checkClassification(ctx, req.FacilityType, req.KephLevel)
	if err != nil {
		return nil, err
	}
	if req.Reason == uuid.Nil {
		return nil, apperr.Invalid("reason is required")
	}
	reason, err := s.lookups.GetChangeReason(ctx, req.Reason)
	if err != nil {
		return nil, invalidRef(err, "reason")
	}
	if ft.ID == existing.FacilityTypeID && sameKeph(req.KephLevel, existing.KephLevelID) {
		return nil, apperr.Invalid("facility already has this facility type and keph level")
	}

	isUpgrade := true
	if req.IsUpgrade != nil {
		isUpgrade = *req.IsUpgrade
	} else if keph != nil && existing.KephLevelID != nil {
		prev, err := s.lookups.GetKephLevel(ctx, *existing.KephLevelID)
		if err != nil {
			return nil, err
		}
		isUpgrade = keph.Value >= prev.Value
	}

	u := &FacilityUpgrade{
		FacilityID:               id,
		FacilityTypeID:           ft.ID,
		FacilityTypeName:         ft.Name,
		KephLevelID:              req.KephLevel,
		PreviousFacilityTypeName: existing.FacilityTypeName,
		PreviousKephLevelName:    existing.KephLevelName,
		ReasonID:                 reason.ID,
		Reason:                   reason.Reason,
		IsUpgrade:                isUpgrade,
		CreatedBy:                auth.PrincipalFromContext(ctx).UserUUID(),
	}
	if keph != nil {
		u.KephLevelName = &keph.Name
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.facilities.CreateUpgrade(ctx, u); err != nil {
			return err
		}
		if err := s.facilities.SetClassification(ctx, id, ft.ID, req.KephLevel); err != nil {
			return err
		}
		f, err := s.loadFacility(ctx, id)
		if err != nil {
			return err
		}
		return s.history.RecordUpdate(ctx, ResourceType, id, f.VersionID, f, u.CreatedBy)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func sameKeph(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Service) ListUpgrades(ctx context.Context, id uuid.UUID, limit, offset int) ([]*FacilityUpgrade, int, error) {
	if _, err := s.GetFacility(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.facilities.ListUpgrades(ctx, id, limit, offset)
}

func (s *Service) ListRevisions(ctx context.Context, id uuid.UUID, limit, offset int) ([]*history.Entry, int, error) {
	if _, err := s.GetFacility(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.history.ListVersions(ctx, ResourceType, id, limit, offset)
}

func invalidRef(err error, field string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("%s does not exist", field)
	}
	return err
}
