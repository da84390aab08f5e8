package common

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/platform/apperr"
)

type Service struct {
	geo      GeographyRepository
	contacts ContactRepository
}

func NewService(geo GeographyRepository, contacts ContactRepository) *Service {
	return &Service{geo: geo, contacts: contacts}
}

// -- Geography --

func validateArea(kind, name string, code int) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Invalid("%s name is required", kind)
	}
	if code <= 0 {
		return apperr.Invalid("%s code must be a positive number", kind)
	}
	return nil
}

func (s *Service) CreateCounty(ctx context.Context, c *County) error {
	if err := validateArea("county", c.Name, c.Code); err != nil {
		return err
	}
	return s.geo.CreateCounty(ctx, c)
}

func (s *Service) GetCounty(ctx context.Context, id uuid.UUID) (*County, error) {
	return s.geo.GetCounty(ctx, id)
}

func (s *Service) UpdateCounty(ctx context.Context, c *County) error {
	if err := validateArea("county", c.Name, c.Code); err != nil {
		return err
	}
	return s.geo.UpdateCounty(ctx, c)
}

func (s *Service) ListCounties(ctx context.Context, limit, offset int) ([]*County, int, error) {
	return s.geo.ListCounties(ctx, limit, offset)
}

func (s *Service) CreateConstituency(ctx context.Context, c *Constituency) error {
	if err := validateArea("constituency", c.Name, c.Code); err != nil {
		return err
	}
	if c.CountyID == uuid.Nil {
		return apperr.Invalid("county is required")
	}
	county, err := s.geo.GetCounty(ctx, c.CountyID)
	if err != nil {
		return invalidRef(err, "county")
	}
	c.CountyName = county.Name
	return s.geo.CreateConstituency(ctx, c)
}

func (s *Service) GetConstituency(ctx context.Context, id uuid.UUID) (*Constituency, error) {
	return s.geo.GetConstituency(ctx, id)
}

func (s *Service) UpdateConstituency(ctx context.Context, c *Constituency) error {
	if err := validateArea("constituency", c.Name, c.Code); err != nil {
		return err
	}
	if _, err := s.geo.GetCounty(ctx, c.CountyID); err != nil {
		return invalidRef(err, "county")
	}
	return s.geo.UpdateConstituency(ctx, c)
}

func (s *Service) ListConstituencies(ctx context.Context, countyID *uuid.UUID, limit, offset int) ([]*Constituency, int, error) {
	return s.geo.ListConstituencies(ctx, countyID, limit, offset)
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if err := validateArea("ward", w.Name, w.Code); err != nil {
		return err
	}
	if w.ConstituencyID == uuid.Nil {
		return apperr.Invalid("constituency is required")
	}
	c, err := s.geo.GetConstituency(ctx, w.ConstituencyID)
	if err != nil {
		return invalidRef(err, "constituency")
	}
	w.ConstituencyName = c.Name
	w.CountyID = c.CountyID
	w.CountyName = c.CountyName
	return s.geo.CreateWard(ctx, w)
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.geo.GetWard(ctx, id)
}

func (s *Service) UpdateWard(ctx context.Context, w *Ward) error {
	if err := validateArea("ward", w.Name, w.Code); err != nil {
		return err
	}
	if _, err := s.geo.GetConstituency(ctx, w.ConstituencyID); err != nil {
		return invalidRef(err, "constituency")
	}
	return s.geo.UpdateWard(ctx, w)
}

func (s *Service) ListWards(ctx context.Context, constituencyID *uuid.UUID, limit, offset int) ([]*Ward, int, error) {
	return s.geo.ListWards(ctx, constituencyID, limit, offset)
}

// -- Contacts --

func (s *Service) CreateContactType(ctx context.Context, ct *ContactType) error {
	if strings.TrimSpace(ct.Name) == "" {
		return apperr.Invalid("contact type name is required")
	}
	return s.contacts.CreateType(ctx, ct)
}

func (s *Service) ListContactTypes(ctx context.Context, limit, offset int) ([]*ContactType, int, error) {
	return s.contacts.ListTypes(ctx, limit, offset)
}

func (s *Service) CreateContact(ctx context.Context, c *Contact) error {
	c.Contact = strings.TrimSpace(c.Contact)
	if c.Contact == "" {
		return apperr.Invalid("contact is required")
	}
	ct, err := s.contacts.GetType(ctx, c.ContactTypeID)
	if err != nil {
		return invalidRef(err, "contact_type")
	}
	c.ContactTypeName = ct.Name
	return s.contacts.Create(ctx, c)
}

func (s *Service) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	return s.contacts.Get(ctx, id)
}

func (s *Service) ListContacts(ctx context.Context, limit, offset int) ([]*Contact, int, error) {
	return s.contacts.List(ctx, limit, offset)
}

// EnsureContact returns the contact with the given type and value, creating it
// when it does not exist yet. Contacts are shared between facilities, units
// and workers.
func (s *Service) EnsureContact(ctx context.Context, in ContactInput) (*Contact, error) {
	value := strings.TrimSpace(in.Contact)
	if value == "" {
		return nil, apperr.Invalid("contact is required")
	}
	if in.ContactType == uuid.Nil {
		return nil, apperr.Invalid("contact_type is required")
	}
	existing, err := s.contacts.FindByValue(ctx, in.ContactType, value)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	c := &Contact{Contact: value, ContactTypeID: in.ContactType}
	if err := s.CreateContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// invalidRef reports a missing referenced record as a validation error.
func invalidRef(err error, field string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("%s does not exist", field)
	}
	return err
}
