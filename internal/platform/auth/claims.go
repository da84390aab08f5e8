package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	Email          string   `json:"email,omitempty"`
	Permissions    []string `json:"permissions"`
	IsNational     bool     `json:"is_national"`
	IsAdmin        bool     `json:"is_admin"`
	CountyID       string   `json:"county_id,omitempty"`
	ConstituencyID string   `json:"constituency_id,omitempty"`
}

func (c *Claims) Principal() *Principal {
	return &Principal{
		UserID:         c.Subject,
		Email:          c.Email,
		Permissions:    c.Permissions,
		IsNational:     c.IsNational,
		IsAdmin:        c.IsAdmin,
		CountyID:       parseOptionalUUID(c.CountyID),
		ConstituencyID: parseOptionalUUID(c.ConstituencyID),
	}
}

func parseOptionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

func optionalUUIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
