package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// ScopeLevel is the geographic reach of a caller.
type ScopeLevel int

const (
	ScopeNone ScopeLevel = iota
	ScopeConstituency
	ScopeCounty
	ScopeNational
)

func (l ScopeLevel) String() string {
	switch l {
	case ScopeNational:
		return "national"
	case ScopeCounty:
		return "county"
	case ScopeConstituency:
		return "constituency"
	default:
		return "none"
	}
}

// Scope restricts which facilities, units and users a caller can see.
// Exactly one of CountyID/ConstituencyID is meaningful for the county and
// constituency levels.
type Scope struct {
	Level          ScopeLevel
	CountyID       uuid.UUID
	ConstituencyID uuid.UUID
}

// Principal is the authenticated caller.
type Principal struct {
	UserID         string
	Email          string
	Permissions    []string
	IsNational     bool
	IsAdmin        bool
	CountyID       *uuid.UUID
	ConstituencyID *uuid.UUID
}

// Scope resolves the caller's geographic reach. National beats county beats
// constituency; a user with no assignment sees nothing.
func (p *Principal) Scope() Scope {
	switch {
	case p == nil:
		return Scope{Level: ScopeNone}
	case p.IsNational || p.IsAdmin:
		return Scope{Level: ScopeNational}
	case p.CountyID != nil:
		return Scope{Level: ScopeCounty, CountyID: *p.CountyID}
	case p.ConstituencyID != nil:
		return Scope{Level: ScopeConstituency, ConstituencyID: *p.ConstituencyID}
	default:
		return Scope{Level: ScopeNone}
	}
}

// UserUUID returns the caller's id when it is a registered user.
func (p *Principal) UserUUID() *uuid.UUID {
	if p == nil {
		return nil
	}
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil
	}
	return &id
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}

func ScopeFromContext(ctx context.Context) Scope {
	return PrincipalFromContext(ctx).Scope()
}

// setPrincipal makes the caller visible to handlers (request context) and to
// the logging and rate limit middleware (echo context).
func setPrincipal(c echo.Context, p *Principal) {
	c.Set("user_id", p.UserID)
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
}
