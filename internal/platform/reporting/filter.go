package reporting

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrBadFilter      = errors.New("invalid filter")
	ErrBadParam       = errors.New("invalid parameter")
)

type Op string

const OpEq Op = "eq"

// Filter is a parsed `filters=field=value` expression.
type Filter struct {
	Field string
	Op    Op
	Value uuid.UUID
}

// ParseFilter splits raw on the first '=' and checks field against allowed.
func ParseFilter(raw string, allowed map[string]ExtraFilter) (Filter, error) {
	field, value, ok := strings.Cut(raw, "=")
	if !ok {
		return Filter{}, fmt.Errorf("%w: expected field=value, got %q", ErrBadFilter, raw)
	}
	field = strings.TrimSpace(field)
	if _, ok := allowed[field]; !ok {
		return Filter{}, fmt.Errorf("%w: %q is not a filterable field", ErrBadFilter, field)
	}
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %s must be a UUID", ErrBadFilter, field)
	}
	return Filter{Field: field, Op: OpEq, Value: id}, nil
}

// Predicate restricts a query to rows whose Dimension reference equals ID.
type Predicate struct {
	Dimension Dimension
	ID        uuid.UUID
}

// Query is an immutable set of equality predicates. Where returns a new
// Query and leaves the receiver untouched.
type Query struct {
	preds []Predicate
}

func (q Query) Where(d Dimension, id uuid.UUID) Query {
	preds := make([]Predicate, len(q.preds), len(q.preds)+1)
	copy(preds, q.preds)
	return Query{preds: append(preds, Predicate{Dimension: d, ID: id})}
}

func (q Query) Predicates() []Predicate {
	out := make([]Predicate, len(q.preds))
	copy(out, q.preds)
	return out
}

// Matches reports whether refs satisfies every predicate.
func (q Query) Matches(refs map[Dimension]uuid.UUID) bool {
	for _, p := range q.preds {
		if refs[p.Dimension] != p.ID {
			return false
		}
	}
	return true
}

// Request carries the parameters of the generic report endpoint.
type Request struct {
	ReportType    string
	Filters       string
	OwnerCategory *uuid.UUID
	County        *uuid.UUID
	Constituency  *uuid.UUID
}

func optionalUUID(v url.Values, name string) (*uuid.UUID, error) {
	raw := v.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a UUID", ErrBadParam, name)
	}
	return &id, nil
}

func ParseRequest(v url.Values) (Request, error) {
	req := Request{ReportType: v.Get("report_type"), Filters: v.Get("filters")}
	var err error
	if req.OwnerCategory, err = optionalUUID(v, "owner_category"); err != nil {
		return req, err
	}
	if req.County, err = optionalUUID(v, "county"); err != nil {
		return req, err
	}
	if req.Constituency, err = optionalUUID(v, "constituency"); err != nil {
		return req, err
	}
	return req, nil
}

var (
	truthy = map[string]bool{"true": true, "yes": true, "on": true, "y": true, "t": true, "1": true}
	falsy  = map[string]bool{"false": true, "no": true, "off": true, "n": true, "f": true, "0": true}
)

// parseTruth returns nil for values in neither set.
func parseTruth(raw string) *bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case truthy[s]:
		t := true
		return &t
	case falsy[s]:
		f := false
		return &f
	default:
		return nil
	}
}

// windowSet reports whether a window flag is present. Any non-empty value
// applies the window, including "false".
func windowSet(v url.Values, name string) bool {
	return strings.TrimSpace(v.Get(name)) != ""
}

// UpgradeRequest carries the parameters of the upgrade/downgrade report.
type UpgradeRequest struct {
	County          *uuid.UUID
	Upgrade         *bool
	LastWeek        bool
	LastMonth       bool
	LastThreeMonths bool
}

func ParseUpgradeRequest(v url.Values) (UpgradeRequest, error) {
	county, err := optionalUUID(v, "county")
	if err != nil {
		return UpgradeRequest{}, err
	}
	return UpgradeRequest{
		County:          county,
		Upgrade:         parseTruth(v.Get("upgrade")),
		LastWeek:        windowSet(v, "last_week"),
		LastMonth:       windowSet(v, "last_month"),
		LastThreeMonths: windowSet(v, "last_three_months"),
	}, nil
}

// cutoffs returns one lower bound per window flag set.
func (r UpgradeRequest) cutoffs(now time.Time) []time.Time {
	var out []time.Time
	if r.LastWeek {
		out = append(out, now.AddDate(0, 0, -7))
	}
	if r.LastMonth {
		out = append(out, now.AddDate(0, 0, -30))
	}
	if r.LastThreeMonths {
		out = append(out, now.AddDate(0, 0, -90))
	}
	return out
}
