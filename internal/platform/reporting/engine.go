// Package reporting computes the facility count, beds/cots and
// upgrade/downgrade reports.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Row is one flat result row.
type Row map[string]interface{}

// Result is the body of the generic report endpoint. Total is an int for
// count reports and a totals object for beds/cots reports.
type Result struct {
	Results []Row       `json:"results"`
	Total   interface{} `json:"total"`
}

// Engine computes reports fresh from the Store on every call. It holds no
// per-request state.
type Engine struct {
	store   Store
	reports Reports
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine returns an Engine over store. metrics may be nil.
func NewEngine(store Store, reports Reports, metrics *Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		reports: reports,
		metrics: metrics,
		logger:  logger.With().Str("component", "reporting").Logger(),
		now:     time.Now,
	}
}

// Run dispatches req to its report routine.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	name := req.ReportType
	if name == "" {
		name = DefaultReportType
	}
	kind := ParseKind(name)
	rc, configured := e.reports[name]
	if kind == KindConfigured && !configured {
		return nil, ErrReportNotFound
	}

	start := time.Now()
	var (
		res *Result
		err error
	)
	q := Query{}
	switch kind {
	case KindFacilityTypeDetailed:
		res, err = e.countyMatrix(ctx, withOwnerCategory(q, req), DimFacilityType, "facility_type")
	case KindKephLevel:
		// The owner-filtered variant counts on keph_level too.
		res, err = e.countyMatrix(ctx, withOwnerCategory(q, req), DimKephLevel, "keph_level")
	case KindConstituency:
		res, err = e.constituencyMatrix(ctx, withOwnerCategory(q, req))
	case KindBedsCotsByCounty:
		res, err = e.bedsAndCots(ctx, q, DimCounty, grouping{name: "county_name", id: "county"})
	case KindBedsCotsByConstituency:
		if req.County != nil {
			q = q.Where(DimCounty, *req.County)
		}
		res, err = e.bedsAndCots(ctx, q, DimConstituency, grouping{name: "constituency_name", id: "constituency"})
	case KindBedsCotsByWard:
		if req.Constituency != nil {
			q = q.Where(DimConstituency, *req.Constituency)
		}
		res, err = e.bedsAndCots(ctx, q, DimWard, grouping{name: "ward_name", id: "ward"})
	default:
		res, err = e.configured(ctx, rc, req.Filters)
	}
	if err != nil {
		return nil, err
	}

	e.metrics.observe(name, time.Since(start))
	e.logger.Debug().Str("report_type", name).Int("rows", len(res.Results)).Msg("report computed")
	return res, nil
}

func withOwnerCategory(q Query, req Request) Query {
	if req.OwnerCategory == nil {
		return q
	}
	return q.Where(DimOwnerType, *req.OwnerCategory)
}

// configured counts facilities per row of the report's model.
func (e *Engine) configured(ctx context.Context, rc ReportConfig, rawFilter string) (*Result, error) {
	q := Query{}
	narrow := Query{}
	if rawFilter != "" {
		f, err := ParseFilter(rawFilter, rc.ExtraFilters)
		if err != nil {
			return nil, err
		}
		q = q.Where(rc.ExtraFilters[f.Field].FilterField, f.Value)
		narrow = narrow.Where(Dimension(f.Field), f.Value)
	}

	instances, err := e.store.Instances(ctx, rc.Model, narrow)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rc.Model, err)
	}
	counts, err := e.store.CountBy(ctx, q, rc.FilterField)
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", rc.FilterField, err)
	}
	total, err := e.store.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count facilities: %w", err)
	}

	rows := make([]Row, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, Row{
			rc.Return.Name:  inst.Name,
			rc.Return.Count: counts[GroupKey{inst.ID}],
		})
	}
	return &Result{Results: rows, Total: total}, nil
}

// countyMatrix emits one row per county and dimension row, zero counts included.
func (e *Engine) countyMatrix(ctx context.Context, q Query, d Dimension, label string) (*Result, error) {
	counties, err := e.store.Instances(ctx, DimCounty, Query{})
	if err != nil {
		return nil, fmt.Errorf("list counties: %w", err)
	}
	values, err := e.store.Instances(ctx, d, Query{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d, err)
	}
	counts, err := e.store.CountBy(ctx, q, DimCounty, d)
	if err != nil {
		return nil, fmt.Errorf("count by county and %s: %w", d, err)
	}

	rows := make([]Row, 0, len(counties)*len(values))
	total := 0
	for _, county := range counties {
		for _, v := range values {
			n := counts[GroupKey{county.ID, v.ID}]
			total += n
			rows = append(rows, Row{
				"county":               county.Name,
				label:                  v.Name,
				"number_of_facilities": n,
			})
		}
	}
	return &Result{Results: rows, Total: total}, nil
}

// constituencyMatrix emits one row per constituency, grouped under its county.
func (e *Engine) constituencyMatrix(ctx context.Context, q Query) (*Result, error) {
	counties, err := e.store.Instances(ctx, DimCounty, Query{})
	if err != nil {
		return nil, fmt.Errorf("list counties: %w", err)
	}
	constituencies, err := e.store.Instances(ctx, DimConstituency, Query{})
	if err != nil {
		return nil, fmt.Errorf("list constituencies: %w", err)
	}
	counts, err := e.store.CountBy(ctx, q, DimConstituency)
	if err != nil {
		return nil, fmt.Errorf("count by constituency: %w", err)
	}

	byCounty := lo.GroupBy(constituencies, func(c Instance) uuid.UUID { return c.Refs[DimCounty] })
	rows := make([]Row, 0, len(constituencies))
	total := 0
	for _, county := range counties {
		for _, c := range byCounty[county.ID] {
			n := counts[GroupKey{c.ID}]
			total += n
			rows = append(rows, Row{
				"county":               county.Name,
				"constituency":         c.Name,
				"number_of_facilities": n,
			})
		}
	}
	return &Result{Results: rows, Total: total}, nil
}

// grouping names the two output fields of a beds/cots row.
type grouping struct {
	name string
	id   string
}

func (g grouping) mustBeComplete() {
	if g.name == "" || g.id == "" {
		panic(fmt.Sprintf("reporting: beds and cots grouping needs exactly two fields, got %+v", g))
	}
}

// Totals is the total object of the beds/cots reports.
type Totals struct {
	TotalCots int `json:"total_cots"`
	TotalBeds int `json:"total_beds"`
}

func (e *Engine) bedsAndCots(ctx context.Context, q Query, d Dimension, g grouping) (*Result, error) {
	g.mustBeComplete()

	groups, err := e.store.SumBedsCots(ctx, q, d)
	if err != nil {
		return nil, fmt.Errorf("sum beds and cots by %s: %w", d, err)
	}

	totals := Totals{}
	rows := make([]Row, 0, len(groups))
	for _, b := range groups {
		totals.TotalBeds += b.Beds
		totals.TotalCots += b.Cots
		rows = append(rows, Row{
			"beds": b.Beds,
			"cots": b.Cots,
			g.name: b.Name,
			g.id:   b.ID,
		})
	}
	return &Result{Results: rows, Total: totals}, nil
}
