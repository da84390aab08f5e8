package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type CountyChanges struct {
	County   string    `json:"county"`
	CountyID uuid.UUID `json:"county_id"`
	Changes  int       `json:"changes"`
}

type FacilityChange struct {
	Name                 string  `json:"name"`
	Code                 int     `json:"code"`
	CurrentKephLevel     *string `json:"current_keph_level"`
	PreviousKephLevel    *string `json:"previous_keph_level"`
	PreviousFacilityType string  `json:"previous_facility_type"`
	CurrentFacilityType  string  `json:"current_facility_type"`
	Reason               string  `json:"reason"`
}

// UpgradeReport is the body of the upgrade/downgrade endpoint. Exactly one of
// TotalNumberOfChanges (summary) and TotalFacilitiesChanged (detail) is set.
type UpgradeReport struct {
	Results                interface{} `json:"results"`
	Total                  int         `json:"total"`
	TotalNumberOfChanges   *int        `json:"total_number_of_changes,omitempty"`
	TotalFacilitiesChanged *int        `json:"total_facilities_changed,omitempty"`
}

// Upgrades summarises facility type and KEPH level changes per county, or
// lists the changed facilities of one county when req.County is set.
func (e *Engine) Upgrades(ctx context.Context, req UpgradeRequest) (*UpgradeReport, error) {
	start := time.Now()
	f := ChangeFilter{IsUpgrade: req.Upgrade, Since: req.cutoffs(e.now())}

	var (
		rep *UpgradeReport
		err error
	)
	if req.County == nil {
		rep, err = e.upgradeSummary(ctx, f)
	} else {
		f.County = req.County
		rep, err = e.upgradeDetail(ctx, f)
	}
	if err != nil {
		return nil, err
	}

	e.metrics.observe("facility_upgrades", time.Since(start))
	e.logger.Debug().Str("report_type", "facility_upgrades").Int("total", rep.Total).Msg("report computed")
	return rep, nil
}

// upgradeSummary counts distinct changed facilities per county. The change
// total counts records, so a facility changed twice adds two to it.
func (e *Engine) upgradeSummary(ctx context.Context, f ChangeFilter) (*UpgradeReport, error) {
	changes, err := e.store.Changes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	counties, err := e.store.Instances(ctx, DimCounty, Query{})
	if err != nil {
		return nil, fmt.Errorf("list counties: %w", err)
	}

	facilities := lo.UniqBy(changes, func(c Change) uuid.UUID { return c.FacilityID })
	byCounty := lo.GroupBy(facilities, func(c Change) uuid.UUID { return c.CountyID })

	rows := make([]CountyChanges, 0, len(counties))
	for _, county := range counties {
		rows = append(rows, CountyChanges{
			County:   county.Name,
			CountyID: county.ID,
			Changes:  len(byCounty[county.ID]),
		})
	}
	total := len(changes)
	return &UpgradeReport{Results: rows, Total: total, TotalNumberOfChanges: &total}, nil
}

// upgradeDetail lists each changed facility once, described by its latest
// change record that matches f.
func (e *Engine) upgradeDetail(ctx context.Context, f ChangeFilter) (*UpgradeReport, error) {
	changes, err := e.store.Changes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}

	latest := lo.UniqBy(changes, func(c Change) uuid.UUID { return c.FacilityID })
	rows := lo.Map(latest, func(c Change, _ int) FacilityChange {
		return FacilityChange{
			Name:                 c.FacilityName,
			Code:                 c.FacilityCode,
			CurrentKephLevel:     c.KephLevel,
			PreviousKephLevel:    c.PreviousKephLevel,
			PreviousFacilityType: c.PreviousFacilityType,
			CurrentFacilityType:  c.FacilityType,
			Reason:               c.Reason,
		}
	})
	total := len(rows)
	return &UpgradeReport{Results: rows, Total: total, TotalFacilitiesChanged: &total}, nil
}
