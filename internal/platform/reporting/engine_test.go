package reporting

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type registry struct {
	store *memStore

	alpha, bravo           uuid.UUID
	alpha1, alpha2, bravo1 uuid.UUID
	wardA1, wardA2, wardB1 uuid.UUID
	hospital, clinic       uuid.UUID
	level2, level4         uuid.UUID
	public, private        uuid.UUID
	moh, privateCo         uuid.UUID
}

func newRegistry() *registry {
	s := newMemStore()
	r := &registry{store: s}
	r.alpha = s.add(DimCounty, "Alpha", nil)
	r.bravo = s.add(DimCounty, "Bravo", nil)
	r.alpha1 = s.add(DimConstituency, "Alpha One", map[Dimension]uuid.UUID{DimCounty: r.alpha})
	r.alpha2 = s.add(DimConstituency, "Alpha Two", map[Dimension]uuid.UUID{DimCounty: r.alpha})
	r.bravo1 = s.add(DimConstituency, "Bravo One", map[Dimension]uuid.UUID{DimCounty: r.bravo})
	r.wardA1 = s.add(DimWard, "Ward A1", map[Dimension]uuid.UUID{DimConstituency: r.alpha1, DimCounty: r.alpha})
	r.wardA2 = s.add(DimWard, "Ward A2", map[Dimension]uuid.UUID{DimConstituency: r.alpha2, DimCounty: r.alpha})
	r.wardB1 = s.add(DimWard, "Ward B1", map[Dimension]uuid.UUID{DimConstituency: r.bravo1, DimCounty: r.bravo})
	r.hospital = s.add(DimFacilityType, "Hospital", nil)
	r.clinic = s.add(DimFacilityType, "Clinic", nil)
	r.level2 = s.add(DimKephLevel, "Level 2", nil)
	r.level4 = s.add(DimKephLevel, "Level 4", nil)
	r.public = s.add(DimOwnerType, "Public", nil)
	r.private = s.add(DimOwnerType, "Private", nil)
	r.moh = s.add(DimOwner, "Ministry of Health", map[Dimension]uuid.UUID{DimOwnerType: r.public})
	r.privateCo = s.add(DimOwner, "Private Co", map[Dimension]uuid.UUID{DimOwnerType: r.private})
	return r
}

func (r *registry) add(ward, typ, owner uuid.UUID, keph *uuid.UUID) *memFacility {
	return r.store.facility(&memFacility{ward: ward, typ: typ, owner: owner, keph: keph})
}

// populate adds a spread of facilities over every dimension.
func (r *registry) populate() {
	r.add(r.wardA1, r.hospital, r.moh, &r.level4)
	r.add(r.wardA1, r.hospital, r.privateCo, &r.level4)
	r.add(r.wardA1, r.clinic, r.moh, &r.level2)
	r.add(r.wardB1, r.clinic, r.privateCo, &r.level2)
	r.add(r.wardB1, r.clinic, r.moh, nil)
	r.add(r.wardB1, r.hospital, r.moh, &r.level2).deleted = true
}

func intp(n int) *int { return &n }

func newTestEngine(t *testing.T, s Store) *Engine {
	t.Helper()
	reports, err := LoadReports("")
	if err != nil {
		t.Fatalf("load reports: %v", err)
	}
	return NewEngine(s, reports, nil, zerolog.Nop())
}

func findRow(rows []Row, match Row) Row {
	for _, row := range rows {
		ok := true
		for k, v := range match {
			if row[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return row
		}
	}
	return nil
}

// bruteCount counts live facilities matching every reference in refs.
func (r *registry) bruteCount(refs map[Dimension]uuid.UUID) int {
	n := 0
	for _, f := range r.store.facilities {
		if f.deleted {
			continue
		}
		got := r.store.refs(f)
		ok := true
		for d, id := range refs {
			if got[d] != id {
				ok = false
			}
		}
		if ok {
			n++
		}
	}
	return n
}

func TestEngine_FacilityTypeDetailed_DenseMatrix(t *testing.T) {
	r := newRegistry()
	r.add(r.wardA1, r.hospital, r.moh, nil)
	r.add(r.wardA2, r.hospital, r.moh, nil)
	r.add(r.wardB1, r.clinic, r.moh, nil)
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{ReportType: "facility_count_by_facility_type_detailed"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 4 {
		t.Fatalf("expected 2 counties x 2 types = 4 rows, got %d", len(res.Results))
	}
	if findRow(res.Results, Row{"county": "Alpha", "facility_type": "Hospital", "number_of_facilities": 2}) == nil {
		t.Errorf("missing Alpha/Hospital=2 row in %v", res.Results)
	}
	if findRow(res.Results, Row{"county": "Bravo", "facility_type": "Hospital", "number_of_facilities": 0}) == nil {
		t.Errorf("missing zero Bravo/Hospital row in %v", res.Results)
	}
	if res.Total != 3 {
		t.Errorf("expected total 3, got %v", res.Total)
	}
}

func TestEngine_CountyMatrix_MatchesRegistry(t *testing.T) {
	r := newRegistry()
	r.populate()
	e := newTestEngine(t, r.store)

	tests := []struct {
		report string
		dim    Dimension
		values []uuid.UUID
	}{
		{"facility_count_by_facility_type_detailed", DimFacilityType, []uuid.UUID{r.hospital, r.clinic}},
		{"facility_keph_level_report", DimKephLevel, []uuid.UUID{r.level2, r.level4}},
	}
	for _, tt := range tests {
		for _, owner := range []*uuid.UUID{nil, &r.public, &r.private} {
			name := tt.report + "/all"
			if owner != nil {
				name = tt.report + "/owner"
			}
			t.Run(name, func(t *testing.T) {
				res, err := e.Run(context.Background(), Request{ReportType: tt.report, OwnerCategory: owner})
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				for _, county := range []uuid.UUID{r.alpha, r.bravo} {
					for _, v := range tt.values {
						refs := map[Dimension]uuid.UUID{DimCounty: county, tt.dim: v}
						if owner != nil {
							refs[DimOwnerType] = *owner
						}
						countyInst, _ := r.store.instance(DimCounty, county)
						valueInst, _ := r.store.instance(tt.dim, v)
						row := findRow(res.Results, Row{"county": countyInst.Name, string(tt.dim): valueInst.Name})
						if row == nil {
							t.Fatalf("missing row %s/%s", countyInst.Name, valueInst.Name)
						}
						if want := r.bruteCount(refs); row["number_of_facilities"] != want {
							t.Errorf("%s/%s: expected %d, got %v", countyInst.Name, valueInst.Name, want, row["number_of_facilities"])
						}
					}
				}
			})
		}
	}
}

func TestEngine_KephLevel_OwnerFilterCountsKephLevel(t *testing.T) {
	r := newRegistry()
	r.add(r.wardA1, r.hospital, r.moh, &r.level4)
	r.add(r.wardA1, r.hospital, r.privateCo, &r.level4)
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{ReportType: "facility_keph_level_report", OwnerCategory: &r.public})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if findRow(res.Results, Row{"county": "Alpha", "keph_level": "Level 4", "number_of_facilities": 1}) == nil {
		t.Errorf("expected the public Level 4 facility to be counted, got %v", res.Results)
	}
}

func TestEngine_ConstituencyReport(t *testing.T) {
	r := newRegistry()
	r.populate()
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{ReportType: "facility_constituency_report"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 3 {
		t.Fatalf("expected one row per constituency, got %d", len(res.Results))
	}
	want := []Row{
		{"county": "Alpha", "constituency": "Alpha One", "number_of_facilities": 3},
		{"county": "Alpha", "constituency": "Alpha Two", "number_of_facilities": 0},
		{"county": "Bravo", "constituency": "Bravo One", "number_of_facilities": 2},
	}
	for i, w := range want {
		for k, v := range w {
			if res.Results[i][k] != v {
				t.Errorf("row %d %s: expected %v, got %v", i, k, v, res.Results[i][k])
			}
		}
	}

	res, err = e.Run(context.Background(), Request{ReportType: "facility_constituency_report", OwnerCategory: &r.private})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("expected 2 private facilities, got %v", res.Total)
	}
}

func TestEngine_BedsAndCotsByWard(t *testing.T) {
	r := newRegistry()
	for _, n := range []int{10, 20, 30} {
		f := r.add(r.wardA1, r.hospital, r.moh, nil)
		f.cots, f.beds = intp(n), intp(5)
	}
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{ReportType: "beds_and_cots_by_ward"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("expected one ward row, got %d", len(res.Results))
	}
	row := res.Results[0]
	if row["cots"] != 60 || row["beds"] != 15 || row["ward_name"] != "Ward A1" || row["ward"] != r.wardA1 {
		t.Errorf("unexpected row %v", row)
	}
	if res.Total != (Totals{TotalCots: 60, TotalBeds: 15}) {
		t.Errorf("unexpected totals %v", res.Total)
	}
}

func TestEngine_BedsAndCots_GroupSumsEqualTotal(t *testing.T) {
	r := newRegistry()
	r.populate()
	for i, f := range r.store.facilities {
		f.beds = intp(i * 3)
		if i%2 == 0 {
			f.cots = intp(i + 1)
		}
	}
	var wantBeds, wantCots int
	for _, f := range r.store.live(Query{}) {
		if f.beds != nil {
			wantBeds += *f.beds
		}
		if f.cots != nil {
			wantCots += *f.cots
		}
	}
	e := newTestEngine(t, r.store)

	for _, report := range []string{"beds_and_cots_by_county", "beds_and_cots_by_constituency", "beds_and_cots_by_ward"} {
		t.Run(report, func(t *testing.T) {
			res, err := e.Run(context.Background(), Request{ReportType: report})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			var beds, cots int
			for _, row := range res.Results {
				beds += row["beds"].(int)
				cots += row["cots"].(int)
			}
			if beds != wantBeds || cots != wantCots {
				t.Errorf("group sums beds=%d cots=%d, want %d/%d", beds, cots, wantBeds, wantCots)
			}
			if res.Total != (Totals{TotalCots: wantCots, TotalBeds: wantBeds}) {
				t.Errorf("unexpected totals %v", res.Total)
			}
		})
	}
}

func TestEngine_BedsAndCots_Narrowed(t *testing.T) {
	r := newRegistry()
	r.populate()
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{ReportType: "beds_and_cots_by_constituency", County: &r.bravo})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0]["constituency_name"] != "Bravo One" {
		t.Errorf("expected only Bravo One, got %v", res.Results)
	}

	res, err = e.Run(context.Background(), Request{ReportType: "beds_and_cots_by_ward", Constituency: &r.alpha2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 0 {
		t.Errorf("expected no wards with facilities, got %v", res.Results)
	}
	if res.Total != (Totals{}) {
		t.Errorf("expected zero totals, got %v", res.Total)
	}
}

func TestEngine_BedsAndCots_IncompleteGroupingPanics(t *testing.T) {
	e := newTestEngine(t, newMemStore())
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a one-field grouping")
		}
	}()
	e.bedsAndCots(context.Background(), Query{}, DimWard, grouping{name: "ward_name"})
}

func TestEngine_UnknownReport(t *testing.T) {
	e := newTestEngine(t, newMemStore())
	_, err := e.Run(context.Background(), Request{ReportType: "no_such_report"})
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
	if err.Error() != "report not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestEngine_ConfiguredDefault(t *testing.T) {
	r := newRegistry()
	r.populate()
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []Row{
		{"county": "Alpha", "number_of_facilities": 3},
		{"county": "Bravo", "number_of_facilities": 2},
	}
	if len(res.Results) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), res.Results)
	}
	for i, w := range want {
		for k, v := range w {
			if res.Results[i][k] != v {
				t.Errorf("row %d %s: expected %v, got %v", i, k, v, res.Results[i][k])
			}
		}
	}
	if res.Total != 5 {
		t.Errorf("expected total 5, got %v", res.Total)
	}
}

func TestEngine_ConfiguredExtraFilter(t *testing.T) {
	r := newRegistry()
	r.populate()
	e := newTestEngine(t, r.store)

	res, err := e.Run(context.Background(), Request{
		ReportType: "facility_count_by_constituency",
		Filters:    "county=" + r.alpha.String(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected Alpha's two constituencies, got %v", res.Results)
	}
	if findRow(res.Results, Row{"constituency": "Alpha One", "number_of_facilities": 3}) == nil {
		t.Errorf("missing Alpha One row in %v", res.Results)
	}
	if res.Total != 3 {
		t.Errorf("expected total over Alpha only, got %v", res.Total)
	}

	res, err = e.Run(context.Background(), Request{
		ReportType: "facility_count_by_owner",
		Filters:    "owner_type=" + r.private.String(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0]["owner"] != "Private Co" || res.Results[0]["number_of_facilities"] != 2 {
		t.Errorf("unexpected owner rows %v", res.Results)
	}
}

func TestEngine_ConfiguredBadFilter(t *testing.T) {
	r := newRegistry()
	e := newTestEngine(t, r.store)

	for _, raw := range []string{
		"county",
		"ward=" + uuid.NewString(),
		"county=not-a-uuid",
		"=" + uuid.NewString(),
	} {
		_, err := e.Run(context.Background(), Request{ReportType: "facility_count_by_constituency", Filters: raw})
		if !errors.Is(err, ErrBadFilter) {
			t.Errorf("filters=%q: expected ErrBadFilter, got %v", raw, err)
		}
	}
	// Reports without extra filters reject every filter.
	_, err := e.Run(context.Background(), Request{Filters: "county=" + r.alpha.String()})
	if !errors.Is(err, ErrBadFilter) {
		t.Errorf("expected ErrBadFilter, got %v", err)
	}
}

func TestEngine_EmptyRegistry(t *testing.T) {
	e := newTestEngine(t, newMemStore())
	for _, report := range []string{"", "facility_count_by_facility_type_detailed", "beds_and_cots_by_county"} {
		res, err := e.Run(context.Background(), Request{ReportType: report})
		if err != nil {
			t.Fatalf("%s: %v", report, err)
		}
		if res.Results == nil || len(res.Results) != 0 {
			t.Errorf("%s: expected empty non-nil results, got %#v", report, res.Results)
		}
	}
}
