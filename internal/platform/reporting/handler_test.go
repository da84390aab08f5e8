package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mfl/mfl/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *registry, *echo.Echo) {
	r := newRegistry()
	r.populate()
	return NewHandler(newTestEngine(t, r.store)), r, echo.New()
}

func get(e *echo.Echo, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Report(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := get(e, "/api/v1/reporting/?report_type=beds_and_cots_by_county")

	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Results []map[string]interface{} `json:"results"`
		Total   map[string]int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 2 {
		t.Errorf("expected two county rows, got %d", len(body.Results))
	}
	if _, ok := body.Total["total_beds"]; !ok {
		t.Errorf("expected total_beds in totals, got %v", body.Total)
	}
}

func TestHandler_Report_Errors(t *testing.T) {
	h, _, e := newTestHandler(t)

	tests := []struct {
		target string
		code   int
	}{
		{"/api/v1/reporting/?report_type=nope", http.StatusNotFound},
		{"/api/v1/reporting/?report_type=facility_count_by_constituency&filters=county", http.StatusBadRequest},
		{"/api/v1/reporting/?report_type=facility_count_by_constituency&filters=ward=1", http.StatusBadRequest},
		{"/api/v1/reporting/?report_type=beds_and_cots_by_constituency&county=abc", http.StatusBadRequest},
		{"/api/v1/reporting/?owner_category=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		c, _ := get(e, tt.target)
		err := h.Report(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != tt.code {
			t.Errorf("%s: expected %d, got %v", tt.target, tt.code, err)
		}
	}

	c, _ := get(e, "/api/v1/reporting/?report_type=nope")
	if he, _ := h.Report(c).(*echo.HTTPError); he == nil || he.Message != "Report not found." {
		t.Errorf("expected the not found message, got %v", he)
	}
}

func TestHandler_Upgrades(t *testing.T) {
	h, r, e := newTestHandler(t)
	c, rec := get(e, "/api/v1/reporting/upgrades/?upgrade=yes&last_week=1")

	if err := h.Upgrades(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["total_number_of_changes"] != float64(0) {
		t.Errorf("expected zero changes, got %v", body["total_number_of_changes"])
	}
	if rows, _ := body["results"].([]interface{}); len(rows) != 2 {
		t.Errorf("expected a row per county, got %v", body["results"])
	}

	c, rec = get(e, "/api/v1/reporting/upgrades/?county="+r.alpha.String())
	if err := h.Upgrades(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body = nil
	json.Unmarshal(rec.Body.Bytes(), &body)
	if _, ok := body["total_facilities_changed"]; !ok {
		t.Errorf("expected detail totals, got %v", body)
	}

	c, _ = get(e, "/api/v1/reporting/upgrades/?county=abc")
	if he, ok := h.Upgrades(c).(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad county")
	}
}

func TestHandler_RegisterRoutes_RequiresPermission(t *testing.T) {
	h, _, e := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reporting/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a caller, got %d", rec.Code)
	}

	for perms, want := range map[string]int{
		"facilities.add_facility": http.StatusForbidden,
		"reporting.view_reports":  http.StatusOK,
	} {
		ctx := auth.WithPrincipal(context.Background(), &auth.Principal{UserID: "u", Permissions: []string{perms}})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reporting/upgrades/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", perms, want, rec.Code)
		}
	}
}
