package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))

	if p.Limit != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_PageParams(t *testing.T) {
	p := FromContext(newContext("/?page=3&page_size=25"))

	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset)
	}
	if p.Page() != 3 {
		t.Errorf("expected page 3, got %d", p.Page())
	}
}

func TestFromContext_LimitOffset(t *testing.T) {
	p := FromContext(newContext("/?limit=10&offset=5"))

	if p.Limit != 10 || p.Offset != 5 {
		t.Errorf("expected 10/5, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_MaxPageSize(t *testing.T) {
	p := FromContext(newContext("/?page_size=5000"))

	if p.Limit != MaxPageSize {
		t.Errorf("expected page size capped at %d, got %d", MaxPageSize, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(newContext("/?offset=-5"))

	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestNewResponse_Links(t *testing.T) {
	u, _ := url.Parse("http://mfl.test/api/v1/facilities/?name=clinic&page=2&page_size=10")
	r := NewResponse([]string{"a"}, 35, Params{Limit: 10, Offset: 10}, u)

	if r.Count != 35 {
		t.Errorf("expected count 35, got %d", r.Count)
	}
	if r.TotalPages != 4 {
		t.Errorf("expected 4 pages, got %d", r.TotalPages)
	}
	if r.CurrentPage != 2 {
		t.Errorf("expected current page 2, got %d", r.CurrentPage)
	}
	if r.Next == nil || !strings.Contains(*r.Next, "page=3") || !strings.Contains(*r.Next, "name=clinic") {
		t.Errorf("unexpected next link: %v", r.Next)
	}
	if r.Previous == nil || !strings.Contains(*r.Previous, "page=1") {
		t.Errorf("unexpected previous link: %v", r.Previous)
	}
}

func TestNewResponse_LastPage(t *testing.T) {
	u, _ := url.Parse("http://mfl.test/api/v1/facilities/")
	r := NewResponse([]string{}, 3, Params{Limit: 10, Offset: 0}, u)

	if r.Next != nil {
		t.Errorf("expected no next link, got %s", *r.Next)
	}
	if r.Previous != nil {
		t.Errorf("expected no previous link, got %s", *r.Previous)
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"more results", Params{Limit: 10, Offset: 0}, 25, true},
		{"exact end", Params{Limit: 10, Offset: 15}, 25, false},
		{"past end", Params{Limit: 10, Offset: 30}, 25, false},
		{"no results", Params{Limit: 10, Offset: 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
}
