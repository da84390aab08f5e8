package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 30
	MaxPageSize     = 500
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context. Both the
// page/page_size pair and raw limit/offset are accepted; page wins when set.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil && page > 0 {
		offset = (page - 1) * size
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: size, Offset: offset}
}

// Page returns the 1-based page number for the current offset.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// Response is the list envelope returned by every collection endpoint.
type Response struct {
	Count       int         `json:"count"`
	Next        *string     `json:"next"`
	Previous    *string     `json:"previous"`
	PageSize    int         `json:"page_size"`
	CurrentPage int         `json:"current_page"`
	TotalPages  int         `json:"total_pages"`
	Results     interface{} `json:"results"`
}

// NewResponse builds a Response. reqURL is the URL of the current request and
// is used to render next/previous links; it may be nil.
func NewResponse(results interface{}, total int, p Params, reqURL *url.URL) *Response {
	r := &Response{
		Count:       total,
		PageSize:    p.Limit,
		CurrentPage: p.Page(),
		Results:     results,
	}
	if p.Limit > 0 {
		r.TotalPages = (total + p.Limit - 1) / p.Limit
	}
	if reqURL == nil {
		return r
	}
	if p.HasNext(total) {
		link := pageLink(reqURL, p.Page()+1, p.Limit)
		r.Next = &link
	}
	if p.HasPrevious() {
		prev := p.Page() - 1
		if prev < 1 {
			prev = 1
		}
		link := pageLink(reqURL, prev, p.Limit)
		r.Previous = &link
	}
	return r
}

func pageLink(u *url.URL, page, size int) string {
	next := *u
	q := next.Query()
	q.Del("offset")
	q.Del("limit")
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	next.RawQuery = q.Encode()
	return next.String()
}
