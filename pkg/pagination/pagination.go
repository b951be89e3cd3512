// Package pagination pages in-memory listings such as the product grid.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPerPage fills four rows of the three-column product grid.
	DefaultPerPage = 12
	MaxPerPage     = 48
)

// Params selects a 1-based page of PerPage items.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads page and per_page from the query string. Missing or
// non-positive values take the defaults; per_page is capped at MaxPerPage.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	return Params{
		Page:    positiveOr(q.Get("page"), 1),
		PerPage: min(positiveOr(q.Get("per_page"), DefaultPerPage), MaxPerPage),
	}
}

func positiveOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Result is one page plus enough totals to render pager links.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Paginate copies the requested page out of items. Pages past the end come
// back with empty, non-nil Data.
func Paginate[T any](items []T, p Params) Result[T] {
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.Page < 1 {
		p.Page = 1
	}
	total := len(items)
	pages := (total + p.PerPage - 1) / p.PerPage

	lo := total
	if p.Page <= pages {
		lo = p.Offset()
	}
	hi := min(lo+p.PerPage, total)
	data := make([]T, hi-lo)
	copy(data, items[lo:hi])

	return Result[T]{
		Data:       data,
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
