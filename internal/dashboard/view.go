package dashboard

import (
	"fmt"
	"strings"

	"github.com/nwchenyw/tw-live-frontend/internal/errors"
)

// Filter selects rows by status.
type Filter string

const (
	FilterAll     Filter = "ALL"
	FilterLive    Filter = "LIVE"
	FilterOffline Filter = "OFFLINE"
	FilterError   Filter = "ERROR"
)

// DefaultPageSize applies whenever a page size is not positive.
const DefaultPageSize = 10

var filterOrder = []Filter{FilterAll, FilterLive, FilterOffline, FilterError}

// ParseFilter accepts any case; empty means ALL.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range filterOrder {
		if string(f) == s {
			return f, nil
		}
	}
	return "", errors.NewValidationError(fmt.Sprintf("unknown filter %q", s))
}

// Matches reports whether a row with status st passes the filter.
func (f Filter) Matches(st Status) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return string(f) == string(st)
}

// Next cycles ALL, LIVE, OFFLINE, ERROR.
func (f Filter) Next() Filter {
	for i, cur := range filterOrder {
		if cur == f {
			return filterOrder[(i+1)%len(filterOrder)]
		}
	}
	return FilterAll
}

// ViewConfig is the user-controlled refresh and paging state.
type ViewConfig struct {
	IntervalSeconds int // 0 disables auto-refresh
	Filter          Filter
	PageSize        int
	PageIndex       int // 1-based
}

// Page is the visible slice of the filtered rows.
type Page struct {
	Rows          []Row
	TotalFiltered int
	TotalPages    int // 0 when nothing matches
	PageIndex     int
	PageSize      int
}

// Paginate filters rows and cuts out the requested page. The page index is
// clamped to [1, max(1, TotalPages)].
func Paginate(rows []Row, cfg ViewConfig) Page {
	size := cfg.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	filtered := make([]Row, 0, len(rows))
	for _, r := range rows {
		if cfg.Filter.Matches(r.Status) {
			filtered = append(filtered, r)
		}
	}

	total := len(filtered)
	pages := (total + size - 1) / size
	index := clampPage(cfg.PageIndex, pages)

	start := (index - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	if start > total {
		start = total
	}

	return Page{
		Rows:          filtered[start:end],
		TotalFiltered: total,
		TotalPages:    pages,
		PageIndex:     index,
		PageSize:      size,
	}
}

func clampPage(index, pages int) int {
	if index > pages {
		index = pages
	}
	if index < 1 {
		index = 1
	}
	return index
}
