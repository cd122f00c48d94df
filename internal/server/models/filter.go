package models

import (
	"strings"

	"github.com/dmitrijs2005/bookshelf/internal/common"
)

const (
	FilterAll       = "all"
	filterCreatedBy = "created_by:"
)

// Filter selects books for listing. An empty CreatorID selects every book.
type Filter struct {
	CreatorID string
	// Limit caps the result size; 0 means unlimited.
	Limit int
}

// ParseFilter accepts "all" (or "") and "created_by:<creator_id>".
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == FilterAll:
		return Filter{}, nil
	case strings.HasPrefix(s, filterCreatedBy):
		id := strings.TrimSpace(strings.TrimPrefix(s, filterCreatedBy))
		if id == "" {
			return Filter{}, &common.ValidationError{Field: "filter", Reason: "invalid"}
		}
		return Filter{CreatorID: id}, nil
	default:
		return Filter{}, &common.ValidationError{Field: "filter", Reason: "invalid"}
	}
}

func (f Filter) String() string {
	if f.CreatorID == "" {
		return FilterAll
	}
	return filterCreatedBy + f.CreatorID
}

// Match reports whether b belongs to the filtered set.
func (f Filter) Match(b *Book) bool {
	return f.CreatorID == "" || b.CreatorID == f.CreatorID
}
