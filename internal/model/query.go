package model

import "strings"

// FilterAll disables a location/observer/category/time filter.
const FilterAll = "all"

const (
	// GridPageSize is the page size of the card grid view.
	GridPageSize = 12
	// ListLimit is how many rows the simple list shows before "show all".
	ListLimit = 50
)

// SortKey selects the comparator of the list view.
type SortKey string

const (
	SortDate     SortKey = "date"
	SortSpecies  SortKey = "species"
	SortCommon   SortKey = "common"
	SortLocation SortKey = "location"
	SortObserver SortKey = "observer"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortDate, SortSpecies, SortCommon, SortLocation, SortObserver:
		return true
	}
	return false
}

// SortDirection is asc or desc.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// TimeWindow is the recency filter of the map view.
type TimeWindow string

const (
	WindowAll     TimeWindow = "all"
	WindowWeek    TimeWindow = "week"
	WindowMonth   TimeWindow = "month"
	WindowQuarter TimeWindow = "quarter"
)

// Valid reports whether w is a known window ("" counts as all).
func (w TimeWindow) Valid() bool {
	switch w {
	case "", WindowAll, WindowWeek, WindowMonth, WindowQuarter:
		return true
	}
	return false
}

// Query is the filter/sort/pagination intent of a list or map view.
type Query struct {
	Search        string        `form:"search" json:"search"`
	Location      string        `form:"location" json:"location"`
	Observer      string        `form:"observer" json:"observer"`
	Category      Category      `form:"category" json:"category"`
	TimeWindow    TimeWindow    `form:"time" json:"time"`
	SortKey       SortKey       `form:"sort" json:"sort"`
	SortDirection SortDirection `form:"dir" json:"dir"`
	Page          int           `form:"page" json:"page"`
	PageSize      int           `form:"page_size" json:"page_size"`
}

// DefaultQuery is the initial state of the grid view: newest first, page 1.
func DefaultQuery() Query {
	return Query{
		SortKey:       SortDate,
		SortDirection: Desc,
		Page:          1,
		PageSize:      GridPageSize,
	}
}

// Normalize fills defaults and folds "all" into the empty (inactive) value.
func (q Query) Normalize() Query {
	if !q.SortKey.Valid() {
		q.SortKey = SortDate
	}
	if q.SortDirection != Asc {
		q.SortDirection = Desc
	}
	if q.PageSize <= 0 {
		q.PageSize = GridPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if isAll(q.Location) {
		q.Location = ""
	}
	if isAll(q.Observer) {
		q.Observer = ""
	}
	if isAll(string(q.Category)) {
		q.Category = ""
	}
	if isAll(string(q.TimeWindow)) {
		q.TimeWindow = ""
	}
	return q
}

func isAll(s string) bool {
	return s == "" || strings.EqualFold(s, FilterAll)
}

// Page is one page of a filtered, sorted listing.
type Page struct {
	Items      []Observation `json:"items"`
	TotalCount int           `json:"totalCount"`
	TotalPages int           `json:"totalPages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
}

// Listing is the simple list view, capped unless "show all" is on.
type Listing struct {
	Items     []Observation `json:"items"`
	Shown     int           `json:"shown"`
	Total     int           `json:"total"`
	Truncated bool          `json:"truncated"`
}

// FilterOptions feeds the location/observer dropdowns.
type FilterOptions struct {
	Locations  []string   `json:"locations"`
	Observers  []string   `json:"observers"`
	Categories []Category `json:"categories"`
}
