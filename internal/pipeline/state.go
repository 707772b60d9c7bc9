package pipeline

import "github.com/bioscout-islamabad/bioscout/internal/model"

// QueryState holds a view's Query and enforces its transitions: changing
// anything but the page sends the view back to page 1.
type QueryState struct {
	q model.Query
}

// NewQueryState starts from the default grid query with the given page size.
func NewQueryState(pageSize int) *QueryState {
	q := model.DefaultQuery()
	if pageSize > 0 {
		q.PageSize = pageSize
	}
	return &QueryState{q: q}
}

// Query returns the current query.
func (s *QueryState) Query() model.Query { return s.q }

func (s *QueryState) SetSearch(term string) { s.q.Search = term; s.q.Page = 1 }

func (s *QueryState) SetLocation(loc string) { s.q.Location = loc; s.q.Page = 1 }

func (s *QueryState) SetObserver(name string) { s.q.Observer = name; s.q.Page = 1 }

func (s *QueryState) SetCategory(c model.Category) { s.q.Category = c; s.q.Page = 1 }

func (s *QueryState) SetTimeWindow(w model.TimeWindow) { s.q.TimeWindow = w; s.q.Page = 1 }

// SetSort sets key and direction explicitly.
func (s *QueryState) SetSort(key model.SortKey, dir model.SortDirection) {
	s.q.SortKey = key
	s.q.SortDirection = dir
	s.q.Page = 1
}

// ToggleSort flips the direction when key is already active, otherwise it
// switches to key, newest/highest first.
func (s *QueryState) ToggleSort(key model.SortKey) {
	if key == s.q.SortKey {
		if s.q.SortDirection == model.Asc {
			s.q.SortDirection = model.Desc
		} else {
			s.q.SortDirection = model.Asc
		}
	} else {
		s.q.SortKey = key
		s.q.SortDirection = model.Desc
	}
	s.q.Page = 1
}

// Clear resets every filter and the sort order, keeping the page size.
func (s *QueryState) Clear() {
	size := s.q.PageSize
	s.q = model.DefaultQuery()
	s.q.PageSize = size
}

// SetPage moves to page, clamped into [1, totalPages].
func (s *QueryState) SetPage(page, totalPages int) {
	s.q.Page = min(max(page, 1), max(totalPages, 1))
}
