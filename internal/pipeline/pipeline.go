// Package pipeline turns the raw observation list plus a Query into the slice a
// list or map view displays. Everything here is a pure function of its
// inputs; callers re-run it whenever the list or the query changes.
package pipeline

import (
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bioscout-islamabad/bioscout/internal/geo"
	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/taxon"
)

// Pipeline binds the leaf resolvers the filters depend on.
type Pipeline struct {
	gazetteer   *geo.Gazetteer
	categorizer *taxon.Categorizer

	// collate.Collator is not safe for concurrent use
	mu       sync.Mutex
	collator *collate.Collator
}

// New returns a pipeline. Nil arguments fall back to the built-in tables.
func New(g *geo.Gazetteer, c *taxon.Categorizer) *Pipeline {
	if g == nil {
		g = geo.Default()
	}
	if c == nil {
		c = taxon.Default()
	}
	return &Pipeline{
		gazetteer:   g,
		categorizer: c,
		collator:    collate.New(language.English),
	}
}

// Gazetteer exposes the location table the pipeline resolves against.
func (p *Pipeline) Gazetteer() *geo.Gazetteer { return p.gazetteer }

// Categorizer exposes the species categorizer.
func (p *Pipeline) Categorizer() *taxon.Categorizer { return p.categorizer }

// Apply filters, sorts and paginates observations. The input slice is not modified.
func (p *Pipeline) Apply(observations []model.Observation, q model.Query, now time.Time) model.Page {
	q = q.Normalize()

	filtered := p.Filter(observations, q, now)
	p.Sort(filtered, q.SortKey, q.SortDirection)
	return Paginate(filtered, q.Page, q.PageSize)
}

// Filter keeps the records that satisfy every active predicate, in input order.
func (p *Pipeline) Filter(observations []model.Observation, q model.Query, now time.Time) []model.Observation {
	q = q.Normalize()
	search := strings.ToLower(q.Search)

	out := make([]model.Observation, 0, len(observations))
	for _, o := range observations {
		if !matchesSearch(o, search) {
			continue
		}
		if q.Location != "" && o.Location != q.Location {
			continue
		}
		if q.Observer != "" && o.Observer != q.Observer {
			continue
		}
		if q.Category != "" && p.categorizer.CategorizeObservation(o) != q.Category {
			continue
		}
		if q.TimeWindow != "" && !InWindow(o, q.TimeWindow, now) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// matchesSearch is a literal, case-insensitive substring test; needle is
// already lower-cased and an empty needle matches everything.
func matchesSearch(o model.Observation, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.SpeciesName), needle) ||
		strings.Contains(strings.ToLower(o.CommonName), needle) ||
		strings.Contains(strings.ToLower(o.Notes), needle)
}

// Sort orders observations in place. Ties keep their input order.
func (p *Pipeline) Sort(observations []model.Observation, key model.SortKey, dir model.SortDirection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmp := p.comparator(key)
	sort.SliceStable(observations, func(i, j int) bool {
		c := cmp(observations[i], observations[j])
		if dir == model.Asc {
			return c < 0
		}
		return c > 0
	})
}

func (p *Pipeline) comparator(key model.SortKey) func(a, b model.Observation) int {
	str := func(field func(model.Observation) string) func(a, b model.Observation) int {
		return func(a, b model.Observation) int {
			return p.collator.CompareString(field(a), field(b))
		}
	}
	switch key {
	case model.SortSpecies:
		return str(func(o model.Observation) string { return o.SpeciesName })
	case model.SortCommon:
		return str(func(o model.Observation) string { return o.CommonName })
	case model.SortLocation:
		return str(func(o model.Observation) string { return o.Location })
	case model.SortObserver:
		return str(func(o model.Observation) string { return o.Observer })
	default:
		return compareDates
	}
}

// compareDates orders chronologically; unparseable dates sort as the zero time.
func compareDates(a, b model.Observation) int {
	ta, _ := a.ParsedDate()
	tb, _ := b.ParsedDate()
	return ta.Compare(tb)
}

// Paginate returns page of size pageSize. TotalPages is at least 1 and page
// is clamped into [1, TotalPages].
func Paginate(items []model.Observation, page, pageSize int) model.Page {
	if pageSize <= 0 {
		pageSize = model.GridPageSize
	}
	total := len(items)
	totalPages := max(1, (total+pageSize-1)/pageSize)
	page = min(max(page, 1), totalPages)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	out := make([]model.Observation, end-start)
	copy(out, items[start:end])

	return model.Page{
		Items:      out,
		TotalCount: total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
	}
}

// Limit caps the simple list at limit rows unless showAll is set.
func Limit(observations []model.Observation, limit int, showAll bool) model.Listing {
	total := len(observations)
	n := total
	if !showAll && limit > 0 && limit < total {
		n = limit
	}
	items := make([]model.Observation, n)
	copy(items, observations[:n])
	return model.Listing{
		Items:     items,
		Shown:     n,
		Total:     total,
		Truncated: n < total,
	}
}

// DistinctLocations returns the sorted, non-empty set of locations.
func DistinctLocations(observations []model.Observation) []string {
	return distinct(observations, func(o model.Observation) string { return o.Location })
}

// DistinctObservers returns the sorted, non-empty set of observers.
func DistinctObservers(observations []model.Observation) []string {
	return distinct(observations, func(o model.Observation) string { return o.Observer })
}

func distinct(observations []model.Observation, field func(model.Observation) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, o := range observations {
		v := field(o)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
