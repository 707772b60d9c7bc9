package pipeline

import (
	"math/rand/v2"
	"time"

	"github.com/bioscout-islamabad/bioscout/internal/geo"
	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// Enrich derives the display fields of one record.
func (p *Pipeline) Enrich(o model.Observation, now time.Time) model.EnrichedObservation {
	e := model.EnrichedObservation{
		Observation:  o,
		Category:     p.categorizer.CategorizeObservation(o),
		TimeCategory: Bucket(o, now),
	}
	if place, ok := p.gazetteer.Resolve(o.Location); ok {
		c := place.Coordinate()
		e.LatLng = &c
		e.Place = place.Name
	}
	return e
}

// EnrichAll enriches every record, keeping order.
func (p *Pipeline) EnrichAll(observations []model.Observation, now time.Time) []model.EnrichedObservation {
	out := make([]model.EnrichedObservation, len(observations))
	for i, o := range observations {
		out[i] = p.Enrich(o, now)
	}
	return out
}

// MapFilter is the map view's filter state.
type MapFilter struct {
	Category   model.Category
	TimeWindow model.TimeWindow
}

// Plottable returns the enriched records that resolve to a place and pass the
// category and time filters. Unresolved records are left to the list views.
func (p *Pipeline) Plottable(observations []model.Observation, f MapFilter, now time.Time) []model.EnrichedObservation {
	q := model.Query{Category: f.Category, TimeWindow: f.TimeWindow}.Normalize()

	var out []model.EnrichedObservation
	for _, o := range observations {
		e := p.Enrich(o, now)
		if e.LatLng == nil {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		if q.TimeWindow != "" && string(e.TimeCategory) != string(q.TimeWindow) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Markers wraps plottable records with a jittered placement position. rng
// may be nil to use the global source.
func (p *Pipeline) Markers(observations []model.Observation, f MapFilter, now time.Time, rng *rand.Rand) []model.Marker {
	plottable := p.Plottable(observations, f, now)
	out := make([]model.Marker, len(plottable))
	for i, e := range plottable {
		out[i] = model.Marker{EnrichedObservation: e, Position: geo.Jitter(*e.LatLng, rng)}
	}
	return out
}

// Heatmap aggregates the plottable records per location.
func (p *Pipeline) Heatmap(observations []model.Observation, f MapFilter, now time.Time) []model.HeatCell {
	return p.gazetteer.Heatmap(p.Plottable(observations, f, now))
}
