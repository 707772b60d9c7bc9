package model

import (
	"strings"
	"time"
)

// DefaultObserver is used when a sighting was submitted without a name.
const DefaultObserver = "Anonymous"

// DateLayout is the calendar-date format the upstream API uses for date_observed.
const DateLayout = "2006-01-02"

// Observation is one sighting as returned by GET /api/observations.
type Observation struct {
	ObservationID string `json:"observation_id"`
	SpeciesName   string `json:"species_name"`
	CommonName    string `json:"common_name"`
	DateObserved  string `json:"date_observed"`
	Location      string `json:"location"`
	Notes         string `json:"notes,omitempty"`
	Observer      string `json:"observer,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
}

// ObserverName returns the observer, falling back to "Anonymous".
func (o Observation) ObserverName() string {
	if strings.TrimSpace(o.Observer) == "" {
		return DefaultObserver
	}
	return o.Observer
}

// ParsedDate parses DateObserved as a calendar date (or an RFC 3339 timestamp).
// The second return value is false when the field is not a valid date.
func (o Observation) ParsedDate() (time.Time, bool) {
	s := strings.TrimSpace(o.DateObserved)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Category is the coarse taxonomic bucket used for map icons and filters.
type Category string

const (
	CategoryPlant   Category = "plant"
	CategoryBird    Category = "bird"
	CategoryMammal  Category = "mammal"
	CategoryReptile Category = "reptile"
	CategoryInsect  Category = "insect"
	CategoryOther   Category = "other"
)

// Categories lists every category in priority order, "other" last.
var Categories = []Category{
	CategoryPlant, CategoryBird, CategoryMammal, CategoryReptile, CategoryInsect, CategoryOther,
}

// ParseCategory accepts a category name; "" and "all" yield ("", true) meaning no filter.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == FilterAll {
		return "", true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// TimeCategory is the recency bucket of an observation relative to "now".
type TimeCategory string

const (
	TimeWeek    TimeCategory = "week"
	TimeMonth   TimeCategory = "month"
	TimeQuarter TimeCategory = "quarter"
	TimeOlder   TimeCategory = "older"
)

// Coordinate is a WGS84 lat/lng pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EnrichedObservation is the display-only view model derived from an Observation.
// LatLng is nil when the location could not be resolved.
type EnrichedObservation struct {
	Observation
	LatLng       *Coordinate  `json:"latLng,omitempty"`
	Place        string       `json:"place,omitempty"`
	Category     Category     `json:"category"`
	TimeCategory TimeCategory `json:"timeCategory"`
}

// Marker is a map pin. Position may carry a jitter offset and must only be
// used for placement; LatLng on the embedded record stays exact.
type Marker struct {
	EnrichedObservation
	Position Coordinate `json:"position"`
}

// HeatCell aggregates resolved observations that share a location string.
type HeatCell struct {
	Location   string     `json:"location"`
	Coordinate Coordinate `json:"coords"`
	Count      int        `json:"count"`
	Radius     int        `json:"radius"`
	Intensity  float64    `json:"intensity"`
}
