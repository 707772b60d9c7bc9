// Package geo resolves free-text sighting locations to known Islamabad-area
// landmarks for map plotting and heatmap aggregation.
package geo

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// Place is one named landmark.
type Place struct {
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lng  float64 `yaml:"lng" json:"lng"`
}

// Coordinate returns the place's position.
func (p Place) Coordinate() model.Coordinate {
	return model.Coordinate{Lat: p.Lat, Lng: p.Lng}
}

// Gazetteer is an ordered landmark table. Order is significant: Resolve
// returns the first entry whose name occurs in the location string.
type Gazetteer struct {
	places []Place
	lower  []string
}

// defaultPlaces is the canonical table. The Margalla trail entries come after
// "Margalla Hills" and therefore never win over it.
var defaultPlaces = []Place{
	{"Margalla Hills", 33.7294, 73.0551},
	{"Rawal Lake", 33.6844, 73.0780},
	{"Shakarparian", 33.7060, 73.0479},
	{"Pir Sohawa", 33.7430, 73.0571},
	{"Daman-e-Koh", 33.7351, 73.0504},
	{"Islamabad University Forest Area", 33.7000, 73.0750},
	{"Faisal Mosque", 33.7296, 73.0371},
	{"Rawal Dam", 33.6844, 73.0780},
	{"Saidpur Village", 33.7247, 73.0491},
	{"Shah Allah Ditta Caves", 33.7340, 72.9399},
	{"Zoo vicinity", 33.7166, 73.0654},
	{"Trail 1, Margalla Hills", 33.7351, 73.0455},
	{"Trail 2, Margalla Hills", 33.7373, 73.0543},
	{"Trail 3, Margalla Hills", 33.7392, 73.0601},
	{"Trail 4, Margalla Hills", 33.7410, 73.0655},
	{"Trail 5, Margalla Hills", 33.7424, 73.0699},
}

// MapCenter is the default map view centre.
var MapCenter = model.Coordinate{Lat: 33.7, Lng: 73.05}

// Default returns the built-in Islamabad gazetteer.
func Default() *Gazetteer {
	g, _ := New(defaultPlaces)
	return g
}

// New builds a gazetteer from places, keeping their order.
func New(places []Place) (*Gazetteer, error) {
	if len(places) == 0 {
		return nil, fmt.Errorf("gazetteer: no places")
	}
	g := &Gazetteer{
		places: make([]Place, len(places)),
		lower:  make([]string, len(places)),
	}
	copy(g.places, places)
	for i, p := range places {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("gazetteer: entry %d has an empty name", i)
		}
		g.lower[i] = strings.ToLower(name)
	}
	return g, nil
}

type gazetteerFile struct {
	Places []Place `yaml:"places"`
}

// Load reads a YAML gazetteer:
//
//	places:
//	  - {name: Margalla Hills, lat: 33.7294, lng: 73.0551}
func Load(r io.Reader) (*Gazetteer, error) {
	var f gazetteerFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("gazetteer: decode: %w", err)
	}
	return New(f.Places)
}

// LoadFile is Load on a file path; an empty path yields Default.
func LoadFile(path string) (*Gazetteer, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Places returns a copy of the table in order.
func (g *Gazetteer) Places() []Place {
	out := make([]Place, len(g.places))
	copy(out, g.places)
	return out
}

// Resolve returns the first place whose name is a case-insensitive substring
// of location. ok is false when nothing matches.
func (g *Gazetteer) Resolve(location string) (Place, bool) {
	if location == "" {
		return Place{}, false
	}
	loc := strings.ToLower(location)
	for i, name := range g.lower {
		if strings.Contains(loc, name) {
			return g.places[i], true
		}
	}
	return Place{}, false
}

// Suggest lists place names containing input, for the location autocomplete.
func (g *Gazetteer) Suggest(input string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return nil
	}
	var out []string
	for i, name := range g.lower {
		if strings.Contains(name, input) {
			out = append(out, g.places[i].Name)
		}
	}
	return out
}

// jitterSpan is the full width of the random offset, in degrees.
const jitterSpan = 0.005

// Jitter offsets c by up to ±jitterSpan/2 on each axis so stacked markers
// stay clickable. The result is for pixel placement only.
func Jitter(c model.Coordinate, rng *rand.Rand) model.Coordinate {
	r := rand.Float64
	if rng != nil {
		r = rng.Float64
	}
	return model.Coordinate{
		Lat: c.Lat + (r()-0.5)*jitterSpan,
		Lng: c.Lng + (r()-0.5)*jitterSpan,
	}
}
