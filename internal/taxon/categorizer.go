// Package taxon buckets sightings into coarse groups from keyword hits on
// their names. It is a display heuristic, not a taxonomic classifier: some
// names will land in the wrong bucket and that is accepted.
package taxon

import (
	"strings"

	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// Rule assigns Category when any keyword occurs in the name.
type Rule struct {
	Category model.Category
	Keywords []string
}

// Categorizer evaluates rules in order; the first hit wins.
type Categorizer struct {
	rules []Rule
}

// DefaultRules are in priority order plant, bird, mammal, reptile, insect.
var DefaultRules = []Rule{
	{model.CategoryPlant, []string{"pinus", "quercus", "plant", "tree", "flower"}},
	{model.CategoryBird, []string{"bird", "aves", "eagle", "sparrow"}},
	{model.CategoryMammal, []string{"mammal", "cat", "fox", "monkey"}},
	{model.CategoryReptile, []string{"reptile", "snake", "lizard"}},
	{model.CategoryInsect, []string{"insect", "butterfly", "beetle"}},
}

// New returns a categorizer over rules. Keywords are matched case-insensitively.
func New(rules []Rule) *Categorizer {
	c := &Categorizer{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		kw := make([]string, len(r.Keywords))
		for j, k := range r.Keywords {
			kw[j] = strings.ToLower(k)
		}
		c.rules[i] = Rule{Category: r.Category, Keywords: kw}
	}
	return c
}

// Default returns the built-in categorizer.
func Default() *Categorizer {
	return New(DefaultRules)
}

// Categorize returns the category of a sighting from its scientific and
// common names, or "other" when no keyword matches.
func (c *Categorizer) Categorize(speciesName, commonName string) model.Category {
	text := strings.ToLower(speciesName + " " + commonName)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Category
			}
		}
	}
	return model.CategoryOther
}

// CategorizeObservation is Categorize on an observation's names.
func (c *Categorizer) CategorizeObservation(o model.Observation) model.Category {
	return c.Categorize(o.SpeciesName, o.CommonName)
}
