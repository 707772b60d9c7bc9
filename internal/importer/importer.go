// Package importer prepares the raw sightings CSV for the upstream API: it
// cleans text fields, assigns observers round-robin and writes the
// observations file and a plain-text knowledge base for the Q&A model.
package importer

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
)

// DefaultObservers are assigned in turn to rows of the raw file.
var DefaultObservers = []string{
	"Manahil", "Shitba", "Ali", "Sara", "Ahmed", "Zainab", "Omar", "Fatima", "Farhan", "Aisha",
	"Bilal", "Hina", "Kashif", "Nida", "Usman", "Sana", "Tariq", "Nadia", "Zeeshan", "Rabia",
}

// Columns is the header of the generated observations file.
var Columns = []string{"observation_id", "species_name", "common_name", "date_observed", "location", "image_url", "notes", "observer"}

var requiredColumns = []string{"observation_id", "species_name", "common_name", "date_observed", "location"}

// CleanText trims the value, folds newlines into spaces and swaps double
// quotes for single quotes.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, `"`, "'")
}

// Read parses the raw CSV. Observers are taken from observers in turn; the
// raw file's own observer column, if any, is ignored. Missing optional
// columns read as empty.
func Read(r io.Reader, observers []string) ([]model.Observation, error) {
	if len(observers) == 0 {
		observers = DefaultObservers
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.Observation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	out := []model.Observation{}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		out = append(out, model.Observation{
			ObservationID: strings.TrimSpace(field("observation_id")),
			SpeciesName:   CleanText(field("species_name")),
			CommonName:    CleanText(field("common_name")),
			DateObserved:  CleanText(field("date_observed")),
			Location:      CleanText(field("location")),
			ImageURL:      CleanText(field("image_url")),
			Notes:         CleanText(field("notes")),
			Observer:      observers[len(out)%len(observers)],
		})
	}
	return out, nil
}

// Write emits observations under Columns.
func Write(w io.Writer, observations []model.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, o := range observations {
		row := []string{o.ObservationID, o.SpeciesName, o.CommonName, o.DateObserved, o.Location, o.ImageURL, o.Notes, o.Observer}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MaxSampleNotes caps the notes listed in the knowledge base.
const MaxSampleNotes = 10

const knowledgeIntro = `Biodiversity in Islamabad

Margalla Hills National Park
Established in 1980, the park covers the Margalla Hills at the foothills of the Himalayas together with Shakarparian and Rawal Lake. It holds over 600 plant species, about 250 bird species, 38 mammal species and 27 reptile species, including the Indian leopard, barking deer, grey goral and the endangered Himalayan pangolin.

Rawal Lake
An artificial reservoir supplying Rawalpindi and Islamabad, surrounded by gardens and walking paths. It is important for migratory and wintering birds, fish and reptiles.

Flora of Islamabad
Common trees include Chir Pine (Pinus roxburghii), Olive (Olea ferruginea), Phulai (Senegalia modesta), Celtis (Celtis australis) and Snatha (Dodonaea viscosa). Dhak (Butea frondosa), Punica (Punica granatum) and Kachnar (Bauhinia variegata) flower across the city.

Conservation
Work focuses on removing invasive Paper Mulberry, Lantana and Parthenium, involving local communities, and monitoring ecosystem health.
`

// WriteKnowledgeBase writes the Q&A context document: the fixed intro, the
// sorted species ("Common (Scientific)") and locations seen, and the most
// frequent notes.
func WriteKnowledgeBase(w io.Writer, observations []model.Observation) error {
	species := map[string]struct{}{}
	locations := map[string]struct{}{}
	notes := map[string]int{}
	var noteOrder []string

	for _, o := range observations {
		common, sci := strings.TrimSpace(o.CommonName), strings.TrimSpace(o.SpeciesName)
		if common != "" && sci != "" {
			species[fmt.Sprintf("%s (%s)", common, sci)] = struct{}{}
		}
		if loc := strings.TrimSpace(o.Location); loc != "" {
			locations[loc] = struct{}{}
		}
		if n := strings.TrimSpace(o.Notes); n != "" {
			if notes[n] == 0 {
				noteOrder = append(noteOrder, n)
			}
			notes[n]++
		}
	}

	// most frequent first, first seen wins ties
	slices.SortStableFunc(noteOrder, func(a, b string) int { return cmp.Compare(notes[b], notes[a]) })
	noteOrder = noteOrder[:min(len(noteOrder), MaxSampleNotes)]

	var b strings.Builder
	b.WriteString(knowledgeIntro)
	b.WriteString("\nCommon species observed:\n")
	b.WriteString(strings.Join(sortedKeys(species), ", ") + ".\n\n")
	b.WriteString("Popular observation locations:\n")
	b.WriteString(strings.Join(sortedKeys(locations), ", ") + ".\n\n")
	b.WriteString("Sample community observation notes:\n")
	for _, n := range noteOrder {
		b.WriteString("- " + n + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Submit pushes every observation to the upstream submit endpoint with at
// most workers requests in flight. It stops at the first failure and
// reports how many were accepted.
func Submit(ctx context.Context, repo repository.ObservationRepository, observations []model.Observation, workers int, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var accepted atomic.Int64
	for _, o := range observations {
		g.Go(func() error {
			_, err := repo.Create(ctx, model.SubmitRequest{
				SpeciesName:  o.SpeciesName,
				CommonName:   o.CommonName,
				DateObserved: o.DateObserved,
				Location:     o.Location,
				Notes:        o.Notes,
				Observer:     o.Observer,
				ImageURL:     o.ImageURL,
			})
			if err != nil {
				return fmt.Errorf("submit %s: %w", o.ObservationID, err)
			}
			accepted.Add(1)
			log.Debug("observation submitted", zap.String("id", o.ObservationID))
			return nil
		})
	}
	err := g.Wait()
	return int(accepted.Load()), err
}
