package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// ObservationDocument is the Meilisearch representation of an enriched
// observation. Time buckets are not stored: they depend on the query time.
type ObservationDocument struct {
	ID           string   `json:"id"`
	SpeciesName  string   `json:"species_name"`
	CommonName   string   `json:"common_name"`
	DateObserved string   `json:"date_observed"`
	Location     string   `json:"location"`
	Place        string   `json:"place,omitempty"`
	Observer     string   `json:"observer"`
	Notes        string   `json:"notes,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	Category     string   `json:"category"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

// SearchFilter narrows a full-text query. Empty fields do not filter.
type SearchFilter struct {
	Category string
	Location string
	Observer string
}

type SearchRepository interface {
	EnsureIndex(ctx context.Context) error
	IndexObservations(ctx context.Context, obs []model.EnrichedObservation) error
	Search(ctx context.Context, query string, f SearchFilter, limit int) ([]ObservationDocument, error)
}

type searchRepository struct {
	client    meilisearch.ServiceManager
	indexName string
	log       *zap.Logger
}

// DefaultIndex is the Meilisearch index uid used when none is configured.
const DefaultIndex = "observations"

// IndexBatchSize caps the documents sent per add-documents task.
const IndexBatchSize = 2000

var filterAttributes = []string{"category", "location", "observer", "place"}

func NewSearchRepository(url, key, index string, log *zap.Logger) SearchRepository {
	if index == "" {
		index = DefaultIndex
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &searchRepository{
		client:    meilisearch.New(url, meilisearch.WithAPIKey(key)),
		indexName: index,
		log:       log.Named("search"),
	}
}

// EnsureIndex creates the index with "id" as primary key and declares the
// filterable attributes. Both are asynchronous Meilisearch tasks.
func (r *searchRepository) EnsureIndex(ctx context.Context) error {
	if _, err := r.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
		Uid:        r.indexName,
		PrimaryKey: "id",
	}); err != nil {
		return fmt.Errorf("meilisearch create index: %w", err)
	}

	converted := make([]interface{}, len(filterAttributes))
	for i, v := range filterAttributes {
		converted[i] = v
	}
	if _, err := r.client.Index(r.indexName).UpdateFilterableAttributesWithContext(ctx, &converted); err != nil {
		return fmt.Errorf("meilisearch filterable attributes: %w", err)
	}
	return nil
}

// NewDocument flattens an enriched observation for indexing.
func NewDocument(e model.EnrichedObservation) ObservationDocument {
	doc := ObservationDocument{
		ID:           e.ObservationID,
		SpeciesName:  e.SpeciesName,
		CommonName:   e.CommonName,
		DateObserved: e.DateObserved,
		Location:     e.Location,
		Place:        e.Place,
		Observer:     e.ObserverName(),
		Notes:        e.Notes,
		ImageURL:     e.ImageURL,
		Category:     string(e.Category),
	}
	if e.LatLng != nil {
		lat, lng := e.LatLng.Lat, e.LatLng.Lng
		doc.Lat, doc.Lng = &lat, &lng
	}
	return doc
}

func (r *searchRepository) IndexObservations(ctx context.Context, obs []model.EnrichedObservation) error {
	docs := make([]ObservationDocument, 0, len(obs))
	for _, e := range obs {
		if e.ObservationID == "" {
			r.log.Warn("skipping observation without id", zap.String("species", e.SpeciesName))
			continue
		}
		docs = append(docs, NewDocument(e))
	}
	if len(docs) == 0 {
		return nil
	}

	for start := 0; start < len(docs); start += IndexBatchSize {
		batch := docs[start:min(start+IndexBatchSize, len(docs))]
		task, err := r.client.Index(r.indexName).AddDocumentsWithContext(ctx, batch, nil)
		if err != nil {
			return fmt.Errorf("meilisearch indexing failed at offset %d: %w", start, err)
		}
		r.log.Info("documents queued for indexing", zap.Int("count", len(batch)), zap.Int64("task", task.TaskUID))
	}
	return nil
}

func (r *searchRepository) Search(ctx context.Context, query string, f SearchFilter, limit int) ([]ObservationDocument, error) {
	if limit <= 0 {
		limit = model.ListLimit
	}
	req := &meilisearch.SearchRequest{Limit: int64(limit)}
	if filter := BuildFilter(f); filter != "" {
		req.Filter = filter
	}

	res, err := r.client.Index(r.indexName).SearchWithContext(ctx, query, req)
	if err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	docs := make([]ObservationDocument, 0, len(res.Hits))
	for _, hit := range res.Hits {
		data, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc ObservationDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// BuildFilter renders f as a Meilisearch filter expression.
func BuildFilter(f SearchFilter) string {
	var parts []string
	add := func(attr, v string) {
		if v == "" || v == model.FilterAll {
			return
		}
		parts = append(parts, fmt.Sprintf("%s = %s", attr, quoteFilter(v)))
	}
	add("category", f.Category)
	add("location", f.Location)
	add("observer", f.Observer)
	return strings.Join(parts, " AND ")
}

func quoteFilter(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
