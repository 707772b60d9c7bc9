// Package indexer copies the upstream observations into the Meilisearch
// index used by the search endpoint.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/pipeline"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
)

// Source lists every observation.
type Source interface {
	FindAll(ctx context.Context) ([]model.Observation, error)
}

type Indexer struct {
	source   Source
	search   repository.SearchRepository
	pipeline *pipeline.Pipeline
	log      *zap.Logger
}

func New(source Source, search repository.SearchRepository, p *pipeline.Pipeline, log *zap.Logger) *Indexer {
	if p == nil {
		p = pipeline.New(nil, nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{source: source, search: search, pipeline: p, log: log.Named("indexer")}
}

// Run ensures the index exists, then enriches and indexes every observation.
// It returns the number of records sent.
func (ix *Indexer) Run(ctx context.Context) (int, error) {
	if err := ix.search.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("prepare index: %w", err)
	}

	obs, err := ix.source.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch observations: %w", err)
	}

	enriched := ix.pipeline.EnrichAll(obs, time.Now())
	unresolved := 0
	for _, e := range enriched {
		if e.LatLng == nil {
			unresolved++
		}
	}
	if err := ix.search.IndexObservations(ctx, enriched); err != nil {
		return 0, err
	}

	ix.log.Info("indexing finished",
		zap.Int("observations", len(enriched)),
		zap.Int("unresolved_locations", unresolved))
	return len(enriched), nil
}
