package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/pipeline"
	"github.com/bioscout-islamabad/bioscout/internal/prefs"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
)

// Snapshotter is the observation store as seen by the services.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]model.Observation, error)
	Refresh(ctx context.Context) ([]model.Observation, error)
	Invalidate()
}

// ObservationService answers the list, map and submission screens. Reads
// return a usable (possibly empty) value even when they also return an error,
// so a failed fetch degrades the view instead of blanking it.
type ObservationService interface {
	List(ctx context.Context, q model.Query) (model.Page, error)
	Listing(ctx context.Context, q model.Query, limit int, showAll bool) (model.Listing, error)
	Map(ctx context.Context, f pipeline.MapFilter) ([]model.Marker, error)
	Heatmap(ctx context.Context, f pipeline.MapFilter) ([]model.HeatCell, error)
	Filters(ctx context.Context) (model.FilterOptions, error)
	Suggest(input string) []string
	Submit(ctx context.Context, st *prefs.Store, req model.SubmitRequest) (*model.SubmitResponse, error)
	Search(ctx context.Context, query string, f repository.SearchFilter, limit int) ([]repository.ObservationDocument, error)
	Refresh(ctx context.Context) (int, error)
}

type observationService struct {
	store    Snapshotter
	repo     repository.ObservationRepository
	search   repository.SearchRepository
	pipeline *pipeline.Pipeline
	opts     options
}

// NewObservationService wires the store and upstream repository. search may
// be nil when Meilisearch is not configured.
func NewObservationService(
	store Snapshotter,
	repo repository.ObservationRepository,
	search repository.SearchRepository,
	p *pipeline.Pipeline,
	opts ...Option,
) ObservationService {
	if p == nil {
		p = pipeline.New(nil, nil)
	}
	return &observationService{
		store:    store,
		repo:     repo,
		search:   search,
		pipeline: p,
		opts:     buildOptions(opts),
	}
}

func (s *observationService) List(ctx context.Context, q model.Query) (model.Page, error) {
	obs, err := s.store.Snapshot(ctx)
	return s.pipeline.Apply(obs, q, s.opts.now()), err
}

func (s *observationService) Listing(ctx context.Context, q model.Query, limit int, showAll bool) (model.Listing, error) {
	if limit <= 0 {
		limit = model.ListLimit
	}
	obs, err := s.store.Snapshot(ctx)
	q = q.Normalize()
	filtered := s.pipeline.Filter(obs, q, s.opts.now())
	s.pipeline.Sort(filtered, q.SortKey, q.SortDirection)
	return pipeline.Limit(filtered, limit, showAll), err
}

func (s *observationService) Map(ctx context.Context, f pipeline.MapFilter) ([]model.Marker, error) {
	obs, err := s.store.Snapshot(ctx)
	return s.pipeline.Markers(obs, f, s.opts.now(), s.opts.rng), err
}

func (s *observationService) Heatmap(ctx context.Context, f pipeline.MapFilter) ([]model.HeatCell, error) {
	obs, err := s.store.Snapshot(ctx)
	return s.pipeline.Heatmap(obs, f, s.opts.now()), err
}

func (s *observationService) Filters(ctx context.Context) (model.FilterOptions, error) {
	obs, err := s.store.Snapshot(ctx)
	return model.FilterOptions{
		Locations:  pipeline.DistinctLocations(obs),
		Observers:  pipeline.DistinctObservers(obs),
		Categories: model.Categories,
	}, err
}

func (s *observationService) Suggest(input string) []string {
	return s.pipeline.Gazetteer().Suggest(input)
}

// ValidateSubmission checks the required fields before anything is sent.
func ValidateSubmission(req model.SubmitRequest) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"species_name", req.SpeciesName},
		{"common_name", req.CommonName},
		{"date_observed", req.DateObserved},
		{"location", req.Location},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("observations.submit",
			"Please fill all required fields: "+strings.Join(missing, ", "))
	}
	if _, err := time.Parse(model.DateLayout, strings.TrimSpace(req.DateObserved)); err != nil {
		return apperr.Validation("observations.submit", "date_observed must be a date in YYYY-MM-DD form")
	}
	return nil
}

// Submit validates, posts the sighting and refreshes the store. The observer
// name is remembered for the next form; an empty observer is sent as
// "Anonymous".
func (s *observationService) Submit(ctx context.Context, st *prefs.Store, req model.SubmitRequest) (*model.SubmitResponse, error) {
	req.SpeciesName = strings.TrimSpace(req.SpeciesName)
	req.CommonName = strings.TrimSpace(req.CommonName)
	req.DateObserved = strings.TrimSpace(req.DateObserved)
	req.Location = strings.TrimSpace(req.Location)
	req.Notes = strings.TrimSpace(req.Notes)
	req.Observer = strings.TrimSpace(req.Observer)

	if err := ValidateSubmission(req); err != nil {
		return nil, err
	}

	if req.Observer != "" && st != nil {
		if err := st.SetObserverName(ctx, req.Observer); err != nil {
			s.opts.log.Warn("could not remember observer name", zap.Error(err))
		}
	}
	if req.Observer == "" {
		req.Observer = model.DefaultObserver
	}

	resp, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.store.Invalidate()
	if _, err := s.store.Refresh(ctx); err != nil {
		s.opts.log.Warn("refresh after submit failed", zap.Error(err))
	}
	if s.search != nil && resp.Observation.ObservationID != "" {
		e := s.pipeline.Enrich(resp.Observation, s.opts.now())
		if err := s.search.IndexObservations(ctx, []model.EnrichedObservation{e}); err != nil {
			s.opts.log.Warn("indexing new observation failed", zap.String("id", resp.Observation.ObservationID), zap.Error(err))
		}
	}
	return resp, nil
}

// Search uses Meilisearch when configured and otherwise falls back to the
// literal substring search of the pipeline.
func (s *observationService) Search(ctx context.Context, query string, f repository.SearchFilter, limit int) ([]repository.ObservationDocument, error) {
	if limit <= 0 {
		limit = model.ListLimit
	}
	cat, ok := model.ParseCategory(f.Category)
	if !ok {
		return []repository.ObservationDocument{}, apperr.Validation("observations.search", "unknown category "+strconv.Quote(f.Category))
	}
	f.Category = string(cat)
	if s.search != nil {
		docs, err := s.search.Search(ctx, query, f, limit)
		if err == nil {
			return docs, nil
		}
		s.opts.log.Warn("meilisearch query failed, using local search", zap.Error(err))
	}

	obs, err := s.store.Snapshot(ctx)
	q := model.Query{
		Search:   query,
		Location: f.Location,
		Observer: f.Observer,
		Category: cat,
	}.Normalize()
	now := s.opts.now()
	hits := s.pipeline.Filter(obs, q, now)
	listing := pipeline.Limit(hits, limit, false)

	docs := make([]repository.ObservationDocument, len(listing.Items))
	for i, o := range listing.Items {
		docs[i] = repository.NewDocument(s.pipeline.Enrich(o, now))
	}
	return docs, err
}

// Refresh refetches the observation list and reports its size.
func (s *observationService) Refresh(ctx context.Context) (int, error) {
	obs, err := s.store.Refresh(ctx)
	return len(obs), err
}
