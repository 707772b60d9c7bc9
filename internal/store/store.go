// Package store holds the last fetched observation list. It is the single
// source of truth for every derived view; nothing downstream mutates it.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/metrics"
	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// DefaultTTL is how long a snapshot is served before a read refetches.
const DefaultTTL = 2 * time.Minute

const snapshotKey = "observations"

// Fetcher loads the complete observation list.
type Fetcher interface {
	FindAll(ctx context.Context) ([]model.Observation, error)
}

// Store caches the observation list and guards against out-of-order
// responses: every fetch takes a generation number and a result older than
// the latest started fetch is discarded.
type Store struct {
	fetcher Fetcher
	cache   *gocache.Cache
	group   singleflight.Group
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	started uint64
	applied uint64
	last    []model.Observation
}

// New creates a store. ttl <= 0 uses DefaultTTL.
func New(f Fetcher, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		fetcher: f,
		// no janitor: a single entry is checked for expiry on every Get
		cache:   gocache.New(ttl, 0),
		log:     log.Named("store"),
		metrics: m,
	}
}

// Snapshot returns the cached list, fetching it when absent or expired.
// Concurrent misses share one fetch. On failure the last good list (or an
// empty one) is returned together with the error.
func (s *Store) Snapshot(ctx context.Context) ([]model.Observation, error) {
	if v, ok := s.cache.Get(snapshotKey); ok {
		s.metrics.CacheHit(snapshotKey)
		return slices.Clone(v.([]model.Observation)), nil
	}
	s.metrics.CacheMiss(snapshotKey)

	// the shared fetch outlives any one caller; the client timeout bounds it
	ch := s.group.DoChan(snapshotKey, func() (interface{}, error) {
		return s.Refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		obs, _ := res.Val.([]model.Observation)
		if errors.Is(res.Err, apperr.ErrStale) {
			// a newer fetch owns the state; serve whatever it left behind
			return slices.Clone(obs), nil
		}
		return slices.Clone(obs), res.Err
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.current(), apperr.Network("observations.snapshot", ctx.Err())
	}
}

// Refresh fetches unconditionally. A response superseded by a later fetch
// returns the current list and an apperr stale error without touching state.
func (s *Store) Refresh(ctx context.Context) ([]model.Observation, error) {
	s.mu.Lock()
	s.started++
	gen := s.started
	s.mu.Unlock()

	obs, err := s.fetcher.FindAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.log.Warn("observation fetch failed, keeping last snapshot",
			zap.Uint64("generation", gen),
			zap.Int("kept", len(s.last)),
			zap.Error(err))
		return s.current(), err
	}
	if gen < s.started {
		s.metrics.StaleResponse()
		s.log.Debug("discarding stale observation response",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", s.started))
		return s.current(), apperr.Stale("observations.fetch")
	}

	s.applied = gen
	s.last = slices.Clone(obs)
	s.cache.SetDefault(snapshotKey, s.last)
	s.metrics.SetSnapshotSize(len(s.last))
	s.log.Debug("observation snapshot updated", zap.Uint64("generation", gen), zap.Int("count", len(s.last)))
	return slices.Clone(s.last), nil
}

// Invalidate drops the cached list so the next Snapshot refetches. The last
// good list is kept as the failure fallback.
func (s *Store) Invalidate() {
	s.cache.Delete(snapshotKey)
}

// Generation reports the generation of the snapshot currently held.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// current must be called with mu held.
func (s *Store) current() []model.Observation {
	if s.last == nil {
		return []model.Observation{}
	}
	return slices.Clone(s.last)
}
