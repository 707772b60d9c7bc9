package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/pipeline"
	"github.com/bioscout-islamabad/bioscout/internal/prefs"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
	"github.com/bioscout-islamabad/bioscout/internal/utils"
)

var now = time.Date(2025, 5, 16, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func day(n int) string { return now.AddDate(0, 0, -n).Format(model.DateLayout) }

func fixtures() []model.Observation {
	return []model.Observation{
		{ObservationID: "A1", SpeciesName: "Pinus roxburghii", CommonName: "Chir Pine", DateObserved: day(2), Location: "Margalla Hills", Observer: "Sara"},
		{ObservationID: "A2", SpeciesName: "Aquila rapax", CommonName: "Tawny Eagle", DateObserved: day(12), Location: "Rawal Lake", Observer: "Ali"},
		{ObservationID: "A3", SpeciesName: "Vulpes vulpes", CommonName: "Red Fox", DateObserved: day(45), Location: "Trail 3, Margalla Hills", Observer: ""},
		{ObservationID: "A4", SpeciesName: "Naja naja", CommonName: "Cobra snake", DateObserved: day(3), Location: "Lahore", Observer: "Omar"},
	}
}

type fakeStore struct {
	obs         []model.Observation
	err         error
	refreshes   atomic.Int32
	invalidated atomic.Int32
}

func (f *fakeStore) Snapshot(context.Context) ([]model.Observation, error) {
	if f.err != nil {
		return []model.Observation{}, f.err
	}
	return append([]model.Observation(nil), f.obs...), nil
}

func (f *fakeStore) Refresh(ctx context.Context) ([]model.Observation, error) {
	f.refreshes.Add(1)
	return f.Snapshot(ctx)
}

func (f *fakeStore) Invalidate() { f.invalidated.Add(1) }

type fakeObservationRepo struct {
	calls atomic.Int32
	last  model.SubmitRequest
	err   error
}

func (f *fakeObservationRepo) FindAll(context.Context) ([]model.Observation, error) {
	return nil, errors.New("not used")
}

func (f *fakeObservationRepo) Create(_ context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	f.calls.Add(1)
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.SubmitResponse{
		Message: "Observation submitted successfully!",
		Observation: model.Observation{
			ObservationID: "NEW1", SpeciesName: req.SpeciesName, CommonName: req.CommonName,
			DateObserved: req.DateObserved, Location: req.Location, Observer: req.Observer,
		},
	}, nil
}

type fakeSearch struct {
	indexed []model.EnrichedObservation
	err     error
}

func (f *fakeSearch) EnsureIndex(context.Context) error { return nil }

func (f *fakeSearch) IndexObservations(_ context.Context, obs []model.EnrichedObservation) error {
	f.indexed = append(f.indexed, obs...)
	return nil
}

func (f *fakeSearch) Search(_ context.Context, q string, _ repository.SearchFilter, _ int) ([]repository.ObservationDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []repository.ObservationDocument{{ID: "M1", CommonName: q}}, nil
}

func newObservationService(st Snapshotter, repo repository.ObservationRepository, search repository.SearchRepository) ObservationService {
	return NewObservationService(st, repo, search, nil, WithClock(clock), WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestListAppliesQuery(t *testing.T) {
	t.Parallel()

	svc := newObservationService(&fakeStore{obs: fixtures()}, &fakeObservationRepo{}, nil)

	page, err := svc.List(context.Background(), model.Query{Search: "pine"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "A1", page.Items[0].ObservationID)

	page, err = svc.List(context.Background(), model.Query{TimeWindow: model.WindowWeek, SortKey: model.SortCommon, SortDirection: model.Asc})
	require.NoError(t, err)
	assert.Equal(t, "A1", page.Items[0].ObservationID)
	assert.Equal(t, "A4", page.Items[1].ObservationID)
}

func TestListDegradesOnFetchFailure(t *testing.T) {
	t.Parallel()

	boom := apperr.Network("observations.fetch", errors.New("down"))
	svc := newObservationService(&fakeStore{err: boom}, &fakeObservationRepo{}, nil)

	page, err := svc.List(context.Background(), model.DefaultQuery())
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)
}

func TestMapHeatmapAndFilters(t *testing.T) {
	t.Parallel()

	svc := newObservationService(&fakeStore{obs: fixtures()}, &fakeObservationRepo{}, nil)
	ctx := context.Background()

	markers, err := svc.Map(ctx, pipeline.MapFilter{})
	require.NoError(t, err)
	assert.Len(t, markers, 3, "Lahore is not in the gazetteer")

	birds, err := svc.Map(ctx, pipeline.MapFilter{Category: model.CategoryBird})
	require.NoError(t, err)
	require.Len(t, birds, 1)
	assert.Equal(t, "Rawal Lake", birds[0].Place)

	cells, err := svc.Heatmap(ctx, pipeline.MapFilter{TimeWindow: model.WindowWeek})
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, "Margalla Hills", cells[0].Location)

	opts, err := svc.Filters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ali", "Omar", "Sara"}, opts.Observers)
	assert.Contains(t, opts.Locations, "Lahore")

	assert.Contains(t, svc.Suggest("lake"), "Rawal Lake")
}

func TestListingCapsAtFifty(t *testing.T) {
	t.Parallel()

	var obs []model.Observation
	for i := range 55 {
		obs = append(obs, model.Observation{ObservationID: string(rune('A' + i%26)), DateObserved: day(i)})
	}
	svc := newObservationService(&fakeStore{obs: obs}, &fakeObservationRepo{}, nil)

	l, err := svc.Listing(context.Background(), model.Query{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 50, l.Shown)
	assert.Equal(t, 55, l.Total)
	assert.True(t, l.Truncated)

	l, err = svc.Listing(context.Background(), model.Query{}, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 55, l.Shown)
}

func TestSubmitMissingDateSendsNothing(t *testing.T) {
	t.Parallel()

	repo := &fakeObservationRepo{}
	st := &fakeStore{obs: fixtures()}
	svc := newObservationService(st, repo, nil)
	prefStore := prefs.NewStore(prefs.NewMemoryKV(), "c1", nil)

	_, err := svc.Submit(context.Background(), prefStore, model.SubmitRequest{
		SpeciesName: "Aquila rapax", CommonName: "Tawny Eagle", Location: "Rawal Lake", Observer: "Ali",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.UserMessage(err, ""), "date_observed")
	assert.Equal(t, int32(0), repo.calls.Load())
	assert.Equal(t, int32(0), st.refreshes.Load())
	assert.Equal(t, "", prefStore.ObserverName(context.Background()), "nothing persisted on rejection")

	_, err = svc.Submit(context.Background(), prefStore, model.SubmitRequest{
		SpeciesName: "Aquila rapax", CommonName: "Tawny Eagle", Location: "Rawal Lake", DateObserved: "16/05/2025",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int32(0), repo.calls.Load())
}

func TestSubmitSuccess(t *testing.T) {
	t.Parallel()

	repo := &fakeObservationRepo{}
	st := &fakeStore{obs: fixtures()}
	search := &fakeSearch{}
	svc := newObservationService(st, repo, search)
	prefStore := prefs.NewStore(prefs.NewMemoryKV(), "c1", nil)
	ctx := context.Background()

	resp, err := svc.Submit(ctx, prefStore, model.SubmitRequest{
		SpeciesName: " Aquila rapax ", CommonName: "Tawny Eagle", DateObserved: day(0), Location: "Rawal Lake", Observer: "Ali",
	})
	require.NoError(t, err)
	assert.Equal(t, "NEW1", resp.Observation.ObservationID)
	assert.Equal(t, "Aquila rapax", repo.last.SpeciesName)
	assert.Equal(t, int32(1), st.invalidated.Load())
	assert.Equal(t, int32(1), st.refreshes.Load())
	assert.Equal(t, "Ali", prefStore.ObserverName(ctx))
	require.Len(t, search.indexed, 1)
	assert.Equal(t, model.CategoryBird, search.indexed[0].Category)

	_, err = svc.Submit(ctx, prefStore, model.SubmitRequest{
		SpeciesName: "Vulpes vulpes", CommonName: "Red Fox", DateObserved: day(0), Location: "Margalla Hills",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultObserver, repo.last.Observer)
	assert.Equal(t, "Ali", prefStore.ObserverName(ctx), "anonymous submit keeps the remembered name")
}

func TestSubmitServerErrorSurfaces(t *testing.T) {
	t.Parallel()

	repo := &fakeObservationRepo{err: apperr.Server("observations.submit", 400, "Missing fields: location")}
	st := &fakeStore{}
	svc := newObservationService(st, repo, nil)

	_, err := svc.Submit(context.Background(), nil, model.SubmitRequest{
		SpeciesName: "x", CommonName: "y", DateObserved: day(0), Location: "z",
	})
	assert.Equal(t, "Missing fields: location", apperr.UserMessage(err, "Failed to submit"))
	assert.Equal(t, int32(0), st.refreshes.Load())
}

func TestSearchFallsBackToLocal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &fakeStore{obs: fixtures()}

	docs, err := newObservationService(st, &fakeObservationRepo{}, &fakeSearch{}).Search(ctx, "eagle", repository.SearchFilter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "M1", docs[0].ID)

	docs, err = newObservationService(st, &fakeObservationRepo{}, &fakeSearch{err: errors.New("meili down")}).Search(ctx, "fox", repository.SearchFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A3", docs[0].ID)
	assert.Equal(t, "Margalla Hills", docs[0].Place)

	docs, err = newObservationService(st, &fakeObservationRepo{}, nil).Search(ctx, "", repository.SearchFilter{Category: "reptile"}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A4", docs[0].ID)
}

func TestSearchParsesCategory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newObservationService(&fakeStore{obs: fixtures()}, &fakeObservationRepo{}, nil)

	docs, err := svc.Search(ctx, "", repository.SearchFilter{Category: " Reptile "}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A4", docs[0].ID)

	docs, err = svc.Search(ctx, "", repository.SearchFilter{Category: "All"}, 0)
	require.NoError(t, err)
	assert.Len(t, docs, len(fixtures()))

	docs, err = svc.Search(ctx, "", repository.SearchFilter{Category: "dragon"}, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, docs)
}

type fakeInsightRepo struct {
	classify    *model.ClassifyResult
	asks        atomic.Int32
	analytics   atomic.Int32
	statsErr    error
	boardErr    error
	challengeEr error
	delay       time.Duration
}

func (f *fakeInsightRepo) Classify(context.Context, model.ClassifyRequest) (*model.ClassifyResult, error) {
	return f.classify, nil
}

func (f *fakeInsightRepo) Ask(_ context.Context, q string) (*model.Answer, error) {
	f.asks.Add(1)
	return &model.Answer{Answer: "About " + q}, nil
}

func (f *fakeInsightRepo) Analytics(context.Context) (*model.Analytics, error) {
	f.analytics.Add(1)
	return &model.Analytics{TotalObservations: 4}, nil
}

func (f *fakeInsightRepo) Gamification(context.Context) (*model.Gamification, error) {
	return &model.Gamification{TopObserver: "Sara", Submissions: 2}, nil
}

func (f *fakeInsightRepo) UserStats(ctx context.Context, _ string) (json.RawMessage, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return json.RawMessage(`{"points":10}`), nil
}

func (f *fakeInsightRepo) Leaderboard(ctx context.Context) (json.RawMessage, error) {
	if f.boardErr != nil {
		return nil, f.boardErr
	}
	return json.RawMessage(`[{"name":"Sara"}]`), nil
}

func (f *fakeInsightRepo) Challenges(ctx context.Context, _ string) (json.RawMessage, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.challengeEr != nil {
		return nil, f.challengeEr
	}
	return json.RawMessage(`[{"id":"c1"}]`), nil
}

func TestClassifyValidatesAndRecords(t *testing.T) {
	t.Parallel()

	conf := 0.92
	repo := &fakeInsightRepo{classify: &model.ClassifyResult{SpeciesName: "Aquila rapax", CommonName: "Tawny Eagle", Confidence: &conf}}
	svc := NewInsightService(repo, 0, WithClock(clock))
	st := prefs.NewStore(prefs.NewMemoryKV(), "c1", nil)
	ctx := context.Background()

	_, err := svc.Classify(ctx, st, model.ClassifyRequest{ClassificationType: "plant"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Classify(ctx, st, model.ClassifyRequest{Image: strings.NewReader("x"), ClassificationType: "mineral"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, st.RecentClassifications(ctx))

	for range 7 {
		res, err := svc.Classify(ctx, st, model.ClassifyRequest{Image: strings.NewReader("x"), ClassificationType: "Animal", PreviewURL: "blob:1"})
		require.NoError(t, err)
		assert.Equal(t, "92.0%", res.ConfidenceLabel())
	}
	recents := st.RecentClassifications(ctx)
	require.Len(t, recents, prefs.MaxRecentClassifications)
	assert.Equal(t, "animal", recents[0].ClassificationType)
	assert.InDelta(t, 0.92, recents[0].Confidence, 1e-9)
	assert.Equal(t, now, recents[0].Timestamp)
}

func TestAskRejectsEmptyBeforeRequest(t *testing.T) {
	t.Parallel()

	repo := &fakeInsightRepo{}
	svc := NewInsightService(repo, 0, WithClock(clock))
	st := prefs.NewStore(prefs.NewMemoryKV(), "c1", nil)
	ctx := context.Background()

	_, err := svc.Ask(ctx, st, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int32(0), repo.asks.Load())

	q, err := svc.Ask(ctx, st, " Where do leopards live? ")
	require.NoError(t, err)
	assert.Equal(t, "Where do leopards live?", q.Question)
	assert.Equal(t, "About Where do leopards live?", q.Answer)
	assert.Len(t, st.PreviousQuestions(ctx), 1)
}

func TestAnalyticsCached(t *testing.T) {
	t.Parallel()

	repo := &fakeInsightRepo{}
	svc := NewInsightService(repo, time.Minute)
	ctx := context.Background()

	for range 3 {
		a, err := svc.Analytics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, a.TotalObservations)
	}
	assert.Equal(t, int32(1), repo.analytics.Load())

	svc.InvalidateStats()
	_, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.analytics.Load())

	g, err := svc.Gamification(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sara", g.TopObserver)
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	d, err := NewInsightService(&fakeInsightRepo{}, 0).Dashboard(ctx, "Sara")
	require.NoError(t, err)
	assert.JSONEq(t, `{"points":10}`, string(d.UserStats))
	assert.JSONEq(t, `[{"id":"c1"}]`, string(d.Challenges))
	assert.Empty(t, d.Errors)

	d, err = NewInsightService(&fakeInsightRepo{
		challengeEr: apperr.Server("insight.challenges", 500, ""),
		boardErr:    apperr.Server("insight.leaderboard", 503, "Leaderboard is rebuilding"),
	}, 0).Dashboard(ctx, "Sara")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(d.Challenges))
	assert.Nil(t, d.Leaderboard)
	assert.Equal(t, []string{"Leaderboard is rebuilding"}, d.Errors)

	_, err = NewInsightService(&fakeInsightRepo{statsErr: apperr.Server("insight.userstats", 404, "User not found")}, 0).Dashboard(ctx, "Sara")
	assert.Equal(t, "User not found", apperr.UserMessage(err, ""))

	_, err = NewInsightService(&fakeInsightRepo{}, 0).Dashboard(ctx, " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDashboardSlowChallengesBoundedByContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	d, err := NewInsightService(&fakeInsightRepo{delay: time.Minute}, 0).Dashboard(ctx, "Sara")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.JSONEq(t, `[]`, string(d.Challenges))
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	kv := prefs.NewMemoryKV()
	stores := func(ns string) *prefs.Store { return prefs.NewStore(kv, ns, nil) }
	tokens, err := utils.NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)
	svc := NewSessionService(stores, tokens)
	ctx := context.Background()

	_, err = svc.Login(ctx, model.LoginRequest{Name: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	res, err := svc.Login(ctx, model.LoginRequest{Name: "Sara", Email: "Sara@Example.org"})
	require.NoError(t, err)
	assert.Equal(t, SessionID("x", "sara@example.org"), res.Session.ID)

	claims, err := tokens.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, claims.ClientID)

	st := stores(res.Session.ID)
	cur := svc.Current(ctx, st)
	require.NotNil(t, cur)
	assert.Equal(t, "Sara", cur.Name)
	assert.Equal(t, "Sara", st.ObserverName(ctx))

	again, err := svc.Register(ctx, model.RegisterRequest{Name: "Sara K", Email: "sara@example.org"})
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, again.Session.ID, "same email, same namespace")
	assert.Equal(t, "Sara K", svc.Current(ctx, st).Name)

	require.NoError(t, svc.Logout(ctx, st))
	assert.Nil(t, svc.Current(ctx, st))

	assert.NotEqual(t, SessionID("Ali", ""), SessionID("Omar", ""))
}
