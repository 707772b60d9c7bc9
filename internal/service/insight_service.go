package service

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/prefs"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
)

const (
	analyticsKey    = "analytics"
	gamificationKey = "gamification"
)

// InsightService fronts the classifier, the Q&A engine and the statistics
// screens. Classifications and questions are recorded in the client's
// preference store.
type InsightService interface {
	Classify(ctx context.Context, st *prefs.Store, req model.ClassifyRequest) (*model.ClassifyResult, error)
	Ask(ctx context.Context, st *prefs.Store, question string) (*model.PreviousQuestion, error)
	Analytics(ctx context.Context) (*model.Analytics, error)
	Gamification(ctx context.Context) (*model.Gamification, error)
	Dashboard(ctx context.Context, username string) (*model.Dashboard, error)
	// InvalidateStats drops cached analytics, for example after a submission.
	InvalidateStats()
}

type insightService struct {
	repo  repository.InsightRepository
	cache *gocache.Cache
	opts  options
}

// NewInsightService caches analytics and gamification for ttl; ttl <= 0
// disables caching.
func NewInsightService(repo repository.InsightRepository, ttl time.Duration, opts ...Option) InsightService {
	s := &insightService{repo: repo, opts: buildOptions(opts)}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 0)
	}
	return s
}

func (s *insightService) Classify(ctx context.Context, st *prefs.Store, req model.ClassifyRequest) (*model.ClassifyResult, error) {
	const op = "insight.classify"
	if req.Image == nil {
		return nil, apperr.Validation(op, "Please select an image to classify")
	}
	req.ClassificationType = strings.ToLower(strings.TrimSpace(req.ClassificationType))
	if req.ClassificationType == "" {
		req.ClassificationType = model.ClassificationTypes[0]
	}
	if !slices.Contains(model.ClassificationTypes, req.ClassificationType) {
		return nil, apperr.Validation(op, "Classification type must be one of "+strings.Join(model.ClassificationTypes, ", "))
	}

	res, err := s.repo.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	if st != nil {
		entry := model.RecentClassification{
			ID:                 uuid.NewString(),
			PreviewURL:         req.PreviewURL,
			SpeciesName:        res.SpeciesName,
			CommonName:         res.CommonName,
			ClassificationType: req.ClassificationType,
			Timestamp:          s.opts.now().UTC(),
		}
		if res.Confidence != nil {
			entry.Confidence = *res.Confidence
		}
		if _, err := st.AddRecentClassification(ctx, entry); err != nil {
			s.opts.log.Warn("could not record classification", zap.Error(err))
		}
	}
	return res, nil
}

func (s *insightService) Ask(ctx context.Context, st *prefs.Store, question string) (*model.PreviousQuestion, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation("insight.qa", "Please enter a question")
	}

	ans, err := s.repo.Ask(ctx, question)
	if err != nil {
		return nil, err
	}

	entry := model.PreviousQuestion{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    ans.Answer,
		Timestamp: s.opts.now().UTC(),
	}
	if st != nil {
		if _, err := st.AddPreviousQuestion(ctx, entry); err != nil {
			s.opts.log.Warn("could not record question", zap.Error(err))
		}
	}
	return &entry, nil
}

func (s *insightService) Analytics(ctx context.Context) (*model.Analytics, error) {
	return cached(s.cache, analyticsKey, func() (*model.Analytics, error) {
		return s.repo.Analytics(ctx)
	})
}

func (s *insightService) Gamification(ctx context.Context) (*model.Gamification, error) {
	return cached(s.cache, gamificationKey, func() (*model.Gamification, error) {
		return s.repo.Gamification(ctx)
	})
}

func (s *insightService) InvalidateStats() {
	if s.cache == nil {
		return
	}
	s.cache.Delete(analyticsKey)
	s.cache.Delete(gamificationKey)
}

func cached[T any](c *gocache.Cache, key string, load func() (*T, error)) (*T, error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			return v.(*T), nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.SetDefault(key, v)
	}
	return v, nil
}

// Dashboard fetches the user's stats, the leaderboard and the user's
// challenges concurrently. Only the user stats are required: a failed
// leaderboard is reported in Errors and failed challenges become an empty
// list.
func (s *insightService) Dashboard(ctx context.Context, username string) (*model.Dashboard, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validation("insight.dashboard", "Please log in to view your statistics")
	}

	var (
		d  = &model.Dashboard{Challenges: json.RawMessage("[]")}
		mu sync.Mutex
	)
	note := func(msg string) {
		mu.Lock()
		d.Errors = append(d.Errors, msg)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.repo.UserStats(gctx, username)
		if err != nil {
			return err
		}
		d.UserStats = stats
		return nil
	})
	g.Go(func() error {
		board, err := s.repo.Leaderboard(gctx)
		if err != nil {
			s.opts.log.Warn("leaderboard unavailable", zap.Error(err))
			note(apperr.UserMessage(err, "Failed to fetch community leaderboard"))
			return nil
		}
		d.Leaderboard = board
		return nil
	})
	g.Go(func() error {
		ch, err := s.repo.Challenges(gctx, username)
		if err != nil {
			s.opts.log.Debug("challenges unavailable", zap.Error(err))
			return nil
		}
		d.Challenges = ch
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
