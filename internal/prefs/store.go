package prefs

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// Fixed record names, as the browser front end stored them.
const (
	KeySession               = "bioscoutUser"
	KeyRecentClassifications = "bioscoutRecentClassifications"
	KeyPreviousQuestions     = "bioscoutPreviousQuestions"
	KeyObserverName          = "observerName"
)

// List caps.
const (
	MaxRecentClassifications = 5
	MaxPreviousQuestions     = 10
)

// AppendRecent returns a new list with item first, truncated to limit
// entries. The input list is never modified.
func AppendRecent[T any](list []T, item T, limit int) []T {
	if limit <= 0 {
		return []T{}
	}
	n := min(len(list), limit-1)
	out := make([]T, 0, n+1)
	out = append(out, item)
	return append(out, list[:n]...)
}

// Store reads and writes one client's records. Reads never fail the caller:
// a storage error or corrupt JSON is logged and treated as absent.
type Store struct {
	kv        KV
	namespace string
	log       *zap.Logger
}

// NewStore scopes kv to namespace (one browser/client).
func NewStore(kv KV, namespace string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, namespace: namespace, log: log}
}

// Namespace returns the client namespace.
func (s *Store) Namespace() string { return s.namespace }

func (s *Store) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + ":" + name
}

// load decodes a record into dst. It reports false for missing, unreadable or
// corrupt values.
func (s *Store) load(ctx context.Context, name string, dst any) bool {
	raw, ok, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		s.log.Warn("prefs read failed", zap.String("key", s.key(name)), zap.Error(err))
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn("prefs value is corrupt, ignoring", zap.String("key", s.key(name)), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) save(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("prefs: encode %s: %w", name, err)
	}
	return s.kv.Set(ctx, s.key(name), raw)
}

// Session returns the persisted session, or nil when anonymous.
func (s *Store) Session(ctx context.Context) *model.Session {
	var sess model.Session
	if !s.load(ctx, KeySession, &sess) || sess.ID == "" {
		return nil
	}
	return &sess
}

// SetSession persists sess, replacing any previous one.
func (s *Store) SetSession(ctx context.Context, sess model.Session) error {
	return s.save(ctx, KeySession, sess)
}

// ClearSession removes the persisted session.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key(KeySession))
}

// RecentClassifications returns the list newest first; empty when absent.
func (s *Store) RecentClassifications(ctx context.Context) []model.RecentClassification {
	var list []model.RecentClassification
	if !s.load(ctx, KeyRecentClassifications, &list) || list == nil {
		return []model.RecentClassification{}
	}
	return list
}

// AddRecentClassification prepends item and persists the capped list.
func (s *Store) AddRecentClassification(ctx context.Context, item model.RecentClassification) ([]model.RecentClassification, error) {
	list := AppendRecent(s.RecentClassifications(ctx), item, MaxRecentClassifications)
	return list, s.save(ctx, KeyRecentClassifications, list)
}

// PreviousQuestions returns the Q&A history newest first; empty when absent.
func (s *Store) PreviousQuestions(ctx context.Context) []model.PreviousQuestion {
	var list []model.PreviousQuestion
	if !s.load(ctx, KeyPreviousQuestions, &list) || list == nil {
		return []model.PreviousQuestion{}
	}
	return list
}

// AddPreviousQuestion prepends item and persists the capped list.
func (s *Store) AddPreviousQuestion(ctx context.Context, item model.PreviousQuestion) ([]model.PreviousQuestion, error) {
	list := AppendRecent(s.PreviousQuestions(ctx), item, MaxPreviousQuestions)
	return list, s.save(ctx, KeyPreviousQuestions, list)
}

// ObserverName returns the remembered observer name, "" when unset.
func (s *Store) ObserverName(ctx context.Context) string {
	var name string
	s.load(ctx, KeyObserverName, &name)
	return name
}

// SetObserverName remembers name for the next submission form.
func (s *Store) SetObserverName(ctx context.Context, name string) error {
	return s.save(ctx, KeyObserverName, name)
}
