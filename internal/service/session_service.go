package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/prefs"
	"github.com/bioscout-islamabad/bioscout/internal/utils"
)

// sessionNamespace seeds the deterministic session ids.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bioscout-islamabad.org/session"))

// StoreFactory opens the preference store of a client namespace.
type StoreFactory func(namespace string) *prefs.Store

// SessionResult is a started session and the bearer token naming its namespace.
type SessionResult struct {
	Session model.Session `json:"user"`
	Token   string        `json:"token"`
}

// SessionService keeps the unverified login state. Logging in only
// personalises the UI: no password is taken and nothing is checked remotely.
type SessionService interface {
	Login(ctx context.Context, req model.LoginRequest) (*SessionResult, error)
	Register(ctx context.Context, req model.RegisterRequest) (*SessionResult, error)
	Logout(ctx context.Context, st *prefs.Store) error
	Current(ctx context.Context, st *prefs.Store) *model.Session
}

type sessionService struct {
	stores StoreFactory
	tokens *utils.TokenIssuer
}

func NewSessionService(stores StoreFactory, tokens *utils.TokenIssuer) SessionService {
	return &sessionService{stores: stores, tokens: tokens}
}

// SessionID derives a stable id from the email, or the name when no email is
// given, so a returning user finds their history again.
func SessionID(name, email string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		key = "name:" + strings.ToLower(strings.TrimSpace(name))
	}
	return uuid.NewSHA1(sessionNamespace, []byte(key)).String()
}

func (s *sessionService) Login(ctx context.Context, req model.LoginRequest) (*SessionResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("session.login", "Please enter your name")
	}
	return s.start(ctx, model.Session{
		ID:    SessionID(name, req.Email),
		Name:  name,
		Email: strings.TrimSpace(req.Email),
	})
}

func (s *sessionService) Register(ctx context.Context, req model.RegisterRequest) (*SessionResult, error) {
	name, email := strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		return nil, apperr.Validation("session.register", "Please enter your name and email")
	}
	return s.start(ctx, model.Session{ID: SessionID(name, email), Name: name, Email: email})
}

func (s *sessionService) start(ctx context.Context, sess model.Session) (*SessionResult, error) {
	st := s.stores(sess.ID)
	if err := st.SetSession(ctx, sess); err != nil {
		return nil, err
	}
	if st.ObserverName(ctx) == "" {
		// best effort: the form pre-fills with the session name
		_ = st.SetObserverName(ctx, sess.Name)
	}
	token, err := s.tokens.GenerateToken(sess.ID, sess.Name)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess, Token: token}, nil
}

func (s *sessionService) Logout(ctx context.Context, st *prefs.Store) error {
	return st.ClearSession(ctx)
}

func (s *sessionService) Current(ctx context.Context, st *prefs.Store) *model.Session {
	return st.Session(ctx)
}
