// Package apperr classifies failures of upstream calls and input checks so
// that handlers can turn them into user-visible state instead of crashing.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the failure category.
type Kind string

const (
	// KindNetwork: the request never produced a response.
	KindNetwork Kind = "network"
	// KindServer: the upstream answered with a non-2xx status.
	KindServer Kind = "server"
	// KindValidation: input rejected before any request was sent.
	KindValidation Kind = "validation"
	KindTimeout    Kind = "timeout"
	KindCancelled  Kind = "cancelled"
	// KindStale: a response arrived after a newer request superseded it.
	KindStale Kind = "stale"
)

// Error is a categorized failure.
type Error struct {
	Kind    Kind
	Op      string // e.g. "observations.fetch"
	Status  int    // upstream HTTP status, server errors only
	Message string // user-facing text, may be empty
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrValidation) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrServer     = &Error{Kind: KindServer}
	ErrValidation = &Error{Kind: KindValidation}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrCancelled  = &Error{Kind: KindCancelled}
	ErrStale      = &Error{Kind: KindStale}
)

// Validation builds a validation failure with a user-facing message.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// Server builds an upstream failure. msg is the body's error/message field, if any.
func Server(op string, status int, msg string) error {
	return &Error{Kind: KindServer, Op: op, Status: status, Message: msg}
}

// Network wraps a transport failure, recognising deadlines and cancellation.
func Network(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCancelled, Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Stale marks a superseded response.
func Stale(op string) error {
	return &Error{Kind: KindStale, Op: op, Message: "response superseded by a newer request"}
}

// KindOf returns the kind of err, or "" when err is not categorized.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns text suitable for display. Server messages are surfaced
// verbatim; transport failures get the generic fallback.
func UserMessage(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	switch e.Kind {
	case KindValidation, KindServer:
		if e.Message != "" {
			return e.Message
		}
	case KindTimeout:
		return fallback + " (request timed out)"
	}
	return fallback
}

// HTTPStatus maps err to the status the view API answers with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindServer:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCancelled:
		return 499
	case KindStale:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}
