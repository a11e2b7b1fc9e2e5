package types

import (
	"errors"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/DoyleJ11/raffle-backend/internal/hub"
	"github.com/DoyleJ11/raffle-backend/internal/session"
)

// Error codes sent to clients.
const (
	CodeInvalidRoster   = "invalid_roster"
	CodeInvalidBranding = "invalid_branding"
	CodeInvalidCount    = "invalid_count"
	CodeWrongPhase      = "wrong_phase"
	CodePoolExhausted   = "pool_exhausted"
	CodeUnsupported     = "unsupported_command"
	CodeNotFound        = "not_found"
	CodeClosed          = "session_closed"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
)

// ErrorCode classifies err for clients. Unknown errors are internal.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidRoster), errors.Is(err, engine.ErrNoRoster):
		return CodeInvalidRoster
	case errors.Is(err, engine.ErrInvalidBranding):
		return CodeInvalidBranding
	case errors.Is(err, engine.ErrInvalidCount):
		return CodeInvalidCount
	case errors.Is(err, engine.ErrPoolExhausted):
		return CodePoolExhausted
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, engine.ErrRevealPending),
		errors.Is(err, engine.ErrRevealComplete):
		return CodeWrongPhase
	case errors.Is(err, engine.ErrUnsupportedCommand):
		return CodeUnsupported
	case errors.Is(err, hub.ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, session.ErrClosed), errors.Is(err, hub.ErrHubClosed):
		return CodeClosed
	default:
		return CodeInternal
	}
}
