package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/history"
	"github.com/DoyleJ11/player-auction-backend/internal/hub"
	"github.com/DoyleJ11/player-auction-backend/internal/lobby"
	"github.com/DoyleJ11/player-auction-backend/internal/seatauth"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
)

const maxBody = 1 << 20

const (
	kindUnauthorized engine.Kind = "unauthorized"
	kindUnavailable  engine.Kind = "unavailable"
	kindInternal     engine.Kind = "internal"
)

var (
	errBadJSON      = &engine.Error{Kind: engine.KindValidation, Code: "BAD_JSON", Message: "request body is not valid JSON"}
	errUnauthorized = &engine.Error{Kind: kindUnauthorized, Code: "UNAUTHORIZED", Message: "missing or invalid credentials"}
	errDisabled     = &engine.Error{Kind: kindUnavailable, Code: "FEATURE_DISABLED", Message: "feature is not configured"}
	errInternal     = &engine.Error{Kind: kindInternal, Code: "INTERNAL", Message: "internal error"}
)

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty body
		}
		return errBadJSON.With(err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps any error reaching the transport to a status and a body.
func classify(err error) (int, *engine.Error) {
	var e *engine.Error
	switch {
	case errors.As(err, &e):
		switch e.Kind {
		case engine.KindValidation:
			return http.StatusBadRequest, e
		case engine.KindConflict:
			return http.StatusConflict, e
		case engine.KindNotFound:
			return http.StatusNotFound, e
		case engine.KindForbidden:
			return http.StatusForbidden, e
		case engine.KindDisabled:
			return http.StatusLocked, e
		case kindUnauthorized:
			return http.StatusUnauthorized, e
		case kindUnavailable:
			return http.StatusServiceUnavailable, e
		}
		return http.StatusInternalServerError, e
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, engine.ErrTournamentNotFound
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, &engine.Error{Kind: engine.KindNotFound, Code: "HISTORY_NOT_FOUND", Message: "no history recorded"}
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, &engine.Error{Kind: engine.KindConflict, Code: "VERSION_CONFLICT", Message: "tournament changed concurrently, retry"}
	case errors.Is(err, seatauth.ErrExpiredToken):
		return http.StatusUnauthorized, errUnauthorized.With("token expired")
	case errors.Is(err, seatauth.ErrInvalidToken):
		return http.StatusUnauthorized, errUnauthorized
	case errors.Is(err, seatauth.ErrNoSecret):
		return http.StatusServiceUnavailable, errDisabled.With("seat tokens")
	case errors.Is(err, lobby.ErrClosed), errors.Is(err, hub.ErrStopped),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, &engine.Error{Kind: kindUnavailable, Code: "UNAVAILABLE", Message: "server is shutting down or busy"}
	}
	return http.StatusInternalServerError, errInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func asEngineError(err error) *engine.Error {
	if err == nil {
		return nil
	}
	var e *engine.Error
	if errors.As(err, &e) {
		return e
	}
	return &engine.Error{Kind: kindInternal, Code: "INTERNAL", Message: fmt.Sprint(err)}
}
