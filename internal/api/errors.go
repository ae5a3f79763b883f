package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/coordinator"
	"github.com/livesitter/livesitter/internal/domain/session/lifecycle"
	"github.com/livesitter/livesitter/internal/domain/session/manager"
	"github.com/livesitter/livesitter/internal/domain/session/ports"
	"github.com/livesitter/livesitter/internal/domain/session/recovery"
	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/overlay"
)

var errBadJSON = errors.New("invalid JSON body")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain and backend errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadJSON),
		errors.Is(err, coordinator.ErrInvalidSource),
		errors.Is(err, coordinator.ErrInvalidStreamID),
		errors.Is(err, overlay.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrSessionNotFound),
		errors.Is(err, overlay.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, ports.ErrAutoplayBlocked):
		return http.StatusConflict
	case errors.Is(err, manager.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, backend.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, backend.ErrServer), errors.Is(err, backend.ErrNoResponse):
		if backend.StatusCode(err) == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with {"error": msg}. Backend failures keep the server's
// own wording.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := backend.UserMessage(err)
	if errors.Is(err, ports.ErrAutoplayBlocked) {
		msg = recovery.MsgAutoplayBlocked
	}
	if code == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "http.internal_error").Str("path", r.URL.Path).Msg("request failed")
		msg = "Internal server error"
	}
	writeMessage(w, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}
