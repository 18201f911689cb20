package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/relaykit/baton/internal/domain"
	"github.com/relaykit/baton/internal/domain/handoff"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a size-capped JSON request body into T. On failure the
// error response has already been written and the second return is false.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "request body must be a single JSON document")
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
}

// incompleteResponse is the 422 body for a completion attempt whose
// deliverables did not pass validation.
type incompleteResponse struct {
	Error  string         `json:"error"`
	Report handoff.Report `json:"report"`
}

// writeJSON marshals before touching the ResponseWriter so a marshal
// failure can still produce a 500 instead of a half-written body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("response marshal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps the error taxonomy to HTTP status codes.
// The ValidationError case must run before the ErrValidation one
// because the former unwraps to the latter.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	var incomplete *handoff.ValidationError
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, incompleteResponse{
			Error:  incomplete.Error(),
			Report: incomplete.Report,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrValidation):
		msg, _ := strings.CutPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
