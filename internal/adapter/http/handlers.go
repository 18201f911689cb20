package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/relaykit/baton/internal/domain/handoff"
	"github.com/relaykit/baton/internal/domain/message"
	"github.com/relaykit/baton/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Messages *service.MessageService
	Handoffs *service.HandoffService
	Status   *service.StatusService

	// Version is reported on the API root. Empty means a dev build.
	Version string
}

// GetVersion handles GET /api/v1/
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	v := h.Version
	if v == "" {
		v = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{"service": "baton", "version": v})
}

// idResponse is the creation response for messages and handoffs.
type idResponse struct {
	ID string `json:"id"`
}

// receivedRequest carries the deliverables an agent submits for
// validation or completion.
type receivedRequest struct {
	Received map[string]json.RawMessage `json:"received"`
}

// SendMessage handles POST /api/v1/messages
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[message.CreateRequest](w, r)
	if !ok {
		return
	}

	msg, err := h.Messages.Send(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "message rejected")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: msg.ID})
}

// GetMessage handles GET /api/v1/messages/{id}
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := h.Messages.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// InitiateHandoff handles POST /api/v1/handoffs
func (h *Handlers) InitiateHandoff(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[handoff.CreateRequest](w, r)
	if !ok {
		return
	}

	hd, err := h.Handoffs.Initiate(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "handoff rejected")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: hd.ID})
}

// GetHandoff handles GET /api/v1/handoffs/{id}
func (h *Handlers) GetHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hd, err := h.Handoffs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "handoff not found")
		return
	}
	writeJSON(w, http.StatusOK, hd)
}

// ValidateHandoff handles POST /api/v1/handoffs/{id}/validate
//
// The check is read-only: the handoff stays pending whatever the report
// says.
func (h *Handlers) ValidateHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := readJSON[receivedRequest](w, r)
	if !ok {
		return
	}

	report, err := h.Handoffs.Validate(r.Context(), id, req.Received)
	if err != nil {
		writeDomainError(w, err, "handoff not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CompleteHandoff handles POST /api/v1/handoffs/{id}/complete
func (h *Handlers) CompleteHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := readJSON[receivedRequest](w, r)
	if !ok {
		return
	}

	hd, err := h.Handoffs.Complete(r.Context(), id, req.Received)
	if err != nil {
		writeDomainError(w, err, "handoff not found")
		return
	}
	writeJSON(w, http.StatusOK, hd)
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Status.Snapshot())
}
