package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
)

// RequestsHandler serves the requester's list and host decisions.
type RequestsHandler struct {
	workflow *joinrequest.Workflow
}

func NewRequestsHandler(workflow *joinrequest.Workflow) *RequestsHandler {
	return &RequestsHandler{workflow: workflow}
}

// Mine handles GET /api/requests/mine.
func (h *RequestsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	rs, err := h.workflow.ListMine(r.Context(), p.ID)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rs)
}

// Accept handles POST /api/requests/{requestId}/accept.
func (h *RequestsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.workflow.Accept)
}

// Reject handles POST /api/requests/{requestId}/reject.
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.workflow.Reject)
}

func (h *RequestsHandler) decide(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, hostID, requestID string) (*joinrequest.JoinRequest, error)) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	jr, err := fn(r.Context(), p.ID, chi.URLParam(r, "requestId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, jr)
}
