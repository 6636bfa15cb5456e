package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
)

// NotificationsHandler serves the caller's inbox.
type NotificationsHandler struct {
	inbox *notifications.Inbox
}

func NewNotificationsHandler(inbox *notifications.Inbox) *NotificationsHandler {
	return &NotificationsHandler{inbox: inbox}
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	ns, err := h.inbox.List(r.Context(), p.ID)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ns)
}

// MarkRead handles POST /api/notifications/{notificationId}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "notificationId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, n)
}
