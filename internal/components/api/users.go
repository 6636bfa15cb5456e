package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
)

// UsersHandler serves moderation and blocking.
type UsersHandler struct {
	accounts *identity.Accounts
}

func NewUsersHandler(accounts *identity.Accounts) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

type statusRequest struct {
	Status string `json:"status"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// BlockResponse reports the block relation after a change.
type BlockResponse struct {
	UserID  string `json:"userId"`
	Blocked bool   `json:"blocked"`
}

// SetStatus handles PUT /api/admin/users/{userId}/status.
func (h *UsersHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	var req statusRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	user, err := h.accounts.SetStatus(r.Context(), p.ID, p.Role, chi.URLParam(r, "userId"), req.Status)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// SetRole handles PUT /api/admin/users/{userId}/role.
func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	var req roleRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	user, err := h.accounts.SetRole(r.Context(), p.ID, p.Role, chi.URLParam(r, "userId"), req.Role)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// Block handles POST /api/users/{userId}/block.
func (h *UsersHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// Unblock handles DELETE /api/users/{userId}/block.
func (h *UsersHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *UsersHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	target := chi.URLParam(r, "userId")

	var err error
	if blocked {
		err = h.accounts.Block(r.Context(), p.ID, target)
	} else {
		err = h.accounts.Unblock(r.Context(), p.ID, target)
	}
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, BlockResponse{UserID: target, Blocked: blocked})
}
