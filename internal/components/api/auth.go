package api

import (
	"net/http"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/components/token"
)

// AuthHandler serves signup, login and the current-user profile.
type AuthHandler struct {
	accounts *identity.Accounts
	tokens   *token.Issuer
}

func NewAuthHandler(accounts *identity.Accounts, tokens *token.Issuer) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens}
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer credential.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *identity.User `json:"user"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}

	user, err := h.accounts.Signup(r.Context(), identity.SignupInput{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	signed, exp, err := h.tokens.Issue(user.ID, user.EffectiveRole())
	if err != nil {
		WriteAppError(w, r, apperr.Internal(err))
		return
	}
	WriteJSON(w, http.StatusOK, LoginResponse{Token: signed, ExpiresAt: exp, User: user})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	user, err := h.accounts.Get(r.Context(), p.ID)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

var errUnauthenticated = apperr.Authentication(apperr.CodeUnauthenticated, "authentication required")

// caller returns the principal bound by the route guard.
func caller(r *http.Request) (*principal.Principal, bool) {
	return principal.FromContext(r.Context())
}
