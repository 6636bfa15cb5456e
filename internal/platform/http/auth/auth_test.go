package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/authz"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/appctx"
)

type staticResolver map[string]principal.Resolution

func (s staticResolver) Resolve(_ context.Context, authorization string) (principal.Resolution, error) {
	if authorization == "" {
		return principal.Resolution{Outcome: principal.Anonymous}, nil
	}
	if r, ok := s[authorization]; ok {
		return r, nil
	}
	return principal.Resolution{Outcome: principal.Rejected, Reason: principal.ReasonMalformed}, nil
}

// attrRecorder remembers the attrs a logger was enriched with.
type attrRecorder struct {
	attrs map[string]any
	seen  *map[string]any
}

func (h *attrRecorder) Enabled(context.Context, slog.Level) bool { return true }
func (h *attrRecorder) Handle(context.Context, slog.Record) error {
	*h.seen = h.attrs
	return nil
}
func (h *attrRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &attrRecorder{attrs: map[string]any{}, seen: h.seen}
	for k, v := range h.attrs {
		next.attrs[k] = v
	}
	for _, a := range attrs {
		next.attrs[a.Key] = a.Value.Any()
	}
	return next
}
func (h *attrRecorder) WithGroup(string) slog.Handler { return h }

func fixture() (staticResolver, authz.OwnerLookupFunc) {
	res := staticResolver{
		"Bearer alice": {Outcome: principal.Authenticated, Principal: &principal.Principal{ID: "alice", Role: "user", Status: "active"}},
		"Bearer bob":   {Outcome: principal.Authenticated, Principal: &principal.Principal{ID: "bob", Role: "user", Status: "active"}},
		"Bearer mod":   {Outcome: principal.Authenticated, Principal: &principal.Principal{ID: "mod", Role: "moderator", Status: "active"}},
	}
	owners := authz.OwnerLookupFunc(func(_ context.Context, ref string) (string, bool, error) {
		if ref == "p1" {
			return "alice", true, nil
		}
		return "", false, nil
	})
	return res, owners
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestGuard_RequiredOwnerOrRole(t *testing.T) {
	res, owners := fixture()
	r := chi.NewRouter()
	r.With(Guard(authz.Chain{authz.Required(res), authz.OwnerOrRole(owners, "moderator")}, "postId")).
		Delete("/posts/{postId}", func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r)
			if !ok {
				t.Error("principal not bound")
			}
			w.Header().Set("X-Caller", p.ID)
			w.WriteHeader(http.StatusNoContent)
		})

	tests := []struct {
		name       string
		auth       string
		path       string
		wantStatus int
		wantCode   string
		wantRole   string
	}{
		{"owner", "Bearer alice", "/posts/p1", http.StatusNoContent, "", ""},
		{"elevated", "Bearer mod", "/posts/p1", http.StatusNoContent, "", ""},
		{"stranger", "Bearer bob", "/posts/p1", http.StatusForbidden, "not_owner", "user"},
		{"anonymous", "", "/posts/p1", http.StatusUnauthorized, "unauthenticated", ""},
		{"garbage", "Token xyz", "/posts/p1", http.StatusUnauthorized, "malformed", ""},
		{"missing post", "Bearer alice", "/posts/nope", http.StatusNotFound, "not_found", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			body := decode(t, rr)
			if body["success"] != false || body["code"] != tt.wantCode {
				t.Errorf("body = %v", body)
			}
			if tt.wantRole != "" && body["role"] != tt.wantRole {
				t.Errorf("role = %v, want %s", body["role"], tt.wantRole)
			}
		})
	}
}

func TestGuard_OptionalPassesAnonymousAndBad(t *testing.T) {
	res, _ := fixture()
	r := chi.NewRouter()
	r.With(Guard(authz.Chain{authz.Optional(res)}, "")).
		Get("/posts", func(w http.ResponseWriter, r *http.Request) {
			if p, ok := PrincipalFrom(r); ok {
				w.Header().Set("X-Caller", p.ID)
			}
		})

	for _, header := range []string{"", "Bearer nobody", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK || rr.Header().Get("X-Caller") != "" {
			t.Errorf("header %q: status %d caller %q", header, rr.Code, rr.Header().Get("X-Caller"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer bob")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Header().Get("X-Caller") != "bob" {
		t.Errorf("expected bob bound, got %q", rr.Header().Get("X-Caller"))
	}
}

func TestGuard_RoleGateReportsRequiredRoles(t *testing.T) {
	res, _ := fixture()
	r := chi.NewRouter()
	r.With(Guard(authz.Chain{authz.Required(res), authz.RequireRole("admin")}, "")).
		Put("/admin", func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		})

	req := httptest.NewRequest(http.MethodPut, "/admin", nil)
	req.Header.Set("Authorization", "Bearer mod")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode(t, rr)
	if body["code"] != "insufficient_role" || body["role"] != "moderator" {
		t.Errorf("body = %v", body)
	}
	roles, _ := body["requiredRoles"].([]any)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("requiredRoles = %v", body["requiredRoles"])
	}
}

func TestGuard_EnrichesLoggerWithUserID(t *testing.T) {
	res, _ := fixture()
	var seen map[string]any
	base := slog.New(&attrRecorder{attrs: map[string]any{}, seen: &seen})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(appctx.WithLogger(r.Context(), base)))
		})
	})
	r.With(Guard(authz.Chain{authz.Required(res)}, "")).
		Get("/me", func(w http.ResponseWriter, r *http.Request) {
			appctx.GetLogger(r.Context()).Info("handled")
		})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer alice")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if seen["user_id"] != "alice" {
		t.Errorf("user_id = %v", seen["user_id"])
	}
}
