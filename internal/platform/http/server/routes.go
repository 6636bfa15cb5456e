package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/huddle-go/internal/components/api"
	"github.com/MahdiBaghbani/huddle-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/deps"
	httpmw "github.com/MahdiBaghbani/huddle-go/internal/platform/http/middleware"
)

// setupRoutes creates the chi router with all services mounted.
func (s *Server) setupRoutes() chi.Router {
	d := deps.GetDeps()
	r := chi.NewRouter()

	// Always-on transport middleware (order is invariant):
	// RequestID -> request-scoped logger -> access log -> recoverer.
	// Authorization runs per route inside each service.
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger, d.RealIP))
	r.Use(httpmw.AccessLogMiddleware(s.logger, d.RealIP))
	r.Use(chimw.Recoverer)

	// Mount in CoreServices order so shutdown order is deterministic.
	for _, name := range service.CoreServices {
		s.mountService(r, s.services[name])
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

// mountService mounts a service at its prefix and tracks it for lifecycle management.
func (s *Server) mountService(r chi.Router, svc service.Service) {
	if svc == nil {
		return
	}

	prefix := svc.Prefix()
	if prefix == "" {
		r.Mount("/", svc.Handler())
	} else {
		r.Mount("/"+prefix, svc.Handler())
	}

	s.mountedServices = append(s.mountedServices, svc)
}
