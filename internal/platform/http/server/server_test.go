package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/config"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/deps"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

// trackingService is a test service that records when Close() is called.
type trackingService struct {
	name       string
	prefix     string
	closeOrder *[]string
	closeErr   error
}

func (t *trackingService) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(t.name))
	})
	return r
}
func (t *trackingService) Prefix() string { return t.prefix }
func (t *trackingService) Close() error {
	*t.closeOrder = append(*t.closeOrder, t.name)
	return t.closeErr
}

var _ service.Service = (*trackingService)(nil)

func setupTestSharedDeps(t *testing.T) {
	t.Helper()
	deps.ResetDeps()
	deps.SetDeps(&deps.Deps{RealIP: realip.NewTrustedProxies(nil)})
	t.Cleanup(deps.ResetDeps)
}

func TestNew_FailsWithNilSharedDeps(t *testing.T) {
	deps.ResetDeps()
	defer deps.ResetDeps()

	_, err := New(config.DevConfig(), logutil.Noop(), nil)
	if !errors.Is(err, ErrMissingSharedDeps) {
		t.Errorf("expected ErrMissingSharedDeps, got: %v", err)
	}
}

func TestRoutes_MountsServiceUnderPrefix(t *testing.T) {
	setupTestSharedDeps(t)

	var order []string
	srv, err := New(config.DevConfig(), logutil.Noop(), map[string]service.Service{
		"api": &trackingService{name: "api", prefix: "api", closeOrder: &order},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "api" {
		t.Errorf("GET /api/ping = %d %q", rr.Code, rr.Body.String())
	}
}

func TestRoutes_UnknownPathIsJSON404(t *testing.T) {
	setupTestSharedDeps(t)

	srv, err := New(config.DevConfig(), logutil.Noop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["success"] != false || body["code"] != "not_found" {
		t.Errorf("body = %v", body)
	}
}

func TestShutdown_ClosesServicesAndReportsErrors(t *testing.T) {
	setupTestSharedDeps(t)

	var order []string
	closeErr := errors.New("flush failed")
	srv, err := New(config.DevConfig(), slog.New(slog.DiscardHandler), map[string]service.Service{
		"api": &trackingService{name: "api", prefix: "api", closeOrder: &order, closeErr: closeErr},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = srv.Shutdown(context.Background())
	if !errors.Is(err, closeErr) {
		t.Errorf("expected close error to surface, got %v", err)
	}
	if len(order) != 1 || order[0] != "api" {
		t.Errorf("close order = %v", order)
	}
}

func TestServe_StopsOnShutdown(t *testing.T) {
	setupTestSharedDeps(t)

	srv, err := New(config.DevConfig(), logutil.Noop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Wait until the listener answers before shutting down.
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/nowhere")
		if err == nil {
			resp.Body.Close()
			break
		}
		if ctx.Err() != nil {
			t.Fatal("server never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() returned %v after graceful shutdown", err)
	}
}

// slowService holds /slow open until release is closed.
type slowService struct {
	entered chan struct{}
	release chan struct{}
	record  func(string)
}

func (s *slowService) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(s.entered)
		<-s.release
		s.record("request committed")
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
func (s *slowService) Prefix() string { return "api" }
func (s *slowService) Close() error   { return nil }

func TestShutdown_RunsHooksAfterInFlightRequests(t *testing.T) {
	setupTestSharedDeps(t)

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	svc := &slowService{entered: make(chan struct{}), release: make(chan struct{}), record: record}
	srv, err := New(config.DevConfig(), logutil.Noop(), map[string]service.Service{"api": svc})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.AfterShutdown(func() { record("emitter stopped") })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	reqDone := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/slow", "application/json", nil)
		if err != nil {
			reqDone <- 0
			return
		}
		resp.Body.Close()
		reqDone <- resp.StatusCode
	}()
	<-svc.entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- srv.Shutdown(ctx) }()

	select {
	case <-shutdownDone:
		t.Fatal("Shutdown returned while a request was in flight")
	case <-time.After(100 * time.Millisecond):
	}
	mu.Lock()
	if len(events) != 0 {
		t.Errorf("hooks ran before the request finished: %v", events)
	}
	mu.Unlock()

	close(svc.release)
	if err := <-shutdownDone; err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if code := <-reqDone; code != http.StatusNoContent {
		t.Errorf("in-flight request status = %d, want 204", code)
	}
	<-served

	mu.Lock()
	defer mu.Unlock()
	want := []string{"request committed", "emitter stopped"}
	if len(events) != 2 || events[0] != want[0] || events[1] != want[1] {
		t.Errorf("events = %v, want %v", events, want)
	}
}
