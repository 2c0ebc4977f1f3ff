// Package webview serves the report panel as a local web page. Button clicks
// are posted back as panel messages.
package webview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/gordyrad/green-refactor/internal/panel"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

const maxMessageBytes = 4 << 20

// Each showDiff may start the external diff tool.
const (
	messageInterval = 200 * time.Millisecond
	messageBurst    = 5
)

// Server is a panel.View backed by an HTTP server.
type Server struct {
	addr    string
	limiter *rate.Limiter

	mu      sync.Mutex
	ctrl    *panel.Controller
	current panel.Rendering
	open    bool
	version int
}

// New creates a Server that will listen on addr.
func New(addr string) *Server {
	return &Server{
		addr:    addr,
		limiter: rate.NewLimiter(rate.Every(messageInterval), messageBurst),
	}
}

// Factory returns a ViewFactory that binds the controller to s. The server
// is reused across sessions.
func (s *Server) Factory() panel.ViewFactory {
	return func(c *panel.Controller) panel.View {
		s.mu.Lock()
		s.ctrl = c
		s.mu.Unlock()
		return s
	}
}

func (s *Server) Open(r panel.Rendering) error {
	return s.Render(r)
}

func (s *Server) Render(r panel.Rendering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = r
	s.open = true
	s.version++
	return nil
}

func (s *Server) Reveal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.open = false
	s.version++
}

// Handler returns the HTTP routes of the panel.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(s.localOnly)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Get("/", s.wrap(s.handleReport))
	mux.Get("/state", s.wrap(s.handleState))
	mux.Post("/message", s.wrap(s.handleMessage))
	mux.Post("/close", s.wrap(s.handleClose))

	return mux
}

// ListenAndServe serves until ctx is cancelled. ready, when non-nil,
// receives the bound address once the listener is up.
func (s *Server) ListenAndServe(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	slog.Info("webview: serving report panel", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var se *statusError
		var applyErr *workspace.EditApplyError
		switch {
		case errors.As(err, &se):
			http.Error(w, se.Error(), se.code)
		case errors.Is(err, panel.ErrCodeMismatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, panel.ErrStaleMessage):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.As(err, &applyErr):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.Error("webview: request failed", "path", req.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// localOnly rejects requests addressed to a foreign host name or sent from a
// foreign page, so a rebound DNS name cannot drive the panel.
func (s *Server) localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !s.allowedHost(req.Host) {
			slog.Warn("webview: rejected host", "host", req.Host, "path", req.URL.Path)
			http.Error(w, "forbidden host", http.StatusForbidden)
			return
		}
		if origin := req.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || !s.allowedHost(u.Host) {
				slog.Warn("webview: rejected origin", "origin", origin, "path", req.URL.Path)
				http.Error(w, "forbidden origin", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

// allowedHost accepts localhost, loopback addresses and the host the server
// was configured to listen on.
func (s *Server) allowedHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	if bound, _, err := net.SplitHostPort(s.addr); err == nil && bound != "" {
		if ip := net.ParseIP(bound); ip == nil || !ip.IsUnspecified() {
			return strings.EqualFold(bound, host)
		}
	}
	return false
}

type stateResponse struct {
	Open    bool   `json:"open"`
	Render  string `json:"render,omitempty"`
	Version int    `json:"version"`
}

func (s *Server) snapshot() (panel.Rendering, bool, int, *panel.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.open, s.version, s.ctrl
}

// GET /
func (s *Server) handleReport(w http.ResponseWriter, req *http.Request) error {
	r, open, version, _ := s.snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	return reportTemplate.Execute(w, newReportView(r, open, version))
}

// GET /state
func (s *Server) handleState(w http.ResponseWriter, req *http.Request) error {
	r, open, version, _ := s.snapshot()
	resp := stateResponse{Open: open, Version: version}
	if open {
		resp.Render = r.ID
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// POST /message
// Body: {"command": "showDiff"|"applyFix", "code": "...", "render": "<id>"}
func (s *Server) handleMessage(w http.ResponseWriter, req *http.Request) error {
	if !s.limiter.Allow() {
		return &statusError{code: http.StatusTooManyRequests, err: errors.New("too many messages, slow down")}
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxMessageBytes))
	if err != nil {
		return &statusError{code: http.StatusBadRequest, err: err}
	}
	msg, err := panel.DecodeMessage(body)
	if err != nil {
		return &statusError{code: http.StatusBadRequest, err: err}
	}

	_, _, _, ctrl := s.snapshot()
	if ctrl == nil {
		return panel.ErrStaleMessage
	}
	if err := ctrl.Dispatch(req.Context(), msg); err != nil {
		return err
	}

	_, open, _, _ := s.snapshot()
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]bool{"ok": true, "open": open})
}

// POST /close
func (s *Server) handleClose(w http.ResponseWriter, req *http.Request) error {
	_, _, _, ctrl := s.snapshot()
	if ctrl != nil {
		ctrl.OnDispose(s)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
