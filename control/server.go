// Package control is the HTTP control plane: the SSE endpoint where MCP
// clients connect, the message ingress that routes posted JSON-RPC to the
// right connection, a health probe, and the internal sync ingress used by
// out-of-process peers.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkpadhq/inkpad/idgen"
	"github.com/inkpadhq/inkpad/kit"
	"github.com/inkpadhq/inkpad/library"
	"github.com/inkpadhq/inkpad/session"
)

// Version is the build version reported to MCP clients.
const Version = "0.2.0"

// Options configures the control server.
type Options struct {
	// Addr is the listen address, e.g. ":7100".
	Addr string
	// Library backs the library_list tool. Nil disables it.
	Library *library.Store
	Logger  *slog.Logger
}

// Server multiplexes MCP control sessions over HTTP. Each GET /sse spawns a
// dedicated MCP server bound to that connection; POST /messages routes by
// session id.
type Server struct {
	opts    Options
	manager *session.Manager
	ids     idgen.Generator

	mu       sync.Mutex
	sessions map[string]*mcp.SSEServerTransport

	httpSrv *http.Server
	stopped sync.Once
}

// NewServer creates the control server around a session manager.
func NewServer(manager *session.Manager, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":7100"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		opts:     opts,
		manager:  manager,
		ids:      idgen.NanoID(21),
		sessions: make(map[string]*mcp.SSEServerTransport),
	}
}

// NewStdioServer builds a standalone MCP server carrying the full tool set,
// for serving over a stdio transport instead of SSE.
func NewStdioServer(manager *session.Manager, logger *slog.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "inkpad-agent", Version: Version}, nil)
	registerTools(srv, manager, nil, logger)
	return srv
}

// Router builds the chi router. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/sse", s.handleSSE)
	r.Post("/messages", s.handleMessages)
	r.Post("/internal/sync", s.handleSync)
	return r
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. A port already in use surfaces as an error, not a log line: two
// daemons must not race for the same control port.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("control: server starting", "addr", s.opts.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("control: listen on %s: %w", s.opts.Addr, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopped.Do(func() {
		if s.httpSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = s.httpSrv.Shutdown(shutdownCtx)
		s.opts.Logger.Info("control: server stopped")
	})
	return err
}

// SessionCount returns the number of connected MCP clients.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handleSSE establishes one MCP control session. The connection gets its own
// mcp.Server with the full tool set; the transport's endpoint event tells the
// client where to POST its messages. Blocks for the lifetime of the
// connection.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := s.ids()
	endpoint := "/messages?sessionid=" + sessionID

	transport := &mcp.SSEServerTransport{Endpoint: endpoint, Response: w}

	s.mu.Lock()
	s.sessions[sessionID] = transport
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		s.opts.Logger.Info("control: session closed", "session", sessionID)
	}()

	srv := mcp.NewServer(&mcp.Implementation{Name: "inkpad", Version: Version}, nil)
	registerTools(srv, s.manager, s.opts.Library, s.opts.Logger)

	s.opts.Logger.Info("control: session opened", "session", sessionID)
	ctx := kit.WithSessionID(r.Context(), sessionID)
	if err := srv.Run(ctx, transport); err != nil && ctx.Err() == nil {
		s.opts.Logger.Warn("control: session ended with error", "session", sessionID, "error", err)
	}
}

// handleMessages routes a posted JSON-RPC message to its session's transport.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionid")

	s.mu.Lock()
	transport, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	transport.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.SessionCount(),
	})
}

// syncRequest is the payload out-of-process peers push to mirror their state
// into the active document.
type syncRequest struct {
	SVG           string `json:"svg"`
	Action        string `json:"action"`
	ArtboardColor string `json:"artboardColor"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.manager.SyncExternal(req.SVG, req.Action, req.ArtboardColor); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
