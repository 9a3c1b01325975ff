// Command inkpad-agent is the stdio peer: the same editing tool set served
// over stdin/stdout for MCP clients that spawn their servers as subprocesses.
// It holds its own scratch document and mirrors every change to a running
// inkpad daemon's sync ingress, best-effort — without a daemon it still works
// standalone.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkpadhq/inkpad/control"
	"github.com/inkpadhq/inkpad/render"
	"github.com/inkpadhq/inkpad/session"
)

func main() {
	serverURL := env("INKPAD_SERVER_URL", "http://127.0.0.1:7100")

	// Stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	raster := render.NewRasterizer(logger)
	defer raster.Close()

	mirror := &mirrorSurface{
		baseURL: serverURL,
		client:  &http.Client{Timeout: 3 * time.Second},
		logger:  logger,
	}
	manager := session.NewManager(session.Options{
		Surfaces:   func(string) session.Surface { return mirror },
		Rasterizer: raster,
		Logger:     logger,
	})
	defer manager.Shutdown()

	srv := control.NewStdioServer(manager, logger)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("agent", "error", err)
		os.Exit(1)
	}
}

// mirrorSurface forwards document state to the daemon's /internal/sync
// ingress. Every call is best-effort: a daemon that is not running is not an
// error, the agent keeps editing locally.
type mirrorSurface struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func (s *mirrorSurface) PostSVG(svg string) error {
	s.post(map[string]string{"svg": svg})
	return nil
}

func (s *mirrorSurface) PostArtboard(color string) error {
	s.post(map[string]string{"artboardColor": color})
	return nil
}

// PostRenderRequest fails fast so screenshots go through the rasterizer.
func (s *mirrorSurface) PostRenderRequest() error { return session.ErrNoSurface }

func (s *mirrorSurface) Reveal() error {
	s.post(map[string]string{"action": "open"})
	return nil
}

func (s *mirrorSurface) Close() error { return nil }

func (s *mirrorSurface) post(payload map[string]string) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := s.client.Post(s.baseURL+"/internal/sync", "application/json", bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("agent: sync unreachable", "error", err)
		return
	}
	resp.Body.Close()
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
