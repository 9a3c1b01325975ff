// Command inkpad runs the SVG editing daemon: the HTTP control surface for
// MCP clients, the session manager, and the recent-projects library.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/inkpadhq/inkpad/config"
	"github.com/inkpadhq/inkpad/control"
	"github.com/inkpadhq/inkpad/library"
	"github.com/inkpadhq/inkpad/render"
	"github.com/inkpadhq/inkpad/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("INKPAD_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Recent-projects library.
	lib, err := library.Open(cfg.LibraryPath())
	if err != nil {
		slog.Error("library", "error", err)
		os.Exit(1)
	}
	defer lib.Close()

	// Offline rasterizer: Chrome launches lazily on first screenshot.
	raster := render.NewRasterizer(logger)
	defer raster.Close()

	manager := session.NewManager(session.Options{
		Rasterizer: raster,
		Library:    lib,
		Logger:     logger,
	})
	defer manager.Shutdown()

	srv := control.NewServer(manager, control.Options{
		Addr:    cfg.Addr(),
		Library: lib,
		Logger:  logger,
	})

	slog.Info("inkpad starting", "version", control.Version, "addr", cfg.Addr(), "library", cfg.LibraryPath())
	if err := srv.Start(ctx); err != nil {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
	slog.Info("inkpad stopped")
}
