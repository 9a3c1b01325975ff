package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Rasterizer converts markup directly to a PNG through headless Chrome. It
// is the deterministic offline path used when no interactive surface can
// answer a render request. Chrome is launched lazily on first use and
// reused until Close.
type Rasterizer struct {
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	logger  *slog.Logger
	closed  bool
}

// NewRasterizer creates a Rasterizer. A nil logger means slog.Default().
func NewRasterizer(logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{logger: logger}
}

// Render loads the markup as a data: URL and screenshots the page. The
// returned bytes are raw PNG.
func (r *Rasterizer) Render(ctx context.Context, svg string) ([]byte, error) {
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("render: create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	dataURL := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
	if err := page.Context(navCtx).Navigate(dataURL); err != nil {
		return nil, fmt.Errorf("render: navigate: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		r.logger.Warn("render: wait load timeout", "error", err)
	}

	png, err := page.Context(navCtx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("render: screenshot: %w", err)
	}
	return png, nil
}

// Close shuts down Chrome. Subsequent Render calls fail.
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			return fmt.Errorf("render: close browser: %w", err)
		}
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return nil
}

func (r *Rasterizer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("render: rasterizer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("render: launch chrome: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect: %w", err)
	}
	r.lnch = l
	r.browser = b
	r.logger.Info("render: launched headless chrome", "url", u)
	return b, nil
}
