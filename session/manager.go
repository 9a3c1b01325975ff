// Package session owns the mapping from backing resources to live editing
// instances. Every instance pairs a document with its visual surface; the
// manager tracks which one is focused, keeps backing project files in sync
// both ways, and brokers screenshot requests.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/inkpadhq/inkpad/library"
	"github.com/inkpadhq/inkpad/render"
	"github.com/inkpadhq/inkpad/svgdoc"
	"github.com/inkpadhq/inkpad/watch"
)

// Rasterizer is the offline render path used when no surface answers.
// *render.Rasterizer satisfies it.
type Rasterizer interface {
	Render(ctx context.Context, svg string) ([]byte, error)
}

// Options configures a Manager.
type Options struct {
	// Surfaces builds the visual surface for each instance. Nil means
	// NullSurfaceFactory (headless).
	Surfaces SurfaceFactory
	// Rasterizer is the screenshot fallback. Nil disables the fallback.
	Rasterizer Rasterizer
	// Library records opened and saved projects. Nil disables recording.
	Library *library.Store
	// RenderTimeout bounds surface screenshot requests. Default 5s.
	RenderTimeout time.Duration
	// WatchInterval is the backing-file poll frequency. Default 1s.
	WatchInterval time.Duration
	// WatchDebounce is the quiet window after an external change. Default
	// 300ms.
	WatchDebounce time.Duration
	Logger        *slog.Logger
}

func (o *Options) defaults() {
	if o.Surfaces == nil {
		o.Surfaces = NullSurfaceFactory()
	}
	if o.WatchInterval <= 0 {
		o.WatchInterval = time.Second
	}
	if o.WatchDebounce <= 0 {
		o.WatchDebounce = 300 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Instance is one live editing session: a document bound to a surface, plus
// the change listener on its backing file when it has one.
type Instance struct {
	resourceID string
	doc        *svgdoc.Document
	surface    Surface
	watcher    *watch.Watcher
	cancel     context.CancelFunc
}

// ResourceID returns the backing project path, "" for the scratch instance.
func (i *Instance) ResourceID() string { return i.resourceID }

// Document returns the instance's document.
func (i *Instance) Document() *svgdoc.Document { return i.doc }

// Surface returns the instance's visual surface.
func (i *Instance) Surface() Surface { return i.surface }

// Manager tracks all live instances and the focused one.
type Manager struct {
	opts  Options
	queue *render.Queue

	mu        sync.Mutex
	scratch   *Instance
	instances map[string]*Instance
	focused   string
}

// Screenshot is the result of a screenshot attempt: a PNG when any render
// path succeeded, otherwise the raw markup so callers can degrade to text.
type Screenshot struct {
	PNG    []byte
	Markup string
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	opts.defaults()
	return &Manager{
		opts:      opts,
		queue:     render.NewQueue(opts.RenderTimeout),
		instances: make(map[string]*Instance),
	}
}

// ResolveRender fulfills the oldest pending screenshot request. Surfaces call
// it when their render reply arrives.
func (m *Manager) ResolveRender(data string) { m.queue.Resolve(data) }

// ActiveInstance returns the focused instance, falling back to the scratch
// instance (created lazily). Callers must re-resolve per operation: focus can
// move between calls.
func (m *Manager) ActiveInstance() *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focused != "" {
		if inst, ok := m.instances[m.focused]; ok {
			return inst
		}
		m.focused = ""
	}
	return m.ensureScratchLocked()
}

// ActiveDocument returns the focused instance's document.
func (m *Manager) ActiveDocument() *svgdoc.Document {
	return m.ActiveInstance().doc
}

// Focus marks the instance for resourceID as active; "" switches back to the
// scratch instance. Unknown ids are ignored.
func (m *Manager) Focus(resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resourceID == "" {
		m.focused = ""
		return
	}
	if _, ok := m.instances[resourceID]; ok {
		m.focused = resourceID
	}
}

// InstanceCount returns the number of resource-backed instances.
func (m *Manager) InstanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// OpenResource returns the instance for resourceID, creating one from the
// given project content if needed. Unparsable content still yields a live
// instance with an empty document. The instance becomes focused.
func (m *Manager) OpenResource(resourceID string, content []byte) *Instance {
	m.mu.Lock()
	if inst, ok := m.instances[resourceID]; ok {
		m.focused = resourceID
		m.mu.Unlock()
		m.pushState(inst)
		return inst
	}

	inst := &Instance{
		resourceID: resourceID,
		doc:        svgdoc.New(),
		surface:    m.opts.Surfaces(resourceID),
	}
	m.instances[resourceID] = inst
	m.focused = resourceID
	m.mu.Unlock()

	if p, err := svgdoc.ParseProject(content); err != nil {
		m.opts.Logger.Warn("session: project unreadable, starting empty", "resource", resourceID, "error", err)
		inst.doc.SetProject(resourceID, "")
	} else {
		inst.doc.SetProject(resourceID, p.Name)
		if err := inst.doc.LoadProject(p); err != nil {
			m.opts.Logger.Warn("session: markup unparsable, starting empty", "resource", resourceID, "error", err)
		}
	}

	// Subscribe after the initial load so the load itself does not write the
	// file straight back.
	inst.doc.Subscribe(func(svg string) { m.onDocChange(inst, svg) })

	ctx, cancel := context.WithCancel(context.Background())
	inst.cancel = cancel
	inst.watcher = watch.New(watch.FileVersion(resourceID), watch.Options{
		Interval: m.opts.WatchInterval,
		Debounce: m.opts.WatchDebounce,
		Logger:   m.opts.Logger,
	})
	go inst.watcher.OnChange(ctx, func() error { return m.reload(inst) })

	m.pushState(inst)
	return inst
}

// OpenProject opens the project file at path, records it in the library, and
// focuses its instance. Unlike OpenResource, a file that cannot be read is
// an error: the caller named a path that does not hold a project.
func (m *Manager) OpenProject(ctx context.Context, path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: open project: %w", err)
	}
	if _, err := svgdoc.ParseProject(data); err != nil {
		return nil, fmt.Errorf("session: open project: %w", err)
	}
	inst := m.OpenResource(path, data)
	m.touchLibrary(ctx, path, inst.doc.Name())
	return inst, nil
}

// SaveProject writes the active document to path as project JSON and binds
// the document to it. An empty path reuses the document's current one.
func (m *Manager) SaveProject(ctx context.Context, path, name string) (string, error) {
	inst := m.ActiveInstance()
	if path == "" {
		path = inst.doc.Path()
	}
	if path == "" {
		return "", fmt.Errorf("session: no target path and document is unsaved")
	}
	if !strings.HasSuffix(path, svgdoc.ProjectExt) {
		path += svgdoc.ProjectExt
	}

	inst.doc.SetProject(path, name)
	if err := m.writeProject(inst, path); err != nil {
		return "", err
	}
	m.touchLibrary(ctx, path, inst.doc.Name())
	return path, nil
}

// UpdateWebview pushes the active document's full state to its surface.
func (m *Manager) UpdateWebview() {
	m.pushState(m.ActiveInstance())
}

// Reveal brings the active surface to front.
func (m *Manager) Reveal() error {
	return m.ActiveInstance().surface.Reveal()
}

// SyncExternal ingests state pushed by an out-of-process peer: optional
// markup, artboard color, and an "open" action that reveals the surface.
func (m *Manager) SyncExternal(svg, action, artboardColor string) error {
	inst := m.ActiveInstance()
	if artboardColor != "" {
		inst.doc.SetArtboardColor(artboardColor)
		if err := inst.surface.PostArtboard(artboardColor); err != nil {
			m.opts.Logger.Warn("session: artboard push failed", "error", err)
		}
	}
	if svg != "" {
		if err := inst.doc.Set(svg); err != nil {
			return err
		}
	}
	if action == "open" {
		if err := inst.surface.Reveal(); err != nil {
			m.opts.Logger.Warn("session: reveal failed", "error", err)
		}
	}
	return nil
}

// CloseResource disposes the instance for resourceID: its watcher stops, any
// pending screenshot requests resolve empty, and the surface is released.
// Returns false when no such instance exists.
func (m *Manager) CloseResource(resourceID string) bool {
	m.mu.Lock()
	inst, ok := m.instances[resourceID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.instances, resourceID)
	if m.focused == resourceID {
		m.focused = ""
	}
	m.mu.Unlock()

	if inst.cancel != nil {
		inst.cancel()
	}
	m.queue.DisposeSurface(inst.surface)
	if err := inst.surface.Close(); err != nil {
		m.opts.Logger.Warn("session: surface close failed", "resource", resourceID, "error", err)
	}
	return true
}

// Screenshot captures the active document. The surface is asked first; if it
// cannot answer within the render timeout the offline rasterizer runs; if
// that is unavailable too, the raw markup is returned so the caller can fall
// back to text.
func (m *Manager) Screenshot(ctx context.Context) (Screenshot, error) {
	inst := m.ActiveInstance()
	svg := inst.doc.SVG()

	data, err := m.queue.Request(ctx, inst.surface)
	if err != nil && !errors.Is(err, ErrNoSurface) {
		if ctx.Err() != nil {
			return Screenshot{}, err
		}
		m.opts.Logger.Warn("session: surface render failed", "error", err)
	}
	if png := decodeDataURL(data); png != nil {
		return Screenshot{PNG: png}, nil
	}

	if m.opts.Rasterizer != nil && svg != "" {
		png, rerr := m.opts.Rasterizer.Render(ctx, svg)
		if rerr == nil && len(png) > 0 {
			return Screenshot{PNG: png}, nil
		}
		if rerr != nil {
			m.opts.Logger.Warn("session: rasterizer failed", "error", rerr)
		}
	}
	return Screenshot{Markup: svg}, nil
}

// Shutdown disposes every instance.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	scratch := m.scratch
	m.scratch = nil
	m.mu.Unlock()

	for _, id := range ids {
		m.CloseResource(id)
	}
	if scratch != nil {
		m.queue.DisposeSurface(scratch.surface)
		_ = scratch.surface.Close()
	}
}

func (m *Manager) ensureScratchLocked() *Instance {
	if m.scratch == nil {
		inst := &Instance{doc: svgdoc.New(), surface: m.opts.Surfaces("")}
		inst.doc.Subscribe(func(svg string) { m.onDocChange(inst, svg) })
		m.scratch = inst
	}
	return m.scratch
}

// onDocChange runs synchronously after every document mutation: push the new
// state to the surface, then persist it when a backing file exists.
func (m *Manager) onDocChange(inst *Instance, svg string) {
	if err := inst.surface.PostSVG(svg); err != nil {
		m.opts.Logger.Warn("session: svg push failed", "resource", inst.resourceID, "error", err)
	}
	if inst.resourceID != "" {
		if err := m.writeProject(inst, inst.resourceID); err != nil {
			m.opts.Logger.Warn("session: persist failed", "resource", inst.resourceID, "error", err)
		}
	}
}

func (m *Manager) pushState(inst *Instance) {
	if svg := inst.doc.SVG(); svg != "" {
		if err := inst.surface.PostSVG(svg); err != nil {
			m.opts.Logger.Warn("session: svg push failed", "resource", inst.resourceID, "error", err)
		}
	}
	if err := inst.surface.PostArtboard(inst.doc.ArtboardColor()); err != nil {
		m.opts.Logger.Warn("session: artboard push failed", "resource", inst.resourceID, "error", err)
	}
}

// writeProject persists the document to path. Suppression brackets the write
// so the instance's own change listener never re-ingests it; identical
// content is skipped entirely.
func (m *Manager) writeProject(inst *Instance, path string) error {
	out := inst.doc.ProjectJSON("")
	if cur, err := os.ReadFile(path); err == nil && string(cur) == out {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("session: write project: %w", err)
	}
	if inst.watcher != nil {
		inst.watcher.SetSuppressed(true)
		defer inst.watcher.SetSuppressed(false)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("session: write project: %w", err)
	}
	if inst.watcher != nil {
		inst.watcher.Resync(context.Background())
	}
	return nil
}

// reload re-reads the backing file after an external change and replaces the
// document. Unreadable or unparsable content keeps the current state; the
// version still advances so a broken file does not retry every poll.
func (m *Manager) reload(inst *Instance) error {
	data, err := os.ReadFile(inst.resourceID)
	if err != nil {
		m.opts.Logger.Warn("session: reload read failed", "resource", inst.resourceID, "error", err)
		return nil
	}
	p, err := svgdoc.ParseProject(data)
	if err != nil {
		m.opts.Logger.Warn("session: reload parse failed", "resource", inst.resourceID, "error", err)
		return nil
	}
	if err := inst.doc.LoadProject(p); err != nil {
		m.opts.Logger.Warn("session: reload markup failed", "resource", inst.resourceID, "error", err)
		return nil
	}
	if err := inst.surface.PostArtboard(p.Artboard.Color); err != nil {
		m.opts.Logger.Warn("session: artboard push failed", "resource", inst.resourceID, "error", err)
	}
	m.opts.Logger.Info("session: reloaded from disk", "resource", inst.resourceID)
	return nil
}

func (m *Manager) touchLibrary(ctx context.Context, path, name string) {
	if m.opts.Library == nil {
		return
	}
	if err := m.opts.Library.Touch(ctx, path, name); err != nil {
		m.opts.Logger.Warn("session: library touch failed", "path", path, "error", err)
	}
}

// decodeDataURL extracts PNG bytes from a data URL; any other shape returns
// nil.
func decodeDataURL(s string) []byte {
	const marker = ";base64,"
	if !strings.HasPrefix(s, "data:image/") {
		return nil
	}
	i := strings.Index(s, marker)
	if i < 0 {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(s[i+len(marker):])
	if err != nil || len(raw) == 0 {
		return nil
	}
	return raw
}
