package session

import "errors"

// ErrNoSurface is returned when an operation needs an interactive visual
// surface and none is attached.
var ErrNoSurface = errors.New("session: no visual surface attached")

// Surface is one visual surface bound to a session instance. The concrete
// rendering lives outside this package; the manager only pushes state and
// asks for renders.
type Surface interface {
	// PostSVG pushes the serialized document to the surface.
	PostSVG(svg string) error
	// PostArtboard pushes the artboard background color.
	PostArtboard(color string) error
	// PostRenderRequest asks the surface to produce a screenshot; the
	// response arrives through the manager's render queue.
	PostRenderRequest() error
	// Reveal brings the surface to front.
	Reveal() error
	// Close releases the surface.
	Close() error
}

// SurfaceFactory builds the surface for a resource ("" is the scratch
// document's surface).
type SurfaceFactory func(resourceID string) Surface

// nullSurface is used when no interactive surface exists (headless mode).
// Render requests fail fast so callers fall through to the offline
// rasterizer.
type nullSurface struct{}

func (nullSurface) PostSVG(string) error      { return nil }
func (nullSurface) PostArtboard(string) error { return nil }
func (nullSurface) PostRenderRequest() error  { return ErrNoSurface }
func (nullSurface) Reveal() error             { return nil }
func (nullSurface) Close() error              { return nil }

// NullSurfaceFactory returns a factory producing inert surfaces.
func NullSurfaceFactory() SurfaceFactory {
	return func(string) Surface { return nullSurface{} }
}
