package svgdoc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FormatVersion is the project-file format version written by this build.
const FormatVersion = "0.2.0"

// ProjectExt is the project file suffix.
const ProjectExt = ".inkp"

// ErrProject is returned when project JSON is invalid or carries no markup.
var ErrProject = errors.New("svgdoc: invalid project file")

// Project is the persisted representation of a document.
type Project struct {
	Version  string   `json:"inkpad"`
	Name     string   `json:"name"`
	SVG      string   `json:"svg"`
	Artboard Artboard `json:"artboard"`
}

// Artboard holds presentation state persisted alongside the markup.
type Artboard struct {
	Color string `json:"color"`
}

// ProjectJSON serializes the current state as project JSON. An empty name
// keeps the document's own name.
func (d *Document) ProjectJSON(name string) string {
	if name == "" {
		name = d.Name()
	}
	p := Project{
		Version:  FormatVersion,
		Name:     name,
		SVG:      d.SVG(),
		Artboard: Artboard{Color: d.ArtboardColor()},
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	return string(out)
}

// ParseProject decodes project JSON. Missing or empty markup is a failed
// load, not a crash; name and artboard color fall back to their defaults.
func ParseProject(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProject, err)
	}
	if p.SVG == "" {
		return nil, fmt.Errorf("%w: no svg data", ErrProject)
	}
	if p.Name == "" {
		p.Name = "Untitled"
	}
	if p.Artboard.Color == "" {
		p.Artboard.Color = "#ffffff"
	}
	return &p, nil
}

// LoadProject replaces the document content and metadata from a parsed
// project.
func (d *Document) LoadProject(p *Project) error {
	if err := d.Create(p.SVG); err != nil {
		return err
	}
	d.SetArtboardColor(p.Artboard.Color)
	d.mu.Lock()
	d.name = p.Name
	d.mu.Unlock()
	return nil
}
