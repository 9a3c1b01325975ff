// Package svgdoc holds the mutable SVG document model: an ordered-attribute
// element tree with stable identity assignment, change notification, and
// project-file round-tripping.
//
// A Document is exclusively owned by one session instance; operations are
// serialized through an internal mutex so concurrent control connections
// cannot interleave a mutation. Change subscribers run synchronously, in
// subscription order, after every successful mutation — they must not call
// back into the Document.
package svgdoc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// defaultRoot is the tree created when addElement runs against an empty
// document.
const defaultRoot = `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600"/>`

// ErrParse is returned when markup cannot be parsed; the previous tree is
// left untouched.
var ErrParse = errors.New("svgdoc: unparsable markup")

var errNoSVGRoot = errors.New("svgdoc: no <svg> root element")

// structuralTags never receive auto-generated ids: they are definitions or
// metadata, not visually rendered content.
var structuralTags = map[string]bool{
	"defs": true, "desc": true, "title": true, "metadata": true,
	"symbol": true, "linearGradient": true, "radialGradient": true,
	"stop": true, "clipPath": true, "mask": true, "pattern": true,
	"filter": true, "feBlend": true, "feColorMatrix": true,
	"feComponentTransfer": true, "feComposite": true,
	"feConvolveMatrix": true, "feDiffuseLighting": true,
	"feDisplacementMap": true, "feFlood": true, "feGaussianBlur": true,
	"feImage": true, "feMerge": true, "feMergeNode": true,
	"feMorphology": true, "feOffset": true, "feSpecularLighting": true,
	"feTile": true, "feTurbulence": true,
}

// ElementInfo describes one element for listing: id, tag, and the full
// attribute map.
type ElementInfo struct {
	ID         string            `json:"id"`
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes"`
}

// Document is one SVG document: the tree, the id counter, and the project
// metadata that is persisted alongside the markup but never serialized
// into it.
type Document struct {
	mu        sync.Mutex
	root      *Element
	idCounter int

	// Path is the backing project file ("" for a scratch document).
	path string
	name string
	// artboardColor is presentation-only: persisted in the project file,
	// never written into the markup.
	artboardColor string

	subscribers []func(svg string)
}

// New returns an empty unsaved document.
func New() *Document {
	return &Document{name: "Untitled", artboardColor: "#ffffff"}
}

// Subscribe appends a change callback. Subscribers are invoked synchronously
// after each successful mutation, in subscription order, with the serialized
// result.
func (d *Document) Subscribe(fn func(svg string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// IsEmpty reports whether no root element exists.
func (d *Document) IsEmpty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root == nil
}

// Name returns the display name.
func (d *Document) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Path returns the backing project file path, "" for a scratch document.
func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// ArtboardColor returns the artboard background color.
func (d *Document) ArtboardColor() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.artboardColor
}

// SetArtboardColor sets the artboard background color.
func (d *Document) SetArtboardColor(color string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if color != "" {
		d.artboardColor = color
	}
}

// SetProject records the backing file and display name.
func (d *Document) SetProject(path, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
	if name != "" {
		d.name = name
	}
}

// ClearProject detaches the document from its backing file.
func (d *Document) ClearProject() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = ""
	d.name = "Untitled"
}

// Create parses markup, strips the XML prolog, replaces the tree, and
// assigns ids to visually-rendered elements that lack one. On parse failure
// the previous tree is left untouched and ErrParse is returned.
func (d *Document) Create(markup string) error {
	d.mu.Lock()
	root, err := parseTree(markup)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	d.root = root
	d.ensureIDs()
	svg := d.serializeLocked()
	subs := d.subscribers
	d.mu.Unlock()

	d.notify(subs, svg)
	return nil
}

// Set replaces the whole tree. Identical to Create.
func (d *Document) Set(markup string) error { return d.Create(markup) }

// SVG serializes the current root, or "" when the document is empty.
func (d *Document) SVG() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serializeLocked()
}

// AddElement appends a new element as the last child of the root, creating a
// default-sized root first if the document is empty. A caller-supplied "id"
// attribute wins; otherwise an id is generated. Returns the element's id.
func (d *Document) AddElement(tag string, attributes map[string]string) string {
	d.mu.Lock()
	if d.root == nil {
		// Lazy self-initialization; defaultRoot always parses.
		d.root, _ = parseTree(defaultRoot)
	}

	el := &Element{Tag: tag}
	id := attributes["id"]
	if id == "" {
		id = d.generateIDLocked()
	}
	el.SetAttr("id", id)
	for _, k := range sortedKeys(attributes) {
		if k != "id" {
			el.SetAttr(k, attributes[k])
		}
	}
	d.root.Children = append(d.root.Children, el)

	svg := d.serializeLocked()
	subs := d.subscribers
	d.mu.Unlock()

	d.notify(subs, svg)
	return id
}

// UpdateElement sets attributes on the element with the given id. An
// empty-string value removes the attribute instead of setting it. Returns
// false, without emitting a change, when the id is unknown.
func (d *Document) UpdateElement(id string, attributes map[string]string) bool {
	d.mu.Lock()
	el := d.findLocked(id)
	if el == nil {
		d.mu.Unlock()
		return false
	}
	for _, k := range sortedKeys(attributes) {
		if v := attributes[k]; v == "" {
			el.RemoveAttr(k)
		} else {
			el.SetAttr(k, v)
		}
	}
	svg := d.serializeLocked()
	subs := d.subscribers
	d.mu.Unlock()

	d.notify(subs, svg)
	return true
}

// RemoveElement detaches the subtree rooted at the given id. Returns false,
// without emitting a change, when the id is unknown.
func (d *Document) RemoveElement(id string) bool {
	d.mu.Lock()
	if d.root == nil {
		d.mu.Unlock()
		return false
	}

	found := false
	if d.root.ID() == id {
		d.root = nil
		found = true
	} else {
		walk(d.root, func(parent, el *Element) bool {
			if parent == nil || el.ID() != id {
				return true
			}
			for i, c := range parent.Children {
				if c == el {
					parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
					break
				}
			}
			found = true
			return false
		})
	}
	if !found {
		d.mu.Unlock()
		return false
	}

	svg := d.serializeLocked()
	subs := d.subscribers
	d.mu.Unlock()

	d.notify(subs, svg)
	return true
}

// ListElements returns id, tag, and attributes for every element under the
// root, in document order. The root itself is not listed.
func (d *Document) ListElements() []ElementInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return nil
	}

	var out []ElementInfo
	walk(d.root, func(parent, el *Element) bool {
		if parent == nil {
			return true
		}
		attrs := make(map[string]string, len(el.Attrs))
		for _, a := range el.Attrs {
			attrs[a.Name] = a.Value
		}
		out = append(out, ElementInfo{ID: el.ID(), Tag: el.Tag, Attributes: attrs})
		return true
	})
	return out
}

// Root returns the root element for read-only inspection, or nil.
func (d *Document) Root() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root
}

func (d *Document) notify(subs []func(string), svg string) {
	for _, fn := range subs {
		fn(svg)
	}
}

func (d *Document) serializeLocked() string {
	if d.root == nil {
		return ""
	}
	var b strings.Builder
	serialize(d.root, &b)
	return b.String()
}

func (d *Document) findLocked(id string) *Element {
	if d.root == nil || id == "" {
		return nil
	}
	var found *Element
	walk(d.root, func(_, el *Element) bool {
		if el.ID() == id {
			found = el
			return false
		}
		return true
	})
	return found
}

// generateIDLocked returns the next id of the form "ink-<n>". The counter is
// scoped to the document instance and never reused, even across removals.
func (d *Document) generateIDLocked() string {
	for {
		d.idCounter++
		id := fmt.Sprintf("ink-%d", d.idCounter)
		if d.findLocked(id) == nil {
			return id
		}
	}
}

// ensureIDs assigns ids to visually-rendered elements lacking one, and
// reassigns duplicates so ids stay document-unique. The root and structural
// tags are skipped.
func (d *Document) ensureIDs() {
	if d.root == nil {
		return
	}
	seen := map[string]bool{}
	walk(d.root, func(parent, el *Element) bool {
		if parent == nil || structuralTags[el.Tag] {
			return true
		}
		id := el.ID()
		if id == "" || seen[id] {
			id = d.generateIDLocked()
			el.SetAttr("id", id)
		}
		seen[id] = true
		return true
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
