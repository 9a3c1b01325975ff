package svgdoc

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"
)

// Attr is one attribute. Order is preserved exactly as parsed or set.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of the document tree. Text nodes have an empty Tag
// and carry their character data in Text.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
	Text     string
}

// IsText reports whether the node is a character-data node.
func (e *Element) IsText() bool { return e.Tag == "" }

// Attr returns the value of the named attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, preserving its position when it already exists.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.Attrs {
		if a.Name == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

// RemoveAttr deletes an attribute. Removing an absent attribute is a no-op.
func (e *Element) RemoveAttr(name string) {
	for i, a := range e.Attrs {
		if a.Name == name {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// ID returns the element's id attribute, or "".
func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

var prologRe = regexp.MustCompile(`<\?xml[^?]*\?>\s*`)

// Parse parses markup into a read-only element tree without touching ids.
// Used by inspection code that must see the markup exactly as written.
func Parse(markup string) (*Element, error) {
	return parseTree(markup)
}

// Walk visits every element node of the subtree in document order, root
// included, passing each node's parent (nil for the root). Returning false
// stops the walk.
func Walk(root *Element, fn func(parent, el *Element) bool) {
	walk(root, fn)
}

// TextContent returns the concatenated character data of the subtree.
func (e *Element) TextContent() string {
	var b strings.Builder
	var rec func(*Element)
	rec = func(n *Element) {
		if n.IsText() {
			b.WriteString(n.Text)
			return
		}
		for _, c := range n.Children {
			rec(c)
		}
	}
	rec(e)
	return b.String()
}

// parseTree parses markup into an element tree rooted at the first <svg>
// element. The XML prolog is stripped first. encoding/xml resolves namespace
// prefixes to URIs; the parser keeps a prefix table so serialization writes
// the original prefixed names back (xlink:href, xml:space, ...).
func parseTree(markup string) (*Element, error) {
	cleaned := prologRe.ReplaceAllString(markup, "")
	dec := xml.NewDecoder(strings.NewReader(cleaned))

	prefixByURI := map[string]string{
		"http://www.w3.org/XML/1998/namespace": "xml",
	}
	defaultURIs := map[string]bool{}

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if root != nil && len(stack) == 0 {
				// Trailing garbage after the closed root; keep what parsed.
				break
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					prefixByURI[a.Value] = a.Name.Local
					el.Attrs = append(el.Attrs, Attr{Name: "xmlns:" + a.Name.Local, Value: a.Value})
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					defaultURIs[a.Value] = true
					el.Attrs = append(el.Attrs, Attr{Name: "xmlns", Value: a.Value})
				default:
					el.Attrs = append(el.Attrs, Attr{Name: qualify(a.Name, prefixByURI, nil), Value: a.Value})
				}
			}
			el.Tag = qualify(t.Name, prefixByURI, defaultURIs)
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil && el.Tag == "svg" {
				root = el
			} else if root == nil {
				// Non-svg root: not a document we accept.
				return nil, errNoSVGRoot
			}
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, &Element{Text: string(t)})
			}

		case xml.Comment, xml.ProcInst, xml.Directive:
			// Dropped: comments and directives are not part of the model.
		}
	}

	if root == nil {
		return nil, errNoSVGRoot
	}
	return root, nil
}

// qualify maps a resolved xml.Name back to its source spelling.
func qualify(n xml.Name, prefixByURI map[string]string, defaultURIs map[string]bool) string {
	if n.Space == "" || n.Space == svgNamespace || (defaultURIs != nil && defaultURIs[n.Space]) {
		return n.Local
	}
	if p, ok := prefixByURI[n.Space]; ok && p != "" {
		return p + ":" + n.Local
	}
	// Unresolvable prefix: encoding/xml leaves the prefix itself in Space.
	return n.Space + ":" + n.Local
}

// serialize writes the subtree as markup, with no added whitespace and
// self-closing tags for childless elements.
func serialize(e *Element, b *strings.Builder) {
	if e.IsText() {
		b.WriteString(escapeText(e.Text))
		return
	}
	b.WriteByte('<')
	b.WriteString(e.Tag)
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	if len(e.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range e.Children {
		serialize(c, b)
	}
	b.WriteString("</")
	b.WriteString(e.Tag)
	b.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

// walk visits every element node in the subtree in document order,
// root included. Returning false stops the walk.
func walk(e *Element, fn func(parent, el *Element) bool) {
	var rec func(parent, el *Element) bool
	rec = func(parent, el *Element) bool {
		if !el.IsText() {
			if !fn(parent, el) {
				return false
			}
		}
		for _, c := range el.Children {
			if !rec(el, c) {
				return false
			}
		}
		return true
	}
	rec(nil, e)
}
