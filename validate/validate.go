// Package validate inspects SVG markup for authoring defects. Validation is
// pure and advisory: issues never mutate the document, and every positional
// heuristic stays at warning/suggestion severity because intentional designs
// can trip them.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/inkpadhq/inkpad/svgdoc"
)

// Severity classifies an issue.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Issue is one advisory finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Element  string   `json:"element,omitempty"`
}

var visualTags = map[string]bool{
	"rect": true, "circle": true, "ellipse": true, "line": true,
	"polygon": true, "polyline": true, "path": true, "text": true,
}

// Validate inspects markup and returns all findings, errors first only by
// construction order, not sorted.
func Validate(markup string) []Issue {
	var issues []Issue

	root, err := svgdoc.Parse(markup)
	if err != nil {
		return []Issue{{Severity: SeverityError, Message: "No <svg> root element found."}}
	}

	if _, ok := root.Attr("xmlns"); !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  `Missing xmlns attribute. Add xmlns="http://www.w3.org/2000/svg" to the <svg> element.`,
		})
	}

	viewBox, hasViewBox := root.Attr("viewBox")
	if !hasViewBox {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  "Missing viewBox attribute on <svg>. This is critical for scalable rendering.",
		})
	}

	var vbX, vbY, vbW, vbH float64
	if hasViewBox {
		parts := splitNumbers(viewBox)
		if len(parts) == 4 {
			vbX, vbY, vbW, vbH = parts[0], parts[1], parts[2], parts[3]
		} else {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Invalid viewBox format: %q. Expected \"x y width height\".", viewBox),
			})
		}
	}

	issues = append(issues, checkDefs(root)...)
	issues = append(issues, checkTextFonts(root)...)
	if vbW > 0 && vbH > 0 {
		issues = append(issues, checkBounds(root, viewBox, vbX, vbY, vbW, vbH)...)
	}
	issues = append(issues, checkDuplicatePositions(root)...)
	issues = append(issues, checkEmptyGroups(root)...)
	issues = append(issues, checkUnusedDefs(root, markup)...)
	issues = append(issues, checkMissingIDs(root)...)
	issues = append(issues, checkCircularTextPaths(root)...)

	if _, ok := root.Attr("width"); !ok {
		issues = append(issues, widthHeightSuggestion())
	} else if _, ok := root.Attr("height"); !ok {
		issues = append(issues, widthHeightSuggestion())
	}

	return issues
}

func widthHeightSuggestion() Issue {
	return Issue{
		Severity: SeveritySuggestion,
		Message:  "Consider adding explicit width and height attributes to the <svg> element for consistent default sizing.",
	}
}

func checkDefs(root *svgdoc.Element) []Issue {
	var hasDefs, hasDefinitions bool
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		switch el.Tag {
		case "defs":
			hasDefs = true
		case "linearGradient", "radialGradient", "filter":
			hasDefinitions = true
		}
		return true
	})
	if hasDefinitions && !hasDefs {
		return []Issue{{
			Severity: SeverityWarning,
			Message:  "Gradients or filters found outside of <defs>. Move them into a <defs> block.",
		}}
	}
	return nil
}

func checkTextFonts(root *svgdoc.Element) []Issue {
	var issues []Issue
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		if el.Tag != "text" {
			return true
		}
		_, hasFont := el.Attr("font-family")
		style, _ := el.Attr("style")
		if !hasFont && !strings.Contains(style, "font-family") {
			ref := el.ID()
			if ref == "" {
				ref = el.Tag
			}
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Text element %q has no font-family. Add font-family with fallbacks (e.g., \"Inter, Helvetica, Arial, sans-serif\").", ref),
				Element:  ref,
			})
		}
		return true
	})
	return issues
}

func checkBounds(root *svgdoc.Element, viewBox string, vbX, vbY, vbW, vbH float64) []Issue {
	var issues []Issue
	svgdoc.Walk(root, func(parent, el *svgdoc.Element) bool {
		var x, y, right, bottom float64
		switch el.Tag {
		case "rect", "image":
			x = num(el, "x")
			y = num(el, "y")
			right = x + num(el, "width")
			bottom = y + num(el, "height")
		case "circle":
			cx, cy, r := num(el, "cx"), num(el, "cy"), num(el, "r")
			x, y, right, bottom = cx-r, cy-r, cx+r, cy+r
		case "ellipse":
			cx, cy, rx, ry := num(el, "cx"), num(el, "cy"), num(el, "rx"), num(el, "ry")
			x, y, right, bottom = cx-rx, cy-ry, cx+rx, cy+ry
		default:
			return true
		}

		// Transformed groups shift coordinates we cannot resolve statically.
		if parent != nil && parent.Tag == "g" {
			if _, ok := parent.Attr("transform"); ok {
				return true
			}
		}

		if right > vbX+vbW+1 || bottom > vbY+vbH+1 || x < vbX-1 || y < vbY-1 {
			ref := el.ID()
			if ref == "" {
				ref = el.Tag
			}
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Element %q appears to extend outside the viewBox bounds (%s). It may be clipped.", ref, viewBox),
				Element:  ref,
			})
		}
		return true
	})
	return issues
}

func checkDuplicatePositions(root *svgdoc.Element) []Issue {
	positions := map[string][]string{}
	var order []string
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		var key string
		switch el.Tag {
		case "rect":
			x, _ := el.Attr("x")
			y, _ := el.Attr("y")
			key = "rect:" + x + ":" + y
		case "circle", "ellipse":
			cx, _ := el.Attr("cx")
			cy, _ := el.Attr("cy")
			key = el.Tag + ":" + cx + ":" + cy
		default:
			return true
		}
		ref := el.ID()
		if ref == "" {
			ref = el.Tag
		}
		if _, seen := positions[key]; !seen {
			order = append(order, key)
		}
		positions[key] = append(positions[key], ref)
		return true
	})

	var issues []Issue
	for _, key := range order {
		if ids := positions[key]; len(ids) > 1 {
			issues = append(issues, Issue{
				Severity: SeveritySuggestion,
				Message:  fmt.Sprintf("Multiple elements at the same position: %s. This may be intentional (layering) or accidental (duplicates).", strings.Join(ids, ", ")),
			})
		}
	}
	return issues
}

func checkEmptyGroups(root *svgdoc.Element) []Issue {
	var issues []Issue
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		if el.Tag != "g" {
			return true
		}
		hasChild := false
		for _, c := range el.Children {
			if !c.IsText() || strings.TrimSpace(c.Text) != "" {
				hasChild = true
				break
			}
		}
		if !hasChild {
			ref := el.ID()
			if ref == "" {
				ref = "unnamed group"
			}
			issues = append(issues, Issue{
				Severity: SeveritySuggestion,
				Message:  fmt.Sprintf("Empty group %q — add content or remove it.", ref),
				Element:  ref,
			})
		}
		return true
	})
	return issues
}

var defsBlockRe = regexp.MustCompile(`(?s)<defs.*?</defs>`)

func checkUnusedDefs(root *svgdoc.Element, markup string) []Issue {
	var defs *svgdoc.Element
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		if el.Tag == "defs" {
			defs = el
			return false
		}
		return true
	})
	if defs == nil {
		return nil
	}

	rest := defsBlockRe.ReplaceAllString(markup, "")
	var issues []Issue
	for _, child := range defs.Children {
		id := child.ID()
		if id == "" {
			continue
		}
		if !strings.Contains(rest, "url(#"+id+")") && !strings.Contains(rest, "#"+id) {
			issues = append(issues, Issue{
				Severity: SeveritySuggestion,
				Message:  fmt.Sprintf("Definition %q in <defs> is not referenced anywhere. Remove unused definitions.", id),
				Element:  id,
			})
		}
	}
	return issues
}

func checkMissingIDs(root *svgdoc.Element) []Issue {
	noID := 0
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		if visualTags[el.Tag] && el.ID() == "" {
			noID++
		}
		return true
	})
	if noID == 0 {
		return nil
	}
	return []Issue{{
		Severity: SeveritySuggestion,
		Message:  fmt.Sprintf("%d visual element(s) have no ID attribute. Add meaningful IDs for easier editing.", noID),
	}}
}

// arcCommandRe matches absolute arc commands only; relative arcs are too
// ambiguous to flag without false positives.
var arcCommandRe = regexp.MustCompile(`A[\s,0-9.eE+-]+`)

// checkCircularTextPaths flags text laid on a path whose data looks like a
// full circle (two or more absolute arc segments): the text may wrap onto
// itself.
func checkCircularTextPaths(root *svgdoc.Element) []Issue {
	paths := map[string]string{}
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		if el.Tag == "path" && el.ID() != "" {
			d, _ := el.Attr("d")
			paths[el.ID()] = d
		}
		return true
	})

	var issues []Issue
	svgdoc.Walk(root, func(_, el *svgdoc.Element) bool {
		if el.Tag != "textPath" {
			return true
		}
		href, ok := el.Attr("href")
		if !ok {
			href, _ = el.Attr("xlink:href")
		}
		id := strings.TrimPrefix(href, "#")
		d, ok := paths[id]
		if !ok {
			return true
		}
		if len(arcCommandRe.FindAllString(d, -1)) >= 2 {
			issues = append(issues, Issue{
				Severity: SeveritySuggestion,
				Message:  fmt.Sprintf("Path %q under a <textPath> looks like a full circle; the text may wrap onto itself. Consider an open arc.", id),
				Element:  id,
			})
		}
		return true
	})
	return issues
}

func num(el *svgdoc.Element, name string) float64 {
	v, _ := el.Attr(name)
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

func splitNumbers(s string) []float64 {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}
