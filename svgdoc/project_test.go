package svgdoc

import (
	"strings"
	"testing"
)

func TestProjectRoundTrip(t *testing.T) {
	d := New()
	if err := d.Create(sample); err != nil {
		t.Fatalf("Create: %v", err)
	}
	d.SetArtboardColor("#2d2d2d")
	d.SetProject("/tmp/demo.inkp", "Demo")

	p, err := ParseProject([]byte(d.ProjectJSON("")))
	if err != nil {
		t.Fatalf("ParseProject: %v", err)
	}

	restored := New()
	if err := restored.LoadProject(p); err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if restored.SVG() != d.SVG() {
		t.Fatalf("markup changed across round trip:\n%s\n%s", d.SVG(), restored.SVG())
	}
	if restored.Name() != "Demo" {
		t.Fatalf("name changed: %q", restored.Name())
	}
	if restored.ArtboardColor() != "#2d2d2d" {
		t.Fatalf("artboard color changed: %q", restored.ArtboardColor())
	}
}

func TestParseProject_Defaults(t *testing.T) {
	p, err := ParseProject([]byte(`{"svg": "<svg xmlns=\"http://www.w3.org/2000/svg\"/>"}`))
	if err != nil {
		t.Fatalf("ParseProject: %v", err)
	}
	if p.Name != "Untitled" {
		t.Fatalf("expected default name Untitled, got %q", p.Name)
	}
	if p.Artboard.Color != "#ffffff" {
		t.Fatalf("expected default artboard color, got %q", p.Artboard.Color)
	}
}

func TestParseProject_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"no svg", `{"name": "x"}`},
		{"empty svg", `{"svg": ""}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseProject([]byte(tc.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestProjectJSON_ContainsFormatVersion(t *testing.T) {
	d := New()
	if err := d.Create(sample); err != nil {
		t.Fatalf("Create: %v", err)
	}
	out := d.ProjectJSON("Badge")
	if !strings.Contains(out, `"inkpad": "0.2.0"`) {
		t.Fatalf("format version missing: %s", out)
	}
	if !strings.Contains(out, `"name": "Badge"`) {
		t.Fatalf("name missing: %s", out)
	}
}

func TestArtboardColorNeverInMarkup(t *testing.T) {
	d := New()
	if err := d.Create(sample); err != nil {
		t.Fatalf("Create: %v", err)
	}
	d.SetArtboardColor("#123456")
	if strings.Contains(d.SVG(), "#123456") {
		t.Fatal("artboard color leaked into markup")
	}
}
