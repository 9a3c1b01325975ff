package validate

import (
	"strings"
	"testing"
)

func find(issues []Issue, severity Severity, substr string) *Issue {
	for i := range issues {
		if issues[i].Severity == severity && strings.Contains(issues[i].Message, substr) {
			return &issues[i]
		}
	}
	return nil
}

func TestValidate_NoRoot(t *testing.T) {
	issues := Validate("not markup")
	if find(issues, SeverityError, "No <svg> root") == nil {
		t.Fatalf("expected root error, got %v", issues)
	}
}

func TestValidate_MissingXmlns(t *testing.T) {
	issues := Validate(`<svg viewBox="0 0 10 10"/>`)
	if find(issues, SeverityError, "xmlns") == nil {
		t.Fatalf("expected xmlns error, got %v", issues)
	}
}

func TestValidate_MissingViewBox(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	if find(issues, SeverityError, "viewBox") == nil {
		t.Fatalf("expected viewBox error, got %v", issues)
	}
}

func TestValidate_InvalidViewBox(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 ten 10"/>`)
	if find(issues, SeverityWarning, "Invalid viewBox") == nil {
		t.Fatalf("expected viewBox warning, got %v", issues)
	}
}

func TestValidate_TextWithoutFontFamily(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<text id="label">hi</text></svg>`)
	issue := find(issues, SeverityWarning, "font-family")
	if issue == nil {
		t.Fatalf("expected font warning, got %v", issues)
	}
	if issue.Element != "label" {
		t.Fatalf("issue should reference the element, got %q", issue.Element)
	}
}

func TestValidate_FontFamilyInStyleAccepted(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<text id="label" style="font-family: serif">hi</text></svg>`)
	if find(issues, SeverityWarning, "font-family") != nil {
		t.Fatalf("style-based font-family flagged: %v", issues)
	}
}

func TestValidate_GradientOutsideDefs(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<linearGradient id="g"><stop offset="0"/></linearGradient></svg>`)
	if find(issues, SeverityWarning, "outside of <defs>") == nil {
		t.Fatalf("expected defs warning, got %v", issues)
	}
}

func TestValidate_ElementOutsideViewBox(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
		`<rect id="big" x="50" y="50" width="100" height="100"/></svg>`)
	if find(issues, SeverityWarning, "outside the viewBox") == nil {
		t.Fatalf("expected bounds warning, got %v", issues)
	}
}

func TestValidate_TransformedGroupSkipped(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
		`<g id="grp" transform="translate(-50,-50)">` +
		`<rect id="big" x="50" y="50" width="100" height="100"/></g></svg>`)
	if find(issues, SeverityWarning, "outside the viewBox") != nil {
		t.Fatalf("transformed group child should be skipped: %v", issues)
	}
}

func TestValidate_DuplicatePositions(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
		`<circle id="a" cx="10" cy="10" r="5"/><circle id="b" cx="10" cy="10" r="8"/></svg>`)
	issue := find(issues, SeveritySuggestion, "same position")
	if issue == nil {
		t.Fatalf("expected duplicate-position suggestion, got %v", issues)
	}
	if !strings.Contains(issue.Message, "a") || !strings.Contains(issue.Message, "b") {
		t.Fatalf("suggestion should name both elements: %s", issue.Message)
	}
}

func TestValidate_EmptyGroup(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<g id="empty"></g></svg>`)
	if find(issues, SeveritySuggestion, "Empty group") == nil {
		t.Fatalf("expected empty-group suggestion, got %v", issues)
	}
}

func TestValidate_UnusedDefs(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<defs><linearGradient id="unused"><stop offset="0"/></linearGradient></defs>` +
		`<rect id="r" x="0" y="0" width="5" height="5"/></svg>`)
	issue := find(issues, SeveritySuggestion, "not referenced")
	if issue == nil {
		t.Fatalf("expected unused-defs suggestion, got %v", issues)
	}
	if issue.Element != "unused" {
		t.Fatalf("suggestion should reference the definition, got %q", issue.Element)
	}
}

func TestValidate_ReferencedDefsNotFlagged(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<defs><linearGradient id="grad"><stop offset="0"/></linearGradient></defs>` +
		`<rect id="r" x="0" y="0" width="5" height="5" fill="url(#grad)"/></svg>`)
	if find(issues, SeveritySuggestion, "not referenced") != nil {
		t.Fatalf("referenced definition flagged: %v", issues)
	}
}

func TestValidate_MissingIDCount(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
		`<rect x="0" y="0" width="1" height="1"/><circle cx="2" cy="2" r="1"/></svg>`)
	if find(issues, SeveritySuggestion, "2 visual element(s) have no ID") == nil {
		t.Fatalf("expected missing-id suggestion, got %v", issues)
	}
}

func TestValidate_MissingWidthHeight(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"/>`)
	if find(issues, SeveritySuggestion, "width and height") == nil {
		t.Fatalf("expected width/height suggestion, got %v", issues)
	}
}

func TestValidate_FullCircleTextPath(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">` +
		`<defs><path id="ring" d="M 50 10 A 40 40 0 1 1 49.9 10 A 40 40 0 1 1 50 10"/></defs>` +
		`<text id="t" font-family="serif"><textPath href="#ring">around we go</textPath></text></svg>`)
	if find(issues, SeveritySuggestion, "full circle") == nil {
		t.Fatalf("expected circular textPath suggestion, got %v", issues)
	}
}

func TestValidate_RelativeArcsNotFlagged(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">` +
		`<defs><path id="arc" d="M 10 50 a 40 40 0 0 1 80 0 a 1 1 0 0 1 -1 0"/></defs>` +
		`<text id="t" font-family="serif"><textPath href="#arc">open arc</textPath></text></svg>`)
	if find(issues, SeveritySuggestion, "full circle") != nil {
		t.Fatalf("relative arcs flagged: %v", issues)
	}
}

func TestValidate_CleanDocument(t *testing.T) {
	issues := Validate(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">` +
		`<rect id="bg" x="0" y="0" width="100" height="100" fill="#eee"/></svg>`)
	for _, i := range issues {
		if i.Severity == SeverityError {
			t.Fatalf("clean document produced error: %v", i)
		}
	}
}
