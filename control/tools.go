package control

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkpadhq/inkpad/kit"
	"github.com/inkpadhq/inkpad/library"
	"github.com/inkpadhq/inkpad/session"
	"github.com/inkpadhq/inkpad/svgdoc"
	"github.com/inkpadhq/inkpad/validate"
)

// register wires one typed endpoint as an MCP tool with logging.
func register[T any](srv *mcp.Server, logger *slog.Logger, tool *mcp.Tool, fn func(ctx context.Context, req *T) (any, error)) {
	endpoint := kit.Chain(kit.Logging(logger, tool.Name))(func(ctx context.Context, req any) (any, error) {
		return fn(ctx, req.(*T))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[T]())
}

type markupReq struct {
	Markup string `json:"markup"`
}

type addElementReq struct {
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes"`
}

type updateElementReq struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
}

type idReq struct {
	ID string `json:"id"`
}

type emptyReq struct{}

type saveReq struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type pathReq struct {
	Path string `json:"path"`
}

type limitReq struct {
	Limit int `json:"limit"`
}

// registerTools registers the full editing tool set on one MCP server. Every
// tool resolves the active document at call time: focus may move between
// calls, and tools must follow it.
func registerTools(srv *mcp.Server, m *session.Manager, lib *library.Store, logger *slog.Logger) {
	attrsProp := map[string]any{
		"type":        "object",
		"description": "Attribute name/value pairs. An empty string value removes the attribute.",
		"additionalProperties": map[string]any{
			"type": "string",
		},
	}

	register(srv, logger, &mcp.Tool{
		Name:        "svg_create",
		Description: "Create a new SVG document from complete markup, replacing the current content. Elements without an id are assigned one.",
		InputSchema: kit.InputSchema(map[string]any{
			"markup": map[string]any{"type": "string", "description": "Complete SVG markup"},
		}, []string{"markup"}),
	}, func(_ context.Context, req *markupReq) (any, error) {
		doc := m.ActiveDocument()
		if err := doc.Create(req.Markup); err != nil {
			return nil, err
		}
		return doc.SVG(), nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_set",
		Description: "Replace the active document's markup wholesale.",
		InputSchema: kit.InputSchema(map[string]any{
			"markup": map[string]any{"type": "string", "description": "Complete SVG markup"},
		}, []string{"markup"}),
	}, func(_ context.Context, req *markupReq) (any, error) {
		doc := m.ActiveDocument()
		if err := doc.Set(req.Markup); err != nil {
			return nil, err
		}
		return doc.SVG(), nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_get",
		Description: "Return the active document's current markup.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(_ context.Context, _ *emptyReq) (any, error) {
		svg := m.ActiveDocument().SVG()
		if svg == "" {
			return "document is empty", nil
		}
		return svg, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_add_element",
		Description: "Append an element to the document root. Creates a default 800x600 root if the document is empty. Returns the element id.",
		InputSchema: kit.InputSchema(map[string]any{
			"tag":        map[string]any{"type": "string", "description": "Element tag, e.g. circle, rect, path"},
			"attributes": attrsProp,
		}, []string{"tag"}),
	}, func(_ context.Context, req *addElementReq) (any, error) {
		if req.Tag == "" {
			return nil, fmt.Errorf("tag is required")
		}
		id := m.ActiveDocument().AddElement(req.Tag, req.Attributes)
		return map[string]string{"id": id}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_update_element",
		Description: "Set or remove attributes on the element with the given id. An empty string value removes the attribute.",
		InputSchema: kit.InputSchema(map[string]any{
			"id":         map[string]any{"type": "string", "description": "Target element id"},
			"attributes": attrsProp,
		}, []string{"id", "attributes"}),
	}, func(_ context.Context, req *updateElementReq) (any, error) {
		if !m.ActiveDocument().UpdateElement(req.ID, req.Attributes) {
			return nil, fmt.Errorf("element not found: %s", req.ID)
		}
		return map[string]string{"id": req.ID, "status": "updated"}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_remove_element",
		Description: "Remove the element with the given id, including its subtree.",
		InputSchema: kit.InputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Target element id"},
		}, []string{"id"}),
	}, func(_ context.Context, req *idReq) (any, error) {
		if !m.ActiveDocument().RemoveElement(req.ID) {
			return nil, fmt.Errorf("element not found: %s", req.ID)
		}
		return map[string]string{"id": req.ID, "status": "removed"}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_list_elements",
		Description: "List every element in the active document with its id, tag and attributes, in document order.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(_ context.Context, _ *emptyReq) (any, error) {
		elements := m.ActiveDocument().ListElements()
		if elements == nil {
			elements = []svgdoc.ElementInfo{}
		}
		return map[string]any{"elements": elements}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_screenshot",
		Description: "Capture a PNG screenshot of the active document. Falls back to an offline renderer, then to the raw markup, when no surface is attached.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ *emptyReq) (any, error) {
		shot, err := m.Screenshot(ctx)
		if err != nil {
			return nil, err
		}
		return screenshotContent{shot: shot}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_validate",
		Description: "Run design validation checks (viewBox, bounds, unused defs, overlapping positions, text on circular paths) against the given markup, or the active document when omitted.",
		InputSchema: kit.InputSchema(map[string]any{
			"markup": map[string]any{"type": "string", "description": "Markup to validate; defaults to the active document"},
		}, nil),
	}, func(_ context.Context, req *markupReq) (any, error) {
		markup := req.Markup
		if markup == "" {
			markup = m.ActiveDocument().SVG()
		}
		if markup == "" {
			return nil, fmt.Errorf("nothing to validate: document is empty")
		}
		return map[string]any{"issues": issuesOrEmpty(validate.Validate(markup))}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_validate_and_screenshot",
		Description: "Validate the active document and capture a screenshot in one call: validation issues as text, then the rendered PNG.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ *emptyReq) (any, error) {
		markup := m.ActiveDocument().SVG()
		if markup == "" {
			return nil, fmt.Errorf("document is empty")
		}
		issues := issuesOrEmpty(validate.Validate(markup))
		shot, err := m.Screenshot(ctx)
		if err != nil {
			return nil, err
		}
		return screenshotContent{shot: shot, issues: issues, withIssues: true}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_export",
		Description: "Write the active document's raw SVG markup to a file.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Target file path; .svg is appended when missing"},
		}, []string{"path"}),
	}, func(_ context.Context, req *pathReq) (any, error) {
		if req.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		svg := m.ActiveDocument().SVG()
		if svg == "" {
			return nil, fmt.Errorf("document is empty")
		}
		path := req.Path
		if filepath.Ext(path) == "" {
			path += ".svg"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		out := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + svg
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		return map[string]string{"path": path}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_save_project",
		Description: "Save the active document as a project file (markup plus name and artboard state). An empty path reuses the document's current file.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Target project path"},
			"name": map[string]any{"type": "string", "description": "Display name"},
		}, nil),
	}, func(ctx context.Context, req *saveReq) (any, error) {
		path, err := m.SaveProject(ctx, req.Path, req.Name)
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	})

	register(srv, logger, &mcp.Tool{
		Name:        "svg_open_project",
		Description: "Open a project file and make it the active document.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Project file path"},
		}, []string{"path"}),
	}, func(ctx context.Context, req *pathReq) (any, error) {
		inst, err := m.OpenProject(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"path": inst.ResourceID(),
			"name": inst.Document().Name(),
		}, nil
	})

	if lib != nil {
		register(srv, logger, &mcp.Tool{
			Name:        "library_list",
			Description: "List recently opened projects, most recent first.",
			InputSchema: kit.InputSchema(map[string]any{
				"limit": map[string]any{"type": "integer", "description": "Maximum entries, default 20"},
			}, nil),
		}, func(ctx context.Context, req *limitReq) (any, error) {
			entries, err := lib.Recent(ctx, req.Limit)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []library.Entry{}
			}
			return map[string]any{"projects": entries}, nil
		})
	}
}

// issuesOrEmpty normalizes nil to an empty slice so clients always see an
// array.
func issuesOrEmpty(issues []validate.Issue) []validate.Issue {
	if issues == nil {
		return []validate.Issue{}
	}
	return issues
}

// screenshotContent shapes a screenshot result as MCP content: optional
// validation text first, then the PNG, or the raw markup when no render path
// produced one.
type screenshotContent struct {
	shot       session.Screenshot
	issues     []validate.Issue
	withIssues bool
}

func (c screenshotContent) MCPContent() []mcp.Content {
	var out []mcp.Content
	if c.withIssues {
		out = append(out, &mcp.TextContent{Text: formatIssues(c.issues)})
	}
	if len(c.shot.PNG) > 0 {
		out = append(out, &mcp.ImageContent{Data: c.shot.PNG, MIMEType: "image/png"})
	} else {
		out = append(out, &mcp.TextContent{Text: "no renderer available; raw markup follows\n" + c.shot.Markup})
	}
	return out
}

func formatIssues(issues []validate.Issue) string {
	if len(issues) == 0 {
		return "No validation issues found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation issue(s):\n", len(issues))
	for _, i := range issues {
		fmt.Fprintf(&b, "- [%s] %s", i.Severity, i.Message)
		if i.Element != "" {
			fmt.Fprintf(&b, " (%s)", i.Element)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
