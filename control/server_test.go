package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inkpadhq/inkpad/session"
)

func testServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	m := session.NewManager(session.Options{})
	t.Cleanup(m.Shutdown)
	return NewServer(m, Options{}), m
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Sessions != 0 {
		t.Fatalf("health: %+v", resp)
	}
}

func TestMessages_UnknownSession(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages?sessionid=ghost", strings.NewReader("{}"))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "session not found" {
		t.Fatalf("body: %v", resp)
	}
}

func TestSync_AppliesState(t *testing.T) {
	s, m := testServer(t)

	body := `{"svg":"<svg xmlns=\"http://www.w3.org/2000/svg\"><rect id=\"peer\" width=\"1\" height=\"1\"/></svg>","artboardColor":"#aabbcc"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sync", strings.NewReader(body))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(m.ActiveDocument().SVG(), `id="peer"`) {
		t.Fatal("pushed markup not applied to active document")
	}
	if got := m.ActiveDocument().ArtboardColor(); got != "#aabbcc" {
		t.Fatalf("artboard color: got %q", got)
	}
}

func TestSync_BadJSON(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sync", strings.NewReader("{ nope"))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestSync_BadMarkup(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sync", strings.NewReader(`{"svg":"<<nope"}`))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rec.Code)
	}
}
