package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/baekya-protocol/baekya/internal/app/protocol"
	"github.com/baekya-protocol/baekya/internal/infra/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

// ─── Server Tests ───────────────────────────────────────────────────────────

func setupServer(t *testing.T) *Server {
	t.Helper()
	svc := protocol.New(protocol.DefaultConfig(), nil, nil)
	if _, err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return NewServer(svc, "1.2.3")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	w := get(t, setupServer(t).Handler(), "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q, want *", got)
	}
}

func TestServer_Status(t *testing.T) {
	w := get(t, setupServer(t).Handler(), "/api/status")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Summary struct {
			DAOs []struct {
				Name string `json:"name"`
			} `json:"daos"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "running" || body.Version != "1.2.3" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Summary.DAOs) != 4 {
		t.Errorf("DAOs = %d, want 4 default DAOs", len(body.Summary.DAOs))
	}
}

func TestServer_Version(t *testing.T) {
	w := get(t, setupServer(t).Handler(), "/api/version")

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", body["version"])
	}
}

func TestServer_Traces(t *testing.T) {
	h := setupServer(t).Handler()

	w := get(t, h, "/api/traces?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Spans []json.RawMessage `json:"spans"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Spans) > 2 {
		t.Errorf("spans = %d, want at most 2", len(body.Spans))
	}

	if w := get(t, h, "/api/traces?limit=many"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestServer_MetricsOnlyWhenEnabled(t *testing.T) {
	s := setupServer(t)
	if w := get(t, s.Handler(), "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: status = %d, want 404", w.Code)
	}

	s.EnableMetrics()
	if w := get(t, s.Handler(), "/metrics"); w.Code != http.StatusOK {
		t.Errorf("metrics enabled: status = %d, want 200", w.Code)
	}
}

func TestServer_NotFound(t *testing.T) {
	w := get(t, setupServer(t).Handler(), "/api/proposals")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message == "" {
		t.Error("error message should be set")
	}
}

func TestServer_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	w := httptest.NewRecorder()
	setupServer(t).Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", w.Code)
	}
}
