package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/ehr-agent/internal/config"
	"github.com/ehr/ehr-agent/internal/domain/consultation"
	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai/aitest"
	"github.com/ehr/ehr-agent/internal/platform/auth"
	"github.com/ehr/ehr-agent/internal/platform/blobstore"
	"github.com/ehr/ehr-agent/internal/platform/telemetry"
)

func newTestApp(t *testing.T, replies ...aitest.Reply) (*app, *aitest.Completer) {
	t.Helper()
	c := aitest.NewCompleter(replies...)
	metrics := telemetry.NewProvider("ehr-agent", version)
	gw := aitest.Gateway(c).WithObserver(metrics)
	a := &app{
		cfg: &config.Config{
			Env:         "test",
			TemplateDir: t.TempDir(),
			AITimeout:   time.Minute,
			CORSOrigins: []string{"*"},
			ReportStore: config.StoreFile,
		},
		logger:   zerolog.Nop(),
		composer: soap.NewComposer(gw),
		advisor:  examination.NewAdvisor(gw),
		screener: drugcheck.NewScreener(gw),
		reports:  report.NewService(blobstore.NewInMemoryStore(), nil, zerolog.Nop()),
		metrics:  metrics,
	}
	a.orch = consultation.NewOrchestrator(a.composer, a.advisor, a.screener, a.reports, zerolog.Nop())
	return a, c
}

func do(e *echo.Echo, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestServer_Health(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(newServer(a), http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["template_exists"] != false {
		t.Errorf("expected template_exists=false, got %v", body["template_exists"])
	}
	if body["cwd"] == "" {
		t.Error("expected cwd")
	}
	if _, ok := body["database"]; ok {
		t.Error("expected no database section without a pool")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_IndexFallbackAndTemplate(t *testing.T) {
	a, _ := newTestApp(t)
	e := newServer(a)

	rec := do(e, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<h1>EHR Agent</h1>") {
		t.Errorf("expected the built-in page, got %d", rec.Code)
	}

	if err := os.WriteFile(filepath.Join(a.cfg.TemplateDir, "index.html"), []byte("<p>custom</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec = do(e, http.MethodGet, "/", "", nil)
	if rec.Body.String() != "<p>custom</p>" {
		t.Errorf("expected the template file, got %q", rec.Body.String())
	}
}

func TestServer_NotFoundListsRoutes(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(newServer(a), http.MethodGet, "/nowhere", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decode(t, rec)
	routes, ok := body["available_routes"].([]any)
	if !ok {
		t.Fatalf("expected available_routes, got %v", body)
	}
	want := map[string]bool{
		"POST /api/generate-soap":          false,
		"POST /api/recommend-examinations": false,
		"POST /api/check-drug-conflicts":   false,
		"POST /api/save-report":            false,
		"POST /api/consultations":          false,
		"GET /api/consultations/stream":    false,
		"GET /metrics":                     false,
		"GET /":                            false,
	}
	for _, r := range routes {
		if _, ok := want[r.(string)]; ok {
			want[r.(string)] = true
		}
	}
	for r, found := range want {
		if !found {
			t.Errorf("expected %s in available_routes", r)
		}
	}
}

func TestServer_GenerateSOAP(t *testing.T) {
	a, c := newTestApp(t, aitest.JSON(`{"chief_complaint":"headache","plan":"rest"}`))
	e := newServer(a)

	rec := do(e, http.MethodPost, "/api/generate-soap", `{"transcript":""}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != false || body["error"] != "transcript is required" {
		t.Errorf("unexpected error body %v", body)
	}
	if c.Calls() != 0 {
		t.Errorf("expected no provider calls, got %d", c.Calls())
	}

	rec = do(e, http.MethodPost, "/api/generate-soap", `{"transcript":"headache for 3 days"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := decode(t, rec)["data"].(map[string]any)
	if data["chief_complaint"] != "headache" {
		t.Errorf("expected the composed note, got %v", data)
	}
}

func TestServer_Metrics(t *testing.T) {
	a, _ := newTestApp(t, aitest.JSON(`{"chief_complaint":"cough"}`))
	e := newServer(a)

	if rec := do(e, http.MethodPost, "/api/generate-soap", `{"transcript":"cough"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := do(e, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`ai_requests_total{outcome="ok"} 1`,
		`http_server_request_duration_seconds_count{method="POST",route="/api/generate-soap",status_code="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestServer_AuthRequiredWhenConfigured(t *testing.T) {
	a, _ := newTestApp(t)
	a.cfg.AuthSigningKey = "server-test-signing-key-0123456789abcdef"
	e := newServer(a)

	rec := do(e, http.MethodGet, "/api/reports", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := auth.IssueToken(auth.JWTConfig{SigningKey: []byte(a.cfg.AuthSigningKey)}, "dr-li", nil, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	rec = do(e, http.MethodGet, "/api/reports", "", map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected /health to stay public, got %d", rec.Code)
	}
}
