package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestHistogram_Observe(t *testing.T) {
	h := newHistogram([]float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(10)

	if h.Count() != 3 {
		t.Errorf("expected count 3, got %d", h.Count())
	}
	if h.Sum() != 13.5 {
		t.Errorf("expected sum 13.5, got %g", h.Sum())
	}
	cum := h.cumulativeBuckets()
	if cum[0] != 1 || cum[1] != 2 {
		t.Errorf("expected cumulative [1 2], got %v", cum)
	}
}

func TestProvider_Middleware(t *testing.T) {
	p := NewProvider("", "test")
	e := echo.New()
	e.Use(p.Middleware())
	e.GET("/api/reports/:name", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/generate-soap", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	})
	e.POST("/api/consultations", func(c echo.Context) error {
		return errors.New("boom")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/reports/a.txt"},
		{http.MethodGet, "/api/reports/b.txt"},
		{http.MethodPost, "/api/generate-soap"},
		{http.MethodPost, "/api/consultations"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	if n := p.RequestCount(http.MethodGet, "/api/reports/:name", "200"); n != 2 {
		t.Errorf("expected 2 report reads under the route pattern, got %d", n)
	}
	if n := p.RequestCount(http.MethodPost, "/api/generate-soap", "400"); n != 1 {
		t.Errorf("expected 1 bad request, got %d", n)
	}
	if n := p.RequestCount(http.MethodPost, "/api/consultations", "500"); n != 1 {
		t.Errorf("expected 1 internal error, got %d", n)
	}
}

func TestProvider_PrometheusHandler(t *testing.T) {
	p := NewProvider("ehr-agent", "1.2.3")
	p.ObserveAIRequest("ok", 1500*time.Millisecond)
	p.ObserveAIRequest("ok", 3*time.Second)
	p.ObserveAIRequest("auth", 200*time.Millisecond)

	if p.AIRequests("ok") != 2 || p.AIRequests("auth") != 1 || p.AIRequests("parse") != 0 {
		t.Fatalf("unexpected counters ok=%d auth=%d", p.AIRequests("ok"), p.AIRequests("auth"))
	}

	e := echo.New()
	rec := httptest.NewRecorder()
	if err := p.PrometheusHandler()(e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`ehr_agent_info{service="ehr-agent",version="1.2.3"} 1`,
		"http_server_active_requests 0",
		`ai_requests_total{outcome="auth"} 1`,
		`ai_requests_total{outcome="ok"} 2`,
		`ai_request_duration_seconds_bucket{outcome="ok",le="2.5"} 1`,
		`ai_request_duration_seconds_bucket{outcome="ok",le="+Inf"} 2`,
		`ai_request_duration_seconds_count{outcome="ok"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in output:\n%s", want, body)
		}
	}
	if strings.Index(body, `outcome="auth"} 1`) > strings.Index(body, `outcome="ok"} 2`) {
		t.Error("expected series sorted by label")
	}
}
