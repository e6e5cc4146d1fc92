package soap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr-agent/internal/platform/ai/aitest"
)

func newTestHandler(replies ...aitest.Reply) (*Handler, *echo.Echo) {
	comp, _ := newTestComposer(replies...)
	return NewHandler(comp), echo.New()
}

func TestHandler_GenerateSOAP(t *testing.T) {
	h, e := newTestHandler(aitest.JSON(noteJSON))

	body := `{"transcript":"headache for three days","patient_info":{"name":"Li","allergies":"penicillin"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate-soap", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GenerateSOAP(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool     `json:"success"`
		Data    Response `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.Success || resp.Data.ChiefComplaint != "Headache" || resp.Data.Error != "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandler_GenerateSOAP_EmptyTranscript(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/generate-soap", strings.NewReader(`{"transcript":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GenerateSOAP(c)
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GenerateSOAP_Degraded(t *testing.T) {
	h, e := newTestHandler(aitest.Fail("connection reset by peer"))

	req := httptest.NewRequest(http.MethodPost, "/api/generate-soap", strings.NewReader(`{"transcript":"cough"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GenerateSOAP(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data map[string]any `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data["error"] != "connection reset by peer" {
		t.Errorf("expected data.error, got %v", resp.Data["error"])
	}
	if resp.Data["subjective"] != "" {
		t.Errorf("expected empty subjective, got %v", resp.Data["subjective"])
	}
}
