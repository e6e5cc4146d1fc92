package soap

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr-agent/internal/domain/patient"
)

type Handler struct {
	composer *Composer
}

func NewHandler(composer *Composer) *Handler {
	return &Handler{composer: composer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/generate-soap", h.GenerateSOAP)
}

type generateRequest struct {
	Transcript  string        `json:"transcript"`
	PatientInfo *patient.Info `json:"patient_info"`
}

// GenerateSOAP answers 200 even when the composer degraded; the failure is
// carried in data.error.
func (h *Handler) GenerateSOAP(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
	}

	res := h.composer.Compose(c.Request().Context(), req.Transcript, req.PatientInfo)
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    NewResponse(res),
	})
}
