package drugcheck

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr-agent/internal/domain/patient"
)

type Handler struct {
	screener *Screener
}

func NewHandler(screener *Screener) *Handler {
	return &Handler{screener: screener}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/check-drug-conflicts", h.CheckDrugConflicts)
}

type checkRequest struct {
	PlanText    string        `json:"plan_text"`
	PatientInfo *patient.Info `json:"patient_info"`
}

func (h *Handler) CheckDrugConflicts(c echo.Context) error {
	var req checkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.PlanText) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan_text is required")
	}

	var p patient.Info
	if req.PatientInfo != nil {
		p = *req.PatientInfo
	}

	s := h.screener.Screen(c.Request().Context(), req.PlanText, p)
	if s.Skipped {
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"has_conflicts": false,
				"message":       s.Report.Value.Message,
			},
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":          true,
		"data":             NewResponse(s.Report),
		"prescribed_drugs": s.Drugs,
	})
}
