package examination

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr-agent/internal/domain/soap"
)

type Handler struct {
	advisor *Advisor
}

func NewHandler(advisor *Advisor) *Handler {
	return &Handler{advisor: advisor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/recommend-examinations", h.RecommendExaminations)
}

type recommendRequest struct {
	SOAPData   *soap.Note `json:"soap_data"`
	Transcript string     `json:"transcript"`
}

func (h *Handler) RecommendExaminations(c echo.Context) error {
	var req recommendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SOAPData == nil || req.SOAPData.IsEmpty() {
		return echo.NewHTTPError(http.StatusBadRequest, "soap_data is required")
	}

	res := h.advisor.Recommend(c.Request().Context(), *req.SOAPData, req.Transcript)
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    res.Value,
	})
}
