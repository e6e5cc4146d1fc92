package report

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr-agent/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/save-report", h.SaveReport)
	api.GET("/reports", h.ListReports)
	api.GET("/reports/:name", h.GetReport)
}

type saveRequest struct {
	Content string `json:"content"`
}

func (h *Handler) SaveReport(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	r, err := h.svc.Save(c.Request().Context(), SaveInput{Content: req.Content})
	if errors.Is(err, ErrEmptyContent) {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"filename": r.FileName,
		"filepath": r.Location,
	})
}

func (h *Handler) ListReports(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) GetReport(c echo.Context) error {
	content, _, err := h.svc.Open(c.Request().Context(), c.Param("name"))
	if errors.Is(err, ErrReportNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, []byte(content))
}
