package main

import (
	_ "embed"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ehr/ehr-agent/internal/domain/consultation"
	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/auth"
	"github.com/ehr/ehr-agent/internal/platform/db"
	"github.com/ehr/ehr-agent/internal/platform/middleware"
	"github.com/ehr/ehr-agent/internal/platform/speech"
	"github.com/ehr/ehr-agent/internal/platform/websocket"
)

const version = "0.1.0"

//go:embed index.html
var fallbackIndex []byte

// requestTimeoutFactor sizes the API deadline in AI_TIMEOUT units. A full
// consultation makes four sequential AI calls.
const requestTimeoutFactor = 5

func newServer(a *app) *echo.Echo {
	cfg := a.cfg
	logger := a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = notFoundAware(e, middleware.ErrorHandler(logger))

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if a.metrics != nil {
		e.Use(a.metrics.Middleware())
	}
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/", indexHandler(cfg.TemplateDir))
	e.GET("/health", healthHandler(a))
	if a.metrics != nil {
		e.GET("/metrics", a.metrics.PrometheusHandler())
	}

	api := e.Group("/api")
	if cfg.AuthEnabled() {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	api.Use(middleware.RequestTimeout(requestTimeoutFactor * cfg.AITimeout))

	// AI-backed routes are rate limited per client; listing and reading
	// reports is not.
	aiRoutes := api.Group("", middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	soap.NewHandler(a.composer).RegisterRoutes(aiRoutes)
	examination.NewHandler(a.advisor).RegisterRoutes(aiRoutes)
	drugcheck.NewHandler(a.screener).RegisterRoutes(aiRoutes)
	consultation.NewHandler(a.orch).
		WithStream(websocket.NewUpgrader(cfg.CORSOrigins)).
		RegisterRoutes(aiRoutes)
	if a.transcriber != nil {
		speech.NewHandler(a.transcriber).RegisterRoutes(aiRoutes)
	}
	report.NewHandler(a.reports).RegisterRoutes(api)

	return e
}

// notFoundAware answers unmatched routes with the list of available routes
// and hands every other error to next.
func notFoundAware(e *echo.Echo, next echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if err == echo.ErrNotFound && !c.Response().Committed {
			c.JSON(http.StatusNotFound, map[string]any{
				"success":          false,
				"error":            "route not found",
				"message":          "see available_routes, or open / in a browser",
				"available_routes": routeList(e),
			})
			return
		}
		next(err, c)
	}
}

var listedMethods = map[string]bool{http.MethodGet: true, http.MethodPost: true}

func routeList(e *echo.Echo) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range e.Routes() {
		if !listedMethods[r.Method] || r.Path == "" || r.Path[len(r.Path)-1] == '*' {
			continue
		}
		key := r.Method + " " + r.Path
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// indexHandler serves TEMPLATE_DIR/index.html, or the built-in page when the
// template is absent.
func indexHandler(templateDir string) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := filepath.Join(templateDir, "index.html")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return c.HTMLBlob(http.StatusOK, fallbackIndex)
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load index template").SetInternal(err)
		}
		return c.HTMLBlob(http.StatusOK, data)
	}
}

type healthResponse struct {
	Status         string     `json:"status"`
	Version        string     `json:"version"`
	Time           time.Time  `json:"time"`
	TemplateDir    string     `json:"template_dir"`
	TemplateExists bool       `json:"template_exists"`
	Cwd            string     `json:"cwd"`
	ReportStore    string     `json:"report_store"`
	Database       *db.Health `json:"database,omitempty"`
}

func healthHandler(a *app) echo.HandlerFunc {
	return func(c echo.Context) error {
		cwd, _ := os.Getwd()
		_, statErr := os.Stat(filepath.Join(a.cfg.TemplateDir, "index.html"))

		resp := healthResponse{
			Status:         "ok",
			Version:        version,
			Time:           time.Now().UTC(),
			TemplateDir:    a.cfg.TemplateDir,
			TemplateExists: statErr == nil,
			Cwd:            cwd,
			ReportStore:    a.cfg.ReportStore,
		}
		code := http.StatusOK
		if a.pool != nil {
			h := db.Check(c.Request().Context(), a.pool)
			resp.Database = &h
			if h.Status != "healthy" {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		return c.JSON(code, resp)
	}
}
