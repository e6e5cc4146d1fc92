package speech

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// MaxUploadSize bounds uploaded audio clips (25 MB, the transcription API limit).
const MaxUploadSize = 25 * 1024 * 1024

type Handler struct {
	transcriber Transcriber
}

func NewHandler(transcriber Transcriber) *Handler {
	return &Handler{transcriber: transcriber}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/transcribe", h.Transcribe)
}

// Transcribe accepts a multipart "audio" file and returns its text.
func (h *Handler) Transcribe(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	if file.Size > MaxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio file is too large")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	name := filepath.Base(file.Filename)
	if filepath.Ext(name) == "" {
		name += ".wav"
	}

	text, err := h.transcriber.Transcribe(c.Request().Context(), name, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"text":    text,
	})
}
