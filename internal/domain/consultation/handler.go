package consultation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/patient"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/websocket"
)

type Handler struct {
	orch     *Orchestrator
	upgrader *websocket.Upgrader
	now      func() time.Time
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch, now: time.Now}
}

// WithStream enables the WebSocket progress endpoint.
func (h *Handler) WithStream(up *websocket.Upgrader) *Handler {
	h.upgrader = up
	return h
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/consultations", h.RunConsultation)
	if h.upgrader != nil {
		api.GET("/consultations/stream", h.StreamConsultation)
	}
}

type runRequest struct {
	PatientInfo *patient.Info `json:"patient_info"`
	Transcript  string        `json:"transcript"`
	Save        bool          `json:"save"`
}

type runResponse struct {
	SessionID       uuid.UUID                    `json:"session_id"`
	State           State                        `json:"state"`
	SOAP            soap.Response                `json:"soap"`
	Examinations    []examination.Recommendation `json:"examinations"`
	DrugCheck       drugcheck.Response           `json:"drug_check"`
	PrescribedDrugs []string                     `json:"prescribed_drugs"`
	Report          string                       `json:"report"`
	Saved           *report.Report               `json:"saved,omitempty"`
}

type stageEvent struct {
	Stage State  `json:"stage"`
	Text  string `json:"text"`
}

// RunConsultation runs the whole pipeline for one transcript and optionally
// saves the combined report.
func (h *Handler) RunConsultation(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s, err := h.newSession(req)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.orch.Run(ctx, s); err != nil {
		if errors.Is(err, ErrEmptyTranscript) {
			return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
		}
		return err
	}

	resp, err := h.finish(ctx, s, req.Save)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": resp})
}

// StreamConsultation upgrades to a WebSocket, reads one run request and
// sends a "stage" event as each stage completes, then a "result" event with
// the same payload RunConsultation returns. Failures are sent as an "error"
// event before the connection closes.
func (h *Handler) StreamConsultation(c echo.Context) error {
	stream, err := h.upgrader.Upgrade(c, "")
	if err != nil {
		// the upgrader has already answered the request
		return nil
	}
	defer stream.Close()

	var req runRequest
	if err := stream.ReadJSON(&req); err != nil {
		return sendError(stream, "invalid request body")
	}

	s, err := h.newSession(req)
	if err != nil {
		return sendError(stream, err.Error())
	}
	stream.SetTopic("consultation/" + s.ID.String())

	ctx := c.Request().Context()
	err = h.orch.Run(ctx, s, func(stage State, s *Session) {
		_ = stream.Send("stage", stageEvent{Stage: stage, Text: stageText(stage, s)})
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrEmptyTranscript) {
			msg = "transcript is required"
		}
		return sendError(stream, msg)
	}

	resp, err := h.finish(ctx, s, req.Save)
	if err != nil {
		return sendError(stream, err.Error())
	}
	_ = stream.Send("result", resp)
	return nil
}

// sendError reports a failure on the stream. The connection is hijacked, so
// the error is never returned to echo.
func sendError(stream *websocket.Stream, msg string) error {
	_ = stream.Send("error", map[string]string{"message": msg})
	return nil
}

func (h *Handler) newSession(req runRequest) (*Session, error) {
	s := NewSession(h.now(), TypedSeparator)
	var p patient.Info
	if req.PatientInfo != nil {
		p = *req.PatientInfo
	}
	if err := s.SetPatient(p); err != nil {
		return nil, err
	}
	if err := s.AddUtterance(req.Transcript); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *Handler) finish(ctx context.Context, s *Session, save bool) (runResponse, error) {
	if save {
		if _, err := h.orch.Persist(ctx, s); err != nil {
			return runResponse{}, err
		}
	} else if err := h.orch.Discard(s); err != nil {
		return runResponse{}, err
	}
	return runResponse{
		SessionID:       s.ID,
		State:           s.State(),
		SOAP:            soap.NewResponse(s.SOAP),
		Examinations:    s.Exams.Value,
		DrugCheck:       drugcheck.NewResponse(s.Drugs.Report),
		PrescribedDrugs: s.Drugs.Drugs,
		Report:          Render(s),
		Saved:           s.SavedReport,
	}, nil
}

// stageText is the display text for a finished stage.
func stageText(stage State, s *Session) string {
	switch stage {
	case StateComposingSOAP:
		return soap.FormatText(s.SOAP)
	case StateRecommendingExams:
		if s.Exams.Failed() {
			return "error: " + s.Exams.ErrorMessage()
		}
		return examination.FormatRecommendations(s.Exams.Value)
	case StateScreeningDrugs:
		return drugcheck.FormatReport(s.Drugs.Report)
	}
	return ""
}
