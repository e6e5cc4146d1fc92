package consultation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/patient"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai"
)

type Composer interface {
	Compose(ctx context.Context, transcript string, p *patient.Info) ai.Result[soap.Note]
}

type Advisor interface {
	Recommend(ctx context.Context, note soap.Note, transcript string) ai.Result[[]examination.Recommendation]
}

type Screener interface {
	Screen(ctx context.Context, plan string, p patient.Info) drugcheck.Screening
}

type Archive interface {
	Save(ctx context.Context, in report.SaveInput) (*report.Report, error)
}

// StageFunc is called after each stage completes, with the state that just
// finished.
type StageFunc func(stage State, s *Session)

// Orchestrator runs SOAP composition, examination advice and drug screening
// in order, each fed by the previous output. A stage that fails does not stop
// the pipeline; its error is carried in the session.
type Orchestrator struct {
	composer Composer
	advisor  Advisor
	screener Screener
	archive  Archive
	logger   zerolog.Logger
}

func NewOrchestrator(composer Composer, advisor Advisor, screener Screener, archive Archive, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		composer: composer,
		advisor:  advisor,
		screener: screener,
		archive:  archive,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Run freezes the transcript and runs every stage. A blank transcript ends
// the session as discarded with ErrEmptyTranscript before any stage runs.
func (o *Orchestrator) Run(ctx context.Context, s *Session, onStage ...StageFunc) error {
	if s.State() == StateCapturingTranscript {
		if err := s.Freeze(); err != nil {
			return err
		}
	}

	text := s.TranscriptText()
	if strings.TrimSpace(text) == "" {
		if err := s.transition("run", StateDiscarded, StateCapturingTranscript); err != nil {
			return err
		}
		o.logger.Info().Str("session_id", s.ID.String()).Msg("empty transcript, session discarded")
		return ErrEmptyTranscript
	}
	if err := s.transition("run", StateComposingSOAP, StateCapturingTranscript); err != nil {
		return err
	}
	p := s.Patient()
	log := o.logger.With().Str("session_id", s.ID.String()).Logger()

	s.SOAP = o.composer.Compose(ctx, text, &p)
	logStage(log, StateComposingSOAP, s.SOAP.Err)
	notify(onStage, StateComposingSOAP, s)

	s.setState(StateRecommendingExams)
	s.Exams = o.advisor.Recommend(ctx, s.SOAP.Value, text)
	logStage(log, StateRecommendingExams, s.Exams.Err)
	notify(onStage, StateRecommendingExams, s)

	s.setState(StateScreeningDrugs)
	s.Drugs = o.screener.Screen(ctx, s.SOAP.Value.Plan, p)
	logStage(log, StateScreeningDrugs, s.Drugs.Report.Err)
	notify(onStage, StateScreeningDrugs, s)

	s.setState(StateReviewing)
	return nil
}

// Persist writes the rendered report, tagged with the session's capture
// timestamp.
func (o *Orchestrator) Persist(ctx context.Context, s *Session) (*report.Report, error) {
	if st := s.State(); st != StateReviewing {
		return nil, &InvalidTransitionError{Op: "persist", State: st}
	}
	id := s.ID
	r, err := o.archive.Save(ctx, report.SaveInput{
		Content:    Render(s),
		CapturedAt: s.StartedAt,
		SessionID:  &id,
	})
	if err != nil {
		return nil, err
	}
	s.SavedReport = r
	s.setState(StatePersisted)
	return r, nil
}

// Discard ends the session without writing anything.
func (o *Orchestrator) Discard(s *Session) error {
	return s.transition("discard", StateDiscarded, StateCollectingInfo, StateCapturingTranscript, StateReviewing)
}

func logStage(log zerolog.Logger, stage State, err *ai.Error) {
	if err != nil {
		log.Warn().Str("stage", string(stage)).Str("kind", string(err.Kind)).Msg("stage degraded")
		return
	}
	log.Debug().Str("stage", string(stage)).Msg("stage completed")
}

func notify(fns []StageFunc, stage State, s *Session) {
	for _, fn := range fns {
		fn(stage, s)
	}
}
