// Package consultation sequences one consultation from patient intake to the
// saved report.
package consultation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/patient"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai"
)

var (
	ErrEmptyTranscript  = errors.New("consultation transcript is empty")
	ErrTranscriptFrozen = errors.New("consultation transcript is frozen")
)

// State is a step of the session lifecycle.
type State string

const (
	StateCollectingInfo      State = "collecting_info"
	StateCapturingTranscript State = "capturing_transcript"
	StateComposingSOAP       State = "composing_soap"
	StateRecommendingExams   State = "recommending_exams"
	StateScreeningDrugs      State = "screening_drugs"
	// StateReviewing means every stage has run and the session awaits
	// Persist or Discard.
	StateReviewing State = "reviewing"
	StatePersisted State = "persisted"
	StateDiscarded State = "discarded"
)

// InvalidTransitionError reports an operation attempted in the wrong state.
type InvalidTransitionError struct {
	Op    string
	State State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("consultation: cannot %s in state %s", e.Op, e.State)
}

// Separators used to join utterances.
const (
	VoiceSeparator = " "
	TypedSeparator = "\n"
)

// Transcript is append-only until frozen.
type Transcript struct {
	sep        string
	utterances []string
	frozen     bool
}

func NewTranscript(sep string) *Transcript {
	return &Transcript{sep: sep}
}

// Append adds one utterance. Blank utterances are ignored.
func (t *Transcript) Append(u string) error {
	if t.frozen {
		return ErrTranscriptFrozen
	}
	if strings.TrimSpace(u) == "" {
		return nil
	}
	t.utterances = append(t.utterances, u)
	return nil
}

func (t *Transcript) Freeze() {
	t.frozen = true
}

func (t *Transcript) Frozen() bool {
	return t.frozen
}

// Len returns the number of utterances.
func (t *Transcript) Len() int {
	return len(t.utterances)
}

// Text joins the utterances in capture order.
func (t *Transcript) Text() string {
	return strings.Join(t.utterances, t.sep)
}

// Session is one consultation. It is owned by a single caller and is not
// shared between goroutines except through its own lock.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	mu         sync.Mutex
	state      State
	patient    patient.Info
	transcript *Transcript

	SOAP        ai.Result[soap.Note]
	Exams       ai.Result[[]examination.Recommendation]
	Drugs       drugcheck.Screening
	SavedReport *report.Report
}

// NewSession starts a session whose capture timestamp is startedAt. sep joins
// utterances: VoiceSeparator or TypedSeparator.
func NewSession(startedAt time.Time, sep string) *Session {
	return &Session{
		ID:         uuid.New(),
		StartedAt:  startedAt,
		state:      StateCollectingInfo,
		transcript: NewTranscript(sep),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Patient returns the collected patient info.
func (s *Session) Patient() patient.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patient
}

// TranscriptText returns the joined transcript.
func (s *Session) TranscriptText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Text()
}

// Utterances returns how many utterances were captured.
func (s *Session) Utterances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Len()
}

// SetPatient records the patient, with placeholders for blank fields, and
// moves the session to transcript capture.
func (s *Session) SetPatient(p patient.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollectingInfo {
		return &InvalidTransitionError{Op: "set patient", State: s.state}
	}
	s.patient = p.WithDefaults()
	s.state = StateCapturingTranscript
	return nil
}

// AddUtterance appends to the transcript during capture.
func (s *Session) AddUtterance(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCapturingTranscript {
		return &InvalidTransitionError{Op: "add utterance", State: s.state}
	}
	return s.transcript.Append(text)
}

// Freeze ends capture. The transcript cannot change afterwards.
func (s *Session) Freeze() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCapturingTranscript {
		return &InvalidTransitionError{Op: "freeze transcript", State: s.state}
	}
	s.transcript.Freeze()
	return nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// transition moves from one of the allowed states to next.
func (s *Session) transition(op string, next State, from ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = next
			return nil
		}
	}
	return &InvalidTransitionError{Op: op, State: s.state}
}
