// Package soap turns a consultation transcript into a SOAP clinical note.
package soap

import (
	"errors"
	"time"

	"github.com/ehr/ehr-agent/internal/platform/ai"
)

// Note is the structured clinical summary of one consultation.
type Note struct {
	Subjective           string        `json:"subjective"`
	Objective            string        `json:"objective"`
	Assessment           string        `json:"assessment"`
	Plan                 string        `json:"plan"`
	ChiefComplaint       string        `json:"chief_complaint"`
	PreliminaryDiagnosis ai.StringList `json:"preliminary_diagnosis"`
	GeneratedAt          *time.Time    `json:"generated_at,omitempty"`
}

// emptyNote is what a failed composition degrades to.
func emptyNote() Note {
	return Note{PreliminaryDiagnosis: ai.StringList{}}
}

// IsEmpty reports whether the note has no clinical content.
func (n Note) IsEmpty() bool {
	return n.Subjective == "" && n.Objective == "" && n.Assessment == "" &&
		n.Plan == "" && n.ChiefComplaint == "" && len(n.PreliminaryDiagnosis) == 0
}

// Response is the wire form of a composition: the note plus the failure
// message when the composer degraded.
type Response struct {
	Note
	Error string `json:"error,omitempty"`
}

// NewResponse flattens a composition result for JSON output.
func NewResponse(r ai.Result[Note]) Response {
	return Response{Note: r.Value, Error: r.ErrorMessage()}
}

// Result rebuilds a composition result from its wire form.
func (r Response) Result() ai.Result[Note] {
	n := r.Note
	if n.PreliminaryDiagnosis == nil {
		n.PreliminaryDiagnosis = ai.StringList{}
	}
	if r.Error != "" {
		return ai.Failure(n, errors.New(r.Error))
	}
	return ai.Success(n)
}
