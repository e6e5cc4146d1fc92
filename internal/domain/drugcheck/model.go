// Package drugcheck extracts drug names from a treatment plan and screens
// them against the patient's allergies, medications and history.
package drugcheck

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ehr/ehr-agent/internal/platform/ai"
)

// Severity levels requested from the model.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
	SeverityNone   = "none"
	// SeverityUnknown marks a screening that failed.
	SeverityUnknown = "unknown"
)

// NoDrugsMessage is the message of the report produced when the plan names no drugs.
const NoDrugsMessage = "no drugs found in the plan"

// Interaction is one drug-interaction finding. Models return either an
// object naming the drugs involved or a bare sentence; the latter lands in Text.
type Interaction struct {
	Drugs       ai.StringList `json:"drugs,omitempty"`
	Description string        `json:"description,omitempty"`
	Text        string        `json:"-"`
}

type interactionObject struct {
	Drugs       ai.StringList `json:"drugs,omitempty"`
	Description string        `json:"description,omitempty"`
}

func (i *Interaction) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("drugcheck: empty interaction")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Interaction{Text: strings.TrimSpace(s)}
		return nil
	case '{':
		var o interactionObject
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		*i = Interaction{Drugs: o.Drugs, Description: o.Description}
		return nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*i = Interaction{Text: buf.String()}
		return nil
	}
}

// MarshalJSON writes freeform findings back as a string.
func (i Interaction) MarshalJSON() ([]byte, error) {
	if i.Text != "" && len(i.Drugs) == 0 && i.Description == "" {
		return json.Marshal(i.Text)
	}
	return json.Marshal(interactionObject{Drugs: i.Drugs, Description: i.Description})
}

// String renders the finding for display.
func (i Interaction) String() string {
	if len(i.Drugs) == 0 && i.Description == "" {
		return i.Text
	}
	drugs := i.Drugs.Join(" + ")
	if drugs == "" {
		drugs = "unknown"
	}
	desc := i.Description
	if desc == "" {
		desc = "not provided"
	}
	return drugs + ": " + desc
}

// Report is the outcome of one conflict screening. A report with Message set
// is the degenerate "no drugs" report and carries no findings.
type Report struct {
	HasConflicts      bool          `json:"has_conflicts"`
	AllergyWarnings   ai.StringList `json:"allergy_warnings"`
	DrugInteractions  []Interaction `json:"drug_interactions"`
	Contraindications ai.StringList `json:"contraindications"`
	DosageWarnings    ai.StringList `json:"dosage_warnings"`
	Recommendations   ai.StringList `json:"recommendations"`
	Severity          string        `json:"severity"`
	Message           string        `json:"message,omitempty"`
}

// emptyReport is what a failed screening degrades to.
func emptyReport() Report {
	r := Report{Severity: SeverityUnknown}
	r.fill()
	return r
}

// NoDrugsReport is returned when extraction finds nothing to screen.
func NoDrugsReport() Report {
	r := Report{Message: NoDrugsMessage}
	r.fill()
	return r
}

// IsNoDrugs reports whether r is the degenerate "no drugs" report.
func (r Report) IsNoDrugs() bool {
	return r.Message != ""
}

// fill replaces nil lists with empty ones.
func (r *Report) fill() {
	if r.AllergyWarnings == nil {
		r.AllergyWarnings = ai.StringList{}
	}
	if r.DrugInteractions == nil {
		r.DrugInteractions = []Interaction{}
	}
	if r.Contraindications == nil {
		r.Contraindications = ai.StringList{}
	}
	if r.DosageWarnings == nil {
		r.DosageWarnings = ai.StringList{}
	}
	if r.Recommendations == nil {
		r.Recommendations = ai.StringList{}
	}
}

// Response is the wire form of a screening result.
type Response struct {
	Report
	Error string `json:"error,omitempty"`
}

func NewResponse(r ai.Result[Report]) Response {
	return Response{Report: r.Value, Error: r.ErrorMessage()}
}

// Screening is the outcome of the two-stage check for one plan.
type Screening struct {
	Drugs      []string
	Extraction ai.Result[[]string]
	Report     ai.Result[Report]
	// Skipped is set when no drugs were extracted and CheckConflicts was not called.
	Skipped bool
}

type extractReply struct {
	Drugs ai.StringList `json:"drugs"`
}
