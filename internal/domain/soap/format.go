package soap

import (
	"strings"
	"time"

	"github.com/ehr/ehr-agent/internal/platform/ai"
)

var rule = strings.Repeat("=", 60)

// FormatText renders a composition for display and for the saved report.
func FormatText(r ai.Result[Note]) string {
	if r.Failed() {
		return "error: " + r.ErrorMessage()
	}
	n := r.Value

	complaint := n.ChiefComplaint
	if complaint == "" {
		complaint = "not provided"
	}
	generated := ""
	if n.GeneratedAt != nil {
		generated = n.GeneratedAt.Format(time.RFC3339)
	}

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString("SOAP note\n")
	b.WriteString(rule + "\n\n")
	section(&b, "Chief complaint", complaint)
	section(&b, "Subjective (S)", n.Subjective)
	section(&b, "Objective (O)", n.Objective)
	section(&b, "Assessment (A)", n.Assessment)
	section(&b, "Plan (P)", n.Plan)
	section(&b, "Preliminary diagnosis", n.PreliminaryDiagnosis.Join(", "))
	b.WriteString("Generated at: " + generated + "\n")
	b.WriteString(rule + "\n")
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	b.WriteString("[" + title + "]\n")
	b.WriteString(body + "\n\n")
}
