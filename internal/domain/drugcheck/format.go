package drugcheck

import (
	"strings"

	"github.com/ehr/ehr-agent/internal/platform/ai"
)

var severityLabels = map[string]string{
	SeverityHigh:   "⚠️ high risk",
	SeverityMedium: "⚡ moderate risk",
	SeverityLow:    "ℹ️ low risk",
	SeverityNone:   "✅ no risk",
}

// SeverityLabel maps a severity to its display label. Unrecognized values
// are returned unchanged.
func SeverityLabel(severity string) string {
	if l, ok := severityLabels[severity]; ok {
		return l
	}
	return severity
}

// FormatReport renders a screening for display and for the saved report.
func FormatReport(r ai.Result[Report]) string {
	if r.Failed() {
		return "error: " + r.ErrorMessage()
	}
	rep := r.Value
	if rep.IsNoDrugs() {
		return rep.Message
	}

	var b strings.Builder
	b.WriteString("\n[Drug conflict check]\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString("Overall: " + SeverityLabel(rep.Severity) + "\n\n")

	list(&b, "Allergy warnings", "⚠️", rep.AllergyWarnings)
	if len(rep.DrugInteractions) > 0 {
		items := make([]string, len(rep.DrugInteractions))
		for i, it := range rep.DrugInteractions {
			items[i] = it.String()
		}
		list(&b, "Drug interactions", "⚠️", items)
	}
	list(&b, "Contraindications", "🚫", rep.Contraindications)
	list(&b, "Dosage warnings", "⚠️", rep.DosageWarnings)
	list(&b, "Recommendations", "💡", rep.Recommendations)

	if !rep.HasConflicts && len(rep.AllergyWarnings) == 0 && len(rep.DrugInteractions) == 0 {
		b.WriteString("✅ no conflicts found\n")
	}
	return b.String()
}

func list(b *strings.Builder, title, icon string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("[" + title + "]\n")
	for _, it := range items {
		b.WriteString(icon + " " + it + "\n")
	}
	b.WriteString("\n")
}
