package consultation

import (
	"strings"

	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/soap"
)

// ReportTitle heads every saved report.
const ReportTitle = "EHR Agent consultation report"

// Render concatenates, in order, the patient block, the transcript, the SOAP
// note, the examination advice and the drug screening.
func Render(s *Session) string {
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(ReportTitle + "\n")
	b.WriteString(rule + "\n\n")

	b.WriteString("[Patient information]\n")
	for _, f := range s.Patient().Fields() {
		b.WriteString(f[0] + ": " + f[1] + "\n")
	}
	b.WriteString("\n")

	b.WriteString("[Consultation transcript]\n")
	b.WriteString(s.TranscriptText() + "\n\n")

	b.WriteString(soap.FormatText(s.SOAP))
	b.WriteString("\n")
	b.WriteString(examination.FormatRecommendations(s.Exams.Value))
	b.WriteString("\n")
	b.WriteString(drugcheck.FormatReport(s.Drugs.Report))
	return b.String()
}
