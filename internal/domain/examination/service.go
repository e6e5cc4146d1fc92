package examination

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai"
)

// Temperature used for recommendations.
const Temperature float32 = 0.3

// transcriptLimit is how many characters of the transcript go into the prompt.
const transcriptLimit = 1000

const role = "You are an experienced clinician who recommends appropriate diagnostic examinations."

type Advisor struct {
	gw ai.Requester
}

func NewAdvisor(gw ai.Requester) *Advisor {
	return &Advisor{gw: gw}
}

// Recommend never returns a Go error; on failure the value is an empty list.
func (a *Advisor) Recommend(ctx context.Context, note soap.Note, transcript string) ai.Result[[]Recommendation] {
	var out reply
	if err := a.gw.RequestStructured(ctx, role, buildInstruction(note, transcript), Temperature, &out); err != nil {
		return ai.Failure([]Recommendation{}, err)
	}
	if out.Examinations == nil {
		out.Examinations = []Recommendation{}
	}
	return ai.Success(out.Examinations)
}

func buildInstruction(note soap.Note, transcript string) string {
	complaint := note.ChiefComplaint
	if complaint == "" {
		complaint = "not provided"
	}

	var b strings.Builder
	b.WriteString("Recommend the examinations this patient needs, based on the SOAP summary and transcript below.\n\n")
	b.WriteString("SOAP summary:\n")
	fmt.Fprintf(&b, "- Chief complaint: %s\n", complaint)
	fmt.Fprintf(&b, "- Preliminary diagnosis: %s\n", note.PreliminaryDiagnosis.Join(", "))
	fmt.Fprintf(&b, "- Assessment: %s\n\n", note.Assessment)
	b.WriteString("Consultation transcript:\n")
	b.WriteString(truncate(transcript, transcriptLimit))
	b.WriteString("...\n\n")
	fmt.Fprintf(&b, `Consider these categories:
1. %s (complete blood count, urinalysis, ...)
2. %s (liver and kidney function, blood glucose, ...)
3. %s (X-ray, CT, MRI, ultrasound, ...)
4. %s (as the condition requires)

Return a JSON object with an "examinations" array. Each element has:
- name: examination name
- type: one of %s, %s, %s, %s
- reason: why it is recommended
- priority: one of %s, %s, %s`,
		TypeRoutine, TypeBiochemical, TypeImaging, TypeSpecial,
		TypeRoutine, TypeBiochemical, TypeImaging, TypeSpecial,
		PriorityHigh, PriorityMedium, PriorityLow)
	return b.String()
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
