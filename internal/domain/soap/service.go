package soap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/ehr-agent/internal/domain/patient"
	"github.com/ehr/ehr-agent/internal/platform/ai"
)

// Temperature used for note composition.
const Temperature float32 = 0.3

const role = "You are an experienced clinician who writes rigorous, well-structured SOAP notes."

// Composer asks the AI gateway to structure a transcript into a Note.
type Composer struct {
	gw  ai.Requester
	now func() time.Time
}

func NewComposer(gw ai.Requester) *Composer {
	return &Composer{gw: gw, now: time.Now}
}

// WithClock replaces the clock used for GeneratedAt.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}

// Compose never returns a Go error; a failed call yields an empty note with
// Err set.
func (c *Composer) Compose(ctx context.Context, transcript string, p *patient.Info) ai.Result[Note] {
	var note Note
	if err := c.gw.RequestStructured(ctx, role, buildInstruction(transcript, p), Temperature, &note); err != nil {
		return ai.Failure(emptyNote(), err)
	}
	if note.PreliminaryDiagnosis == nil {
		note.PreliminaryDiagnosis = ai.StringList{}
	}
	at := c.now()
	note.GeneratedAt = &at
	return ai.Success(note)
}

func buildInstruction(transcript string, p *patient.Info) string {
	var b strings.Builder
	b.WriteString("Write a complete SOAP note for the consultation below.\n\n")
	if p != nil {
		d := p.WithDefaults()
		b.WriteString("Patient information:\n")
		fmt.Fprintf(&b, "- Name: %s\n", d.Name)
		fmt.Fprintf(&b, "- Age: %s\n", d.Age)
		fmt.Fprintf(&b, "- Gender: %s\n", d.Gender)
		fmt.Fprintf(&b, "- Medical history: %s\n", d.MedicalHistory)
		fmt.Fprintf(&b, "- Allergies: %s\n\n", d.Allergies)
	}
	b.WriteString("Consultation transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")
	b.WriteString(`Cover the four SOAP sections:
1. S (Subjective): chief complaint, history of present illness, past and personal history
2. O (Objective): physical examination findings and vital signs
3. A (Assessment): preliminary and differential diagnosis
4. P (Plan): treatment, examinations, medication and follow-up

Return a JSON object with these fields:
- subjective: string
- objective: string
- assessment: string
- plan: string
- chief_complaint: short string
- preliminary_diagnosis: array of strings

Keep the content professional, accurate and complete. Answer in the language of the transcript.`)
	return b.String()
}
