package soap

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ehr/ehr-agent/internal/platform/ai"
)

func TestFormatText(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	n := Note{
		Subjective:           "S text",
		Objective:            "O text",
		Assessment:           "A text",
		Plan:                 "P text",
		ChiefComplaint:       "Headache",
		PreliminaryDiagnosis: ai.StringList{"tension headache", "hypertension"},
		GeneratedAt:          &at,
	}

	out := FormatText(ai.Success(n))

	order := []string{"[Chief complaint]\nHeadache", "[Subjective (S)]\nS text", "[Objective (O)]\nO text",
		"[Assessment (A)]\nA text", "[Plan (P)]\nP text", "tension headache, hypertension", "Generated at: 2024-05-01T09:30:00Z"}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		if i < 0 {
			t.Fatalf("expected output to contain %q:\n%s", s, out)
		}
		if i < last {
			t.Errorf("expected %q after previous section", s)
		}
		last = i
	}
	if !strings.Contains(out, strings.Repeat("=", 60)) {
		t.Error("expected rule line")
	}
}

func TestFormatText_Error(t *testing.T) {
	out := FormatText(ai.Failure(emptyNote(), errors.New("quota exceeded")))
	if out != "error: quota exceeded" {
		t.Errorf("expected only the error line, got %q", out)
	}
}

func TestFormatText_MissingComplaint(t *testing.T) {
	out := FormatText(ai.Success(Note{PreliminaryDiagnosis: ai.StringList{}}))
	if !strings.Contains(out, "[Chief complaint]\nnot provided") {
		t.Errorf("expected placeholder complaint, got:\n%s", out)
	}
}
