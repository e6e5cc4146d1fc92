package examination

import (
	"strings"
	"testing"
)

func TestFormatRecommendations_Empty(t *testing.T) {
	if got := FormatRecommendations(nil); got != "no examinations recommended" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestFormatRecommendations_GroupsByPriority(t *testing.T) {
	recs := []Recommendation{
		{Name: "A", Type: "routine", Reason: "ra", Priority: "low"},
		{Name: "B", Type: "imaging", Reason: "rb", Priority: "high"},
		{Name: "C", Type: "special", Reason: "rc", Priority: "low"},
		{Name: "D", Type: "biochemical", Reason: "rd", Priority: "medium"},
		{Name: "E", Type: "routine", Reason: "re", Priority: "high"},
	}
	out := FormatRecommendations(recs)

	order := []string{"[High priority]", "1. B (imaging)", "2. E (routine)",
		"[Medium priority]", "1. D (biochemical)",
		"[Low priority]", "1. A (routine)", "2. C (special)"}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		if i < 0 {
			t.Fatalf("expected %q in output:\n%s", s, out)
		}
		if i < last {
			t.Errorf("expected %q after the previous entry", s)
		}
		last = i
	}
	if !strings.Contains(out, "   reason: rb") {
		t.Error("expected reason line")
	}
}

func TestFormatRecommendations_DropsUnknownPriority(t *testing.T) {
	recs := []Recommendation{
		{Name: "Urgent MRI", Type: "imaging", Priority: "urgent"},
		{Name: "CBC", Type: "routine", Priority: "High"},
		{Name: "Glucose", Type: "biochemical", Priority: "medium"},
	}
	out := FormatRecommendations(recs)

	if strings.Contains(out, "Urgent MRI") || strings.Contains(out, "CBC") {
		t.Errorf("expected unrecognized priorities to be dropped:\n%s", out)
	}
	if !strings.Contains(out, "1. Glucose (biochemical)") {
		t.Errorf("expected medium entry:\n%s", out)
	}
	if strings.Contains(out, "[High priority]") || strings.Contains(out, "[Low priority]") {
		t.Error("expected empty groups to be omitted")
	}
}

func TestFormatRecommendations_AllUnrecognized(t *testing.T) {
	out := FormatRecommendations([]Recommendation{{Name: "X", Priority: "urgent"}})
	if strings.Contains(out, "X") {
		t.Errorf("expected no entries, got:\n%s", out)
	}
	if !strings.Contains(out, "[Recommended examinations]") {
		t.Error("expected header for non-empty input")
	}
}
