package examination

import (
	"fmt"
	"strings"
)

var groups = []struct {
	priority string
	title    string
}{
	{PriorityHigh, "High priority"},
	{PriorityMedium, "Medium priority"},
	{PriorityLow, "Low priority"},
}

// FormatRecommendations groups by priority, high first, keeping input order
// within a group. Entries with any other priority are not shown.
func FormatRecommendations(recs []Recommendation) string {
	if len(recs) == 0 {
		return "no examinations recommended"
	}

	var b strings.Builder
	b.WriteString("\n[Recommended examinations]\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, g := range groups {
		n := 0
		for _, r := range recs {
			if r.Priority != g.priority {
				continue
			}
			if n == 0 {
				b.WriteString("[" + g.title + "]\n")
			}
			n++
			fmt.Fprintf(&b, "%d. %s (%s)\n", n, orUnknown(r.Name), orUnknown(r.Type))
			fmt.Fprintf(&b, "   reason: %s\n\n", orDefault(r.Reason, "not provided"))
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	return orDefault(s, "unknown")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
