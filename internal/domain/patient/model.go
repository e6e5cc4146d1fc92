// Package patient holds the demographic and history snapshot collected at the
// start of a consultation.
package patient

import "strings"

const (
	// Unknown is the placeholder for missing name, age and gender.
	Unknown = "unknown"
	// None is the placeholder for missing history, allergies and medications.
	None = "none"
)

// Info is collected once per session and never mutated afterwards. Missing
// values are stored as a placeholder, not left empty.
type Info struct {
	Name               string `json:"name"`
	Age                string `json:"age"`
	Gender             string `json:"gender"`
	MedicalHistory     string `json:"medical_history"`
	Allergies          string `json:"allergies"`
	CurrentMedications string `json:"current_medications"`
}

// placeholders are values that mean "no data", in any case.
var placeholders = map[string]bool{
	"":        true,
	"none":    true,
	"无":       true,
	"n/a":     true,
	"na":      true,
	"unknown": true,
	"未知":      true,
	"-":       true,
}

// IsPlaceholder reports whether v carries no data.
func IsPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

// WithDefaults returns a copy of p with every blank field replaced by its
// placeholder and surrounding whitespace trimmed.
func (p Info) WithDefaults() Info {
	return Info{
		Name:               orDefault(p.Name, Unknown),
		Age:                orDefault(p.Age, Unknown),
		Gender:             orDefault(p.Gender, Unknown),
		MedicalHistory:     orDefault(p.MedicalHistory, None),
		Allergies:          orDefault(p.Allergies, None),
		CurrentMedications: orDefault(p.CurrentMedications, None),
	}
}

// AllergyList splits Allergies into entries, dropping placeholders.
func (p Info) AllergyList() []string {
	return SplitList(p.Allergies)
}

// MedicationList splits CurrentMedications into entries, dropping placeholders.
func (p Info) MedicationList() []string {
	return SplitList(p.CurrentMedications)
}

// History returns MedicalHistory, or "" when it is a placeholder.
func (p Info) History() string {
	if IsPlaceholder(p.MedicalHistory) {
		return ""
	}
	return strings.TrimSpace(p.MedicalHistory)
}

// Fields returns the labelled fields in display order.
func (p Info) Fields() [][2]string {
	return [][2]string{
		{"name", p.Name},
		{"age", p.Age},
		{"gender", p.Gender},
		{"medical_history", p.MedicalHistory},
		{"allergies", p.Allergies},
		{"current_medications", p.CurrentMedications},
	}
}

// SplitList splits comma-separated text (ASCII or full-width commas, or
// enumeration commas) into trimmed entries. Placeholder entries are dropped,
// so "none" and "无" both yield an empty, non-nil slice.
func SplitList(s string) []string {
	out := []string{}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == ';' || r == '；'
	})
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if IsPlaceholder(part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
