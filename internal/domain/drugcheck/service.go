package drugcheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehr/ehr-agent/internal/domain/patient"
	"github.com/ehr/ehr-agent/internal/platform/ai"
)

const (
	// ExtractTemperature is used for drug-name extraction.
	ExtractTemperature float32 = 0.1
	// CheckTemperature is used for conflict screening.
	CheckTemperature float32 = 0.2
)

const (
	extractRole = "You extract drug names from medical text accurately."
	checkRole   = "You are an experienced clinical pharmacist who identifies drug conflicts and medication safety risks."
)

// Screener runs drug extraction and conflict screening through the AI gateway.
type Screener struct {
	gw ai.Requester
}

func NewScreener(gw ai.Requester) *Screener {
	return &Screener{gw: gw}
}

// ExtractDrugs returns the drug names mentioned in plan. A blank plan yields
// an empty list without contacting the provider.
func (s *Screener) ExtractDrugs(ctx context.Context, plan string) ai.Result[[]string] {
	if strings.TrimSpace(plan) == "" {
		return ai.Success([]string{})
	}

	instruction := "Extract every drug name mentioned in the treatment plan below.\n\n" +
		"Treatment plan:\n" + plan + "\n\n" +
		`Return a JSON object with a "drugs" array of drug names. ` +
		"Only include explicit drug names; leave out examinations and any other non-drug content."

	var out extractReply
	if err := s.gw.RequestStructured(ctx, extractRole, instruction, ExtractTemperature, &out); err != nil {
		return ai.Failure([]string{}, err)
	}
	if out.Drugs == nil {
		return ai.Success([]string{})
	}
	return ai.Success([]string(out.Drugs))
}

// CheckConflicts screens drugs against the patient context. Placeholder
// entries in allergies, currentMeds and history are treated as absent.
func (s *Screener) CheckConflicts(ctx context.Context, drugs, allergies, currentMeds []string, history string) ai.Result[Report] {
	var out Report
	if err := s.gw.RequestStructured(ctx, checkRole, buildCheckInstruction(drugs, allergies, currentMeds, history), CheckTemperature, &out); err != nil {
		return ai.Failure(emptyReport(), err)
	}
	out.Message = ""
	out.fill()
	return ai.Success(out)
}

// Screen extracts drugs from plan and, when any are found, screens them
// against p. With no drugs the conflict check is skipped entirely.
func (s *Screener) Screen(ctx context.Context, plan string, p patient.Info) Screening {
	extraction := s.ExtractDrugs(ctx, plan)
	if len(extraction.Value) == 0 {
		return Screening{
			Drugs:      []string{},
			Extraction: extraction,
			Report:     ai.Success(NoDrugsReport()),
			Skipped:    true,
		}
	}
	return Screening{
		Drugs:      extraction.Value,
		Extraction: extraction,
		Report:     s.CheckConflicts(ctx, extraction.Value, p.AllergyList(), p.MedicationList(), p.History()),
	}
}

func buildCheckInstruction(drugs, allergies, currentMeds []string, history string) string {
	var b strings.Builder
	b.WriteString("Check the safety of the prescribed drugs below.\n\n")
	b.WriteString("Prescribed drugs:\n")
	b.WriteString(strings.Join(drugs, ", "))
	b.WriteString("\n\nPatient information:\n")
	fmt.Fprintf(&b, "- Allergies: %s\n", listOrNone(allergies))
	fmt.Fprintf(&b, "- Current medications: %s\n", listOrNone(currentMeds))
	fmt.Fprintf(&b, "- Medical history: %s\n\n", textOrNone(history))
	fmt.Fprintf(&b, `Evaluate:
1. Allergy risk: does any prescribed drug conflict with the allergies?
2. Drug interactions: do the prescribed drugs interact with each other?
3. Current medication conflicts: do they conflict with the current medications?
4. Disease conflicts: do they conflict with the medical history?
5. Dosage: are the doses reasonable?

Return a JSON object with:
- has_conflicts: boolean
- allergy_warnings: array of strings
- drug_interactions: array of objects with "drugs" (array of drug names) and "description"
- contraindications: array of strings
- dosage_warnings: array of strings
- recommendations: array of strings
- severity: overall severity, one of %s, %s, %s, %s`,
		SeverityHigh, SeverityMedium, SeverityLow, SeverityNone)
	return b.String()
}

func listOrNone(items []string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if !patient.IsPlaceholder(it) {
			kept = append(kept, strings.TrimSpace(it))
		}
	}
	if len(kept) == 0 {
		return patient.None
	}
	return strings.Join(kept, ", ")
}

func textOrNone(s string) string {
	if patient.IsPlaceholder(s) {
		return patient.None
	}
	return strings.TrimSpace(s)
}
