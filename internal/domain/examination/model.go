// Package examination recommends diagnostic examinations from a SOAP note.
package examination

// Priorities, in display order.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Examination categories requested from the model. They are not enforced on
// the reply.
const (
	TypeRoutine     = "routine"
	TypeBiochemical = "biochemical"
	TypeImaging     = "imaging"
	TypeSpecial     = "special"
)

type Recommendation struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

type reply struct {
	Examinations []Recommendation `json:"examinations"`
}
