package gate

import (
	"time"
)

// Veto severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// VetoReason records a denied admission. Vetoes are never silently
// dropped: every one is routed to the audit sink when recorded.
type VetoReason struct {
	// Reason describes why the request was denied
	Reason string

	// PolicyViolated names the routing policy that denied it
	PolicyViolated string

	// Severity of the denial
	Severity string

	// Details carries structured context (agent, task type, provider,
	// sensitivity, and any call-site annotations)
	Details map[string]any

	// CreatedAt is when the veto was recorded
	CreatedAt time.Time
}

// AnnotateVeto returns a copy of v with the context description merged
// into Details. It is a pure function: the original veto, including its
// Details map, is never mutated, so multiple call sites can ask "why was
// this blocked?" after one denial without stepping on each other.
func AnnotateVeto(v VetoReason, context string) VetoReason {
	details := make(map[string]any, len(v.Details)+1)
	for k, val := range v.Details {
		details[k] = val
	}
	details["context"] = context
	v.Details = details
	return v
}

func copyVeto(v VetoReason) VetoReason {
	details := make(map[string]any, len(v.Details))
	for k, val := range v.Details {
		details[k] = val
	}
	v.Details = details
	return v
}
