package model

import "time"

// PhaseOpenSentinel is the closing date of a phase that is still open.
var PhaseOpenSentinel = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// PhaseAction is what a PhaseEventRule does to its phase.
type PhaseAction string

const (
	PhaseActionOpen  PhaseAction = "open"
	PhaseActionClose PhaseAction = "close"
)

// Phase is a workflow stage of a claim protocol.
type Phase struct {
	PhaseID   string      `json:"phase_id"`
	Protocol  ProtocolKey `json:"protocol"`
	PhaseCode int         `json:"phase_code"`
	EventCode int         `json:"event_code"`
	OpenedAt  time.Time   `json:"opened_at"`
	ClosedAt  time.Time   `json:"closed_at"`
	OpenedBy  string      `json:"opened_by"`
	ClosedBy  string      `json:"closed_by,omitempty"`
}

// IsOpen reports whether the phase still carries the open sentinel.
func (p *Phase) IsOpen() bool {
	return p.ClosedAt.Equal(PhaseOpenSentinel)
}

// PhaseEventRule maps an event code to a phase action inside an effective-date window.
// A zero EffectiveTo means the rule has no end date.
type PhaseEventRule struct {
	RuleID        int64       `json:"rule_id"`
	EventCode     int         `json:"event_code"`
	PhaseCode     int         `json:"phase_code"`
	Action        PhaseAction `json:"action"`
	EffectiveFrom time.Time   `json:"effective_from"`
	EffectiveTo   time.Time   `json:"effective_to"`
}

// Covers reports whether date falls inside the rule's window, both ends inclusive.
func (r PhaseEventRule) Covers(date time.Time) bool {
	d := DateOnly(date)
	if d.Before(DateOnly(r.EffectiveFrom)) {
		return false
	}
	if !r.EffectiveTo.IsZero() && d.After(DateOnly(r.EffectiveTo)) {
		return false
	}
	return true
}
