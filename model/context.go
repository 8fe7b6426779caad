package model

import "time"

// Step identifies a stage of the authorization pipeline.
type Step int

const (
	StepValidateRequest Step = iota + 1
	StepLocateClaim
	StepExternalValidation
	StepValidateBalance
	StepAppendHistory
	StepUpdateClaim
	StepAppendAccompaniment
	StepAdvancePhases
	StepCommit
)

var stepNames = map[Step]string{
	StepValidateRequest:     "validate_request",
	StepLocateClaim:         "locate_claim",
	StepExternalValidation:  "external_validation",
	StepValidateBalance:     "validate_balance",
	StepAppendHistory:       "append_history",
	StepUpdateClaim:         "update_claim",
	StepAppendAccompaniment: "append_accompaniment",
	StepAdvancePhases:       "advance_phases",
	StepCommit:              "commit",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders steps by name in JSON outcomes.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transactional reports whether the step runs inside the write transaction.
func (s Step) Transactional() bool {
	return s >= StepAppendHistory
}

// StepStatus is the result recorded for a step.
type StepStatus string

const (
	StepPassed     StepStatus = "passed"
	StepSkipped    StepStatus = "skipped"
	StepFailed     StepStatus = "failed"
	StepRolledBack StepStatus = "rolled_back"
)

// StepSnapshot is an immutable record of one pipeline step.
type StepSnapshot struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	At     time.Time  `json:"at"`
	Reason string     `json:"reason,omitempty"`
}

// TransactionContext tracks a single authorization through the pipeline. Methods return a
// new value with the snapshot appended; the receiver is never modified.
type TransactionContext struct {
	AuthorizationID string
	ClaimKey        ClaimKey
	OperatorID      string
	BusinessDate    time.Time
	RollbackReason  string
	steps           []StepSnapshot
}

// NewTransactionContext starts the context for one authorization.
func NewTransactionContext(authorizationID string, key ClaimKey, operatorID string) TransactionContext {
	return TransactionContext{AuthorizationID: authorizationID, ClaimKey: key, OperatorID: operatorID}
}

func (t TransactionContext) record(s StepSnapshot) TransactionContext {
	steps := make([]StepSnapshot, len(t.steps), len(t.steps)+1)
	copy(steps, t.steps)
	t.steps = append(steps, s)
	return t
}

// Pass records a successful step.
func (t TransactionContext) Pass(step Step, at time.Time) TransactionContext {
	return t.record(StepSnapshot{Step: step, Status: StepPassed, At: at})
}

// Skip records a step that did not apply.
func (t TransactionContext) Skip(step Step, at time.Time, reason string) TransactionContext {
	return t.record(StepSnapshot{Step: step, Status: StepSkipped, At: at, Reason: reason})
}

// Fail records a failed step.
func (t TransactionContext) Fail(step Step, at time.Time, reason string) TransactionContext {
	return t.record(StepSnapshot{Step: step, Status: StepFailed, At: at, Reason: reason})
}

// RolledBack records that the transaction was rolled back because of step.
func (t TransactionContext) RolledBack(step Step, at time.Time, reason string) TransactionContext {
	t = t.record(StepSnapshot{Step: step, Status: StepRolledBack, At: at, Reason: reason})
	t.RollbackReason = reason
	return t
}

// WithBusinessDate returns a copy carrying the resolved business date.
func (t TransactionContext) WithBusinessDate(date time.Time) TransactionContext {
	t.BusinessDate = date
	return t
}

// Steps returns a copy of the recorded snapshots in order.
func (t TransactionContext) Steps() []StepSnapshot {
	out := make([]StepSnapshot, len(t.steps))
	copy(out, t.steps)
	return out
}

// Current is the most recent snapshot, or false if nothing was recorded yet.
func (t TransactionContext) Current() (StepSnapshot, bool) {
	if len(t.steps) == 0 {
		return StepSnapshot{}, false
	}
	return t.steps[len(t.steps)-1], true
}
