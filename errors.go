package claimpay

import (
	"fmt"
	"strings"

	"github.com/jerry-enebeli/claimpay/internal/partner"
	"github.com/jerry-enebeli/claimpay/model"
)

// ValidationError carries the rule violations of a request that failed pre-transaction checks.
type ValidationError struct {
	Step       model.Step
	Violations []model.Violation
}

func (e *ValidationError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, string(v.Code))
	}
	return fmt.Sprintf("request failed validation at %s: %s", e.Step, strings.Join(codes, ", "))
}

// NotFoundError is returned when the claim or the business date needed to authorize is missing.
type NotFoundError struct {
	Resource string
	Key      string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ExternalServiceError is a non-success answer from a partner validation service.
type ExternalServiceError struct {
	Partner partner.Kind
	Code    string
	Message string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external validation by %s failed: %s (%s)", e.Partner, e.Code, e.Message)
}

// Unavailable reports whether the partner could not be reached, as opposed to having rejected the payment.
func (e *ExternalServiceError) Unavailable() bool {
	return e.Code == partner.CodeServiceUnavailable
}

// TransactionFailure is a fault in one of the transactional steps. The transaction has been
// rolled back completely when this error is returned.
type TransactionFailure struct {
	Step   model.Step
	Reason string
	Err    error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("transaction failed at %s: %s", e.Step, e.Reason)
}

func (e *TransactionFailure) Unwrap() error {
	return e.Err
}

// RollbackFailure means a transaction could not be rolled back after a step failed.
// Persisted state must be treated as suspect.
type RollbackFailure struct {
	Step  model.Step
	Cause error
	Err   error
}

func (e *RollbackFailure) Error() string {
	return fmt.Sprintf("rollback failed after %s failed (%v): %v", e.Step, e.Cause, e.Err)
}

func (e *RollbackFailure) Unwrap() error {
	return e.Err
}
