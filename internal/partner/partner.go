// Package partner holds the clients of the external services that validate a payment
// before it is authorized, the resilience policy around them and the router that picks one.
package partner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jerry-enebeli/claimpay/model"
)

// Kind names a partner service.
type Kind string

const (
	KindConsortium Kind = "consortium"
	KindContractA  Kind = "contract_a"
	KindContractB  Kind = "contract_b"
)

// ValidationRequest is what a partner needs to validate one payment.
type ValidationRequest struct {
	ClaimKey       model.ClaimKey
	ContractNumber int64
	ProductCode    int
	PolicyType     string
	PaymentType    int
	Principal      decimal.Decimal
	Correction     decimal.Decimal
	Beneficiary    string
}

// NewValidationRequest builds the partner request from the authorization request and the located claim.
// The request policy type hint wins over the claim's.
func NewValidationRequest(req *model.AuthorizationRequest, claim *model.Claim) ValidationRequest {
	policyType := req.PolicyType
	if policyType == "" {
		policyType = claim.PolicyType
	}
	return ValidationRequest{
		ClaimKey:       claim.Key,
		ContractNumber: claim.ContractNumber,
		ProductCode:    claim.ProductCode,
		PolicyType:     policyType,
		PaymentType:    req.PaymentType,
		Principal:      req.Principal,
		Correction:     req.Correction,
		Beneficiary:    req.Beneficiary,
	}
}

// ValidationResponse is the normalized answer of a partner. Success is true only when the
// partner status was all zeros; otherwise Code and Message carry the mapped rejection.
type ValidationResponse struct {
	Partner   Kind      `json:"partner"`
	Success   bool      `json:"success"`
	Status    string    `json:"status,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validator is implemented by each partner client.
type Validator interface {
	Kind() Kind
	Validate(ctx context.Context, req ValidationRequest) (ValidationResponse, error)
	HealthCheck(ctx context.Context) error
}

// CallError is an infrastructure failure talking to a partner, as opposed to a partner
// rejecting the payment.
type CallError struct {
	Partner   Kind
	Code      string
	Retryable bool
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("partner %s [%s]: %v", e.Partner, e.Code, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a CallError worth another attempt.
func IsRetryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

func failureResponse(kind Kind, code string) ValidationResponse {
	return ValidationResponse{
		Partner:   kind,
		Code:      code,
		Message:   MessageFor(code),
		Timestamp: time.Now(),
	}
}
