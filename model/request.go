package model

import "github.com/shopspring/decimal"

// Payment types accepted by the authorization pipeline.
const (
	PaymentTypeTotal         = 1
	PaymentTypePartial       = 2
	PaymentTypeComplementary = 3
	PaymentTypeReimbursement = 4
	PaymentTypeExpenses      = 5
)

// Policy types.
const (
	PolicyTypeIndividual = "1"
	PolicyTypeCollective = "2"
)

// AuthorizationRequest is the ephemeral input of one payment authorization.
type AuthorizationRequest struct {
	ClaimKey                  ClaimKey        `json:"claim_key"`
	OperatorID                string          `json:"operator_id"`
	PaymentType               int             `json:"payment_type"`
	Principal                 decimal.Decimal `json:"principal"`
	Correction                decimal.Decimal `json:"correction"`
	Beneficiary               string          `json:"beneficiary"`
	PolicyType                string          `json:"policy_type,omitempty"`
	Currency                  string          `json:"currency"`
	RequireExternalValidation bool            `json:"require_external_validation"`
	BypassExternalValidation  bool            `json:"bypass_external_validation"`
}

// Total is principal plus correction.
func (r *AuthorizationRequest) Total() decimal.Decimal {
	return r.Principal.Add(r.Correction)
}

// NeedsExternalValidation reports whether step 3 should call a partner service.
func (r *AuthorizationRequest) NeedsExternalValidation() bool {
	return r.RequireExternalValidation && !r.BypassExternalValidation
}
