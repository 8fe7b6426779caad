/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import "github.com/shopspring/decimal"

// RuleCode is the stable identifier of a rejection reason.
type RuleCode string

const (
	RulePaymentType             RuleCode = "RULE_PAYMENT_TYPE"
	RulePrincipalNegative       RuleCode = "RULE_PRINCIPAL_NEGATIVE"
	RuleCorrectionNegative      RuleCode = "RULE_CORRECTION_NEGATIVE"
	RuleBalanceExceeded         RuleCode = "RULE_BALANCE_EXCEEDED"
	RuleBeneficiaryRequired     RuleCode = "RULE_BENEFICIARY_REQUIRED"
	RuleBeneficiaryTooLong      RuleCode = "RULE_BENEFICIARY_TOO_LONG"
	RulePolicyType              RuleCode = "RULE_POLICY_TYPE"
	RuleClaimNotFound           RuleCode = "RULE_CLAIM_NOT_FOUND"
	RuleBusinessDateNotFound    RuleCode = "RULE_BUSINESS_DATE_NOT_FOUND"
	RuleConcurrentAuthorization RuleCode = "RULE_CONCURRENT_AUTHORIZATION"
)

// Violation is one failed check, tagged with a stable code.
type Violation struct {
	Code    RuleCode `json:"code"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
}

// OutcomeStatus discriminates the Outcome variants.
type OutcomeStatus string

const (
	OutcomeApproved           OutcomeStatus = "APPROVED"
	OutcomeRejected           OutcomeStatus = "REJECTED"
	OutcomeRejectedRolledBack OutcomeStatus = "REJECTED_ROLLED_BACK"
)

// Outcome is the result of AuthorizePayment. Which fields are set depends on Status:
// Approved carries amounts and references, Rejected carries Violations, and
// RejectedRolledBack carries FailedStep and Reason.
type Outcome struct {
	Status          OutcomeStatus   `json:"status"`
	AuthorizationID string          `json:"authorization_id"`
	ClaimKey        ClaimKey        `json:"claim_key"`
	TransactionRef  string          `json:"transaction_ref,omitempty"`
	Occurrence      int             `json:"occurrence,omitempty"`
	Principal       decimal.Decimal `json:"principal"`
	Correction      decimal.Decimal `json:"correction"`
	Currency        string          `json:"currency,omitempty"`
	Converted       decimal.Decimal `json:"converted_total"`
	TargetCurrency  string          `json:"target_currency,omitempty"`
	Rate            decimal.Decimal `json:"rate"`
	Violations      []Violation     `json:"violations,omitempty"`
	FailedStep      Step            `json:"failed_step,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Steps           []StepSnapshot  `json:"steps"`
}

// Approved reports whether the authorization committed.
func (o *Outcome) Approved() bool {
	return o.Status == OutcomeApproved
}

// HasViolation reports whether the outcome carries code.
func (o *Outcome) HasViolation(code RuleCode) bool {
	for _, v := range o.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// ViolationCodes lists the violated codes in order.
func (o *Outcome) ViolationCodes() []RuleCode {
	codes := make([]RuleCode, 0, len(o.Violations))
	for _, v := range o.Violations {
		codes = append(codes, v.Code)
	}
	return codes
}
