package claimpay

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/jerry-enebeli/claimpay/model"
)

const maxBeneficiaryLength = 255

func nonNegative(message string) validation.Rule {
	return validation.By(func(value interface{}) error {
		amount, ok := value.(decimal.Decimal)
		if !ok {
			return errors.New("must be a decimal amount")
		}
		if amount.IsNegative() {
			return errors.New(message)
		}
		return nil
	})
}

func notAbove(limit decimal.Decimal, message string) validation.Rule {
	return validation.By(func(value interface{}) error {
		if value.(decimal.Decimal).GreaterThan(limit) {
			return errors.New(message)
		}
		return nil
	})
}

type ruleCheck struct {
	code  model.RuleCode
	field string
	value interface{}
	rules []validation.Rule
}

func (c ruleCheck) violation() (model.Violation, bool) {
	if err := validation.Validate(c.value, c.rules...); err != nil {
		return model.Violation{Code: c.code, Field: c.field, Message: err.Error()}, true
	}
	return model.Violation{}, false
}

// ValidateRequest checks req against the authorization rules and returns the violations in rule order.
// Without a claim only the context-free rules run; balance and beneficiary rules need the claim.
func ValidateRequest(req *model.AuthorizationRequest, claim *model.Claim) []model.Violation {
	checks := []ruleCheck{
		{model.RulePaymentType, "payment_type", req.PaymentType, []validation.Rule{
			validation.Required.Error("payment type must be between 1 and 5"),
			validation.In(model.PaymentTypeTotal, model.PaymentTypePartial, model.PaymentTypeComplementary,
				model.PaymentTypeReimbursement, model.PaymentTypeExpenses).Error("payment type must be between 1 and 5"),
		}},
		{model.RulePrincipalNegative, "principal", req.Principal, []validation.Rule{
			nonNegative("principal must not be negative"),
		}},
		{model.RuleCorrectionNegative, "correction", req.Correction, []validation.Rule{
			nonNegative("correction must not be negative"),
		}},
	}

	if claim != nil {
		checks = append(checks, ruleCheck{model.RuleBalanceExceeded, "principal", req.Total(), []validation.Rule{
			notAbove(claim.Available(), "principal plus correction exceeds the claim's available balance"),
		}})

		if claim.InsuredType != 0 {
			beneficiary := strings.TrimSpace(req.Beneficiary)
			checks = append(checks,
				ruleCheck{model.RuleBeneficiaryRequired, "beneficiary", beneficiary, []validation.Rule{
					validation.Required.Error("beneficiary is required"),
				}},
				ruleCheck{model.RuleBeneficiaryTooLong, "beneficiary", beneficiary, []validation.Rule{
					validation.RuneLength(0, maxBeneficiaryLength).Error("beneficiary must be at most 255 characters"),
				}},
			)
		}
	}

	if policyType := policyTypeOf(req, claim); policyType != "" || claim != nil {
		checks = append(checks, ruleCheck{model.RulePolicyType, "policy_type", policyType, []validation.Rule{
			validation.Required.Error("policy type must be 1 or 2"),
			validation.In(model.PolicyTypeIndividual, model.PolicyTypeCollective).Error("policy type must be 1 or 2"),
		}})
	}

	var violations []model.Violation
	for _, check := range checks {
		if v, failed := check.violation(); failed {
			violations = append(violations, v)
		}
	}
	return violations
}

// policyTypeOf prefers the request hint and falls back to the claim.
func policyTypeOf(req *model.AuthorizationRequest, claim *model.Claim) string {
	if req.PolicyType != "" {
		return req.PolicyType
	}
	if claim != nil {
		return claim.PolicyType
	}
	return ""
}
