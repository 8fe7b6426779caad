package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	module := "auth"
	id := GenerateUUIDWithSuffix(module)
	assert.Contains(t, id, module+"_")
	assert.Len(t, id, len(module)+1+36)
	assert.NotEqual(t, id, GenerateUUIDWithSuffix(module))
}

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1874.995", "1875"},
		{"1874.994", "1874.99"},
		{"0.005", "0.01"},
		{"-0.005", "-0.01"},
		{"10", "10"},
	}
	for _, tt := range tests {
		got := RoundMoney(decimal.RequireFromString(tt.in))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s rounded to %s", tt.in, got)
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	in := time.Date(2024, time.March, 5, 22, 45, 10, 99, loc)

	got := DateOnly(in)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), got)
}

func TestAuthorizationRequestTotal(t *testing.T) {
	req := AuthorizationRequest{
		Principal:  decimal.RequireFromString("1500.00"),
		Correction: decimal.RequireFromString("12.35"),
	}
	assert.True(t, req.Total().Equal(decimal.RequireFromString("1512.35")))
}

func TestNeedsExternalValidation(t *testing.T) {
	tests := []struct {
		require, bypass bool
		want            bool
	}{
		{false, false, false},
		{true, false, true},
		{true, true, false},
		{false, true, false},
	}
	for _, tt := range tests {
		req := AuthorizationRequest{RequireExternalValidation: tt.require, BypassExternalValidation: tt.bypass}
		assert.Equal(t, tt.want, req.NeedsExternalValidation())
	}
}

func TestOutcomeViolations(t *testing.T) {
	o := &Outcome{
		Status: OutcomeRejected,
		Violations: []Violation{
			{Code: RulePaymentType, Field: "payment_type"},
			{Code: RuleBalanceExceeded, Field: "principal"},
		},
	}

	assert.False(t, o.Approved())
	assert.True(t, o.HasViolation(RuleBalanceExceeded))
	assert.False(t, o.HasViolation(RuleConcurrentAuthorization))
	assert.Equal(t, []RuleCode{RulePaymentType, RuleBalanceExceeded}, o.ViolationCodes())
	assert.Empty(t, (&Outcome{Status: OutcomeApproved}).ViolationCodes())
}
