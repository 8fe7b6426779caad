package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimKey is the composite key of a claim aggregate.
type ClaimKey struct {
	InsuranceType int   `json:"insurance_type"`
	Origin        int   `json:"origin"`
	Branch        int   `json:"branch"`
	Number        int64 `json:"claim_number"`
}

// String renders the key as "type-origin-branch-number", used for lock keys and logs.
func (k ClaimKey) String() string {
	return fmt.Sprintf("%d-%d-%d-%d", k.InsuranceType, k.Origin, k.Branch, k.Number)
}

// SlashTriple renders origin/branch/number, the claim number format partner services expect.
func (k ClaimKey) SlashTriple() string {
	return fmt.Sprintf("%d/%d/%d", k.Origin, k.Branch, k.Number)
}

// ProtocolKey is the alternate key of a claim used for routing and phase tracking.
type ProtocolKey struct {
	Source     int   `json:"source"`
	Sequence   int64 `json:"sequence"`
	CheckDigit int   `json:"check_digit"`
}

func (p ProtocolKey) String() string {
	return fmt.Sprintf("%d.%d-%d", p.Source, p.Sequence, p.CheckDigit)
}

// Claim is the insurance claim aggregate.
type Claim struct {
	Key             ClaimKey        `json:"key"`
	Protocol        ProtocolKey     `json:"protocol"`
	Reserve         decimal.Decimal `json:"reserve"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	OccurrenceCount int             `json:"occurrence_count"`
	PolicyType      string          `json:"policy_type"`
	InsuredType     int             `json:"insured_type"`
	ProductCode     int             `json:"product_code"`
	ContractNumber  int64           `json:"contract_number"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ErrReserveExceeded is returned when a payment would push AmountPaid above Reserve.
var ErrReserveExceeded = errors.New("payment exceeds claim reserve")

// Available returns the amount still payable against the reserve.
func (c *Claim) Available() decimal.Decimal {
	return c.Reserve.Sub(c.AmountPaid)
}

// NextOccurrence is the occurrence number the next history entry receives.
func (c *Claim) NextOccurrence() int {
	return c.OccurrenceCount + 1
}

// WithPayment returns a copy of the claim with principal added to AmountPaid and the
// occurrence counter advanced by one. The receiver is left untouched.
func (c Claim) WithPayment(principal decimal.Decimal, at time.Time) (Claim, error) {
	paid := c.AmountPaid.Add(principal)
	if paid.GreaterThan(c.Reserve) {
		return c, ErrReserveExceeded
	}
	c.AmountPaid = paid
	c.OccurrenceCount++
	c.UpdatedAt = at
	return c, nil
}
