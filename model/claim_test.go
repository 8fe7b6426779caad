package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClaim() Claim {
	return Claim{
		Key:             ClaimKey{InsuranceType: 1, Origin: 10, Branch: 531, Number: 7},
		Protocol:        ProtocolKey{Source: 3, Sequence: 778812, CheckDigit: 4},
		Reserve:         decimal.RequireFromString("10000.00"),
		AmountPaid:      decimal.RequireFromString("2500.00"),
		OccurrenceCount: 3,
	}
}

func TestClaimKeyFormats(t *testing.T) {
	c := newTestClaim()
	assert.Equal(t, "1-10-531-7", c.Key.String())
	assert.Equal(t, "10/531/7", c.Key.SlashTriple())
	assert.Equal(t, "3.778812-4", c.Protocol.String())
}

func TestClaimAvailable(t *testing.T) {
	c := newTestClaim()
	assert.True(t, c.Available().Equal(decimal.RequireFromString("7500")))
	assert.Equal(t, 4, c.NextOccurrence())
}

func TestClaimWithPayment(t *testing.T) {
	c := newTestClaim()
	at := time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC)

	updated, err := c.WithPayment(decimal.RequireFromString("1500.00"), at)
	require.NoError(t, err)

	assert.True(t, updated.AmountPaid.Equal(decimal.RequireFromString("4000")))
	assert.Equal(t, 4, updated.OccurrenceCount)
	assert.Equal(t, at, updated.UpdatedAt)

	// receiver is untouched
	assert.True(t, c.AmountPaid.Equal(decimal.RequireFromString("2500")))
	assert.Equal(t, 3, c.OccurrenceCount)
}

func TestClaimWithPaymentExactReserve(t *testing.T) {
	c := newTestClaim()

	updated, err := c.WithPayment(c.Available(), time.Now())
	require.NoError(t, err)
	assert.True(t, updated.Available().IsZero())
}

func TestClaimWithPaymentExceedsReserve(t *testing.T) {
	c := newTestClaim()

	updated, err := c.WithPayment(decimal.RequireFromString("7500.01"), time.Now())
	assert.ErrorIs(t, err, ErrReserveExceeded)
	assert.Equal(t, 3, updated.OccurrenceCount)
}
