// Package currency converts payment amounts into the ledger's target currency.
package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrRateNotFound is returned when the table has no rate for a currency pair.
type ErrRateNotFound struct {
	From, To string
}

func (e ErrRateNotFound) Error() string {
	return fmt.Sprintf("no conversion rate from %s to %s", e.From, e.To)
}

// Conversion is the result of converting one amount.
type Conversion struct {
	Amount    decimal.Decimal
	Converted decimal.Decimal
	Rate      decimal.Decimal
	Success   bool
	Err       error
}

// Converter converts amounts between currencies.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) Conversion
}

// RateTable is an immutable in-memory Converter built from configured rates.
type RateTable struct {
	rates map[string]decimal.Decimal
}

func pairKey(from, to string) string {
	return strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// NewRateTable parses rates keyed "FROM:TO". The input map is copied.
func NewRateTable(rates map[string]string) (*RateTable, error) {
	parsed := make(map[string]decimal.Decimal, len(rates))
	for pair, raw := range rates {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid currency pair %q, expected FROM:TO", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", pair, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", pair)
		}
		parsed[pairKey(parts[0], parts[1])] = rate
	}
	return &RateTable{rates: parsed}, nil
}

// Convert multiplies amount by the from→to rate and rounds half-up to two places.
// Same-currency conversions use a rate of one. When only the inverse pair is known
// its reciprocal is used.
func (t *RateTable) Convert(_ context.Context, amount decimal.Decimal, from, to string) Conversion {
	if strings.EqualFold(from, to) {
		return Conversion{Amount: amount, Converted: amount.Round(2), Rate: decimal.NewFromInt(1), Success: true}
	}

	rate, ok := t.rates[pairKey(from, to)]
	if !ok {
		inverse, found := t.rates[pairKey(to, from)]
		if !found {
			return Conversion{Amount: amount, Err: ErrRateNotFound{From: from, To: to}}
		}
		rate = decimal.NewFromInt(1).DivRound(inverse, 8)
	}

	return Conversion{
		Amount:    amount,
		Converted: amount.Mul(rate).Round(2),
		Rate:      rate,
		Success:   true,
	}
}
