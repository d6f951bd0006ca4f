// Package money converts between decimal major-unit amounts and the integer
// minor units (kobo, cents) stored in the database and sent to gateways.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits.
const Scale = 2

var (
	ErrTooPrecise = errors.New("amount_too_precise")
	ErrOverflow   = errors.New("amount_overflow")
)

// ToMinor converts a major-unit amount to minor units. Amounts carrying more
// than two decimal places are rejected rather than rounded.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Round(Scale)) {
		return 0, ErrTooPrecise
	}
	minor := amount.Shift(Scale)
	if !minor.IsInteger() {
		return 0, ErrTooPrecise
	}
	big := minor.BigInt()
	if !big.IsInt64() {
		return 0, ErrOverflow
	}
	return big.Int64(), nil
}

// FromMinor converts minor units to a major-unit decimal. The result is exact.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// Format renders minor units as a fixed two-decimal string, e.g. 4000 -> "40.00".
func Format(minor int64) string {
	return FromMinor(minor).StringFixed(Scale)
}

// Multiply returns unit × quantity in minor units.
func Multiply(unitMinor int64, quantity int64) (int64, error) {
	total := decimal.NewFromInt(unitMinor).Mul(decimal.NewFromInt(quantity))
	big := total.BigInt()
	if !big.IsInt64() {
		return 0, ErrOverflow
	}
	return big.Int64(), nil
}
