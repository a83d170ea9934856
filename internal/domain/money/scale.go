package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeDivisibility = errors.New("divisibility cannot be negative")
	ErrAmountOverflow       = errors.New("amount does not fit in 64-bit minor units")
)

// ToMinor converts a decimal amount into integer minor units for the given
// divisibility. Fractions below one minor unit are truncated toward zero.
func ToMinor(amount decimal.Decimal, divisibility int32) (int64, error) {
	if divisibility < 0 {
		return 0, ErrNegativeDivisibility
	}

	scaled := amount.Shift(divisibility).Truncate(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, scaled.String())
	}
	return scaled.IntPart(), nil
}

// FromMinor converts integer minor units into a decimal amount.
func FromMinor(amount int64, divisibility int32) (decimal.Decimal, error) {
	if divisibility < 0 {
		return decimal.Zero, ErrNegativeDivisibility
	}
	return decimal.New(amount, -divisibility), nil
}

// Rescale converts minor units expressed at one divisibility into minor units
// at another, e.g. ledger cents (2) into satoshi (8).
func Rescale(amount int64, from, to int32) (int64, error) {
	if from == to {
		if from < 0 {
			return 0, ErrNegativeDivisibility
		}
		return amount, nil
	}

	value, err := FromMinor(amount, from)
	if err != nil {
		return 0, err
	}
	return ToMinor(value, to)
}
