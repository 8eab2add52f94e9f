// Package fee implements the fixed-point arithmetic of the lockup ledger:
// the issuance tax taken at lock time, the early-exit penalty taken at
// unlock time, and the checked amount arithmetic every ledger update uses.
//
// Amounts are integral decimals in [0, MaxAmount]. Rates are decimals in
// [0, 1]. A portion of an amount is always truncated toward zero, so the
// holder never receives less than amount - floor(amount*rate).
package fee

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
)

var (
	// MaxAmount is the largest amount the ledger can represent (2^128 - 1).
	MaxAmount = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)), 0)

	// RateScale is the number of fractional digits a rate may carry.
	RateScale int32 = 18

	one = decimal.NewFromInt(1)
)

// Percent converts a whole percentage into a rate.
func Percent(p uint64) decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// ValidRate reports whether r lies in [0, 1] and fits RateScale.
func ValidRate(r decimal.Decimal) bool {
	if r.IsNegative() || r.GreaterThan(one) {
		return false
	}
	return r.Equal(r.Truncate(RateScale))
}

// ValidateAmount checks that a is integral and within [0, MaxAmount].
func ValidateAmount(a decimal.Decimal) error {
	if a.IsNegative() {
		return fmt.Errorf("%w: %s is negative", model.ErrInvalidAmount, a)
	}
	if !a.Equal(a.Truncate(0)) {
		return fmt.Errorf("%w: %s is not integral", model.ErrInvalidAmount, a)
	}
	if a.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: %s exceeds maximum", model.ErrOverflow, a)
	}
	return nil
}

// Portion returns floor(amount * rate).
func Portion(amount, rate decimal.Decimal) decimal.Decimal {
	if amount.IsZero() || rate.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(rate).Floor()
}

// Split divides amount into the part kept as fee and the remainder.
// remainder is never negative because rate <= 1.
func Split(amount, rate decimal.Decimal) (kept, remainder decimal.Decimal) {
	kept = Portion(amount, rate)
	return kept, amount.Sub(kept)
}

// CheckedAdd returns a + b, or ErrOverflow if the sum exceeds MaxAmount.
func CheckedAdd(a, b decimal.Decimal) (decimal.Decimal, error) {
	sum := a.Add(b)
	if sum.GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s + %s", model.ErrOverflow, a, b)
	}
	return sum, nil
}

// CheckedSub returns a - b, or ErrUnderflow if b > a.
func CheckedSub(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.GreaterThan(a) {
		return decimal.Zero, fmt.Errorf("%w: %s - %s", model.ErrUnderflow, a, b)
	}
	return a.Sub(b), nil
}

// NominalValue is locked/issued rounded to RateScale places, or 1 when
// nothing has been issued.
func NominalValue(locked, issued decimal.Decimal) decimal.Decimal {
	if issued.IsZero() {
		return one
	}
	return locked.DivRound(issued, RateScale)
}
