/**
 * @description
 * Ledger primitives for balance arithmetic. Every amount in the service is a `Money`
 * value: an integer count of kobo. Conversions to and from major units and all
 * percentage math go through shopspring/decimal so no float64 ever touches a balance.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact decimal parsing and rounding.
 */
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountOverflow    = errors.New("amount overflows balance")
	ErrInvalidMoney      = errors.New("invalid money amount")
)

// Money is an amount in the smallest currency unit (kobo).
type Money int64

// Zero is the empty balance.
const Zero Money = 0

var (
	hundred  = decimal.NewFromInt(100)
	maxMoney = decimal.NewFromInt(math.MaxInt64)
)

// InsufficientFundsError reports a debit that would take a balance below its floor.
type InsufficientFundsError struct {
	Balance  Money
	Required Money
	Floor    Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, required %s", e.Balance, e.Required)
}

// Is lets callers match with errors.Is(err, ErrInsufficientFunds).
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// ApplyDelta adds delta to balance. A negative delta that would leave the result
// below floor fails with *InsufficientFundsError and leaves balance untouched.
func ApplyDelta(balance, delta, floor Money) (Money, error) {
	if delta > 0 && balance > Money(math.MaxInt64)-delta {
		return balance, ErrAmountOverflow
	}
	if delta < 0 && balance < Money(math.MinInt64)-delta {
		return balance, ErrAmountOverflow
	}

	next := balance + delta
	if delta < 0 && next < floor {
		return balance, &InsufficientFundsError{Balance: balance, Required: -delta, Floor: floor}
	}
	return next, nil
}

// Credit adds a non-negative amount to balance.
func Credit(balance, amount Money) (Money, error) {
	if amount < 0 {
		return balance, fmt.Errorf("%w: negative credit %d", ErrInvalidMoney, amount)
	}
	return ApplyDelta(balance, amount, Zero)
}

// Debit removes a non-negative amount from balance, never going below zero.
func Debit(balance, amount Money) (Money, error) {
	if amount < 0 {
		return balance, fmt.Errorf("%w: negative debit %d", ErrInvalidMoney, amount)
	}
	return ApplyDelta(balance, -amount, Zero)
}

// ParseMoney converts a major-unit string such as "50.25" into kobo. Amounts with
// sub-kobo precision are rejected rather than rounded.
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, raw)
	}
	return FromMajorUnits(d)
}

// FromMajorUnits converts a naira decimal into kobo.
func FromMajorUnits(d decimal.Decimal) (Money, error) {
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return Zero, fmt.Errorf("%w: %s has sub-kobo precision", ErrInvalidMoney, d.String())
	}
	if minor.Abs().GreaterThan(maxMoney) {
		return Zero, fmt.Errorf("%w: %s out of range", ErrInvalidMoney, d.String())
	}
	return Money(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Percentage is an interest or fee rate such as 7.5 (%).
type Percentage struct {
	value decimal.Decimal
}

// NewPercentage validates that rate lies in (0, 100].
func NewPercentage(rate decimal.Decimal) (Percentage, error) {
	if !rate.IsPositive() || rate.GreaterThan(hundred) {
		return Percentage{}, fmt.Errorf("rate must be greater than 0 and at most 100, got %s", rate.String())
	}
	return Percentage{value: rate}, nil
}

// ParsePercentage parses "7.5" into a Percentage.
func ParsePercentage(raw string) (Percentage, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Percentage{}, fmt.Errorf("invalid rate %q: %w", raw, err)
	}
	return NewPercentage(d)
}

// Apply returns rate% of m rounded half-to-even to the nearest kobo.
func (p Percentage) Apply(m Money) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(p.value).Shift(-2).RoundBank(0).IntPart())
}

// IsZero reports whether the percentage was never set.
func (p Percentage) IsZero() bool {
	return p.value.IsZero()
}

func (p Percentage) Decimal() decimal.Decimal {
	return p.value
}

func (p Percentage) String() string {
	return p.value.String()
}
