package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyMismatchError is returned when two Money values of different
// currencies are combined. It is a programming-contract violation, not a
// recoverable input problem: callers must only mix amounts of one currency.
type CurrencyMismatchError struct {
	Expected string
	Found    string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("expected currency %s, got currency %s", e.Expected, e.Found)
}

// Money is an exact decimal amount tagged with a currency. All arithmetic
// uses decimal.Decimal, never floats, because tax figures must round-trip
// exactly to two decimal places. Money is a value type; every operation
// returns a new value.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// MoneyFromString parses amounts like "-13616.86". It panics on malformed
// input and is intended for literals in tests and fixtures.
func MoneyFromString(amount string, currency string) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: currency}
}

func (m Money) checkCurrency(other Money) error {
	if m.Currency != other.Currency {
		return &CurrencyMismatchError{Expected: m.Currency, Found: other.Currency}
	}
	return nil
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// MustAdd is Add for call sites whose container already guarantees a single
// currency (positions and buckets validate it on append). A mismatch here is
// a bug, so it panics.
func (m Money) MustAdd(other Money) Money {
	sum, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return sum
}

func (m Money) MustSub(other Money) Money {
	diff, err := m.Sub(other)
	if err != nil {
		panic(err)
	}
	return diff
}

// Cmp returns -1, 0 or +1 comparing amounts of equal currency.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.checkCurrency(other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Equal reports whether amount and currency are both equal. Unlike Cmp it
// never fails: different currencies are simply not equal.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Mul scales the amount by a plain number (proportional splitting).
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

func (m Money) Div(divisor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Div(divisor), Currency: m.Currency}
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs(), Currency: m.Currency}
}

// AsZero returns zero at the same decimal scale as m.
func (m Money) AsZero() Money {
	return Money{Amount: decimal.New(0, m.Amount.Exponent()), Currency: m.Currency}
}

// WithValue replaces the magnitude, keeping the currency and the value's own
// precision.
func (m Money) WithValue(value decimal.Decimal) Money {
	return Money{Amount: value, Currency: m.Currency}
}

// WithValueKeepPrecision replaces the magnitude and re-quantizes it to the
// receiver's decimal places.
func (m Money) WithValueKeepPrecision(value decimal.Decimal) Money {
	return Money{Amount: quantizeLike(value, m.Amount), Currency: m.Currency}
}

func (m Money) CopySign(other Money) Money {
	if m.Amount.Sign()*other.Amount.Sign() < 0 {
		return m.Neg()
	}
	return m
}

// Quantize rounds the amount to the given number of decimal places using
// banker's rounding, matching the exact-decimal reporting convention.
func (m Money) Quantize(places int32) Money {
	return Money{Amount: m.Amount.RoundBank(places), Currency: m.Currency}
}

func (m Money) IsPositive() bool    { return m.Amount.IsPositive() }
func (m Money) IsZero() bool        { return m.Amount.IsZero() }
func (m Money) IsNegative() bool    { return m.Amount.IsNegative() }
func (m Money) IsNonNegative() bool { return !m.Amount.IsNegative() }

// Sign is +1 for non-negative amounts, -1 otherwise.
func (m Money) Sign() int {
	if m.Amount.IsNegative() {
		return -1
	}
	return 1
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

// quantizeLike rounds value to the decimal places of exemplar.
func quantizeLike(value decimal.Decimal, exemplar decimal.Decimal) decimal.Decimal {
	places := -exemplar.Exponent()
	if places < 0 {
		places = 0
	}
	return value.RoundBank(places)
}
