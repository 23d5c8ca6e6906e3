package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable currency amount.
type Money struct {
	amount decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{amount: decimal.Zero}

// New creates Money from a decimal amount.
func New(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewFromString parses an amount such as "50.00".
func NewFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("failed to parse money amount %q: %w", s, err)
	}

	return Money{amount: d}, nil
}

// MustNewFromString is like NewFromString but panics on malformed input.
func MustNewFromString(s string) Money {
	m, err := NewFromString(s)
	if err != nil {
		panic(err)
	}

	return m
}

// Amount returns the underlying decimal.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsGreaterThanZero reports whether the amount is strictly positive.
func (m Money) IsGreaterThanZero() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// IsGreaterThan compares two amounts.
func (m Money) IsGreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// Equal compares amounts numerically, so 200 equals 200.00.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns m - other. This is the only operation that may go below zero.
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Multiply returns m × n.
func (m Money) Multiply(n int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(n)))}
}

// String renders the amount with two fraction digits.
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON string with two fraction digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON strings and numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to decode money amount: %w", err)
	}
	m.amount = d

	return nil
}
