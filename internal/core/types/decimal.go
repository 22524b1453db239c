// Package types provides the numeric types of the ledger.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantityPlaces is the number of fractional digits stored for quantities.
// It matches the NUMERIC(18,4) columns of the ledger tables.
const QuantityPlaces int32 = 4

// Quantity is a stock quantity. Shopspring decimals keep exact arithmetic for
// fractional units (kg, m) without float rounding.
type Quantity = decimal.Decimal

// Money is a price or line total.
type Money = decimal.Decimal

// ZeroQuantity returns a zero quantity.
func ZeroQuantity() Quantity {
	return decimal.Zero
}

// NewQuantity creates a quantity from an integer.
func NewQuantity(v int64) Quantity {
	return decimal.NewFromInt(v)
}

// ParseQuantity parses a decimal string and rounds it to QuantityPlaces.
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return NormalizeQuantity(d), nil
}

// MustQuantity parses s and panics on error. Use only in tests and constants.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// NormalizeQuantity rounds q to the stored precision.
func NormalizeQuantity(q Quantity) Quantity {
	return q.Round(QuantityPlaces)
}

// LineTotal computes price * quantity rounded to two places.
func LineTotal(price Money, qty Quantity) Money {
	return price.Mul(qty).Round(2)
}
