// Package pricing turns (product, quantity, current price) tuples into a
// frozen price snapshot. Everything is fixed point; no float ever touches
// an amount.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidItem = errors.New("invalid pricing item")

// Minor unit exponents that differ from the common 2 (ISO 4217).
var exponents = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0, "UGX": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

type Quote struct {
	Currency string
	Lines    []Line
	Total    decimal.Decimal
}

// Price computes per line totals and the grand total. Unit prices are
// rounded to the currency precision first, so every line total and the
// grand total are exact multiples of the minor unit and
// sum(quantity * unit) == total holds without further rounding.
func Price(currency string, items []Item) (Quote, error) {
	q := Quote{
		Currency: strings.ToUpper(currency),
		Lines:    make([]Line, 0, len(items)),
		Total:    decimal.Zero,
	}

	for _, it := range items {
		if it.Quantity <= 0 {
			return Quote{}, fmt.Errorf("product[%s] quantity %d: %w", it.ProductID, it.Quantity, ErrInvalidItem)
		}
		if it.UnitPrice.IsNegative() {
			return Quote{}, fmt.Errorf("product[%s] price %s: %w", it.ProductID, it.UnitPrice, ErrInvalidItem)
		}

		unit := Round(it.UnitPrice, currency)
		total := unit.Mul(decimal.NewFromInt(int64(it.Quantity)))

		q.Lines = append(q.Lines, Line{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: unit,
			Total:     total,
		})
		q.Total = q.Total.Add(total)
	}

	return q, nil
}

func Exponent(currency string) int32 {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(Exponent(currency))
}

// MinorUnits converts an amount to the integer the gateways expect,
// e.g. 25.50 USD -> 2550.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	return Round(amount, currency).Shift(Exponent(currency)).IntPart()
}

func FromMinorUnits(units int64, currency string) decimal.Decimal {
	return decimal.New(units, -Exponent(currency))
}

// Format renders amount with exactly the currency precision, "25.50".
func Format(amount decimal.Decimal, currency string) string {
	return Round(amount, currency).StringFixed(Exponent(currency))
}
