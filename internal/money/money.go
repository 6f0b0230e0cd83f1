// Package money computes order totals. Every code path that mutates order
// items goes through ComputeTotals; call sites never sum prices themselves.
package money

import (
	"errors"
	"fmt"

	"github.com/cafeline/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places of the smallest currency subunit.
const Scale = 2

// DefaultTaxRate is applied when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.10")

// Errors returned by the calculator.
var (
	ErrInvalidQuantity      = errors.New("quantity must be >= 1")
	ErrNegativeAmount       = errors.New("amount must not be negative")
	ErrInvalidTaxRate       = errors.New("tax rate must be between 0 and 1")
	ErrInvalidDiscount      = errors.New("invalid discount")
	ErrDiscountExceedsTotal = errors.New("discount exceeds order total")
	ErrInconsistentTotals   = errors.New("stored totals do not match recomputation")
	ErrSubunitPrecision     = errors.New("amount is finer than the currency subunit")
)

// Line is one priced order line.
type Line struct {
	UnitPrice           decimal.Decimal
	VariantDelta        decimal.Decimal
	CustomizationDeltas []decimal.Decimal
	Quantity            int32
	// Cancelled lines stay on the order for history but are not charged.
	Cancelled bool
}

// Totals is the derived financial state of an order.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// LineTotal returns (unit price + variant delta + customization deltas) * quantity.
func LineTotal(l Line) decimal.Decimal {
	unit := l.UnitPrice.Add(l.VariantDelta)
	for _, d := range l.CustomizationDeltas {
		unit = unit.Add(d)
	}
	return unit.Mul(decimal.NewFromInt32(l.Quantity))
}

// Subtotal sums the charged lines.
func Subtotal(lines []Line) (decimal.Decimal, error) {
	subtotal := decimal.Zero
	for i, l := range lines {
		if l.Quantity < 1 {
			return decimal.Zero, fmt.Errorf("line[%d]: %w", i, ErrInvalidQuantity)
		}
		if l.Cancelled {
			continue
		}
		if err := checkLine(l); err != nil {
			return decimal.Zero, fmt.Errorf("line[%d]: %w", i, err)
		}
		subtotal = subtotal.Add(LineTotal(l))
	}
	return subtotal, nil
}

// CheckSubunit rejects amounts with digits below the currency subunit.
// Such amounts would be rounded column by column when stored.
func CheckSubunit(a decimal.Decimal) error {
	if !a.Equal(a.Round(Scale)) {
		return fmt.Errorf("%w: %s", ErrSubunitPrecision, a)
	}
	return nil
}

func checkLine(l Line) error {
	if err := CheckSubunit(l.UnitPrice); err != nil {
		return err
	}
	if err := CheckSubunit(l.VariantDelta); err != nil {
		return err
	}
	for _, d := range l.CustomizationDeltas {
		if err := CheckSubunit(d); err != nil {
			return err
		}
	}
	return nil
}

// ComputeTotals derives subtotal, tax and total for a set of lines.
//
// Tax is rounded to the currency subunit; subtotal, fee and discount are
// expected in subunit precision already, so total is exact and
// total == subtotal + tax + deliveryFee - discount holds without rounding.
func ComputeTotals(lines []Line, taxRate, deliveryFee, discount decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Totals{}, ErrInvalidTaxRate
	}
	if deliveryFee.IsNegative() || discount.IsNegative() {
		return Totals{}, ErrNegativeAmount
	}
	if err := CheckSubunit(deliveryFee); err != nil {
		return Totals{}, err
	}

	subtotal, err := Subtotal(lines)
	if err != nil {
		return Totals{}, err
	}

	tax := subtotal.Mul(taxRate).Round(Scale)
	gross := subtotal.Add(tax).Add(deliveryFee)
	if discount.GreaterThan(gross) {
		return Totals{}, fmt.Errorf("%w: discount %s > %s", ErrDiscountExceedsTotal, discount.StringFixed(Scale), gross.StringFixed(Scale))
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		Discount:    discount,
		Total:       gross.Sub(discount),
	}, nil
}

// ResolveDiscount turns a discount rule into an amount against subtotal.
// An empty discount type means no discount.
func ResolveDiscount(subtotal decimal.Decimal, discountType string, value decimal.Decimal) (decimal.Decimal, error) {
	if discountType == "" {
		return decimal.Zero, nil
	}
	if value.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	switch discountType {
	case enum.DiscountTypePercentage:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, fmt.Errorf("%w: percentage above 100", ErrInvalidDiscount)
		}
		return subtotal.Mul(value).Div(decimal.NewFromInt(100)).Round(Scale), nil
	case enum.DiscountTypeFixed:
		return value.Round(Scale), nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, discountType)
}

// Verify reports ErrInconsistentTotals when stored differs from fresh or
// when stored violates total == subtotal + tax + fee - discount.
func Verify(stored, fresh Totals) error {
	switch {
	case !stored.Subtotal.Equal(fresh.Subtotal):
		return fmt.Errorf("%w: subtotal %s != %s", ErrInconsistentTotals, stored.Subtotal, fresh.Subtotal)
	case !stored.Tax.Equal(fresh.Tax):
		return fmt.Errorf("%w: tax %s != %s", ErrInconsistentTotals, stored.Tax, fresh.Tax)
	case !stored.DeliveryFee.Equal(fresh.DeliveryFee):
		return fmt.Errorf("%w: delivery fee %s != %s", ErrInconsistentTotals, stored.DeliveryFee, fresh.DeliveryFee)
	case !stored.Discount.Equal(fresh.Discount):
		return fmt.Errorf("%w: discount %s != %s", ErrInconsistentTotals, stored.Discount, fresh.Discount)
	case !stored.Total.Equal(fresh.Total):
		return fmt.Errorf("%w: total %s != %s", ErrInconsistentTotals, stored.Total, fresh.Total)
	}
	want := stored.Subtotal.Add(stored.Tax).Add(stored.DeliveryFee).Sub(stored.Discount)
	if !stored.Total.Equal(want) {
		return fmt.Errorf("%w: total %s != %s", ErrInconsistentTotals, stored.Total, want)
	}
	return nil
}

// Calculator carries the configured tax rate.
type Calculator struct {
	TaxRate decimal.Decimal
}

func NewCalculator(taxRate decimal.Decimal) Calculator {
	return Calculator{TaxRate: taxRate}
}

// Compute resolves the discount rule against the fresh subtotal and then
// computes totals.
func (c Calculator) Compute(lines []Line, deliveryFee decimal.Decimal, discountType string, discountValue decimal.Decimal) (Totals, error) {
	subtotal, err := Subtotal(lines)
	if err != nil {
		return Totals{}, err
	}
	discount, err := ResolveDiscount(subtotal, discountType, discountValue)
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(lines, c.TaxRate, deliveryFee, discount)
}
