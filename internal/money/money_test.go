package money

import (
	"errors"
	"testing"

	"github.com/cafeline/api/internal/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals_TwoItemsWithCustomization(t *testing.T) {
	lines := []Line{
		{UnitPrice: d("4.00"), Quantity: 2},
		{UnitPrice: d("6.50"), Quantity: 1, CustomizationDeltas: []decimal.Decimal{d("1.00")}},
	}

	totals, err := ComputeTotals(lines, d("0.10"), decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, "15.50", totals.Subtotal.StringFixed(2))
	require.Equal(t, "1.55", totals.Tax.StringFixed(2))
	require.Equal(t, "17.05", totals.Total.StringFixed(2))
}

func TestComputeTotals_Deterministic(t *testing.T) {
	lines := []Line{
		{UnitPrice: d("3.35"), VariantDelta: d("0.50"), Quantity: 3},
		{UnitPrice: d("12.99"), Quantity: 1, CustomizationDeltas: []decimal.Decimal{d("0.25"), d("0.75")}},
	}

	first, err := ComputeTotals(lines, d("0.10"), d("2.00"), d("1.00"))
	require.NoError(t, err)
	second, err := ComputeTotals(lines, d("0.10"), d("2.00"), d("1.00"))
	require.NoError(t, err)

	require.NoError(t, Verify(first, second))
}

func TestComputeTotals_TotalIdentityHolds(t *testing.T) {
	cases := []struct {
		name     string
		lines    []Line
		fee      string
		discount string
	}{
		{"single", []Line{{UnitPrice: d("1.99"), Quantity: 7}}, "0", "0"},
		{"with fee", []Line{{UnitPrice: d("8.45"), Quantity: 2}}, "3.50", "0"},
		{"with discount", []Line{{UnitPrice: d("5.55"), Quantity: 3}}, "0", "2.10"},
		{"odd tax", []Line{{UnitPrice: d("0.15"), Quantity: 1}}, "0", "0"},
		{"cancelled line", []Line{{UnitPrice: d("5"), Quantity: 1}, {UnitPrice: d("9"), Quantity: 2, Cancelled: true}}, "1", "0.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := ComputeTotals(tc.lines, d("0.10"), d(tc.fee), d(tc.discount))
			require.NoError(t, err)
			want := totals.Subtotal.Add(totals.Tax).Add(totals.DeliveryFee).Sub(totals.Discount)
			require.True(t, totals.Total.Equal(want), "total %s != %s", totals.Total, want)
			require.True(t, totals.Tax.Equal(totals.Tax.Round(Scale)), "tax %s not in subunits", totals.Tax)
		})
	}
}

func TestComputeTotals_CancelledLinesExcluded(t *testing.T) {
	lines := []Line{
		{UnitPrice: d("10"), Quantity: 1},
		{UnitPrice: d("20"), Quantity: 1, Cancelled: true},
	}
	totals, err := ComputeTotals(lines, decimal.Zero, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	require.True(t, totals.Subtotal.Equal(d("10")))
}

func TestComputeTotals_Rejections(t *testing.T) {
	lines := []Line{{UnitPrice: d("5.00"), Quantity: 1}}

	_, err := ComputeTotals([]Line{{UnitPrice: d("5"), Quantity: 0}}, d("0.1"), decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ComputeTotals(lines, d("-0.1"), decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidTaxRate)

	_, err = ComputeTotals(lines, d("0.1"), d("-1"), decimal.Zero)
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ComputeTotals(lines, d("0.1"), decimal.Zero, d("6.00"))
	require.ErrorIs(t, err, ErrDiscountExceedsTotal)

	_, err = ComputeTotals(lines, d("0.1"), d("2.505"), decimal.Zero)
	require.ErrorIs(t, err, ErrSubunitPrecision)

	// Deltas must be whole cents even when the line total happens to be.
	_, err = ComputeTotals([]Line{{UnitPrice: d("1.00"), CustomizationDeltas: []decimal.Decimal{d("0.125")}, Quantity: 2}}, d("0.1"), decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrSubunitPrecision)

	// Trailing zeros are not extra precision.
	_, err = ComputeTotals([]Line{{UnitPrice: d("1.500"), Quantity: 1}}, d("0.1"), decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	// Discount equal to gross is allowed and yields zero.
	totals, err := ComputeTotals(lines, d("0.1"), decimal.Zero, d("5.50"))
	require.NoError(t, err)
	require.True(t, totals.Total.IsZero())
}

func TestResolveDiscount(t *testing.T) {
	amt, err := ResolveDiscount(d("15.50"), enum.DiscountTypePercentage, d("10"))
	require.NoError(t, err)
	require.Equal(t, "1.55", amt.StringFixed(2))

	amt, err = ResolveDiscount(d("15.50"), enum.DiscountTypeFixed, d("2"))
	require.NoError(t, err)
	require.True(t, amt.Equal(d("2")))

	amt, err = ResolveDiscount(d("15.50"), "", d("99"))
	require.NoError(t, err)
	require.True(t, amt.IsZero())

	_, err = ResolveDiscount(d("15.50"), enum.DiscountTypePercentage, d("101"))
	require.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = ResolveDiscount(d("15.50"), "BOGUS", d("1"))
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestVerify_DetectsStaleTotals(t *testing.T) {
	lines := []Line{{UnitPrice: d("4.00"), Quantity: 2}}
	fresh, err := ComputeTotals(lines, d("0.10"), decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	stale := fresh
	stale.Subtotal = d("4.00")
	err = Verify(stale, fresh)
	require.True(t, errors.Is(err, ErrInconsistentTotals))

	broken := fresh
	broken.Total = broken.Total.Add(d("0.01"))
	require.ErrorIs(t, Verify(broken, broken), ErrInconsistentTotals)
}

func TestCalculator_Compute(t *testing.T) {
	calc := NewCalculator(DefaultTaxRate)
	lines := []Line{{UnitPrice: d("20.00"), Quantity: 1}}

	totals, err := calc.Compute(lines, d("3.00"), enum.DiscountTypePercentage, d("50"))
	require.NoError(t, err)
	require.Equal(t, "20.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "2.00", totals.Tax.StringFixed(2))
	require.Equal(t, "10.00", totals.Discount.StringFixed(2))
	require.Equal(t, "15.00", totals.Total.StringFixed(2))
}
