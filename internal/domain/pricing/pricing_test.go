package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  decimal.Decimal
	}{
		{name: "empty", lines: nil, want: d("0")},
		{
			name:  "single line",
			lines: []Line{{UnitPrice: d("450.00"), Quantity: 2}},
			want:  d("900.00"),
		},
		{
			name: "no float drift",
			lines: []Line{
				{UnitPrice: d("0.10"), Quantity: 3},
				{UnitPrice: d("0.20"), Quantity: 1},
			},
			want: d("0.50"),
		},
		{
			name: "many lines",
			lines: []Line{
				{UnitPrice: d("19.99"), Quantity: 7},
				{UnitPrice: d("5.01"), Quantity: 3},
			},
			want: d("154.96"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtotal(tt.lines)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParcelWeight(t *testing.T) {
	assert.True(t, d("0.5").Equal(ParcelWeight(0)))
	assert.True(t, d("0.5").Equal(ParcelWeight(1)))
	assert.True(t, d("1").Equal(ParcelWeight(2)))
	assert.True(t, d("1.5").Equal(ParcelWeight(3)))

	prev := ParcelWeight(0)
	for qty := 1; qty <= 50; qty++ {
		w := ParcelWeight(qty)
		assert.True(t, w.GreaterThanOrEqual(prev), "weight must not decrease at qty %d", qty)
		prev = w
	}
}

func TestReconcile_RoundTrip(t *testing.T) {
	r := DefaultReconciler()

	b := r.Reconcile(d("1000.00"), ptr(d("60.00")))

	require.True(t, b.Resolved())
	assert.True(t, d("1070.71").Equal(b.Total), "total %s", b.Total)
	assert.True(t, d("70.71").Equal(*b.Shipping), "shipping %s", *b.Shipping)
	assert.True(t, b.Total.Equal(b.Subtotal.Add(*b.Shipping)))
	assert.Empty(t, b.Warning)
}

func TestReconcile_MerchantNetsSubtotalPlusQuote(t *testing.T) {
	r := DefaultReconciler()

	for _, tc := range []struct{ subtotal, quote string }{
		{"1000", "60"},
		{"450", "110"},
		{"1.99", "0"},
		{"12345.67", "130"},
	} {
		b := r.Reconcile(d(tc.subtotal), ptr(d(tc.quote)))
		net := b.Total.Mul(d("0.99"))
		want := d(tc.subtotal).Add(d(tc.quote))
		// Rounding to cents can leave at most one cent of slack either way.
		assert.True(t, net.Sub(want).Abs().LessThanOrEqual(d("0.01")),
			"subtotal %s quote %s: net %s want %s", tc.subtotal, tc.quote, net, want)
	}
}

func TestReconcile_UnresolvedQuote(t *testing.T) {
	r := DefaultReconciler()

	b := r.Reconcile(d("850.00"), nil)

	assert.False(t, b.Resolved())
	assert.Nil(t, b.Quote)
	assert.Nil(t, b.Shipping)
	assert.True(t, d("850.00").Equal(b.Total))
	assert.Equal(t, UnresolvedShippingWarning, b.Warning)
}

func TestNewReconciler_InvalidRate(t *testing.T) {
	_, err := NewReconciler(d("1"))
	require.ErrorIs(t, err, ErrInvalidFeeRate)

	_, err = NewReconciler(d("-0.01"))
	require.ErrorIs(t, err, ErrInvalidFeeRate)

	r, err := NewReconciler(decimal.Zero)
	require.NoError(t, err)
	b := r.Reconcile(d("100"), ptr(d("60")))
	assert.True(t, d("160").Equal(b.Total))
}

func TestAmountToCollect(t *testing.T) {
	assert.Equal(t, int64(1071), AmountToCollect(d("1070.71")))
	assert.Equal(t, int64(1070), AmountToCollect(d("1070.49")))
	assert.Equal(t, int64(1071), AmountToCollect(d("1070.50")))
	assert.Equal(t, int64(0), AmountToCollect(decimal.Zero))
}
