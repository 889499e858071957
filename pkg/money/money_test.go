package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"plain", "1234.56", EUR, 123456},
		{"negative", "-12.34", EUR, -1234},
		{"half rounds up", "0.125", EUR, 13},
		{"negative half rounds away from zero", "-0.125", EUR, -13},
		{"below half", "12.344", USD, 1234},
		{"yen has no minor unit", "1500", JPY, 1500},
		{"unknown code uses two digits", "1.5", "XYZ", 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, MinorUnits(d, tt.currency))
		})
	}
}

func TestCheckedMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"fits", "1234.56", EUR, 123456, false},
		{"largest magnitude", "92233720368547758.07", EUR, math.MaxInt64, false},
		{"largest negative magnitude", "-92233720368547758.07", EUR, -math.MaxInt64, false},
		{"one past the limit", "92233720368547758.08", EUR, 0, true},
		{"far past the limit", "99999999999999999999.99", EUR, 0, true},
		{"yen scales by one", "9223372036854775808", JPY, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckedMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrAmountOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name     string
		cents    int64
		currency string
		want     string
	}{
		{"euro with thousands", 123456, EUR, "€1,234.56"},
		{"dollar", 1250, USD, "$12.50"},
		{"pound small", 5, GBP, "£0.05"},
		{"negative", -5000, USD, "-$50.00"},
		{"yen gets two fraction digits", 123456, JPY, "¥123,456.00"},
		{"letter symbol is spaced", 123456, CHF, "CHF 1,234.56"},
		{"unknown code", 123456, "XYZ", "XYZ 1,234.56"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.cents, tt.currency).Display())
		})
	}
}

func TestConvert(t *testing.T) {
	t.Run("applies rate and rounds", func(t *testing.T) {
		got := New(10000, EUR).Convert(USD, decimal.RequireFromString("1.0837"))
		assert.Equal(t, int64(10837), got.Amount())
		assert.Equal(t, USD, got.Currency())
	})

	t.Run("rounds half up on the minor unit", func(t *testing.T) {
		got := New(1, EUR).Convert(GBP, decimal.RequireFromString("0.5"))
		assert.Equal(t, int64(1), got.Amount())
	})

	t.Run("nil money converts to zero", func(t *testing.T) {
		var m *Money
		assert.True(t, m.Convert(USD, decimal.NewFromInt(2)).IsZero())
	})
}

func TestAdd(t *testing.T) {
	sum, err := New(150, EUR).Add(New(250, EUR))
	require.NoError(t, err)
	assert.Equal(t, int64(400), sum.Amount())

	_, err = New(150, EUR).Add(New(250, USD))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestPercentageOf(t *testing.T) {
	part := New(2500, EUR)
	assert.True(t, part.PercentageOf(New(10000, EUR)).Equal(decimal.NewFromInt(25)))
	assert.True(t, part.PercentageOf(Zero(EUR)).IsZero())
}

func TestSymbols(t *testing.T) {
	assert.Equal(t, "€", Symbol("eur"))
	assert.Equal(t, EUR, CodeForSymbol("€"))
	assert.Equal(t, USD, CodeForSymbol("$"))
	assert.Equal(t, GBP, CodeForSymbol("£"))
	assert.Equal(t, "", CodeForSymbol("₿"))
	assert.Equal(t, 2, Fraction(EUR))
	assert.Equal(t, 0, Fraction(JPY))
}

func TestNilSafety(t *testing.T) {
	var m *Money
	assert.Equal(t, int64(0), m.Amount())
	assert.Equal(t, "", m.Currency())
	assert.True(t, m.IsZero())
	assert.False(t, m.IsNegative())
	assert.Equal(t, "0.00", m.String())
	assert.True(t, m.ToDecimal().IsZero())
	assert.Equal(t, int64(0), m.Abs().Amount())
}

func TestString(t *testing.T) {
	assert.Equal(t, "123.45", New(12345, USD).String())
	assert.Equal(t, "0.05", New(5, EUR).String())
	assert.Equal(t, "-12.30", New(-1230, EUR).String())
}
