// Package money provides currency-safe arithmetic on integer minor units.
// It wraps go-money for currency metadata and display, and shopspring/decimal
// for rate and percentage calculations. Rounding is half away from zero.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	EUR = "EUR"
	USD = "USD"
	GBP = "GBP"
	CHF = "CHF"
	JPY = "JPY" // no minor unit
)

var (
	// ErrCurrencyMismatch is returned when combining amounts of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrAmountOutOfRange is returned when an amount does not fit in int64 minor units.
	ErrAmountOutOfRange = errors.New("amount out of range")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// Money is an amount of minor units in a single currency.
type Money struct {
	m *money.Money
}

// New creates Money from minor units.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, normalizeCode(currencyCode))}
}

// Zero returns a zero amount in the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// NewFromDecimal converts a major-unit decimal to minor units of currencyCode,
// rounding to the nearest minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	return New(MinorUnits(amount, currencyCode), currencyCode)
}

// MinorUnits returns round(amount * 10^fraction) for the currency. The caller
// guarantees the result fits; use CheckedMinorUnits for untrusted input.
func MinorUnits(amount decimal.Decimal, currencyCode string) int64 {
	return scaleToMinor(amount, currencyCode).IntPart()
}

// CheckedMinorUnits is MinorUnits for parsed input. It fails with
// ErrAmountOutOfRange when the magnitude exceeds math.MaxInt64 minor units.
func CheckedMinorUnits(amount decimal.Decimal, currencyCode string) (int64, error) {
	scaled := scaleToMinor(amount, currencyCode)
	if scaled.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s %s", ErrAmountOutOfRange, amount.String(), normalizeCode(currencyCode))
	}
	return scaled.IntPart(), nil
}

func scaleToMinor(amount decimal.Decimal, currencyCode string) decimal.Decimal {
	multiplier := decimal.New(1, int32(Fraction(currencyCode)))
	return amount.Mul(multiplier).Round(0)
}

// Fraction is the number of minor-unit digits of a currency. Unknown codes use 2.
func Fraction(currencyCode string) int {
	c := money.GetCurrency(normalizeCode(currencyCode))
	if c == nil {
		return 2
	}
	return c.Fraction
}

// Symbol returns the display grapheme of a currency code, or the code itself.
func Symbol(currencyCode string) string {
	c := money.GetCurrency(normalizeCode(currencyCode))
	if c == nil || c.Grapheme == "" {
		return normalizeCode(currencyCode)
	}
	return c.Grapheme
}

// CodeForSymbol maps a currency symbol to its ISO code. Returns "" if unknown.
func CodeForSymbol(symbol string) string {
	switch strings.TrimSpace(symbol) {
	case "€":
		return EUR
	case "$", "US$":
		return USD
	case "£":
		return GBP
	case "CHF", "Fr.":
		return CHF
	case "¥":
		return JPY
	}
	return ""
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the magnitude.
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(EUR)
	}
	return &Money{m: m.m.Absolute()}
}

// Add sums two amounts of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	if !m.m.SameCurrency(other.m) {
		return nil, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency(), other.Currency())
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// ToDecimal returns the amount in major units.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}

// displayFraction is the fixed number of fraction digits Display renders.
const displayFraction = 2

// Display formats the amount as currency symbol, thousands separator and two
// fraction digits for every currency (e.g. "€1,234.56", "-$12.00",
// "¥123,456.00", "CHF 1,234.56"). Letter symbols are followed by a space.
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "€0.00"
	}
	code := m.m.Currency().Code
	scaled := decimal.NewFromInt(m.m.Amount()).Shift(int32(displayFraction - Fraction(code))).Round(0)
	if scaled.Abs().GreaterThan(maxMinor) {
		return m.m.Display()
	}

	grapheme := Symbol(code)
	if r, _ := utf8.DecodeLastRuneInString(grapheme); unicode.IsLetter(r) {
		grapheme += " "
	}
	return money.NewFormatter(displayFraction, ".", ",", grapheme, "$1").Format(scaled.IntPart())
}

// String returns the major-unit decimal (e.g. "1234.56").
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// Convert applies rate (target units per source unit) and rounds to the
// target currency's minor unit.
func (m *Money) Convert(targetCurrency string, rate decimal.Decimal) *Money {
	if m == nil || m.m == nil {
		return Zero(targetCurrency)
	}
	return NewFromDecimal(m.ToDecimal().Mul(rate), targetCurrency)
}

// PercentageOf returns m / total * 100, or zero when total is zero.
func (m *Money) PercentageOf(total *Money) decimal.Decimal {
	if m == nil || m.m == nil || total.IsZero() {
		return decimal.Zero
	}
	return m.ToDecimal().Div(total.ToDecimal()).Mul(decimal.NewFromInt(100))
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return EUR
	}
	return code
}
