// Package normalizer turns raw statement text into canonical amounts, dates
// and merchant names.
package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

// ErrInvalidAmount is returned for blank or unparseable amount text.
var ErrInvalidAmount = errors.New("invalid amount")

var amountNoise = strings.NewReplacer(" ", "", "\u00a0", "", "€", "", "'", "")

// ParseEuropeanAmount parses "1.234,56" style text: every '.' is a thousands
// separator and ',' is the decimal mark.
func ParseEuropeanAmount(raw string) (decimal.Decimal, error) {
	s := amountNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return parseDecimal(s, raw)
}

// ParsePlainAmount parses "-1234.56" style text with '.' as the decimal mark.
func ParsePlainAmount(raw string) (decimal.Decimal, error) {
	s := amountNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	return parseDecimal(s, raw)
}

func parseDecimal(s, raw string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "-" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

// ToMinorUnits converts a major-unit amount to hundredths, rounding half away
// from zero. Amounts beyond int64 fail with money.ErrAmountOutOfRange.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	return money.CheckedMinorUnits(d, money.EUR)
}

// SplitSigned maps a signed amount to a magnitude in minor units and a
// direction. Zero is IN.
func SplitSigned(d decimal.Decimal) (int64, transaction.Direction, error) {
	dir := transaction.DirectionIn
	if d.IsNegative() {
		dir = transaction.DirectionOut
	}
	minor, err := ToMinorUnits(d.Abs())
	if err != nil {
		return 0, "", err
	}
	return minor, dir, nil
}
