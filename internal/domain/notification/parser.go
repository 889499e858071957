// Package notification extracts transactions from payment-app notifications
// and captures them into the ledger.
package notification

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

const maxMerchantLength = 50

var amountPattern = regexp.MustCompile(`([€$£])\s?(\d+)(?:[.,](\d+))?`)

// Result is a successfully parsed notification. Parsed notifications are
// always confirmed.
type Result struct {
	AmountMinor int64
	Direction   transaction.Direction
	Currency    string
	Merchant    *string
	IsConfirmed bool
}

// Parser is stateless and safe for concurrent use.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts a transaction from text posted by app. It returns nil when
// the text does not mention the app or carries no readable amount.
func (p *Parser) Parse(app App, text string) *Result {
	if !app.HasMarker(text) {
		return nil
	}
	amount, currency, ok := extractAmount(text)
	if !ok {
		return nil
	}
	return &Result{
		AmountMinor: amount,
		Direction:   direction(app, text),
		Currency:    currency,
		Merchant:    merchant(app, text),
		IsConfirmed: true,
	}
}

// extractAmount reads the first symbol-anchored amount. A one-digit fraction
// is tenths; more than two fraction digits is rejected.
func extractAmount(text string) (int64, string, bool) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	whole, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || whole > math.MaxInt64/100-1 {
		return 0, "", false
	}

	var frac int64
	switch len(m[3]) {
	case 0:
	case 1:
		d, _ := strconv.ParseInt(m[3], 10, 64)
		frac = d * 10
	case 2:
		frac, _ = strconv.ParseInt(m[3], 10, 64)
	default:
		return 0, "", false
	}
	return whole*100 + frac, money.CodeForSymbol(m[1]), true
}

func direction(app App, text string) transaction.Direction {
	lower := strings.ToLower(text)
	for _, r := range app.Rules {
		if r.Outcome == transaction.DirectionIn && strings.Contains(lower, r.Pattern) {
			return transaction.DirectionIn
		}
	}
	for _, r := range app.Rules {
		if r.Outcome == transaction.DirectionOut && strings.Contains(lower, r.Pattern) {
			return transaction.DirectionOut
		}
	}
	return transaction.DirectionOut
}

func merchant(app App, text string) *string {
	marker := strings.ToLower(app.Name)
	for _, re := range app.Merchants {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" || len([]rune(name)) > maxMerchantLength || strings.Contains(strings.ToLower(name), marker) {
			continue
		}
		return &name
	}
	return nil
}
