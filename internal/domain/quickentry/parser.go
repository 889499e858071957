// Package quickentry turns one line of free text such as "Coffee 1.50€" into a
// manual transaction, with a short window in which the entry can be undone.
package quickentry

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

// Entry represents the result of parsing quick-entry input.
type Entry struct {
	Description string
	AmountMinor int64
	Currency    string
	Direction   transaction.Direction
	Date        time.Time
	RawText     string
	// Err is set when the amount was found but cannot be stored, such as one
	// beyond the int64 range of minor units.
	Err error
}

var relativeDays = map[string]int{
	"today":     0,
	"oggi":      0,
	"yesterday": -1,
	"ieri":      -1,
}

// Parser parses quick-entry text.
type Parser struct {
	// Matches: $1, 1$, €5, 5€, $10.50, 10,50€, EUR 3, €1,234.56, 1.234,56€, etc.
	// Groups: (currency_prefix)(amount)(currency_suffix)
	amountRegex     *regexp.Regexp
	defaultCurrency string
}

func NewParser(defaultCurrency string) *Parser {
	amountPattern := `(?i)(?:(\$|€|£|EUR|USD|GBP)\s*)?(\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)\s*(\$|€|£|EUR|USD|GBP)?`
	return &Parser{
		amountRegex:     regexp.MustCompile(amountPattern),
		defaultCurrency: defaultCurrency,
	}
}

// Parse extracts an entry from text. now anchors the date; "yesterday" and
// "ieri" move it back a day. A leading "+" marks income.
//   - "Coffee 1$" → Description "Coffee", 100 USD, OUT
//   - "+Salary 2500€" → Description "Salary", 250000 EUR, IN
//   - "Lunch with friends" → Description "Lunch with friends", 0
func (p *Parser) Parse(rawText string, now time.Time) Entry {
	text := strings.TrimSpace(rawText)
	e := Entry{
		RawText:   rawText,
		Currency:  p.defaultCurrency,
		Direction: transaction.DirectionOut,
		Date:      now,
	}
	if strings.HasPrefix(text, "+") {
		e.Direction = transaction.DirectionIn
		text = strings.TrimSpace(text[1:])
	}
	text = p.extractDate(text, &e)

	matches := p.amountRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		e.Description = cleanDescription(text)
		return e
	}
	m := pickAmount(matches)

	if code := currencyOf(text, m); code != "" {
		e.Currency = code
	}
	amount, err := decimal.NewFromString(decimalText(text[m[4]:m[5]]))
	if err == nil {
		e.AmountMinor, e.Err = money.CheckedMinorUnits(amount, e.Currency)
	}
	e.Description = cleanDescription(text[:m[0]] + " " + text[m[1]:])
	return e
}

// pickAmount prefers the last number written next to a currency token, then
// the last number.
func pickAmount(matches [][]int) []int {
	for i := len(matches) - 1; i >= 0; i-- {
		if m := matches[i]; m[2] != -1 || m[6] != -1 {
			return m
		}
	}
	return matches[len(matches)-1]
}

// decimalText rewrites a matched amount with '.' as the only separator. A
// final separator followed by one or two digits is the decimal mark; every
// other separator groups thousands.
func decimalText(s string) string {
	last := strings.LastIndexAny(s, ".,")
	if last == -1 {
		return s
	}
	if len(s)-last-1 == 3 {
		return strings.NewReplacer(".", "", ",", "").Replace(s)
	}
	whole := strings.NewReplacer(".", "", ",", "").Replace(s[:last])
	return whole + "." + s[last+1:]
}

func (p *Parser) extractDate(text string, e *Entry) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if offset, ok := relativeDays[strings.ToLower(w)]; ok {
			e.Date = e.Date.AddDate(0, 0, offset)
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// currencyOf reads the prefix group, then the suffix group.
func currencyOf(text string, m []int) string {
	for _, g := range []int{2, 6} {
		if m[g] == -1 {
			continue
		}
		sym := strings.ToUpper(text[m[g]:m[g+1]])
		if code := money.CodeForSymbol(sym); code != "" {
			return code
		}
		return sym
	}
	return ""
}

func cleanDescription(desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		return desc
	}
	r := []rune(desc)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
