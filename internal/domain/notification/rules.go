package notification

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Rule maps a lower-case phrase to the direction it implies.
type Rule struct {
	Pattern string
	Outcome transaction.Direction
}

// App describes one payment app whose notifications can be captured.
type App struct {
	// Package is the OS package id the notification is posted under.
	Package string
	// Name doubles as the marker every genuine notification text contains.
	Name string
	// Rules are evaluated in order; all inbound rules precede outbound ones.
	Rules []Rule
	// Merchants are tried in order; the first capture group is the merchant.
	Merchants []*regexp.Regexp
}

// EntrySource is the provenance tag of rows captured from this app.
func (a App) EntrySource() transaction.EntrySource {
	return transaction.NotificationSource(a.Name)
}

// HasMarker reports whether text mentions the app by name.
func (a App) HasMarker(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(a.Name))
}

func inbound(phrases ...string) []Rule {
	out := make([]Rule, len(phrases))
	for i, p := range phrases {
		out[i] = Rule{Pattern: p, Outcome: transaction.DirectionIn}
	}
	return out
}

func outbound(phrases ...string) []Rule {
	out := make([]Rule, len(phrases))
	for i, p := range phrases {
		out[i] = Rule{Pattern: p, Outcome: transaction.DirectionOut}
	}
	return out
}

// The merchant expressions stop at a sentence break or at the "|" and newline
// separators the OS uses between title and body.
var (
	PayPal = App{
		Package: "com.paypal.android.p2pmobile",
		Name:    "PayPal",
		Rules: append(
			inbound("you received", "sent you", "hai ricevuto", "ti ha inviato", "refund", "rimborso"),
			outbound("you sent", "you paid", "hai inviato", "hai pagato", "payment to", "pagamento a")...,
		),
		Merchants: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:you paid|hai pagato)\s+[€$£]\s?[\d.,]+\s+(?:[A-Z]{3}\s+)?(?:to|a)\s+([^|\n.!]+)`),
			regexp.MustCompile(`(?i)(?:you sent|hai inviato)\s+[€$£]\s?[\d.,]+\s+(?:[A-Z]{3}\s+)?(?:to|a)\s+([^|\n.!]+)`),
			regexp.MustCompile(`(?i)(?:payment to|pagamento a)\s+([^|\n.!]+?)(?:\s+(?:for|per|di)\s+[€$£]|$|[|\n.!])`),
			regexp.MustCompile(`(?i)(?:^|[|\n:]\s*)([^|\n:]+?)\s+(?:sent you|ti ha inviato)`),
			regexp.MustCompile(`(?i)(?:received|ricevuto)\s+[€$£]\s?[\d.,]+\s+(?:[A-Z]{3}\s+)?(?:from|da)\s+([^|\n.!]+)`),
		},
	}

	Satispay = App{
		Package: "com.satispay.customer",
		Name:    "Satispay",
		Rules: append(
			inbound("hai ricevuto", "ti ha inviato", "cashback", "rimborso", "you received", "sent you"),
			outbound("hai pagato", "hai inviato", "pagamento", "you paid", "you sent")...,
		),
		Merchants: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:hai pagato|you paid)\s+[€$£]\s?[\d.,]+\s+(?:a|da|presso|to|at)\s+([^|\n.!]+)`),
			regexp.MustCompile(`(?i)(?:hai inviato|you sent)\s+[€$£]\s?[\d.,]+\s+(?:a|to)\s+([^|\n.!]+)`),
			regexp.MustCompile(`(?i)pagamento\s+(?:a|presso|da)\s+([^|\n.!]+?)(?:\s+di\s+[€$£]|$|[|\n.!])`),
			regexp.MustCompile(`(?i)(?:^|[|\n:]\s*)([^|\n:]+?)\s+(?:ti ha inviato|sent you)`),
			regexp.MustCompile(`(?i)(?:hai ricevuto|you received)\s+[€$£]\s?[\d.,]+\s+(?:da|from)\s+([^|\n.!]+)`),
		},
	}
)

// Apps lists every supported payment app.
func Apps() []App {
	return []App{PayPal, Satispay}
}

// AppByPackage resolves an OS package id.
func AppByPackage(pkg string) (App, bool) {
	for _, a := range Apps() {
		if a.Package == pkg {
			return a, true
		}
	}
	return App{}, false
}
