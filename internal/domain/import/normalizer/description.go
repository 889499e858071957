package normalizer

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// DescriptionRule strips a boilerplate prefix from a bank description and
// optionally fixes the merchant or overrides the direction.
type DescriptionRule struct {
	Prefixes []string
	// Merchant replaces the remaining text when set.
	Merchant string
	// Direction overrides the amount's sign when set.
	Direction transaction.Direction
}

// Description is the result of normalizing one description.
type Description struct {
	Raw      string
	Merchant string
	Override transaction.Direction
	Matched  bool
}

// Apply returns the override direction if there is one, else dir.
func (d Description) Apply(dir transaction.Direction) transaction.Direction {
	if d.Override != "" {
		return d.Override
	}
	return dir
}

// DescriptionNormalizer extracts merchants from statement descriptions using
// an ordered prefix table. The first matching rule wins.
type DescriptionNormalizer struct {
	rules []DescriptionRule
}

// NewDescriptionNormalizer creates a normalizer with the known Italian bank
// prefixes.
func NewDescriptionNormalizer() *DescriptionNormalizer {
	return &DescriptionNormalizer{rules: DefaultDescriptionRules()}
}

// AddRule appends a rule after the existing ones.
func (n *DescriptionNormalizer) AddRule(rule DescriptionRule) {
	n.rules = append(n.rules, rule)
}

// Normalize matches raw against the rule table.
func (n *DescriptionNormalizer) Normalize(raw string) Description {
	cleaned := collapseSpaces(raw)
	out := Description{Raw: raw, Merchant: cleanMerchant(cleaned)}

	for _, rule := range n.rules {
		for _, prefix := range rule.Prefixes {
			if !hasPrefixFold(cleaned, prefix) {
				continue
			}
			out.Matched = true
			out.Override = rule.Direction
			if rule.Merchant != "" {
				out.Merchant = rule.Merchant
			} else {
				out.Merchant = cleanMerchant(cleaned[len(prefix):])
			}
			return out
		}
	}
	return out
}

// DefaultDescriptionRules is the known prefix set. It is not exhaustive.
func DefaultDescriptionRules() []DescriptionRule {
	return []DescriptionRule{
		{Prefixes: []string{"BONIFICO DA VOI DISPOSTO", "BONIFICO ORDINATO", "DISPOSIZIONE DI BONIFICO"}, Direction: transaction.DirectionOut},
		{Prefixes: []string{"BONIFICO A VOSTRO FAVORE", "BONIFICO RICEVUTO"}, Direction: transaction.DirectionIn},
		{Prefixes: []string{"PRELIEVO BANCOMAT", "PRELIEVO ATM"}, Merchant: "ATM", Direction: transaction.DirectionOut},
		{Prefixes: []string{"PAGAMENTO POS", "PAGAMENTO CARTA", "OPERAZIONE CARTA", "ADDEBITO DIRETTO", "ADDEBITO SDD"}},
	}
}

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	trailingRef   = regexp.MustCompile(`\s+\d{6,}$`)
	trailingDate  = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}(/\d{2,4})?$`)
	leadingFiller = regexp.MustCompile(`^[\s\-:;,*/.]+`)
)

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// cleanMerchant drops separators left by a stripped prefix and trailing
// terminal references or dates.
func cleanMerchant(s string) string {
	s = leadingFiller.ReplaceAllString(s, "")
	s = trailingRef.ReplaceAllString(s, "")
	s = trailingDate.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
