package insights

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/reference"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

// ChangeType defines the type of change
type ChangeType string

const (
	ChangeCategoryIncrease ChangeType = "category_increase"
	ChangeCategoryDecrease ChangeType = "category_decrease"
	ChangeNewMerchant      ChangeType = "new_merchant"
	ChangeIncome           ChangeType = "income_change"
)

// Sentiment indicates whether the change is good or bad
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Change is one notable month-over-month movement.
type Change struct {
	Type          ChangeType
	Title         string
	Description   string
	AmountChange  int64
	PercentChange float64
	CategoryID    *uuid.UUID
	CategoryName  string
	MerchantName  string
	Sentiment     Sentiment
}

// Minimum movements, in minor units, worth reporting.
const (
	minCategoryChange = 1000
	minNewMerchant    = 2000
	minIncomeChange   = 5000
	maxChanges        = 3
)

// Changes returns up to three of the largest movements between the month w
// and the month before it.
func Changes(txs []*transaction.Transaction, w Window, profileID *uuid.UUID, lookups *reference.Lookups, currency string) []Change {
	if lookups == nil {
		lookups = reference.EmptyLookups()
	}
	prev := w.Previous()

	var all []Change
	all = append(all, categoryChanges(txs, w, prev, profileID, lookups, currency)...)
	all = append(all, newMerchants(txs, w, prev, profileID, currency)...)
	if c := incomeChange(txs, w, prev, profileID, currency); c != nil {
		all = append(all, *c)
	}

	slices.SortStableFunc(all, func(a, b Change) int {
		return cmp.Compare(abs(b.AmountChange), abs(a.AmountChange))
	})
	if len(all) > maxChanges {
		all = all[:maxChanges]
	}
	if all == nil {
		all = []Change{}
	}
	return all
}

func categoryChanges(txs []*transaction.Transaction, cur, prev Window, profileID *uuid.UUID, lookups *reference.Lookups, currency string) []Change {
	before := make(map[uuid.UUID]int64)
	for _, s := range CategoryBreakdown(txs, prev, profileID, lookups) {
		before[s.CategoryID] = s.AmountMinor
	}

	var changes []Change
	for _, s := range CategoryBreakdown(txs, cur, profileID, lookups) {
		last := before[s.CategoryID]
		delta := s.AmountMinor - last
		if abs(delta) <= minCategoryChange {
			continue
		}
		id := s.CategoryID
		c := Change{
			AmountChange: delta,
			CategoryID:   &id,
			CategoryName: s.Name,
		}
		if last > 0 {
			c.PercentChange = percentage(delta, last)
		}
		if delta > 0 {
			c.Type = ChangeCategoryIncrease
			c.Title = fmt.Sprintf("%s increased", s.Name)
			c.Description = fmt.Sprintf("You spent %s more on %s than last month", display(delta, currency), s.Name)
			c.Sentiment = SentimentNegative
		} else {
			c.Type = ChangeCategoryDecrease
			c.Title = fmt.Sprintf("%s decreased", s.Name)
			c.Description = fmt.Sprintf("You spent %s less on %s than last month", display(-delta, currency), s.Name)
			c.Sentiment = SentimentPositive
		}
		changes = append(changes, c)
	}
	return changes
}

func merchantKey(tx *transaction.Transaction) string {
	if m := tx.MerchantOrEmpty(); m != "" {
		return m
	}
	return tx.DescriptionOrEmpty()
}

func newMerchants(txs []*transaction.Transaction, cur, prev Window, profileID *uuid.UUID, currency string) []Change {
	seen := make(map[string]bool)
	spent := make(map[string]int64)
	for _, tx := range txs {
		if !tx.IsConfirmed {
			continue
		}
		key := merchantKey(tx)
		if key == "" {
			continue
		}
		switch {
		case inScope(tx, prev, profileID):
			seen[key] = true
		case inScope(tx, cur, profileID) && tx.Direction == transaction.DirectionOut:
			spent[key] += tx.AmountMinor
		}
	}

	var changes []Change
	for name, total := range spent {
		if seen[name] || total <= minNewMerchant {
			continue
		}
		changes = append(changes, Change{
			Type:         ChangeNewMerchant,
			Title:        "New merchant",
			Description:  fmt.Sprintf("Started spending at %s (%s)", name, display(total, currency)),
			AmountChange: total,
			MerchantName: name,
			Sentiment:    SentimentNeutral,
		})
	}
	slices.SortFunc(changes, func(a, b Change) int {
		if c := cmp.Compare(b.AmountChange, a.AmountChange); c != 0 {
			return c
		}
		return cmp.Compare(a.MerchantName, b.MerchantName)
	})
	return changes
}

func incomeChange(txs []*transaction.Transaction, cur, prev Window, profileID *uuid.UUID, currency string) *Change {
	now := Monthly(txs, cur, profileID).Income
	last := Monthly(txs, prev, profileID).Income
	delta := now - last
	if abs(delta) < minIncomeChange {
		return nil
	}

	c := &Change{Type: ChangeIncome, AmountChange: delta}
	if last > 0 {
		c.PercentChange = percentage(delta, last)
	}
	if delta > 0 {
		c.Title = "Income increased"
		c.Description = fmt.Sprintf("You received %s more this month", display(delta, currency))
		c.Sentiment = SentimentPositive
	} else {
		c.Title = "Income decreased"
		c.Description = fmt.Sprintf("You received %s less this month", display(-delta, currency))
		c.Sentiment = SentimentNegative
	}
	return c
}

func display(amountMinor int64, currency string) string {
	return money.New(amountMinor, currency).Display()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
