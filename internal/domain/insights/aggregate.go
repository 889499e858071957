// Package insights computes summaries, breakdowns and the date-grouped ledger
// from a snapshot of transactions. Every result is recomputed on demand.
package insights

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/reference"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Previous returns the calendar month before w.
func (w Window) Previous() Window {
	return MonthWindow(w.Start.AddDate(0, 0, -1), w.Start.Location())
}

// MonthWindow returns the calendar month containing t in loc, ending at its
// last millisecond.
func MonthWindow(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Millisecond)}
}

type MonthlySummary struct {
	Window  Window
	Income  int64
	Expense int64
	Net     int64
	Count   int
}

// CategoryShare is one slice of the spending breakdown.
type CategoryShare struct {
	CategoryID  uuid.UUID
	Name        string
	AmountMinor int64
	Percentage  float64
}

// Entry is a ledger row with its display fields resolved.
type Entry struct {
	Transaction   *transaction.Transaction
	DisplayAmount string
	Category      string
	Source        string
	Wallet        string
	Profile       string
}

// DayGroup holds the entries of one local calendar day.
type DayGroup struct {
	Date       time.Time
	DailyTotal int64
	Entries    []Entry
}

func inScope(tx *transaction.Transaction, w Window, profileID *uuid.UUID) bool {
	if profileID != nil && tx.ProfileID != *profileID {
		return false
	}
	return w.Contains(tx.OccurredAt)
}

// Monthly totals confirmed income and expense in w. Transfers are neither.
func Monthly(txs []*transaction.Transaction, w Window, profileID *uuid.UUID) MonthlySummary {
	s := MonthlySummary{Window: w}
	for _, tx := range txs {
		if !tx.IsConfirmed || !inScope(tx, w, profileID) {
			continue
		}
		switch tx.Direction {
		case transaction.DirectionIn:
			s.Income += tx.AmountMinor
			s.Count++
		case transaction.DirectionOut:
			s.Expense += tx.AmountMinor
			s.Count++
		}
	}
	s.Net = s.Income - s.Expense
	return s
}

// CategoryBreakdown splits confirmed categorised expense in w by category,
// largest first.
func CategoryBreakdown(txs []*transaction.Transaction, w Window, profileID *uuid.UUID, lookups *reference.Lookups) []CategoryShare {
	if lookups == nil {
		lookups = reference.EmptyLookups()
	}
	totals := make(map[uuid.UUID]int64)
	var total int64
	for _, tx := range txs {
		if !tx.IsConfirmed || tx.Direction != transaction.DirectionOut || tx.CategoryID == nil || !inScope(tx, w, profileID) {
			continue
		}
		totals[*tx.CategoryID] += tx.AmountMinor
		total += tx.AmountMinor
	}

	shares := make([]CategoryShare, 0, len(totals))
	for id, amount := range totals {
		shares = append(shares, CategoryShare{
			CategoryID:  id,
			Name:        lookups.CategoryName(&id),
			AmountMinor: amount,
			Percentage:  percentage(amount, total),
		})
	}
	slices.SortFunc(shares, func(a, b CategoryShare) int {
		if a.AmountMinor != b.AmountMinor {
			if a.AmountMinor > b.AmountMinor {
				return -1
			}
			return 1
		}
		return strings.Compare(a.CategoryID.String(), b.CategoryID.String())
	})
	return shares
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(2).
		InexactFloat64()
}

// GroupByDay partitions txs by local calendar day, newest day first and
// newest entry first within a day.
func GroupByDay(txs []*transaction.Transaction, lookups *reference.Lookups, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	if lookups == nil {
		lookups = reference.EmptyLookups()
	}

	byDay := make(map[string]*DayGroup)
	for _, tx := range txs {
		local := tx.OccurredAt.In(loc)
		key := local.Format(time.DateOnly)
		g, ok := byDay[key]
		if !ok {
			g = &DayGroup{Date: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)}
			byDay[key] = g
		}
		if tx.Direction == transaction.DirectionOut {
			g.DailyTotal += tx.AmountMinor
		}
		g.Entries = append(g.Entries, Entry{
			Transaction:   tx,
			DisplayAmount: DisplayAmount(tx),
			Category:      lookups.CategoryName(tx.CategoryID),
			Source:        lookups.SourceName(tx.SourceID),
			Wallet:        lookups.WalletName(tx.WalletID),
			Profile:       lookups.ProfileName(tx.ProfileID),
		})
	}

	groups := make([]DayGroup, 0, len(byDay))
	for _, g := range byDay {
		slices.SortStableFunc(g.Entries, func(a, b Entry) int {
			return b.Transaction.OccurredAt.Compare(a.Transaction.OccurredAt)
		})
		groups = append(groups, *g)
	}
	slices.SortFunc(groups, func(a, b DayGroup) int { return b.Date.Compare(a.Date) })
	return groups
}

// DisplayAmount renders the amount with its currency symbol and sign: "-" for
// expense, "+" for income, none for transfers.
func DisplayAmount(tx *transaction.Transaction) string {
	s := money.New(tx.AmountMinor, tx.Currency).Display()
	switch tx.Direction {
	case transaction.DirectionOut:
		return "-" + s
	case transaction.DirectionIn:
		return "+" + s
	}
	return s
}
