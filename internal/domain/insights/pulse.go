package insights

import (
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/reference"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

const (
	// PaceThreshold is the percentage above which we consider "over pace"
	PaceThreshold = 125.0 // 25% over last month's pace

	topCategoryLimit = 5
)

// SpendingPulse compares this month's spending with last month's up to the
// same day of the month.
type SpendingPulse struct {
	CurrentMonthSpend int64
	LastMonthSpend    int64 // through the same day
	SpendDelta        int64
	PacePercent       float64 // 100 = on track

	IsOverPace  bool
	PaceMessage string

	DayOfMonth       int
	TransactionCount int
	TopCategories    []CategoryShare

	AsOf    time.Time
	Current Window
	Last    Window
}

// Pulse computes the spending pulse as of asOf.
func Pulse(txs []*transaction.Transaction, asOf time.Time, loc *time.Location, profileID *uuid.UUID, lookups *reference.Lookups) SpendingPulse {
	if loc == nil {
		loc = time.Local
	}
	asOf = asOf.In(loc)
	month := MonthWindow(asOf, loc)
	current := Window{Start: month.Start, End: asOf}

	prev := month.Previous()
	lastEnd := prev.Start.AddDate(0, 0, asOf.Day()).Add(-time.Millisecond)
	if lastEnd.After(prev.End) {
		lastEnd = prev.End
	}
	last := Window{Start: prev.Start, End: lastEnd}

	now := Monthly(txs, current, profileID)
	before := Monthly(txs, last, profileID)

	p := SpendingPulse{
		CurrentMonthSpend: now.Expense,
		LastMonthSpend:    before.Expense,
		SpendDelta:        now.Expense - before.Expense,
		DayOfMonth:        asOf.Day(),
		TransactionCount:  now.Count,
		AsOf:              asOf,
		Current:           current,
		Last:              last,
	}

	switch {
	case before.Expense > 0:
		p.PacePercent = percentage(now.Expense, before.Expense)
	case now.Expense > 0:
		p.PacePercent = 100 // No baseline, assume on track
	}
	p.IsOverPace = p.PacePercent > PaceThreshold
	p.PaceMessage = paceMessage(now.Expense, before.Expense)

	top := CategoryBreakdown(txs, current, profileID, lookups)
	if len(top) > topCategoryLimit {
		top = top[:topCategoryLimit]
	}
	p.TopCategories = top
	return p
}

func paceMessage(current, last int64) string {
	if last == 0 {
		if current == 0 {
			return "No spending yet"
		}
		return "First month tracking"
	}
	switch diff := current - last; {
	case diff > 0:
		return "Spending ahead"
	case diff < 0:
		return "Under budget"
	}
	return "On track"
}
