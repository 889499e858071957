package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/reference"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Dashboard is the month view: totals, breakdown, notable changes and pace.
type Dashboard struct {
	Window    Window
	Summary   MonthlySummary
	Breakdown []CategoryShare
	Changes   []Change
	Pulse     SpendingPulse
}

// Service handles insights business logic. It reads a fresh snapshot on
// every call and keeps nothing between calls.
type Service struct {
	repo     transaction.Repository
	refs     reference.Repository
	loc      *time.Location
	currency string
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService creates a new insights service
func NewService(repo transaction.Repository, refs reference.Repository, loc *time.Location, currency string, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:     repo,
		refs:     refs,
		loc:      loc,
		currency: currency,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the wall clock used to place the pulse within the month.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Dashboard computes the month containing month.
func (s *Service) Dashboard(ctx context.Context, month time.Time, profileID *uuid.UUID) (*Dashboard, error) {
	w := MonthWindow(month, s.loc)
	txs, err := s.repo.ListByDateRange(ctx, w.Previous().Start, w.End, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	lookups := s.lookups(ctx)

	asOf := s.clock()
	if asOf.After(w.End) || asOf.Before(w.Start) {
		asOf = w.End
	}

	return &Dashboard{
		Window:    w,
		Summary:   Monthly(txs, w, profileID),
		Breakdown: CategoryBreakdown(txs, w, profileID, lookups),
		Changes:   Changes(txs, w, profileID, lookups, s.currency),
		Pulse:     Pulse(txs, asOf, s.loc, profileID, lookups),
	}, nil
}

// MonthlyFromStore computes the monthly summary with the repository's
// aggregate queries instead of a snapshot.
func (s *Service) MonthlyFromStore(ctx context.Context, month time.Time, profileID *uuid.UUID) (MonthlySummary, error) {
	w := MonthWindow(month, s.loc)
	income, err := s.repo.SumByDirection(ctx, transaction.DirectionIn, w.Start, w.End, profileID)
	if err != nil {
		return MonthlySummary{}, err
	}
	expense, err := s.repo.SumByDirection(ctx, transaction.DirectionOut, w.Start, w.End, profileID)
	if err != nil {
		return MonthlySummary{}, err
	}
	return MonthlySummary{Window: w, Income: income, Expense: expense, Net: income - expense}, nil
}

// Ledger returns the date-grouped ledger for [from, to].
func (s *Service) Ledger(ctx context.Context, from, to time.Time, profileID *uuid.UUID) ([]DayGroup, error) {
	txs, err := s.repo.ListByDateRange(ctx, from, to, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return GroupByDay(txs, s.lookups(ctx), s.loc), nil
}

// lookups degrades to blank names when the reference tables are unreadable.
func (s *Service) lookups(ctx context.Context) *reference.Lookups {
	if s.refs == nil {
		return reference.EmptyLookups()
	}
	l, err := reference.LoadLookups(ctx, s.refs)
	if err != nil {
		s.logger.Warn("failed to load reference lookups", "error", err)
		return reference.EmptyLookups()
	}
	return l
}
