package quickentry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestParser_Parse(t *testing.T) {
	p := NewParser("EUR")

	tests := []struct {
		input     string
		desc      string
		amount    int64
		currency  string
		direction transaction.Direction
		date      time.Time
	}{
		{"Coffee 1$", "Coffee", 100, "USD", transaction.DirectionOut, now},
		{"dinner €25", "Dinner", 2500, "EUR", transaction.DirectionOut, now},
		{"Uber 12.50$", "Uber", 1250, "USD", transaction.DirectionOut, now},
		{"pranzo 10,5", "Pranzo", 1050, "EUR", transaction.DirectionOut, now},
		{"+Salary 2500€", "Salary", 250000, "EUR", transaction.DirectionIn, now},
		{"Taxi GBP 8", "Taxi", 800, "GBP", transaction.DirectionOut, now},
		{"pizza ieri 12€", "Pizza", 1200, "EUR", transaction.DirectionOut, now.AddDate(0, 0, -1)},
		{"Lunch with friends", "Lunch with friends", 0, "EUR", transaction.DirectionOut, now},
		{"coffee €1,234.56", "Coffee", 123456, "EUR", transaction.DirectionOut, now},
		{"rent 1.234,56€", "Rent", 123456, "EUR", transaction.DirectionOut, now},
		{"laptop $1,299", "Laptop", 129900, "USD", transaction.DirectionOut, now},
		{"table 2 dinner 40€", "Table 2 dinner", 4000, "EUR", transaction.DirectionOut, now},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := p.Parse(tt.input, now)
			assert.Equal(t, tt.desc, got.Description)
			assert.Equal(t, tt.amount, got.AmountMinor)
			assert.Equal(t, tt.currency, got.Currency)
			assert.Equal(t, tt.direction, got.Direction)
			assert.Equal(t, tt.date, got.Date)
			assert.Equal(t, tt.input, got.RawText)
			assert.NoError(t, got.Err)
		})
	}
}

func TestParser_AmountOutOfRange(t *testing.T) {
	got := NewParser("EUR").Parse("coffee 99999999999999999999€", now)
	assert.ErrorIs(t, got.Err, money.ErrAmountOutOfRange)
	assert.Zero(t, got.AmountMinor)
}

type stubCategorizer struct {
	category uuid.UUID
	err      error
}

func (s *stubCategorizer) Suggest(_ context.Context, _ uuid.UUID, description string) (string, *uuid.UUID, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	return "Starbucks", &s.category, nil
}

func newService(t *testing.T, clock *time.Time) (*Service, *transaction.MemoryRepository, *UndoTracker) {
	t.Helper()
	repo := transaction.NewMemoryRepository()
	undo := NewUndoTracker(30 * time.Second).WithClock(func() time.Time { return *clock })
	svc := NewService(repo, undo, "EUR", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, undo
}

func TestService_AddAndUndo(t *testing.T) {
	ctx := context.Background()
	clock := now
	svc, repo, _ := newService(t, &clock)
	cat := &stubCategorizer{category: uuid.New()}
	svc.WithCategorizer(cat)
	target := transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()}

	res, err := svc.Add(ctx, "coffee 3.20€", target, now)
	require.NoError(t, err)
	tx := res.Transaction
	assert.Equal(t, transaction.SourceQuickEntry, tx.EntrySource)
	assert.Nil(t, tx.ExternalID)
	assert.True(t, tx.IsConfirmed)
	assert.Equal(t, int64(320), tx.AmountMinor)
	assert.Equal(t, "Starbucks", tx.MerchantOrEmpty())
	assert.Equal(t, "Coffee", tx.DescriptionOrEmpty())
	assert.Equal(t, &cat.category, tx.CategoryID)
	assert.Equal(t, now.Add(30*time.Second), res.UndoUntil)

	// the same text again is a second, distinct entry
	_, err = svc.Add(ctx, "coffee 3.20€", target, now)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())

	clock = now.Add(10 * time.Second)
	id, err := svc.Undo(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID, id)
	assert.Equal(t, 1, repo.Len())

	_, err = svc.Undo(ctx)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestService_UndoWindowStartsAtEntryTime(t *testing.T) {
	ctx := context.Background()
	// the tracker's clock runs far ahead of the time the entry is dated with
	clock := now.Add(20 * time.Minute)
	svc, repo, _ := newService(t, &clock)
	target := transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()}

	res, err := svc.Add(ctx, "tea 2€", target, now)
	require.NoError(t, err)
	assert.Equal(t, now, res.Transaction.OccurredAt)
	assert.Equal(t, now.Add(30*time.Second), res.UndoUntil)

	_, err = svc.Undo(ctx)
	assert.ErrorIs(t, err, ErrUndoExpired)
	assert.Equal(t, 1, repo.Len())
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	clock := now
	svc, repo, _ := newService(t, &clock)
	svc.WithCategorizer(&stubCategorizer{err: errors.New("boom")})
	target := transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()}

	_, err := svc.Add(ctx, "just words", target, now)
	assert.ErrorIs(t, err, ErrNoAmount)

	_, err = svc.Add(ctx, "coffee 99999999999999999999€", target, now)
	assert.ErrorIs(t, err, money.ErrAmountOutOfRange)
	assert.Zero(t, repo.Len())

	res, err := svc.Add(ctx, "bus 2€", target, now)
	require.NoError(t, err)
	assert.Equal(t, "Bus", res.Transaction.MerchantOrEmpty())
	assert.Nil(t, res.Transaction.CategoryID)
	assert.Equal(t, 1, repo.Len())
}

func TestUndoTracker_Window(t *testing.T) {
	ctx := context.Background()
	clock := now
	repo := transaction.NewMemoryRepository()
	undo := NewUndoTracker(time.Minute).WithClock(func() time.Time { return clock })
	target := transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()}

	b := transaction.NewBuilder()
	first := b.Manual(target, now, 100, "EUR", transaction.DirectionOut, "A", "", nil, nil)
	second := b.Manual(target, now, 200, "EUR", transaction.DirectionOut, "B", "", nil, nil)
	for _, tx := range []*transaction.Transaction{first, second} {
		_, err := repo.Insert(ctx, tx, transaction.Strict)
		require.NoError(t, err)
	}

	assert.Equal(t, now.Add(time.Minute), undo.Record(first.ID, now))
	clock = now.Add(45 * time.Second)
	undo.Record(second.ID, clock)
	assert.Equal(t, 2, undo.Pending())

	clock = now.Add(90 * time.Second)
	err := undo.Undo(ctx, repo, first.ID)
	assert.ErrorIs(t, err, ErrUndoExpired)
	assert.Equal(t, 2, repo.Len(), "an expired undo must not delete")

	assert.ErrorIs(t, undo.Undo(ctx, repo, uuid.New()), ErrUndoNotFound)

	clock = now.Add(2 * time.Minute)
	assert.Equal(t, 1, undo.ExpireUndo())
	assert.Zero(t, undo.Pending())
	assert.Equal(t, 2, repo.Len())

	_, err = undo.UndoLast(ctx, repo)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}
