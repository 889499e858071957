package search

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

type fixture struct {
	repo    *transaction.MemoryRepository
	index   *Index
	svc     *Service
	target  transaction.Target
	other   transaction.Target
	grocery uuid.UUID
	rows    map[string]*transaction.Transaction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	f := &fixture{
		repo:    transaction.NewMemoryRepository(),
		index:   idx,
		target:  transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()},
		other:   transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()},
		grocery: uuid.New(),
		rows:    map[string]*transaction.Transaction{},
	}
	f.svc = NewService(idx, f.repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	b := transaction.NewBuilder()
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	add := func(key string, target transaction.Target, merchant, desc string, category *uuid.UUID) {
		tx := b.Manual(target, at, 1250, "EUR", transaction.DirectionOut, merchant, desc, category, nil)
		_, err := f.repo.Insert(context.Background(), tx, transaction.Strict)
		require.NoError(t, err)
		f.rows[key] = tx
	}
	add("esselunga", f.target, "Esselunga", "PAGAMENTO POS ESSELUNGA MILANO", &f.grocery)
	add("coop", f.target, "Coop", "spesa settimanale", &f.grocery)
	add("amazon", f.target, "Amazon", "Marketplace order", nil)
	add("esselunga-other", f.other, "Esselunga", "spesa", nil)
	return f
}

func TestService_ReindexAndSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.svc.Reindex(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	count, err := f.index.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	t.Run("typo tolerant", func(t *testing.T) {
		got, err := f.svc.Search(ctx, "eselunga", 10, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("scoped to profile", func(t *testing.T) {
		got, err := f.svc.Search(ctx, "esselunga", 10, &f.target.ProfileID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, f.rows["esselunga"].ID, got[0].ID)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := f.svc.Search(ctx, "  ", 10, nil)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})
}

func TestIndex_PrefixAndCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Reindex(ctx, time.Time{})
	require.NoError(t, err)

	hits, err := f.index.SearchPrefix("Amaz", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, f.rows["amazon"].ID, hits[0].ID)

	hits, err = f.index.ByCategory(f.grocery, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = f.index.SearchQueryString("+esselunga -milano", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, f.rows["esselunga-other"].ID, hits[0].ID)
}

func TestService_DropsStaleHits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Reindex(ctx, time.Time{})
	require.NoError(t, err)

	require.NoError(t, f.repo.Delete(ctx, f.rows["amazon"].ID))

	got, err := f.svc.Search(ctx, "amazon", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	count, err := f.index.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}
