package reference

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*MemoryRepository, Profile, Wallet, Source, Category, Category) {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := Profile{Name: "Personal"}
	require.NoError(t, repo.CreateProfile(ctx, &p))
	w := Wallet{ProfileID: p.ID, Name: "Main", Currency: "eur"}
	require.NoError(t, repo.CreateWallet(ctx, &w))
	s := Source{WalletID: w.ID, Name: "Revolut", Kind: KindBank}
	require.NoError(t, repo.CreateSource(ctx, &s))
	food := Category{Name: "Food"}
	require.NoError(t, repo.CreateCategory(ctx, &food))
	groceries := Category{Name: "Groceries", ParentID: &food.ID}
	require.NoError(t, repo.CreateCategory(ctx, &groceries))
	return repo, p, w, s, food, groceries
}

func TestLookups(t *testing.T) {
	repo, p, w, s, food, groceries := seed(t)

	l, err := LoadLookups(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, "Food", l.CategoryName(&food.ID))
	assert.Equal(t, "Food / Groceries", l.CategoryName(&groceries.ID))
	assert.Empty(t, l.CategoryName(nil))
	unknown := uuid.New()
	assert.Empty(t, l.CategoryName(&unknown))

	assert.Equal(t, "Revolut", l.SourceName(s.ID))
	assert.Equal(t, "Main", l.WalletName(w.ID))
	assert.Equal(t, "Personal", l.ProfileName(p.ID))
	assert.Equal(t, "EUR", l.Currency(s.ID))

	target, err := l.Target(s.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, target.ProfileID)
	assert.Equal(t, w.ID, target.WalletID)
	assert.Equal(t, s.ID, target.SourceID)

	_, err = l.Target(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_Scoped(t *testing.T) {
	ctx := context.Background()
	repo, p, w, s, food, _ := seed(t)

	other := Wallet{ProfileID: uuid.New(), Name: "Elsewhere", Currency: "USD"}
	require.NoError(t, repo.CreateWallet(ctx, &other))

	wallets, err := repo.WalletsByProfile(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, w.ID, wallets[0].ID)

	sources, err := repo.SourcesByWallet(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, sources)
	assert.Empty(t, sources)

	sources, err = repo.SourcesByWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, s.ID, sources[0].ID)

	got, err := repo.CategoryByID(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Name)

	_, err = repo.CategoryByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_Reads(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	profileID, walletID := uuid.New(), uuid.New()
	parent := uuid.New()

	mock.ExpectQuery(`SELECT id, profile_id, name, currency FROM wallets WHERE profile_id = \$1`).
		WithArgs(profileID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "profile_id", "name", "currency"}).
			AddRow(walletID, profileID, "Main", "EUR"))
	mock.ExpectQuery(`SELECT id, parent_id, name FROM categories WHERE id = \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "name"}).
			AddRow(uuid.New(), &parent, "Groceries"))
	mock.ExpectQuery(`SELECT id, parent_id, name FROM categories WHERE id = \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "name"}))

	repo := NewPostgresRepository(mock)

	wallets, err := repo.WalletsByProfile(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "EUR", wallets[0].Currency)

	c, err := repo.CategoryByID(ctx, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, parent, *c.ParentID)

	_, err = repo.CategoryByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateAssignsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO sources`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Satispay", KindApp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := Source{WalletID: uuid.New(), Name: "Satispay", Kind: KindApp}
	require.NoError(t, NewPostgresRepository(mock).CreateSource(context.Background(), &s))
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
