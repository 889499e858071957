package reference

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Repository reads the lookup tables. Writes are limited to creating rows,
// which the CLI uses to bootstrap a ledger.
type Repository interface {
	Profiles(ctx context.Context) ([]Profile, error)
	Wallets(ctx context.Context) ([]Wallet, error)
	Sources(ctx context.Context) ([]Source, error)
	Categories(ctx context.Context) ([]Category, error)
	CategoryByID(ctx context.Context, id uuid.UUID) (*Category, error)
	WalletsByProfile(ctx context.Context, profileID uuid.UUID) ([]Wallet, error)
	SourcesByWallet(ctx context.Context, walletID uuid.UUID) ([]Source, error)

	CreateProfile(ctx context.Context, p *Profile) error
	CreateWallet(ctx context.Context, w *Wallet) error
	CreateSource(ctx context.Context, s *Source) error
	CreateCategory(ctx context.Context, c *Category) error
}

// PostgresRepository reads the profiles, wallets, sources and categories
// tables.
type PostgresRepository struct {
	db transaction.DBTX
}

func NewPostgresRepository(db transaction.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Profiles(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Profile, error) {
		var p Profile
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
}

func (r *PostgresRepository) Wallets(ctx context.Context) ([]Wallet, error) {
	return r.wallets(ctx, `SELECT id, profile_id, name, currency FROM wallets ORDER BY name`)
}

func (r *PostgresRepository) WalletsByProfile(ctx context.Context, profileID uuid.UUID) ([]Wallet, error) {
	return r.wallets(ctx, `SELECT id, profile_id, name, currency FROM wallets WHERE profile_id = $1 ORDER BY name`, profileID)
}

func (r *PostgresRepository) wallets(ctx context.Context, query string, args ...any) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Wallet, error) {
		var w Wallet
		err := row.Scan(&w.ID, &w.ProfileID, &w.Name, &w.Currency)
		return w, err
	})
}

func (r *PostgresRepository) Sources(ctx context.Context) ([]Source, error) {
	return r.sources(ctx, `SELECT id, wallet_id, name, kind FROM sources ORDER BY name`)
}

func (r *PostgresRepository) SourcesByWallet(ctx context.Context, walletID uuid.UUID) ([]Source, error) {
	return r.sources(ctx, `SELECT id, wallet_id, name, kind FROM sources WHERE wallet_id = $1 ORDER BY name`, walletID)
}

func (r *PostgresRepository) sources(ctx context.Context, query string, args ...any) ([]Source, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Source, error) {
		var s Source
		err := row.Scan(&s.ID, &s.WalletID, &s.Name, &s.Kind)
		return s, err
	})
}

func (r *PostgresRepository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, parent_id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.ParentID, &c.Name)
		return c, err
	})
}

func (r *PostgresRepository) CategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `SELECT id, parent_id, name FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.ParentID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) CreateProfile(ctx context.Context, p *Profile) error {
	ensureID(&p.ID)
	_, err := r.db.Exec(ctx, `INSERT INTO profiles (id, name) VALUES ($1, $2)`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateWallet(ctx context.Context, w *Wallet) error {
	ensureID(&w.ID)
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (id, profile_id, name, currency) VALUES ($1, $2, $3, $4)`,
		w.ID, w.ProfileID, w.Name, strings.ToUpper(w.Currency))
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateSource(ctx context.Context, s *Source) error {
	ensureID(&s.ID)
	_, err := r.db.Exec(ctx, `INSERT INTO sources (id, wallet_id, name, kind) VALUES ($1, $2, $3, $4)`,
		s.ID, s.WalletID, s.Name, s.Kind)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	ensureID(&c.ID)
	_, err := r.db.Exec(ctx, `INSERT INTO categories (id, parent_id, name) VALUES ($1, $2, $3)`,
		c.ID, c.ParentID, c.Name)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu         sync.RWMutex
	profiles   []Profile
	wallets    []Wallet
	sources    []Source
	categories []Category
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Profiles(_ context.Context) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedBy(m.profiles, func(p Profile) string { return p.Name }), nil
}

func (m *MemoryRepository) Wallets(_ context.Context) ([]Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedBy(m.wallets, func(w Wallet) string { return w.Name }), nil
}

func (m *MemoryRepository) Sources(_ context.Context) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedBy(m.sources, func(s Source) string { return s.Name }), nil
}

func (m *MemoryRepository) Categories(_ context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedBy(m.categories, func(c Category) string { return c.Name }), nil
}

func (m *MemoryRepository) CategoryByID(_ context.Context, id uuid.UUID) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) WalletsByProfile(_ context.Context, profileID uuid.UUID) ([]Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := slices.DeleteFunc(slices.Clone(m.wallets), func(w Wallet) bool { return w.ProfileID != profileID })
	return sortedBy(owned, func(w Wallet) string { return w.Name }), nil
}

func (m *MemoryRepository) SourcesByWallet(_ context.Context, walletID uuid.UUID) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := slices.DeleteFunc(slices.Clone(m.sources), func(s Source) bool { return s.WalletID != walletID })
	return sortedBy(owned, func(s Source) string { return s.Name }), nil
}

func (m *MemoryRepository) CreateProfile(_ context.Context, p *Profile) error {
	ensureID(&p.ID)
	m.mu.Lock()
	m.profiles = append(m.profiles, *p)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) CreateWallet(_ context.Context, w *Wallet) error {
	ensureID(&w.ID)
	w.Currency = strings.ToUpper(w.Currency)
	m.mu.Lock()
	m.wallets = append(m.wallets, *w)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) CreateSource(_ context.Context, s *Source) error {
	ensureID(&s.ID)
	m.mu.Lock()
	m.sources = append(m.sources, *s)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) CreateCategory(_ context.Context, c *Category) error {
	ensureID(&c.ID)
	m.mu.Lock()
	m.categories = append(m.categories, *c)
	m.mu.Unlock()
	return nil
}

func sortedBy[T any](in []T, key func(T) string) []T {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b T) int { return strings.Compare(key(a), key(b)) })
	if out == nil {
		out = []T{}
	}
	return out
}
