package reference

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Lookups is an immutable id-keyed snapshot of every reference table.
type Lookups struct {
	Profiles   map[uuid.UUID]Profile
	Wallets    map[uuid.UUID]Wallet
	Sources    map[uuid.UUID]Source
	Categories map[uuid.UUID]Category
}

// LoadLookups reads every table from repo.
func LoadLookups(ctx context.Context, repo Repository) (*Lookups, error) {
	profiles, err := repo.Profiles(ctx)
	if err != nil {
		return nil, err
	}
	wallets, err := repo.Wallets(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := repo.Sources(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return NewLookups(profiles, wallets, sources, categories), nil
}

func NewLookups(profiles []Profile, wallets []Wallet, sources []Source, categories []Category) *Lookups {
	l := &Lookups{
		Profiles:   make(map[uuid.UUID]Profile, len(profiles)),
		Wallets:    make(map[uuid.UUID]Wallet, len(wallets)),
		Sources:    make(map[uuid.UUID]Source, len(sources)),
		Categories: make(map[uuid.UUID]Category, len(categories)),
	}
	for _, p := range profiles {
		l.Profiles[p.ID] = p
	}
	for _, w := range wallets {
		l.Wallets[w.ID] = w
	}
	for _, s := range sources {
		l.Sources[s.ID] = s
	}
	for _, c := range categories {
		l.Categories[c.ID] = c
	}
	return l
}

// EmptyLookups resolves nothing; every name comes back blank.
func EmptyLookups() *Lookups {
	return NewLookups(nil, nil, nil, nil)
}

// CategoryName returns "" for nil or unknown ids. Child categories are
// rendered as "Parent / Child".
func (l *Lookups) CategoryName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	c, ok := l.Categories[*id]
	if !ok {
		return ""
	}
	if c.ParentID != nil {
		if parent, ok := l.Categories[*c.ParentID]; ok {
			return parent.Name + " / " + c.Name
		}
	}
	return c.Name
}

func (l *Lookups) SourceName(id uuid.UUID) string  { return l.Sources[id].Name }
func (l *Lookups) WalletName(id uuid.UUID) string  { return l.Wallets[id].Name }
func (l *Lookups) ProfileName(id uuid.UUID) string { return l.Profiles[id].Name }

// Target resolves a source to the full profile/wallet/source triple that
// new transactions are written against.
func (l *Lookups) Target(sourceID uuid.UUID) (transaction.Target, error) {
	s, ok := l.Sources[sourceID]
	if !ok {
		return transaction.Target{}, fmt.Errorf("%w: source %s", ErrNotFound, sourceID)
	}
	w, ok := l.Wallets[s.WalletID]
	if !ok {
		return transaction.Target{}, fmt.Errorf("%w: wallet %s", ErrNotFound, s.WalletID)
	}
	return transaction.Target{ProfileID: w.ProfileID, WalletID: w.ID, SourceID: s.ID}, nil
}

// Currency returns the currency of the wallet a source feeds.
func (l *Lookups) Currency(sourceID uuid.UUID) string {
	return l.Wallets[l.Sources[sourceID].WalletID].Currency
}
