package transaction

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. Reads return copies so callers
// always see a consistent snapshot.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*Transaction
	keys map[dedupKey]uuid.UUID
}

type dedupKey struct {
	source     EntrySource
	externalID string
}

// NewMemoryRepository creates an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[uuid.UUID]*Transaction),
		keys: make(map[dedupKey]uuid.UUID),
	}
}

func keyOf(tx *Transaction) (dedupKey, bool) {
	if tx.ExternalID == nil {
		return dedupKey{}, false
	}
	return dedupKey{source: tx.EntrySource, externalID: *tx.ExternalID}, true
}

// Insert stores tx. With IgnoreConflicts a key collision returns (false, nil).
func (r *MemoryRepository) Insert(ctx context.Context, tx *Transaction, policy ConflictPolicy) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if k, ok := keyOf(tx); ok {
		if _, exists := r.keys[k]; exists {
			if policy == IgnoreConflicts {
				return false, nil
			}
			return false, fmt.Errorf("%w: %s/%s", ErrDuplicateExternalID, k.source, k.externalID)
		}
		r.keys[k] = tx.ID
	}
	r.rows[tx.ID] = clone(tx)
	return true, nil
}

// InsertBatch inserts each row independently.
func (r *MemoryRepository) InsertBatch(ctx context.Context, txs []*Transaction, policy ConflictPolicy) (BatchResult, error) {
	return insertBatch(ctx, txs, policy, r.Insert)
}

// GetByID returns a copy of the row or ErrNotFound.
func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(tx), nil
}

func (r *MemoryRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*Transaction, error) {
	return r.filter(func(tx *Transaction) bool { return tx.ProfileID == profileID }, 0), nil
}

func (r *MemoryRepository) ListByDateRange(ctx context.Context, from, to time.Time, profileID *uuid.UUID) ([]*Transaction, error) {
	return r.filter(func(tx *Transaction) bool {
		if tx.OccurredAt.Before(from) || tx.OccurredAt.After(to) {
			return false
		}
		return profileID == nil || tx.ProfileID == *profileID
	}, 0), nil
}

func (r *MemoryRepository) SumByDirection(ctx context.Context, dir Direction, from, to time.Time, profileID *uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, tx := range r.rows {
		if countsTowardTotals(tx, dir, from, to, profileID) {
			total += tx.AmountMinor
		}
	}
	return total, nil
}

func (r *MemoryRepository) SumByCategory(ctx context.Context, dir Direction, from, to time.Time, profileID *uuid.UUID) ([]CategorySum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byCategory := make(map[uuid.UUID]*CategorySum)
	for _, tx := range r.rows {
		if tx.CategoryID == nil || !countsTowardTotals(tx, dir, from, to, profileID) {
			continue
		}
		s, ok := byCategory[*tx.CategoryID]
		if !ok {
			s = &CategorySum{CategoryID: *tx.CategoryID}
			byCategory[*tx.CategoryID] = s
		}
		s.AmountMinor += tx.AmountMinor
		s.Count++
	}

	sums := make([]CategorySum, 0, len(byCategory))
	for _, s := range byCategory {
		sums = append(sums, *s)
	}
	sort.Slice(sums, func(i, j int) bool {
		if sums[i].AmountMinor != sums[j].AmountMinor {
			return sums[i].AmountMinor > sums[j].AmountMinor
		}
		return sums[i].CategoryID.String() < sums[j].CategoryID.String()
	})
	return sums, nil
}

func (r *MemoryRepository) Recent(ctx context.Context, limit int, profileID *uuid.UUID) ([]*Transaction, error) {
	return r.filter(func(tx *Transaction) bool {
		return profileID == nil || tx.ProfileID == *profileID
	}, limit), nil
}

// Search does a case-insensitive substring match over merchant and description.
func (r *MemoryRepository) Search(ctx context.Context, query string, limit int) ([]*Transaction, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*Transaction{}, nil
	}
	return r.filter(func(tx *Transaction) bool {
		return strings.Contains(strings.ToLower(tx.MerchantOrEmpty()), q) ||
			strings.Contains(strings.ToLower(tx.DescriptionOrEmpty()), q)
	}, limit), nil
}

// Update replaces the row, last write wins. The dedup key is re-indexed when
// the external id or entry source changes.
func (r *MemoryRepository) Update(ctx context.Context, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.rows[tx.ID]
	if !ok {
		return ErrNotFound
	}
	oldKey, hadKey := keyOf(old)
	newKey, hasKey := keyOf(tx)
	if hasKey && (!hadKey || oldKey != newKey) {
		if owner, exists := r.keys[newKey]; exists && owner != tx.ID {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateExternalID, newKey.source, newKey.externalID)
		}
	}
	if hadKey {
		delete(r.keys, oldKey)
	}
	if hasKey {
		r.keys[newKey] = tx.ID
	}
	r.rows[tx.ID] = clone(tx)
	return nil
}

// Confirm marks an unconfirmed row as confirmed.
func (r *MemoryRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	tx.IsConfirmed = true
	return nil
}

// Delete removes a single row. Transfer legs are deleted independently.
func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	if k, hasKey := keyOf(tx); hasKey {
		delete(r.keys, k)
	}
	delete(r.rows, id)
	return nil
}

// Len returns the number of stored rows.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// filter returns matching copies, newest first, capped at limit when > 0.
func (r *MemoryRepository) filter(keep func(*Transaction) bool, limit int) []*Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Transaction, 0)
	for _, tx := range r.rows {
		if keep(tx) {
			out = append(out, clone(tx))
		}
	}
	SortNewestFirst(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// SortNewestFirst orders by OccurredAt descending, then CreatedAt, then id.
func SortNewestFirst(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func clone(tx *Transaction) *Transaction {
	c := *tx
	if tx.Merchant != nil {
		m := *tx.Merchant
		c.Merchant = &m
	}
	if tx.Description != nil {
		d := *tx.Description
		c.Description = &d
	}
	if tx.CategoryID != nil {
		id := *tx.CategoryID
		c.CategoryID = &id
	}
	if tx.ExternalID != nil {
		e := *tx.ExternalID
		c.ExternalID = &e
	}
	if tx.TransferGroupID != nil {
		g := *tx.TransferGroupID
		c.TransferGroupID = &g
	}
	if tx.TagIDs != nil {
		c.TagIDs = append([]uuid.UUID(nil), tx.TagIDs...)
	}
	return &c
}
