package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ConflictPolicy selects what an insert does when (entry source, external id)
// already exists.
type ConflictPolicy int

const (
	// Strict returns ErrDuplicateExternalID on collision.
	Strict ConflictPolicy = iota
	// IgnoreConflicts turns a collision into a silent no-op.
	IgnoreConflicts
)

// BatchResult reports the per-row outcome of InsertBatch.
type BatchResult struct {
	Inserted   int
	Duplicates int
	Failed     int
	Errors     []error
	// InsertedIDs lists the rows actually written, in input order.
	InsertedIDs []uuid.UUID
}

// CategorySum is one row of a group-by-category aggregate.
type CategorySum struct {
	CategoryID  uuid.UUID
	AmountMinor int64
	Count       int
}

// Repository is the storage surface the ledger core consumes.
type Repository interface {
	Insert(ctx context.Context, tx *Transaction, policy ConflictPolicy) (bool, error)
	// InsertBatch applies policy to each row independently; rows inserted
	// before a failure stay durable.
	InsertBatch(ctx context.Context, txs []*Transaction, policy ConflictPolicy) (BatchResult, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*Transaction, error)
	// ListByDateRange returns rows with from <= occurred_at <= to, newest first.
	ListByDateRange(ctx context.Context, from, to time.Time, profileID *uuid.UUID) ([]*Transaction, error)
	SumByDirection(ctx context.Context, dir Direction, from, to time.Time, profileID *uuid.UUID) (int64, error)
	SumByCategory(ctx context.Context, dir Direction, from, to time.Time, profileID *uuid.UUID) ([]CategorySum, error)
	Recent(ctx context.Context, limit int, profileID *uuid.UUID) ([]*Transaction, error)
	Search(ctx context.Context, query string, limit int) ([]*Transaction, error)

	Update(ctx context.Context, tx *Transaction) error
	Confirm(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// insertBatch runs insert once per row. Shared by both stores so batch and
// single-row semantics cannot drift.
func insertBatch(ctx context.Context, txs []*Transaction, policy ConflictPolicy, insert func(context.Context, *Transaction, ConflictPolicy) (bool, error)) (BatchResult, error) {
	var res BatchResult
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ok, err := insert(ctx, tx, policy)
		switch {
		case errors.Is(err, ErrDuplicateExternalID):
			res.Duplicates++
			res.Errors = append(res.Errors, err)
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, err)
		case ok:
			res.Inserted++
			res.InsertedIDs = append(res.InsertedIDs, tx.ID)
		default:
			res.Duplicates++
		}
	}
	return res, nil
}

// countsTowardTotals filters rows for the sum queries. Unconfirmed placeholders
// never count.
func countsTowardTotals(tx *Transaction, dir Direction, from, to time.Time, profileID *uuid.UUID) bool {
	if !tx.IsConfirmed || tx.Direction != dir {
		return false
	}
	if tx.OccurredAt.Before(from) || tx.OccurredAt.After(to) {
		return false
	}
	return profileID == nil || tx.ProfileID == *profileID
}
