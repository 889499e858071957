package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool used by the repositories. pgxmock pools
// satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores transactions in the transactions table. The
// partial unique index on (entry_source, external_id) enforces dedup.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a Postgres-backed Repository.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `
	id, profile_id, wallet_id, source_id, occurred_at_ms, amount_minor, currency,
	direction, merchant, description, category_id, tag_ids, entry_source,
	external_id, is_confirmed, transfer_group_id, created_at`

const insertSQL = `
	INSERT INTO transactions (
		id, profile_id, wallet_id, source_id, occurred_at_ms, amount_minor, currency,
		direction, merchant, description, category_id, tag_ids, entry_source,
		external_id, is_confirmed, transfer_group_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

const onConflictIgnore = `
	ON CONFLICT (entry_source, external_id) WHERE external_id IS NOT NULL DO NOTHING`

// Insert writes tx. With IgnoreConflicts a dedup collision affects zero rows
// and returns (false, nil).
func (r *PostgresRepository) Insert(ctx context.Context, tx *Transaction, policy ConflictPolicy) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	query := insertSQL
	if policy == IgnoreConflicts {
		query += onConflictIgnore
	}

	tag, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.ProfileID,
		tx.WalletID,
		tx.SourceID,
		tx.OccurredAt.UnixMilli(),
		tx.AmountMinor,
		tx.Currency,
		string(tx.Direction),
		tx.Merchant,
		tx.Description,
		tx.CategoryID,
		EncodeTagIDs(tx.TagIDs),
		string(tx.EntrySource),
		tx.ExternalID,
		tx.IsConfirmed,
		tx.TransferGroupID,
		tx.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, fmt.Errorf("%w: %s", ErrDuplicateExternalID, pgErr.ConstraintName)
		}
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertBatch inserts rows one statement at a time, outside any wrapping
// transaction, so every row is independently durable and replayable.
func (r *PostgresRepository) InsertBatch(ctx context.Context, txs []*Transaction, policy ConflictPolicy) (BatchResult, error) {
	return insertBatch(ctx, txs, policy, r.Insert)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *PostgresRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*Transaction, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE profile_id = $1
		ORDER BY occurred_at_ms DESC, created_at DESC`, profileID)
}

func (r *PostgresRepository) ListByDateRange(ctx context.Context, from, to time.Time, profileID *uuid.UUID) ([]*Transaction, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE occurred_at_ms BETWEEN $1 AND $2
		  AND ($3::uuid IS NULL OR profile_id = $3)
		ORDER BY occurred_at_ms DESC, created_at DESC`,
		from.UnixMilli(), to.UnixMilli(), profileID)
}

func (r *PostgresRepository) SumByDirection(ctx context.Context, dir Direction, from, to time.Time, profileID *uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0)::bigint
		FROM transactions
		WHERE is_confirmed
		  AND direction = $1
		  AND occurred_at_ms BETWEEN $2 AND $3
		  AND ($4::uuid IS NULL OR profile_id = $4)`,
		string(dir), from.UnixMilli(), to.UnixMilli(), profileID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum by direction: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) SumByCategory(ctx context.Context, dir Direction, from, to time.Time, profileID *uuid.UUID) ([]CategorySum, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category_id, COALESCE(SUM(amount_minor), 0)::bigint, COUNT(*)
		FROM transactions
		WHERE is_confirmed
		  AND category_id IS NOT NULL
		  AND direction = $1
		  AND occurred_at_ms BETWEEN $2 AND $3
		  AND ($4::uuid IS NULL OR profile_id = $4)
		GROUP BY category_id
		ORDER BY 2 DESC, 1`,
		string(dir), from.UnixMilli(), to.UnixMilli(), profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var sums []CategorySum
	for rows.Next() {
		var s CategorySum
		if err := rows.Scan(&s.CategoryID, &s.AmountMinor, &s.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int, profileID *uuid.UUID) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE ($1::uuid IS NULL OR profile_id = $1)
		ORDER BY occurred_at_ms DESC, created_at DESC
		LIMIT $2`, profileID, limit)
}

func (r *PostgresRepository) Search(ctx context.Context, query string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE merchant ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY occurred_at_ms DESC
		LIMIT $2`, query, limit)
}

// Update overwrites the editable fields of a row; last write wins.
func (r *PostgresRepository) Update(ctx context.Context, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET
			profile_id = $2, wallet_id = $3, source_id = $4, occurred_at_ms = $5,
			amount_minor = $6, currency = $7, direction = $8, merchant = $9,
			description = $10, category_id = $11, tag_ids = $12, is_confirmed = $13
		WHERE id = $1`,
		tx.ID, tx.ProfileID, tx.WalletID, tx.SourceID, tx.OccurredAt.UnixMilli(),
		tx.AmountMinor, tx.Currency, string(tx.Direction), tx.Merchant,
		tx.Description, tx.CategoryID, EncodeTagIDs(tx.TagIDs), tx.IsConfirmed,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE transactions SET is_confirmed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("confirm transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		tx          Transaction
		occurredMs  int64
		direction   string
		tagIDs      string
		entrySource string
	)
	err := row.Scan(
		&tx.ID,
		&tx.ProfileID,
		&tx.WalletID,
		&tx.SourceID,
		&occurredMs,
		&tx.AmountMinor,
		&tx.Currency,
		&direction,
		&tx.Merchant,
		&tx.Description,
		&tx.CategoryID,
		&tagIDs,
		&entrySource,
		&tx.ExternalID,
		&tx.IsConfirmed,
		&tx.TransferGroupID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.OccurredAt = time.UnixMilli(occurredMs)
	tx.Direction = Direction(direction)
	tx.EntrySource = EntrySource(entrySource)
	tx.TagIDs = DecodeTagIDs(tagIDs)
	return &tx, nil
}
