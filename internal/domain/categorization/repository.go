package categorization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Store persists rules and merchants.
type Store interface {
	Rules(ctx context.Context, profileID uuid.UUID) ([]CategoryRule, error)
	// Merchants returns the profile's merchants followed by the shared list.
	Merchants(ctx context.Context, profileID uuid.UUID) ([]Merchant, error)
	FindRuleByPattern(ctx context.Context, profileID uuid.UUID, pattern string) (*CategoryRule, error)
	CreateRule(ctx context.Context, rule *CategoryRule) error
	// ApplyRule back-fills merchant and category on existing transactions whose
	// description contains pattern. It returns the number of rows changed.
	ApplyRule(ctx context.Context, profileID uuid.UUID, pattern, cleanName string, categoryID *uuid.UUID) (int64, error)
}

// PostgresStore reads category_rules and merchants.
type PostgresStore struct {
	db transaction.DBTX
}

func NewPostgresStore(db transaction.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const ruleColumns = `id, profile_id, match_pattern, clean_name, category_id, is_recurring, priority`

func (s *PostgresStore) Rules(ctx context.Context, profileID uuid.UUID) ([]CategoryRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM category_rules
		WHERE profile_id = $1
		ORDER BY priority DESC, created_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query category rules: %w", err)
	}
	defer rows.Close()

	var rules []CategoryRule
	for rows.Next() {
		var r CategoryRule
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.MatchPattern, &r.CleanName, &r.CategoryID, &r.IsRecurring, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan category rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) Merchants(ctx context.Context, profileID uuid.UUID) ([]Merchant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, profile_id, raw_pattern, clean_name, default_category_id, is_system
		FROM merchants
		WHERE profile_id = $1 OR profile_id IS NULL
		ORDER BY CASE WHEN profile_id = $1 THEN 0 ELSE 1 END, is_system ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query merchants: %w", err)
	}
	defer rows.Close()

	var merchants []Merchant
	for rows.Next() {
		var m Merchant
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.RawPattern, &m.CleanName, &m.DefaultCategoryID, &m.IsSystem); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

// FindRuleByPattern returns nil, nil when the profile has no such rule.
func (s *PostgresStore) FindRuleByPattern(ctx context.Context, profileID uuid.UUID, pattern string) (*CategoryRule, error) {
	var r CategoryRule
	err := s.db.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM category_rules
		WHERE profile_id = $1 AND match_pattern = $2`, profileID, pattern).
		Scan(&r.ID, &r.ProfileID, &r.MatchPattern, &r.CleanName, &r.CategoryID, &r.IsRecurring, &r.Priority)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category rule: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) CreateRule(ctx context.Context, rule *CategoryRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO category_rules (id, profile_id, match_pattern, clean_name, category_id, is_recurring, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rule.ID, rule.ProfileID, rule.MatchPattern, rule.CleanName, rule.CategoryID, rule.IsRecurring, rule.Priority)
	if err != nil {
		return fmt.Errorf("insert category rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) ApplyRule(ctx context.Context, profileID uuid.UUID, pattern, cleanName string, categoryID *uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE transactions
		SET merchant = $3, category_id = $4
		WHERE profile_id = $1 AND description ILIKE $2`,
		profileID, likePattern(pattern), cleanName, categoryID)
	if err != nil {
		return 0, fmt.Errorf("apply category rule: %w", err)
	}
	return tag.RowsAffected(), nil
}

// likePattern wraps a bare substring in LIKE wildcards.
func likePattern(p string) string {
	if strings.ContainsAny(p, "%_") {
		return p
	}
	return "%" + p + "%"
}

// MemoryStore keeps rules and merchants in memory. ApplyRule rewrites rows in
// the transaction repository it was given, if any.
type MemoryStore struct {
	mu        sync.RWMutex
	rules     []CategoryRule
	merchants []Merchant
	txs       transaction.Repository
}

func NewMemoryStore(txs transaction.Repository, merchants ...Merchant) *MemoryStore {
	return &MemoryStore{merchants: merchants, txs: txs}
}

func (s *MemoryStore) Rules(_ context.Context, profileID uuid.UUID) ([]CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CategoryRule
	for _, r := range s.rules {
		if r.ProfileID == profileID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Merchants(_ context.Context, profileID uuid.UUID) ([]Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var own, shared []Merchant
	for _, m := range s.merchants {
		switch {
		case m.ProfileID == nil:
			shared = append(shared, m)
		case *m.ProfileID == profileID:
			own = append(own, m)
		}
	}
	return append(own, shared...), nil
}

func (s *MemoryStore) FindRuleByPattern(_ context.Context, profileID uuid.UUID, pattern string) (*CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ProfileID == profileID && r.MatchPattern == pattern {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateRule(_ context.Context, rule *CategoryRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.mu.Lock()
	s.rules = append(s.rules, *rule)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ApplyRule(ctx context.Context, profileID uuid.UUID, pattern, cleanName string, categoryID *uuid.UUID) (int64, error) {
	if s.txs == nil {
		return 0, nil
	}
	txs, err := s.txs.ListByProfile(ctx, profileID)
	if err != nil {
		return 0, err
	}
	needle := normalizePattern(pattern)
	var n int64
	for _, tx := range txs {
		if !strings.Contains(strings.ToUpper(tx.DescriptionOrEmpty()), needle) {
			continue
		}
		name := cleanName
		tx.Merchant = &name
		tx.CategoryID = categoryID
		if err := s.txs.Update(ctx, tx); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
