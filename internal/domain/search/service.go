package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Service answers free-text queries from the index and hydrates hits from
// the repository, which stays the source of truth.
type Service struct {
	index  *Index
	repo   transaction.Repository
	logger *slog.Logger
	clock  func() time.Time
}

func NewService(index *Index, repo transaction.Repository, logger *slog.Logger) *Service {
	return &Service{index: index, repo: repo, logger: logger, clock: time.Now}
}

// Index adds freshly stored transactions to the index.
func (s *Service) Index(ctx context.Context, txs []*transaction.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return s.index.IndexTransactions(ctx, txs)
}

// Forget removes a deleted transaction from the index.
func (s *Service) Forget(id uuid.UUID) error {
	return s.index.Remove(id)
}

// Reindex loads every transaction that occurred since the given time and
// indexes it. It returns the number of documents written.
func (s *Service) Reindex(ctx context.Context, since time.Time) (int, error) {
	txs, err := s.repo.ListByDateRange(ctx, since, s.clock(), nil)
	if err != nil {
		return 0, fmt.Errorf("load transactions for reindex: %w", err)
	}
	if err := s.index.IndexTransactions(ctx, txs); err != nil {
		return 0, err
	}
	s.logger.Info("search index rebuilt",
		slog.Int("documents", len(txs)),
		slog.Time("since", since))
	return len(txs), nil
}

// Search returns matching transactions in relevance order. Hits whose row
// has since been deleted are dropped from the index.
func (s *Service) Search(ctx context.Context, q string, limit int, profileID *uuid.UUID) ([]*transaction.Transaction, error) {
	hits, err := s.index.Search(q, limit, profileID)
	if err != nil {
		return nil, err
	}

	out := make([]*transaction.Transaction, 0, len(hits))
	for _, h := range hits {
		tx, err := s.repo.GetByID(ctx, h.ID)
		if errors.Is(err, transaction.ErrNotFound) {
			if err := s.index.Remove(h.ID); err != nil {
				s.logger.Warn("failed to drop stale search document",
					slog.String("id", h.ID.String()),
					slog.Any("error", err))
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
