package quickentry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/observability"
)

var ErrNoAmount = errors.New("quick entry has no amount")

// Categorizer suggests a merchant name and category for a description.
type Categorizer interface {
	Suggest(ctx context.Context, profileID uuid.UUID, description string) (merchant string, categoryID *uuid.UUID, err error)
}

// Indexer receives newly stored transactions.
type Indexer interface {
	Index(ctx context.Context, txs []*transaction.Transaction) error
	Forget(id uuid.UUID) error
}

// Result is a stored quick entry and the end of its undo window.
type Result struct {
	Transaction *transaction.Transaction
	UndoUntil   time.Time
}

// Service stores quick entries.
type Service struct {
	parser      *Parser
	builder     *transaction.Builder
	repo        transaction.Repository
	undo        *UndoTracker
	categorizer Categorizer // optional
	indexer     Indexer     // optional
	logger      *slog.Logger
}

func NewService(repo transaction.Repository, undo *UndoTracker, defaultCurrency string, logger *slog.Logger) *Service {
	return &Service{
		parser:  NewParser(defaultCurrency),
		builder: transaction.NewBuilder(),
		repo:    repo,
		undo:    undo,
		logger:  logger,
	}
}

func (s *Service) WithCategorizer(c Categorizer) *Service {
	s.categorizer = c
	return s
}

func (s *Service) WithIndexer(i Indexer) *Service {
	s.indexer = i
	return s
}

// Add parses text and stores it as a confirmed entry in target.
func (s *Service) Add(ctx context.Context, text string, target transaction.Target, now time.Time) (*Result, error) {
	e := s.parser.Parse(text, now)
	if e.Err != nil {
		return nil, e.Err
	}
	if e.AmountMinor <= 0 {
		return nil, ErrNoAmount
	}

	merchant := e.Description
	var category *uuid.UUID
	if s.categorizer != nil && e.Description != "" {
		m, c, err := s.categorizer.Suggest(ctx, target.ProfileID, e.Description)
		switch {
		case err != nil:
			s.logger.Warn("categorization failed for quick entry", "error", err)
		case m != "":
			merchant, category = m, c
		default:
			category = c
		}
	}

	tx := s.builder.Manual(target, e.Date, e.AmountMinor, e.Currency, e.Direction, merchant, e.Description, category, nil)
	tx.EntrySource = transaction.SourceQuickEntry
	if _, err := s.repo.Insert(ctx, tx, transaction.Strict); err != nil {
		return nil, fmt.Errorf("failed to store quick entry: %w", err)
	}
	observability.Inserts.WithLabelValues(string(tx.EntrySource), observability.OutcomeImported).Inc()

	if s.indexer != nil {
		if err := s.indexer.Index(ctx, []*transaction.Transaction{tx}); err != nil {
			s.logger.Warn("failed to index quick entry", "error", err)
		}
	}

	until := s.undo.Record(tx.ID, now)
	s.logger.Info("quick entry stored",
		"transaction_id", tx.ID,
		"amount_minor", tx.AmountMinor,
		"currency", tx.Currency,
		"undo_until", until)
	return &Result{Transaction: tx, UndoUntil: until}, nil
}

// Undo removes the most recent quick entry while its window is open.
func (s *Service) Undo(ctx context.Context) (uuid.UUID, error) {
	id, err := s.undo.UndoLast(ctx, s.repo)
	if err != nil {
		return id, err
	}
	if s.indexer != nil {
		if err := s.indexer.Forget(id); err != nil {
			s.logger.Warn("failed to drop undone entry from index", "error", err)
		}
	}
	s.logger.Info("quick entry undone", "transaction_id", id)
	return id, nil
}
