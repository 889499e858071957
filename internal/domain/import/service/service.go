// Package service provides the import orchestration logic: detect the
// statement dialect, parse it, enrich rows, build records and store them with
// insert-or-ignore so that re-importing a file is harmless.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/parser"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/observability"
)

// ErrUnsupportedFormat is returned when the statement dialect is unknown or
// its header cannot be read.
var ErrUnsupportedFormat = errors.New("unsupported statement format")

const defaultBatchSize = 500

// CategorizationService defines the interface for transaction categorization
type CategorizationService interface {
	CategorizeBatch(ctx context.Context, profileID uuid.UUID, descriptions []string) ([]*CategorizationResult, error)
}

// CategorizationResult holds the result of categorizing a transaction.
// Matched is false when only a cleaned name could be produced.
type CategorizationResult struct {
	CleanMerchantName string
	CategoryID        *uuid.UUID
	Matched           bool
}

// Indexer receives every newly stored transaction.
type Indexer interface {
	Index(ctx context.Context, txs []*transaction.Transaction) error
}

// ImportResult summarises one import.
type ImportResult struct {
	Format      sniffer.Format
	FormatLabel string
	Fingerprint string
	Parsed      int
	Inserted    int
	Duplicates  int
	Skipped     int
	Failed      int
	Errors      []string
}

// ImportService orchestrates statement imports.
type ImportService struct {
	repo       transaction.Repository
	builder    *transaction.Builder
	opts       parser.Options
	batchSize  int
	catService CategorizationService // optional
	indexer    Indexer               // optional
	logger     *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(repo transaction.Repository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:      repo,
		builder:   transaction.NewBuilder(),
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// WithCategorizationService adds categorization support to the import service
func (s *ImportService) WithCategorizationService(catService CategorizationService) *ImportService {
	s.catService = catService
	return s
}

// WithIndexer feeds stored rows to a search index.
func (s *ImportService) WithIndexer(indexer Indexer) *ImportService {
	s.indexer = indexer
	return s
}

func (s *ImportService) WithParserOptions(opts parser.Options) *ImportService {
	s.opts = opts
	return s
}

func (s *ImportService) WithBuilder(b *transaction.Builder) *ImportService {
	s.builder = b
	return s
}

func (s *ImportService) WithBatchSize(n int) *ImportService {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// ImportFile decodes raw statement bytes and imports them into target.
func (s *ImportService) ImportFile(ctx context.Context, raw []byte, target transaction.Target) (*ImportResult, error) {
	text, format, err := sniffer.DecodeStatement(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return s.ImportFormat(ctx, format, text, target)
}

// ImportText detects the dialect of already-decoded text and imports it.
func (s *ImportService) ImportText(ctx context.Context, text string, target transaction.Target) (*ImportResult, error) {
	return s.ImportFormat(ctx, sniffer.DetectText(text), text, target)
}

// ImportFormat imports text as the given dialect. Row failures are reported in
// the result; only an unreadable statement, a storage outage or a cancelled
// context return an error.
func (s *ImportService) ImportFormat(ctx context.Context, format sniffer.Format, text string, target transaction.Target) (res *ImportResult, err error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, "import.statement",
		attribute.String("format", format.String()),
		attribute.String("profile_id", target.ProfileID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if format == sniffer.FormatUnknown {
		return nil, fmt.Errorf("%w: no known header found", ErrUnsupportedFormat)
	}

	parsed := parser.Import(format, text, s.opts)
	res = &ImportResult{
		Format:      format,
		FormatLabel: parsed.FormatLabel,
		Fingerprint: parsed.Fingerprint,
		Parsed:      len(parsed.Transactions),
		Skipped:     parsed.SkippedCount,
		Failed:      parsed.ErrorCount,
		Errors:      make([]string, 0, len(parsed.Errors)),
	}
	for _, e := range parsed.Errors {
		res.Errors = append(res.Errors, e.Error())
	}

	if len(parsed.Transactions) == 0 && isStructural(parsed) {
		return res, fmt.Errorf("%w: %s", ErrUnsupportedFormat, parsed.Errors[0].Message)
	}

	defer func() {
		observability.ObserveImport(format.String(), started, res.Inserted, res.Duplicates, res.Skipped, res.Failed)
		s.logger.Info("statement imported",
			"format", res.FormatLabel,
			"fingerprint", res.Fingerprint,
			"parsed", res.Parsed,
			"inserted", res.Inserted,
			"duplicates", res.Duplicates,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"duration", time.Since(started))
	}()

	for start := 0; start < len(parsed.Transactions); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+s.batchSize, len(parsed.Transactions))
		if err := s.flush(ctx, parsed.Transactions[start:end], target, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// isStructural reports whether the parser rejected the header.
func isStructural(r *parser.Result) bool {
	return len(r.Errors) == 1 && r.Errors[0].Column == "header"
}

// flush builds, enriches and stores one batch.
func (s *ImportService) flush(ctx context.Context, batch []transaction.ParsedTransaction, target transaction.Target, res *ImportResult) error {
	txs := make([]*transaction.Transaction, len(batch))
	for i, p := range batch {
		txs[i] = s.builder.FromParsed(p, target)
	}
	s.enrichBatch(ctx, target.ProfileID, txs)

	stored, err := s.repo.InsertBatch(ctx, txs, transaction.IgnoreConflicts)
	res.Inserted += stored.Inserted
	res.Duplicates += stored.Duplicates
	res.Failed += stored.Failed
	for _, e := range stored.Errors {
		if !errors.Is(e, transaction.ErrDuplicateExternalID) {
			res.Errors = append(res.Errors, e.Error())
		}
	}
	observability.Inserts.WithLabelValues(string(transaction.SourceCSV), observability.OutcomeImported).Add(float64(stored.Inserted))
	observability.Inserts.WithLabelValues(string(transaction.SourceCSV), observability.OutcomeDuplicate).Add(float64(stored.Duplicates))
	if err != nil {
		return fmt.Errorf("failed to insert transactions: %w", err)
	}

	if s.indexer != nil && len(stored.InsertedIDs) > 0 {
		if err := s.indexer.Index(ctx, insertedOnly(txs, stored.InsertedIDs)); err != nil {
			s.logger.Warn("failed to index imported transactions", "error", err)
		}
	}
	return nil
}

func insertedOnly(txs []*transaction.Transaction, ids []uuid.UUID) []*transaction.Transaction {
	keep := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	out := make([]*transaction.Transaction, 0, len(ids))
	for _, tx := range txs {
		if _, ok := keep[tx.ID]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// enrichBatch calls the categorization service to fill category and merchant
func (s *ImportService) enrichBatch(ctx context.Context, profileID uuid.UUID, batch []*transaction.Transaction) {
	if s.catService == nil || len(batch) == 0 {
		return
	}

	descriptions := make([]string, len(batch))
	for i, tx := range batch {
		descriptions[i] = tx.DescriptionOrEmpty()
	}

	results, err := s.catService.CategorizeBatch(ctx, profileID, descriptions)
	if err != nil {
		s.logger.Warn("categorization failed, using raw descriptions", "error", err)
		return
	}

	for i, result := range results {
		if i >= len(batch) || result == nil || !result.Matched {
			continue
		}
		batch[i].CategoryID = result.CategoryID
		if result.CleanMerchantName != "" {
			name := result.CleanMerchantName
			batch[i].Merchant = &name
		}
	}
}
