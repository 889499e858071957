package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/observability"
)

var (
	ErrCaptureDisabled = errors.New("notification capture is disabled")
	ErrAppNotAllowed   = errors.New("notification app is not allowed")
)

// Event is a notification as delivered by the OS.
type Event struct {
	Package  string
	Text     string
	PostedAt time.Time
}

// Settings is consulted on every event, so toggling capture takes effect
// without a restart.
type Settings interface {
	Enabled() bool
	Allowed(pkg string) bool
}

// Switch is a concurrency-safe Settings backed by memory.
type Switch struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	allowed map[string]struct{}
}

func NewSwitch(enabled bool, allowed []string) *Switch {
	s := &Switch{}
	s.enabled.Store(enabled)
	s.SetAllowed(allowed)
	return s
}

func (s *Switch) Enabled() bool { return s.enabled.Load() }

func (s *Switch) SetEnabled(v bool) { s.enabled.Store(v) }

func (s *Switch) Allowed(pkg string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[pkg]
	return ok
}

// SetAllowed replaces the allow-list. An empty list allows every supported
// app.
func (s *Switch) SetAllowed(pkgs []string) {
	allowed := make(map[string]struct{})
	for _, p := range pkgs {
		if p = strings.TrimSpace(p); p != "" {
			allowed[p] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		for _, a := range Apps() {
			allowed[a.Package] = struct{}{}
		}
	}
	s.mu.Lock()
	s.allowed = allowed
	s.mu.Unlock()
}

// Outcome describes what a captured event turned into.
type Outcome struct {
	Transaction *transaction.Transaction
	// Parsed is false when only a placeholder could be recorded.
	Parsed bool
	// Inserted is false when the event had been captured before.
	Inserted bool
	// Ignored is set when the text does not mention the app at all.
	Ignored bool
}

// Indexer receives newly stored transactions.
type Indexer interface {
	Index(ctx context.Context, txs []*transaction.Transaction) error
}

// CaptureService turns notification events into ledger rows.
type CaptureService struct {
	parser          *Parser
	builder         *transaction.Builder
	repo            transaction.Repository
	settings        Settings
	indexer         Indexer
	defaultCurrency string
	logger          *slog.Logger
}

func NewCaptureService(repo transaction.Repository, settings Settings, defaultCurrency string, logger *slog.Logger) *CaptureService {
	return &CaptureService{
		parser:          NewParser(),
		builder:         transaction.NewBuilder(),
		repo:            repo,
		settings:        settings,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

func (s *CaptureService) WithIndexer(indexer Indexer) *CaptureService {
	s.indexer = indexer
	return s
}

func (s *CaptureService) WithBuilder(b *transaction.Builder) *CaptureService {
	s.builder = b
	return s
}

// Capture records ev into target. A notification whose amount cannot be read
// still produces an unconfirmed placeholder so the event is not lost.
func (s *CaptureService) Capture(ctx context.Context, ev Event, target transaction.Target) (out *Outcome, err error) {
	ctx, span := observability.StartSpan(ctx, "notification.capture",
		attribute.String("package", ev.Package))
	defer func() { observability.EndSpan(span, err) }()

	if !s.settings.Enabled() {
		observability.Notifications.WithLabelValues(ev.Package, observability.OutcomeGated).Inc()
		return nil, ErrCaptureDisabled
	}
	app, ok := AppByPackage(ev.Package)
	if !ok || !s.settings.Allowed(ev.Package) {
		observability.Notifications.WithLabelValues(ev.Package, observability.OutcomeGated).Inc()
		return nil, fmt.Errorf("%w: %s", ErrAppNotAllowed, ev.Package)
	}
	if !app.HasMarker(ev.Text) {
		observability.Notifications.WithLabelValues(app.Name, observability.OutcomeSkipped).Inc()
		return &Outcome{Ignored: true}, nil
	}

	out = &Outcome{}
	if r := s.parser.Parse(app, ev.Text); r != nil {
		out.Parsed = true
		out.Transaction = s.builder.FromObserved(transaction.Observed{
			OccurredAt:  ev.PostedAt,
			AmountMinor: r.AmountMinor,
			Currency:    s.currencyOr(r.Currency),
			Direction:   r.Direction,
			Merchant:    r.Merchant,
			Description: strings.TrimSpace(ev.Text),
			ExternalID:  transaction.NotificationExternalID(ev.PostedAt, r.AmountMinor, app.Package, ev.Text),
			EntrySource: app.EntrySource(),
		}, target)
	} else {
		extID := transaction.NotificationExternalID(ev.PostedAt, 0, app.Package, ev.Text)
		out.Transaction = s.builder.Placeholder(app.EntrySource(), ev.Text, extID, s.defaultCurrency, ev.PostedAt, target)
	}

	out.Inserted, err = s.repo.Insert(ctx, out.Transaction, transaction.IgnoreConflicts)
	if err != nil {
		observability.Notifications.WithLabelValues(app.Name, observability.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	parseOutcome := observability.OutcomeParsed
	if !out.Parsed {
		parseOutcome = observability.OutcomeUnparsed
	}
	observability.Notifications.WithLabelValues(app.Name, parseOutcome).Inc()
	insertOutcome := observability.OutcomeImported
	if !out.Inserted {
		insertOutcome = observability.OutcomeDuplicate
	}
	observability.Inserts.WithLabelValues(string(app.EntrySource()), insertOutcome).Inc()

	if out.Inserted && s.indexer != nil {
		if err := s.indexer.Index(ctx, []*transaction.Transaction{out.Transaction}); err != nil {
			s.logger.Warn("failed to index captured notification", "error", err)
		}
	}

	s.logger.Info("notification captured",
		"app", app.Name,
		"parsed", out.Parsed,
		"inserted", out.Inserted,
		"transaction_id", out.Transaction.ID)
	return out, nil
}

func (s *CaptureService) currencyOr(code string) string {
	if code == "" {
		return s.defaultCurrency
	}
	return code
}
