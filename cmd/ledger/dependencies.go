package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/pocket-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/insights"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/notification"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/quickentry"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/reference"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/search"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/config"
	"github.com/FACorreiaa/pocket-ledger/pkg/cron"
	"github.com/FACorreiaa/pocket-ledger/pkg/db"
	"github.com/FACorreiaa/pocket-ledger/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Location *time.Location

	// Repositories
	TransactionRepo    transaction.Repository
	ReferenceRepo      reference.Repository
	CategorizationRepo categorization.Store

	// Services
	CategorizationService *categorization.Service
	ImportService         *importservice.ImportService
	CaptureSwitch         *notification.Switch
	CaptureService        *notification.CaptureService
	UndoTracker           *quickentry.UndoTracker
	QuickEntryService     *quickentry.Service
	InsightsService       *insights.Service
	SearchIndex           *search.Index
	SearchService         *search.Service
	Scheduler             *cron.Scheduler
	StatementArchive      storage.Archive // nil when archiving is off
}

// InitDependencies initializes all application dependencies against Postgres
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps, err := newDependencies(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize services
	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initMemoryDependencies wires every service over in-memory storage.
func initMemoryDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps, err := newDependencies(cfg, logger)
	if err != nil {
		return nil, err
	}
	txRepo := transaction.NewMemoryRepository()
	deps.TransactionRepo = txRepo
	deps.ReferenceRepo = reference.NewMemoryRepository()
	deps.CategorizationRepo = categorization.NewMemoryStore(txRepo)

	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	return deps, nil
}

func newDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}
	return &Dependencies{Config: cfg, Logger: logger, Location: loc}, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: d.Config.Database.MaxConnLifetime,
		MaxConnIdleTime: d.Config.Database.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.TransactionRepo = transaction.NewPostgresRepository(d.DB.Pool)
	d.ReferenceRepo = reference.NewPostgresRepository(d.DB.Pool)
	d.CategorizationRepo = categorization.NewPostgresStore(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	cfg := d.Config
	currency := cfg.Ledger.DefaultCurrency

	// Search index, rebuilt from storage when it lives in memory
	index, err := search.Open(cfg.Search.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	d.SearchIndex = index
	d.SearchService = search.NewService(index, d.TransactionRepo, d.Logger)
	if cfg.Search.IndexPath == "" {
		if _, err := d.SearchService.Reindex(ctx, time.Time{}); err != nil {
			return err
		}
	}

	// Categorization service for transaction enrichment
	d.CategorizationService = categorization.NewService(d.CategorizationRepo, d.Logger).
		WithFuzzyThreshold(cfg.Import.FuzzyThreshold)
	adapter := newCategorizationAdapter(d.CategorizationService)

	// Import service with categorization and indexing wired in
	d.ImportService = importservice.NewImportService(d.TransactionRepo, d.Logger).
		WithParserOptions(parser.Options{Location: d.Location, Currency: currency}).
		WithBatchSize(cfg.Import.BatchSize).
		WithIndexer(d.SearchService)
	if cfg.Import.Categorize {
		d.ImportService.WithCategorizationService(adapter)
	}

	// Notification capture, gated by the runtime switch
	d.CaptureSwitch = notification.NewSwitch(cfg.Capture.Enabled, cfg.Capture.AllowList)
	d.CaptureService = notification.NewCaptureService(d.TransactionRepo, d.CaptureSwitch, currency, d.Logger).
		WithIndexer(d.SearchService)

	// Quick entry with undo
	d.UndoTracker = quickentry.NewUndoTracker(cfg.QuickEntry.UndoWindow)
	d.QuickEntryService = quickentry.NewService(d.TransactionRepo, d.UndoTracker, currency, d.Logger).
		WithCategorizer(adapter).
		WithIndexer(d.SearchService)

	if cfg.Import.ArchivePath != "" {
		archive, err := storage.NewLocalArchive(cfg.Import.ArchivePath)
		if err != nil {
			return err
		}
		d.StatementArchive = archive
	}

	d.InsightsService = insights.NewService(d.TransactionRepo, d.ReferenceRepo, d.Location, currency, d.Logger)

	d.Scheduler = cron.NewScheduler(cron.Jobs{
		UndoExpiry:      cfg.Scheduler.UndoExpirySpec,
		Reindex:         cfg.Scheduler.ReindexSpec,
		ReindexLookback: cfg.Scheduler.ReindexLookback,
	}, d.UndoTracker, d.SearchService, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// Lookups loads the reference tables.
func (d *Dependencies) Lookups(ctx context.Context) (*reference.Lookups, error) {
	return reference.LoadLookups(ctx, d.ReferenceRepo)
}

// Cleanup releases resources
func (d *Dependencies) Cleanup() {
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close search index", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
