package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Ledger        LedgerConfig
	Import        ImportConfig
	Capture       CaptureConfig
	QuickEntry    QuickEntryConfig
	Search        SearchConfig
	Observability ObservabilityConfig
	Scheduler     SchedulerConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type LedgerConfig struct {
	DefaultCurrency string
	Timezone        string
}

type ImportConfig struct {
	BatchSize      int
	Categorize     bool
	FuzzyThreshold int
	// ArchivePath keeps imported statement files; empty disables archiving.
	ArchivePath string
}

type CaptureConfig struct {
	Enabled   bool
	AllowList []string
}

type QuickEntryConfig struct {
	UndoWindow time.Duration
}

type SearchConfig struct {
	// IndexPath is the on-disk bleve index; empty keeps the index in memory.
	IndexPath string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type SchedulerConfig struct {
	Enabled         bool
	UndoExpirySpec  string
	ReindexSpec     string
	ReindexLookback time.Duration
}

// LoadEnvFiles reads .env style files into the environment. Missing files
// are skipped; variables already set win.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnvAsInt("POSTGRES_PORT", 5432),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:        getEnv("POSTGRES_DB", "ledger"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			MaxConnLifetime: getEnvAsDuration("POSTGRES_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("POSTGRES_MAX_CONN_IDLE_TIME", 10*time.Minute),
		},
		Ledger: LedgerConfig{
			DefaultCurrency: strings.ToUpper(getEnv("LEDGER_DEFAULT_CURRENCY", "EUR")),
			Timezone:        getEnv("LEDGER_TIMEZONE", "Local"),
		},
		Import: ImportConfig{
			BatchSize:      getEnvAsInt("IMPORT_BATCH_SIZE", 500),
			Categorize:     getEnvAsBool("IMPORT_CATEGORIZE", true),
			FuzzyThreshold: getEnvAsInt("IMPORT_FUZZY_THRESHOLD", 80),
			ArchivePath:    getEnv("IMPORT_ARCHIVE_PATH", ""),
		},
		Capture: CaptureConfig{
			Enabled:   getEnvAsBool("CAPTURE_ENABLED", false),
			AllowList: getEnvAsList("CAPTURE_ALLOW_LIST", nil),
		},
		QuickEntry: QuickEntryConfig{
			UndoWindow: getEnvAsDuration("QUICK_ENTRY_UNDO_WINDOW", 30*time.Second),
		},
		Search: SearchConfig{
			IndexPath: getEnv("SEARCH_INDEX_PATH", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvAsBool("SCHEDULER_ENABLED", true),
			UndoExpirySpec:  getEnv("SCHEDULER_UNDO_EXPIRY", "@every 1m"),
			ReindexSpec:     getEnv("SCHEDULER_REINDEX", "0 3 * * *"),
			ReindexLookback: getEnvAsDuration("SCHEDULER_REINDEX_LOOKBACK", 0),
		},
	}

	if len(cfg.Ledger.DefaultCurrency) != 3 {
		return nil, fmt.Errorf("LEDGER_DEFAULT_CURRENCY must be an ISO-4217 code, got %q", cfg.Ledger.DefaultCurrency)
	}
	if cfg.Import.BatchSize <= 0 {
		return nil, errors.New("IMPORT_BATCH_SIZE must be positive")
	}
	if cfg.QuickEntry.UndoWindow <= 0 {
		return nil, errors.New("QUICK_ENTRY_UNDO_WINDOW must be positive")
	}
	if _, err := cfg.Ledger.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the ledger timezone.
func (c *LedgerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
