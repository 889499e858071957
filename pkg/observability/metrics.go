// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing helpers shared by the ledger services.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
	OutcomeParsed    = "parsed"
	OutcomeUnparsed  = "placeholder"
	OutcomeGated     = "gated"
)

var (
	// ImportRows counts statement rows by dialect and outcome.
	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_import_rows_total",
			Help: "Statement rows processed, by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	// Notifications counts captured notifications by app and outcome.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_notifications_total",
			Help: "Payment notifications processed, by app and outcome",
		},
		[]string{"app", "outcome"},
	)

	// Inserts counts storage inserts by entry source and outcome.
	Inserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_inserts_total",
			Help: "Transaction inserts, by entry source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// ImportDuration tracks end-to-end statement import time.
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_import_duration_seconds",
			Help:    "Statement import duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)
)

// ObserveImport records one finished import.
func ObserveImport(format string, started time.Time, imported, duplicates, skipped, failed int) {
	ImportRows.WithLabelValues(format, OutcomeImported).Add(float64(imported))
	ImportRows.WithLabelValues(format, OutcomeDuplicate).Add(float64(duplicates))
	ImportRows.WithLabelValues(format, OutcomeSkipped).Add(float64(skipped))
	ImportRows.WithLabelValues(format, OutcomeError).Add(float64(failed))
	ImportDuration.WithLabelValues(format).Observe(time.Since(started).Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ServeMetrics serves /metrics on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
