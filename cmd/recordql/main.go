package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"recordql/internal/config"
	"recordql/internal/dbexec"
	"recordql/internal/logging"
	"recordql/internal/observability"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("recordql error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	pflag.Bool("version", false, "Print version and exit")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("recordql %s (%s)\n", Version, Commit)
		return nil
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	slog.SetDefault(logger.Logger)

	var meterProvider *observability.MeterProvider
	if cfg.Observability.MetricsEnabled {
		meterProvider, err = observability.InitMeterProvider()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = meterProvider.Shutdown(ctx, logger.Logger)
		}()
		if _, err := observability.InitServiceMetrics(); err != nil {
			return fmt.Errorf("failed to initialize service metrics: %w", err)
		}
	}

	database, err := cfg.Database.EffectiveDatabaseName()
	if err != nil {
		return err
	}
	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("database", database),
	)

	db, err := connectWithRetry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("database connection established")

	if !cfg.Observability.MetricsEnabled {
		// Health check mode: connectivity verified, nothing to serve.
		logger.Info("health check passed")
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(db, 2*time.Second))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening",
			slog.String("address", srv.Addr),
			slog.String("metrics_endpoint", "/metrics"),
			slog.String("health_endpoint", "/health"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("metrics server error: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}

	logger.Info("stopped gracefully")
	return nil
}

// connectWithRetry opens the store handle, retrying with exponential backoff
// until database.connection_timeout elapses. A zero timeout fails on the
// first error.
func connectWithRetry(cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	opts := dbexec.OpenOptions{
		Instrumented: cfg.Observability.MetricsEnabled,
		MaxOpenConns: cfg.Database.Pool.MaxOpen,
		MaxIdleConns: cfg.Database.Pool.MaxIdle,
		MaxLifetime:  cfg.Database.Pool.MaxLifetime,
	}
	dsn := cfg.Database.DSN()
	deadline := time.Now().Add(cfg.Database.ConnectionTimeout)
	interval := cfg.Database.ConnectionRetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	attempt := 0
	for {
		attempt++
		db, err := dbexec.Open(context.Background(), dsn, opts)
		if err == nil {
			if attempt > 1 {
				logger.Info("database ready", slog.Int("attempts", attempt))
			}
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database not available after %v: %w", cfg.Database.ConnectionTimeout, err)
		}
		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		time.Sleep(interval)

		// Exponential backoff, capped at 30s
		interval = min(interval*2, 30*time.Second)
	}
}

// healthHandler reports database connectivity.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
