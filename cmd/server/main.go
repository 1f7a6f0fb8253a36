package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/banking/batch-analysis/internal/analysis"
	"github.com/banking/batch-analysis/internal/api"
	"github.com/banking/batch-analysis/internal/cache"
	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/events"
	"github.com/banking/batch-analysis/internal/metrics"
	"github.com/banking/batch-analysis/internal/patterns"
	"github.com/banking/batch-analysis/internal/pkg/logger"
	"github.com/banking/batch-analysis/internal/store"
	"github.com/banking/batch-analysis/internal/store/postgres"
	"github.com/banking/batch-analysis/internal/telemetry"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	log, err := logger.New(cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, cfg.Telemetry.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server terminated", zap.Error(err))
	}
	log.Info("server exited properly")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// 4. Transaction store
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	txStore := store.NewBreakerStore(postgres.NewTransactionRepository(pool), cfg.Breaker, log)

	// 5. Result store
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	results := cache.NewResultStore(redisClient, cfg.Redis.ResultTTL)

	// 6. Event publisher
	var publisher analysis.EventPublisher
	if cfg.Kafka.Enabled {
		p, err := events.NewPublisher(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Close(); err != nil {
				log.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		publisher = p
	}

	// 7. Metrics
	collector := metrics.NewCollector()
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsMux(collector),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 8. Engine and HTTP server
	engine := analysis.NewEngine(
		txStore,
		results,
		publisher,
		patterns.NewDetector(&cfg.Patterns),
		patterns.NewRiskCalculator(),
		collector,
		&cfg.Analysis,
		log,
	)

	server, err := api.NewServer(engine, cfg, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()
	go func() {
		log.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(server.Shutdown(sctx), metricsServer.Shutdown(sctx))
}

func metricsMux(c *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return mux
}
