package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"gofinances/internal/amqp"
	"gofinances/internal/config"
	apphttp "gofinances/internal/http"
	applog "gofinances/internal/log"
	"gofinances/internal/services"
	"gofinances/internal/storage"
	"gofinances/internal/store"
	"gofinances/internal/store/memory"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", applog.FieldError, err)
		os.Exit(1)
	}

	var (
		categories   store.CategoryStore
		transactions store.TransactionStore
	)

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite backend", applog.FieldError, err, "db_path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer func() { _ = repo.Close() }()
		categories, transactions = repo, repo
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	default:
		st := memory.New()
		categories, transactions = st, st
		logger.Info("Initialized memory backend")
	}

	// Event publishing is optional: without an AMQP URL the services run silent.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without event publishing", applog.FieldError, err)
		} else {
			events = client
			defer func() { _ = client.Close() }()
			logger.Info("Connected to AMQP broker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	txService := services.NewTransactionService(categories, transactions, events)
	importService := services.NewImportService(categories, transactions, events)

	srv := apphttp.NewServer(":"+cfg.Port, txService, importService, categories, cfg.UploadDir, cfg.MaxUploadBytes)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting gofinances server",
			applog.FieldOperation, applog.OpStartup, "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
