package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	checkout_http "checkout/internal/handler/http/checkout"
	kafka_infra "checkout/internal/infrastructure/kafka"
	"checkout/internal/outbox"
	"checkout/internal/reconcile"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API together with the outbox processor and reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
	return cmd
}

func runServe(parent context.Context, runMigrations bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, runMigrations)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg, logger := app.cfg, app.logger
	logger.Info("Checkout Service starting...")

	var workers sync.WaitGroup

	if cfg.OutboxEnabled {
		kafkaBrokers := cfg.GetKafkaBrokers()
		topicsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers, []string{cfg.KafkaPurchaseEventsTopic}, logger)
		cancel()
		if err != nil {
			logger.Error("Failed to ensure Kafka topics", zap.Error(err))
			return err
		}

		kafkaProducer := kafka_infra.NewProducer(kafkaBrokers, logger.With(zap.String("component", "KafkaProducer")))
		defer kafkaProducer.Close()

		outboxProcessor := outbox.NewProcessor(
			app.db,
			app.outboxRepo,
			kafkaProducer,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			cfg.OutboxBatchSize,
			logger.With(zap.String("component", "OutboxProcessor")),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			outboxProcessor.Start(ctx)
		}()
	} else {
		logger.Info("Outbox processor disabled.")
	}

	if cfg.ReconcileEnabled {
		reconciler := reconcile.NewReconciler(
			app.service,
			cfg.ReconcileInterval,
			cfg.ReconcileMinAge,
			cfg.ReconcileBatchSize,
			logger.With(zap.String("component", "Reconciler")),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			reconciler.Start(ctx)
		}()
	} else {
		logger.Info("Reconciler disabled.")
	}

	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           checkout_http.NewRouter(app.service, cfg.CORSAllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
			workers.Wait()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down.")
	}

	workers.Wait()
	logger.Info("Application gracefully shut down.")
	return nil
}
