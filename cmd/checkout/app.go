package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"checkout/internal/app/checkout"
	"checkout/internal/config"
	"checkout/internal/gateway/esewa"
	"checkout/internal/infrastructure/database"
	"checkout/internal/repository/items_repo"
	"checkout/internal/repository/outbox_repo"
	"checkout/internal/repository/payments_repo"
	"checkout/internal/repository/purchases_repo"
)

const (
	dbMaxRetries = 10
	dbRetryDelay = 5 * time.Second
)

type application struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	outboxRepo outbox_repo.OutboxRepository
	service    checkout.CheckoutService
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = atomicLevel
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	return zapConfig.Build()
}

// loadConfigAndLogger is the part of startup every subcommand shares.
func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return cfg, logger, nil
}

func newApplication(ctx context.Context, runMigrations bool) (*application, error) {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return nil, err
	}

	logger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(ctx, cfg.DatabaseURL, dbMaxRetries, dbRetryDelay, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	if runMigrations {
		logger.Info("Running database migrations...")
		if err := database.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL, logger); err != nil {
			db.Close()
			logger.Sync()
			return nil, err
		}
	}

	gateway := esewa.NewGateway(esewa.Config{
		ProductCode: cfg.Esewa.ProductCode,
		SecretKey:   cfg.Esewa.SecretKey,
		PaymentURL:  cfg.Esewa.PaymentURL,
		SuccessURL:  cfg.Esewa.SuccessURL,
		FailureURL:  cfg.Esewa.FailureURL,
	})
	statusClient := esewa.NewStatusClient(
		cfg.Esewa.StatusURL,
		cfg.Esewa.ProductCode,
		cfg.Esewa.StatusTimeout,
		cfg.Esewa.StatusRPS,
		logger.With(zap.String("component", "EsewaStatusClient")),
	)

	outboxRepository := outbox_repo.NewOutboxRepository()
	service := checkout.NewCheckoutService(
		db,
		items_repo.NewItemRepository(),
		purchases_repo.NewPurchaseRepository(),
		payments_repo.NewPaymentRepository(),
		outboxRepository,
		gateway,
		statusClient,
		checkout.Options{
			EventsTopic:  cfg.KafkaPurchaseEventsTopic,
			VerifyStatus: cfg.Esewa.VerifyStatus,
		},
		logger.With(zap.String("component", "CheckoutService")),
	)
	logger.Info("Checkout Service initialized.")

	return &application{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		outboxRepo: outboxRepository,
		service:    service,
	}, nil
}

func (a *application) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database connection", zap.Error(err))
	} else {
		a.logger.Info("Database connection closed.")
	}
	a.logger.Sync()
}
