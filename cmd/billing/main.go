package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	app_billing "github.com/henriquesd/dev-store/internal/billing/app/billing"
	"github.com/henriquesd/dev-store/internal/billing/gateway"
	"github.com/henriquesd/dev-store/internal/billing/gateway/cardgateway"
	http_billing "github.com/henriquesd/dev-store/internal/billing/handler/http/billing"
	kafka_handler "github.com/henriquesd/dev-store/internal/billing/handler/kafka"
	postgres_transaction_repo "github.com/henriquesd/dev-store/internal/billing/repository/transaction_repo/postgres"
	"github.com/henriquesd/dev-store/internal/bus/kafkabus"
	"github.com/henriquesd/dev-store/internal/config"
	"github.com/henriquesd/dev-store/internal/infrastructure/database"
	infra_kafka "github.com/henriquesd/dev-store/internal/infrastructure/kafka"
	"github.com/henriquesd/dev-store/internal/metrics"
)

func main() {
	cfg, err := config.LoadBillingConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Billing Service starting...")

	appLogger.Info("Waiting for database to be available...")
	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(cfg.DB)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}
	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	migrateDSN := "postgres://" + config.MigrationDSN(cfg.DB)
	m, err := migrate.New("file://migrations/billing", migrateDSN)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	kafkaProducer := infra_kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	transactionRepository := postgres_transaction_repo.NewTransactionRepository(db, appLogger)
	cardGateway := gateway.WithBreaker(
		cardgateway.New(appLogger.With(zap.String("component", "CardGateway"))),
		appLogger,
	)
	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)
	billingService := app_billing.NewBillingService(transactionRepository, cardGateway, billingMetrics, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	replier := kafkabus.NewReplier(kafkaProducer, appLogger.With(zap.String("component", "PaymentReplier")))
	requestHandler := kafka_handler.NewPaymentRequestHandler(billingService, replier, appLogger)
	requestConsumer := infra_kafka.NewConsumer(
		cfg.GetKafkaBrokers(),
		cfg.KafkaRequestTopic,
		cfg.KafkaRequestGroup,
		requestHandler.HandleMessage,
		appLogger,
	)
	go func() {
		defer requestConsumer.Close()
		if err := requestConsumer.Consume(ctx); err != nil && ctx.Err() == nil {
			appLogger.Fatal("Payment request consumer failed", zap.Error(err))
		}
	}()
	appLogger.Info("Payment request consumer started.")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	http_billing.RegisterRoutes(r, billingService, appLogger)
	r.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Billing Service started", zap.String("address", server.Addr))

	<-ctx.Done()

	appLogger.Info("Shutting down Billing Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Billing Service graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("Billing Service stopped.")
}
