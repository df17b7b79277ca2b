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
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/henriquesd/dev-store/internal/bus/kafkabus"
	"github.com/henriquesd/dev-store/internal/config"
	"github.com/henriquesd/dev-store/internal/infrastructure/database"
	infra_kafka "github.com/henriquesd/dev-store/internal/infrastructure/kafka"
	"github.com/henriquesd/dev-store/internal/metrics"
	"github.com/henriquesd/dev-store/internal/order/app/checkout"
	"github.com/henriquesd/dev-store/internal/order/cache"
	http_orders "github.com/henriquesd/dev-store/internal/order/handler/http/orders"
	postgres_order_repo "github.com/henriquesd/dev-store/internal/order/repository/order_repo/postgres"
	postgres_voucher_repo "github.com/henriquesd/dev-store/internal/order/repository/voucher_repo/postgres"
	"github.com/henriquesd/dev-store/internal/outbox"
	postgres_outbox_repo "github.com/henriquesd/dev-store/internal/outbox/postgres"
)

func main() {
	cfg, err := config.LoadOrdersConfig()
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
	appLogger.Info("Orders Service starting...")

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
	m, err := migrate.New("file://migrations/orders", migrateDSN)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	voucherCache := cache.NewRedisCache(redisClient)

	kafkaProducer := infra_kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paymentClient := kafkabus.NewRequester(
		cfg.GetKafkaBrokers(),
		cfg.KafkaRequestTopic,
		cfg.KafkaReplyTopic,
		cfg.PaymentRequestTimeout,
		appLogger.With(zap.String("component", "PaymentRequester")),
	)
	defer paymentClient.Close()
	paymentClient.Start(ctx, cfg.GetKafkaBrokers(), cfg.KafkaReplyGroup)
	appLogger.Info("Payment request/reply client started.")

	voucherRepository := postgres_voucher_repo.NewVoucherRepository(db, appLogger)
	outboxRepository := postgres_outbox_repo.NewOutboxRepository(db, appLogger)
	orderRepository := postgres_order_repo.NewOrderRepository(db, voucherRepository, outboxRepository, appLogger)

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	checkoutService := checkout.NewCheckoutService(
		orderRepository,
		voucherRepository,
		voucherCache,
		paymentClient,
		cfg.KafkaOrderEventsTopic,
		checkoutMetrics,
		appLogger,
	)

	relay := outbox.NewRelay(outboxRepository, kafkaProducer, cfg.OutboxPollInterval, cfg.OutboxPollTimeout, appLogger)
	go relay.Start(ctx)
	appLogger.Info("Transactional Outbox relay started.")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	http_orders.RegisterRoutes(r, checkoutService, appLogger)
	r.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Orders Service started", zap.String("address", server.Addr))

	<-ctx.Done()

	appLogger.Info("Shutting down Orders Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Orders Service graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("Orders Service stopped.")
}
