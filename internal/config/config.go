package config

import (
	"fmt"
	"os"
	"time"

	"github.com/henriquesd/dev-store/internal/infrastructure/database"
)

// OrdersConfig configures the order-taking service.
type OrdersConfig struct {
	HTTPPort string
	DB       database.Config

	RedisAddr     string
	RedisPassword string

	KafkaURL              string
	KafkaRequestTopic     string
	KafkaReplyTopic       string
	KafkaReplyGroup       string
	KafkaOrderEventsTopic string
	PaymentRequestTimeout time.Duration
	OutboxPollInterval    time.Duration
	OutboxPollTimeout     time.Duration
}

func LoadOrdersConfig() (*OrdersConfig, error) {
	cfg := &OrdersConfig{}

	cfg.HTTPPort = getEnvOrDefault("ORDERS_HTTP_PORT", "8080")

	cfg.DB = database.Config{
		Host:     getEnvOrDefault("ORDERS_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("ORDERS_DB_PORT", "5432"),
		User:     getEnvOrDefault("ORDERS_DB_USER", "postgres"),
		Password: getEnvOrDefault("ORDERS_DB_PASSWORD", "postgres"),
		DBName:   getEnvOrDefault("ORDERS_DB_NAME", "orders_db"),
		SSLMode:  getEnvOrDefault("ORDERS_DB_SSLMODE", "disable"),
	}

	cfg.RedisAddr = getEnvOrDefault("ORDERS_REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvOrDefault("ORDERS_REDIS_PASSWORD", "")

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaRequestTopic = getEnvOrDefault("KAFKA_PAYMENT_REQUEST_TOPIC", "billing.payment-requests")
	cfg.KafkaReplyTopic = getEnvOrDefault("KAFKA_PAYMENT_REPLY_TOPIC", "orders.payment-replies")
	// Prefix only; each instance appends its own suffix to the reply group.
	cfg.KafkaReplyGroup = getEnvOrDefault("KAFKA_PAYMENT_REPLY_GROUP", "orders-payment-replies")
	cfg.KafkaOrderEventsTopic = getEnvOrDefault("KAFKA_ORDER_EVENTS_TOPIC", "orders.events")

	var err error
	if cfg.PaymentRequestTimeout, err = getDurationOrDefault("PAYMENT_REQUEST_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = getDurationOrDefault("OUTBOX_POLL_INTERVAL", "5s"); err != nil {
		return nil, err
	}
	if cfg.OutboxPollTimeout, err = getDurationOrDefault("OUTBOX_POLL_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// BillingConfig configures the billing service.
type BillingConfig struct {
	HTTPPort string
	DB       database.Config

	KafkaURL          string
	KafkaRequestTopic string
	KafkaRequestGroup string
}

func LoadBillingConfig() (*BillingConfig, error) {
	cfg := &BillingConfig{}

	cfg.HTTPPort = getEnvOrDefault("BILLING_HTTP_PORT", "8081")

	cfg.DB = database.Config{
		Host:     getEnvOrDefault("BILLING_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("BILLING_DB_PORT", "5432"),
		User:     getEnvOrDefault("BILLING_DB_USER", "postgres"),
		Password: getEnvOrDefault("BILLING_DB_PASSWORD", "postgres"),
		DBName:   getEnvOrDefault("BILLING_DB_NAME", "billing_db"),
		SSLMode:  getEnvOrDefault("BILLING_DB_SSLMODE", "disable"),
	}

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaRequestTopic = getEnvOrDefault("KAFKA_PAYMENT_REQUEST_TOPIC", "billing.payment-requests")
	cfg.KafkaRequestGroup = getEnvOrDefault("KAFKA_PAYMENT_REQUEST_GROUP", "billing-payment-requests")

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func (c *OrdersConfig) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}

func (c *BillingConfig) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}

// MigrationDSN builds the URL form golang-migrate expects.
func MigrationDSN(db database.Config) string {
	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.DBName, db.SSLMode)
}
