package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Tables  TableConfig
	Queues  QueueConfig
	Payment PaymentConfig
	Factory FactoryConfig
	Auth    AuthConfig
	Metrics MetricsConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	RunLocal bool
}

type TableConfig struct {
	Orders      string
	LineItems   string
	PaymentRefs string
	Designs     string
}

type QueueConfig struct {
	RenderQueueURL string
}

type PaymentConfig struct {
	APIBaseURL string
	SecretKey  string
	// WebhookSecret is optional; when empty the webhook handler skips
	// signature verification.
	WebhookSecret string
}

type FactoryConfig struct {
	// Token is optional; when empty the factory callback auth check is bypassed.
	Token string
}

type AuthConfig struct {
	JWTSecret string
}

type MetricsConfig struct {
	Namespace string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      getEnv("ENV", "development"),
			RunLocal: getEnv("RUN_LOCAL", "") == "true",
		},
		Tables: TableConfig{
			Orders:      getEnv("ORDERS_TABLE", "orders"),
			LineItems:   getEnv("LINE_ITEMS_TABLE", "order-line-items"),
			PaymentRefs: getEnv("PAYMENT_REFS_TABLE", "payment-refs"),
			Designs:     getEnv("DESIGNS_TABLE", "designs"),
		},
		Queues: QueueConfig{
			RenderQueueURL: getEnv("RENDER_QUEUE_URL", ""),
		},
		Payment: PaymentConfig{
			APIBaseURL:    getEnv("PAYMENT_API_BASE_URL", "https://api.payments.example.com"),
			SecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		},
		Factory: FactoryConfig{
			Token: getEnv("FACTORY_CALLBACK_TOKEN", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "Fulfillment"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
