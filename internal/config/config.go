package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TaxPolicySum    = "sum"
	TaxPolicyStrict = "strict"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	LogLevel   string
	StoreURL   string

	JWTSecret         string
	InternalSecretKey string

	PaymentAPIKey        string
	PaymentBaseURL       string
	PaymentCallbackToken string
	Currency             string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers            []string
	KafkaTopicNotifications string
	KafkaTopicShareViews    string

	ShareDefaultDays int
	SavedCartTTL     time.Duration
	TaxPolicy        string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		StoreURL:   getEnv("STORE_URL", "http://localhost:3000"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),

		PaymentAPIKey:        os.Getenv("PAYMENT_API_KEY"),
		PaymentBaseURL:       getEnv("PAYMENT_BASE_URL", "https://api.payments.example.com"),
		PaymentCallbackToken: os.Getenv("PAYMENT_CALLBACK_TOKEN"),
		Currency:             strings.ToUpper(getEnv("CURRENCY", "USD")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers:            splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicNotifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "storefront.notifications"),
		KafkaTopicShareViews:    getEnv("KAFKA_TOPIC_SHARE_VIEWS", "storefront.share-views"),

		ShareDefaultDays: getEnvInt("SHARE_DEFAULT_DAYS", 7),
		SavedCartTTL:     time.Duration(getEnvInt("SAVED_CART_TTL_DAYS", 30)) * 24 * time.Hour,
		TaxPolicy:        strings.ToLower(getEnv("TAX_POLICY", TaxPolicySum)),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	if cfg.TaxPolicy != TaxPolicySum && cfg.TaxPolicy != TaxPolicyStrict {
		log.Fatalf("invalid TAX_POLICY %q (use %q or %q)", cfg.TaxPolicy, TaxPolicySum, TaxPolicyStrict)
	}

	return cfg
}

// IsProduction reports whether the app runs with production logging and strict webhook checks.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
