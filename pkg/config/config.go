package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	JWTAccessSecret []byte
	AuthHTTPURL     string
	CartTokenSecret []byte

	KafkaBrokers []string
	RedisURL     string

	ESURL        string
	ESUser       string
	ESPassword   string
	ESOrderIndex string

	Payment PaymentConfig
	Order   OrderConfig
}

type PaymentConfig struct {
	Provider            string
	StripeSecretKey     string
	StripeWebhookSecret string
	DemoWebhookSecret   string
}

// OrderConfig holds the money and admission knobs of the order pipeline.
type OrderConfig struct {
	Currency            string
	VATRate             decimal.Decimal
	DeliveryFee         decimal.Decimal
	MaxCartItems        int
	PointValue          decimal.Decimal
	PointsEarnRate      decimal.Decimal
	MinPointsRedemption int64
	RateLimit           int
	RateWindow          time.Duration
	SettingsTTL         time.Duration
	OutboxInterval      time.Duration
	TimeZone            string
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "food-order"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		AuthHTTPURL:     os.Getenv("AUTH_URL"),
		CartTokenSecret: []byte(os.Getenv("CART_TOKEN_SECRET")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		RedisURL:     os.Getenv("REDIS_URL"),

		ESURL:        os.Getenv("ES_URL"),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		ESOrderIndex: EnvDefault("ES_ORDER_INDEX", "orders"),

		Payment: PaymentConfig{
			Provider:            strings.ToLower(EnvDefault("PAYMENT_PROVIDER", "demo")),
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			DemoWebhookSecret:   EnvDefault("DEMO_WEBHOOK_SECRET", "demo-webhook-secret"),
		},

		Order: OrderConfig{
			Currency:            strings.ToUpper(EnvDefault("CURRENCY", "ILS")),
			VATRate:             EnvDecimalDefault("VAT_RATE", decimal.RequireFromString("0.18")),
			DeliveryFee:         EnvDecimalDefault("DELIVERY_FEE", decimal.NewFromInt(10)),
			MaxCartItems:        EnvIntDefault("MAX_CART_ITEMS", 50),
			PointValue:          EnvDecimalDefault("POINT_VALUE", decimal.RequireFromString("0.1")),
			PointsEarnRate:      EnvDecimalDefault("POINTS_EARN_RATE", decimal.NewFromInt(1)),
			MinPointsRedemption: int64(EnvIntDefault("MIN_POINTS_REDEMPTION", 50)),
			RateLimit:           EnvIntDefault("ORDER_RATE_LIMIT", 5),
			RateWindow:          EnvDurationDefault("ORDER_RATE_WINDOW", 10*time.Minute),
			SettingsTTL:         EnvDurationDefault("SETTINGS_TTL", time.Minute),
			OutboxInterval:      EnvDurationDefault("OUTBOX_INTERVAL", 2*time.Second),
			TimeZone:            EnvDefault("STORE_TIMEZONE", "Asia/Jerusalem"),
		},
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func EnvDecimalDefault(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
