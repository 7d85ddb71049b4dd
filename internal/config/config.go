package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	AppEnv        string
	AllowedOrigin string
	DatabaseURL   string
	DBMigrate     bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthSecret            string
	AccessTokenTTLMinutes int

	WebhookSignatureKey      string
	WebhookNotificationURL   string
	WebhookAllowUnsigned     bool
	WebhookClaimTTLSeconds   int
	GatewayBaseURL           string
	GatewayAccessToken       string
	GatewayLocationID        string
	GatewayAPIVersion        string
	GatewayTimeoutSeconds    int
	GatewayRequestsPerSecond float64
	TerminalDeviceID         string

	ReportTimezone string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL := getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480)
	gatewayTimeout := getPositiveInt("GATEWAY_TIMEOUT_SECONDS", 10)
	claimTTL := getPositiveInt("WEBHOOK_CLAIM_TTL_SECONDS", 60)
	rps, err := strconv.ParseFloat(getEnv("GATEWAY_REQUESTS_PER_SECOND", "10"), 64)
	if err != nil || rps < 0 {
		rps = 10
	}

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		AppEnv:        strings.ToLower(getEnv("APP_ENV", "development")),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMigrate:     getBool("DB_MIGRATE", false),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,

		WebhookSignatureKey:      strings.TrimSpace(os.Getenv("PAYMENT_WEBHOOK_SIGNATURE_KEY")),
		WebhookNotificationURL:   strings.TrimSpace(os.Getenv("PAYMENT_WEBHOOK_NOTIFICATION_URL")),
		WebhookAllowUnsigned:     getBool("PAYMENT_WEBHOOK_ALLOW_UNSIGNED", false),
		WebhookClaimTTLSeconds:   claimTTL,
		GatewayBaseURL:           getEnv("GATEWAY_BASE_URL", "https://connect.squareup.com"),
		GatewayAccessToken:       strings.TrimSpace(os.Getenv("GATEWAY_ACCESS_TOKEN")),
		GatewayLocationID:        strings.TrimSpace(os.Getenv("GATEWAY_LOCATION_ID")),
		GatewayAPIVersion:        getEnv("GATEWAY_API_VERSION", "2024-01-18"),
		GatewayTimeoutSeconds:    gatewayTimeout,
		GatewayRequestsPerSecond: rps,
		TerminalDeviceID:         strings.TrimSpace(os.Getenv("TERMINAL_DEVICE_ID")),

		ReportTimezone: getEnv("REPORT_TIMEZONE", "America/Los_Angeles"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

func (c Config) WebhookClaimTTL() time.Duration {
	return time.Duration(c.WebhookClaimTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
