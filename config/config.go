package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "dev-secret-change-in-production"

// Config holds all runtime settings, read from the environment after the
// optional .env file has been loaded.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBDriver string // mysql or sqlite
	DBDSN    string
	SeedDemo bool

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TableLockTTL  time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PublicBaseURL    string
	OrderDedupWindow time.Duration

	// PaymentWebhookSecret signs provider payment callbacks. Empty disables them.
	PaymentWebhookSecret string

	EventQueueSize int

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

func Load() Config {
	return Config{
		Env:      envStr("APP_ENV", "development"),
		Port:     envStr("PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBDriver: strings.ToLower(envStr("DB_DRIVER", "sqlite")),
		DBDSN:    envStr("DB_DSN", "file:mozoqr.db?_busy_timeout=5000"),
		SeedDemo: envBool("SEED_DEMO", false),

		JWTSecret: envStr("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:    envDur("JWT_TTL", 12*time.Hour),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		TableLockTTL:  envDur("TABLE_LOCK_TTL", 5*time.Second),

		KafkaBrokers: envList("KAFKA_BROKERS"),
		KafkaTopic:   envStr("KAFKA_TOPIC", "mozoqr.orders"),

		PublicBaseURL:    strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		OrderDedupWindow: envDur("ORDER_DEDUP_WINDOW", 90*time.Second),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		EventQueueSize: envInt("EVENT_QUEUE_SIZE", 1024),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
		CORSOrigins:    envListDefault("CORS_ORIGINS", []string{"http://localhost:5173"}),
	}
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}

func envList(k string) []string {
	return envListDefault(k, nil)
}

func envListDefault(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
