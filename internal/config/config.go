package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string

	OTLPEndpoint   string
	MetricsEnabled bool
	TracingEnabled bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Payment PaymentConfig

	JWTSecret   string
	JWTTTL      time.Duration
	Admin       AdminConfig
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InitRateLimit        int
	LedgerReplayInterval time.Duration
	LedgerReplayBatch    int
	CatalogRulesFile     string
	PublicDonateURL      string
}

// PaymentConfig is the gateway configuration shared by every adapter. It is
// read once at startup and handed to the adapters on construction.
type PaymentConfig struct {
	Gateway       string
	SecretKey     string
	BaseURL       string
	CallbackURL   string
	VerifyTimeout time.Duration
	Currency      string

	MidtransServerKey string
	MidtransEnv       string
}

type AdminConfig struct {
	Username string
	Email    string
	Password string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:        getenv("APP_SERVICE", "giving-tree"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    environment,
		HTTPPort:       getenv("HTTP_PORT", "5000"),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", ""),
		MetricsEnabled: getenvBool("METRICS_ENABLED", true),
		TracingEnabled: getenvBool("TRACING_ENABLED", false),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "giving_tree"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "dev.sqlite"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Payment: PaymentConfig{
			Gateway:           strings.ToLower(getenv("PAYMENT_GATEWAY", "paystack")),
			SecretKey:         strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			BaseURL:           strings.TrimRight(getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
			CallbackURL:       getenv("PAYMENT_CALLBACK_URL", "http://127.0.0.1:5000/payments/payment_callback"),
			VerifyTimeout:     getenvDuration("PAYMENT_VERIFY_TIMEOUT", 12*time.Second),
			Currency:          strings.ToUpper(getenv("PAYMENT_CURRENCY", "NGN")),
			MidtransServerKey: strings.TrimSpace(getenv("MIDTRANS_SERVER_KEY", "")),
			MidtransEnv:       strings.ToLower(getenv("MIDTRANS_ENV", "sandbox")),
		},

		JWTSecret: strings.TrimSpace(getenv("JWT_SECRET", "")),
		JWTTTL:    getenvDuration("JWT_TTL", 12*time.Hour),
		Admin: AdminConfig{
			Username: strings.TrimSpace(getenv("ADMIN_USERNAME", "")),
			Email:    strings.TrimSpace(getenv("ADMIN_EMAIL", "")),
			Password: getenv("ADMIN_PASSWORD", ""),
		},
		CORSOrigins: parseList(getenv("CORS_ALLOWED_ORIGINS", "*")),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		InitRateLimit:        getenvInt("INIT_RATE_LIMIT", 30),
		LedgerReplayInterval: getenvDuration("LEDGER_REPLAY_INTERVAL", 5*time.Minute),
		LedgerReplayBatch:    getenvInt("LEDGER_REPLAY_BATCH", 50),
		CatalogRulesFile:     strings.TrimSpace(getenv("CATALOG_RULES_FILE", "")),
		PublicDonateURL:      strings.TrimRight(getenv("PUBLIC_DONATE_URL", "http://127.0.0.1:5173/donate"), "/"),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// String keeps secrets out of logs.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{app=%s version=%s env=%s port=%s db=%s gateway=%s redis=%t}",
		c.AppName, c.AppVersion, c.Environment, c.HTTPPort, c.DBType, c.Payment.Gateway, c.RedisAddr != "",
	)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
