package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

// Config holds everything the server reads from the environment.
type Config struct {
	ConsumerKey       string
	ConsumerSecret    string
	BusinessShortCode string
	Passkey           string
	CallbackURL       string
	AccountReference  string
	Sandbox           bool
	BaseURL           string
	Port              string
	LogDir            string
	HTTPTimeout       time.Duration

	LedgerBackend string
	MongoURI      string
	MongoDB       string
	RedisConn     string

	CartBackend string
	CartTTL     time.Duration

	AdminJWTSecret string
}

// Required lists the keys the process refuses to start without.
var Required = []string{
	"CONSUMER_KEY",
	"CONSUMER_SECRET",
	"BUSINESS_SHORTCODE",
	"PASSKEY",
	"CALLBACK_URL",
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	cfg := &Config{
		ConsumerKey:       os.Getenv("CONSUMER_KEY"),
		ConsumerSecret:    os.Getenv("CONSUMER_SECRET"),
		BusinessShortCode: os.Getenv("BUSINESS_SHORTCODE"),
		Passkey:           os.Getenv("PASSKEY"),
		CallbackURL:       os.Getenv("CALLBACK_URL"),
		AccountReference:  getEnv("ACCOUNT_REFERENCE", "SHOEGAME"),
		Sandbox:           os.Getenv("SANDBOX") != "false",
		Port:              getEnv("PORT", "3000"),
		LogDir:            getEnv("LOG_DIR", "logs"),
		HTTPTimeout:       getDuration("HTTP_TIMEOUT", 30*time.Second),
		LedgerBackend:     strings.ToLower(getEnv("LEDGER_BACKEND", "file")),
		MongoURI:          os.Getenv("MONGOURI"),
		MongoDB:           getEnv("MONGO_DB", "shoegamedb"),
		RedisConn:         os.Getenv("REDIS_CONN"),
		CartBackend:       strings.ToLower(getEnv("CART_BACKEND", "memory")),
		CartTTL:           getDuration("CART_TTL", 7*24*time.Hour),
		AdminJWTSecret:    os.Getenv("ADMIN_JWT_SECRET"),
	}

	cfg.BaseURL = SandboxBaseURL
	if !cfg.Sandbox {
		cfg.BaseURL = ProductionBaseURL
	}
	if override := os.Getenv("DARAJA_BASE_URL"); override != "" {
		cfg.BaseURL = strings.TrimRight(override, "/")
	}
	return cfg
}

// Validate reports every missing mandatory key and any backend selection
// that lacks the connection setting it needs.
func (c *Config) Validate() error {
	values := map[string]string{
		"CONSUMER_KEY":       c.ConsumerKey,
		"CONSUMER_SECRET":    c.ConsumerSecret,
		"BUSINESS_SHORTCODE": c.BusinessShortCode,
		"PASSKEY":            c.Passkey,
		"CALLBACK_URL":       c.CallbackURL,
	}
	var missing []string
	for _, key := range Required {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.LedgerBackend {
	case "file":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("LEDGER_BACKEND=mongo requires MONGOURI")
		}
	case "redis":
		if c.RedisConn == "" {
			return fmt.Errorf("LEDGER_BACKEND=redis requires REDIS_CONN")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q, must be file, mongo or redis", c.LedgerBackend)
	}

	switch c.CartBackend {
	case "memory":
	case "redis":
		if c.RedisConn == "" {
			return fmt.Errorf("CART_BACKEND=redis requires REDIS_CONN")
		}
	default:
		return fmt.Errorf("unknown CART_BACKEND %q, must be memory or redis", c.CartBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration", "key", key, "value", raw)
		return fallback
	}
	return d
}
