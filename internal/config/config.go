package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	HTTPAddr    string

	// DatabaseURL is the postgres DSN backing the stock ledger. When empty
	// the service falls back to the in-memory ledger store.
	DatabaseURL string

	// RegistryDBPath is the sqlite file holding the operational registry.
	RegistryDBPath string

	RedisAddr          string
	RateLimitCapacity  int
	RateLimitPerSecond float64

	MaxBodyBytes   int64
	AdminAllowlist []string

	TLSCertFile string
	TLSKeyFile  string
}

// Load reads configuration from the environment, layering in a .env file if
// one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:        os.Getenv("APP_ENV"),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RegistryDBPath:     getenvDefault("REGISTRY_DB_PATH", "registry.db"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RateLimitCapacity:  getenvInt("RATE_LIMIT_CAPACITY", 100),
		RateLimitPerSecond: getenvFloat64("RATE_LIMIT_PER_SECOND", 25),
		MaxBodyBytes:       getenvInt64("MAX_BODY_BYTES", 1<<20),
		TLSCertFile:        os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:         os.Getenv("TLS_KEY_FILE"),
	}

	if v := os.Getenv("ADMIN_ALLOWLIST"); v != "" {
		for _, cidr := range strings.Split(v, ",") {
			if cidr = strings.TrimSpace(cidr); cidr != "" {
				cfg.AdminAllowlist = append(cfg.AdminAllowlist, cidr)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid. Development environments
// may run without postgres; production and staging must not.
func (c *Config) Validate() error {
	if c.Environment == "production" || c.Environment == "staging" {
		var missing []string
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.RegistryDBPath == "" {
			missing = append(missing, "REGISTRY_DB_PATH")
		}
		if len(missing) > 0 {
			return errors.New("missing required environment variables for " + c.Environment + ": " + strings.Join(missing, ", "))
		}
	}

	if c.RateLimitCapacity <= 0 {
		return errors.New("RATE_LIMIT_CAPACITY must be positive")
	}
	if c.RateLimitPerSecond <= 0 {
		return errors.New("RATE_LIMIT_PER_SECOND must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat64(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
