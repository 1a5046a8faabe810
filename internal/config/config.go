package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultSessionSecret = "change-me-in-production-32bytes!"

type Config struct {
	Env     string
	Port    int
	DataDir string
	WebDir  string

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	SessionName    string
	SessionSecret  string
	SessionTimeout time.Duration
	SessionBackend string // "sql" or "redis"
	RedisURL       string

	CSRFTokenExpiry time.Duration

	LoginMaxAttempts   int
	LoginWindow        time.Duration
	RateLimitRetention time.Duration
	CleanupInterval    time.Duration

	BcryptCost int

	DefaultAdmin      string
	DefaultAdminEmail string
	DefaultPassword   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:     getEnvString("APP_ENV", "development"),
		Port:    getEnvInt("PORT", 8080),
		DataDir: getEnvString("DATA_DIR", "./data"),
		WebDir:  getEnvString("WEB_DIR", ""),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),

		SessionName:    getEnvString("SESSION_NAME", "PVMS_SESSION"),
		SessionSecret:  getEnvString("SESSION_SECRET", defaultSessionSecret),
		SessionTimeout: getEnvSeconds("SESSION_TIMEOUT", 3600),
		SessionBackend: getEnvString("SESSION_BACKEND", "sql"),
		RedisURL:       getEnvString("REDIS_URL", ""),

		CSRFTokenExpiry: getEnvSeconds("CSRF_TOKEN_EXPIRY", 3600),

		LoginMaxAttempts:   getEnvInt("RATE_LIMIT_LOGIN_ATTEMPTS", 5),
		LoginWindow:        getEnvSeconds("RATE_LIMIT_LOGIN_WINDOW", 900),
		RateLimitRetention: getEnvSeconds("RATE_LIMIT_RETENTION", 3600),
		CleanupInterval:    getEnvSeconds("CLEANUP_INTERVAL", 600),

		BcryptCost: getEnvInt("BCRYPT_COST", 12),

		DefaultAdmin:      getEnvString("DEFAULT_ADMIN", "admin"),
		DefaultAdminEmail: getEnvString("DEFAULT_ADMIN_EMAIL", "admin@police.local"),
		DefaultPassword:   getEnvString("DEFAULT_PASSWORD", "Admin@123"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether secure-cookie and JSON logging behaviour applies.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	switch c.SessionBackend {
	case "sql":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q (use sql or redis)", c.SessionBackend)
	}

	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if c.CSRFTokenExpiry <= 0 {
		return fmt.Errorf("CSRF_TOKEN_EXPIRY must be positive")
	}
	if c.LoginWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN_WINDOW must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN_ATTEMPTS must be positive")
	}

	if c.IsProduction() {
		if c.SessionSecret == defaultSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
		}
	}

	return nil
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvInt(key, defaultVal)) * time.Second
}
