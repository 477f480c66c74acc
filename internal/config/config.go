// Package config loads the server configuration.
//
// Sources, lowest precedence first:
//  1. built-in defaults (Default)
//  2. an optional YAML file named by CONFIG_FILE
//  3. environment variables, after a best-effort .env load
//
// Missing .env or CONFIG_FILE is not an error; a malformed one is.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the marketplace server.
type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	SessionSecret  string `yaml:"session_secret"`
	SessionName    string `yaml:"session_name"`
	MaxAgeMinutes  int    `yaml:"max_age_min"`
	SessionBackend string `yaml:"session_backend"` // "sqlite" or "redis"
	CookieSecure   bool   `yaml:"cookie_secure"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	VerifySecret      string `yaml:"verify_secret"`
	BackendAPI        string `yaml:"backend_api"`
	GoogleUserinfoURL string `yaml:"google_userinfo_url"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	MailFrom     string `yaml:"mail_from"`

	CORSOrigins   []string `yaml:"cors_origins"`
	RateLimit     int      `yaml:"rate_limit"`
	RateWindowMin int      `yaml:"rate_window_min"`

	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`

	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // "text" or "json"
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:              8000,
		DBPath:            "data/agromarket.db",
		SessionName:       "connect.sid",
		MaxAgeMinutes:     60,
		SessionBackend:    "sqlite",
		RedisAddr:         "localhost:6379",
		BackendAPI:        "http://localhost:8000",
		GoogleUserinfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		SMTPPort:          587,
		MailFrom:          "no-reply@agromarket.local",
		CORSOrigins:       []string{"http://localhost:8080"},
		RateLimit:         500,
		RateWindowMin:     15,
		LogLevel:          "info",
		LogFormat:         "text",
		BcryptCost:        10,
	}
}

// SessionMaxAge is the idle lifetime of a session.
func (c Config) SessionMaxAge() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

// RateWindow is the refill period of the per-IP request budget.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowMin) * time.Minute
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (Config, error) {
	// .env is a developer convenience; its absence is normal in production.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production and a map lookup in tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not a number", key, v))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
			return
		}
		*dst = b
	}

	num("PORT", &c.Port)
	str("DB_PATH", &c.DBPath)
	str("SESSION_SECRET", &c.SessionSecret)
	str("SESSION_NAME", &c.SessionName)
	num("MAX_AGE_MIN", &c.MaxAgeMinutes)
	str("SESSION_BACKEND", &c.SessionBackend)
	flag("COOKIE_SECURE", &c.CookieSecure)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)
	str("VERIFY_SECRET", &c.VerifySecret)
	str("BACKEND_API", &c.BackendAPI)
	str("GOOGLE_USERINFO_URL", &c.GoogleUserinfoURL)
	str("SMTP_HOST", &c.SMTPHost)
	num("SMTP_PORT", &c.SMTPPort)
	str("SMTP_USER", &c.SMTPUser)
	str("SMTP_PASSWORD", &c.SMTPPassword)
	str("MAIL_FROM", &c.MailFrom)
	num("RATE_LIMIT", &c.RateLimit)
	num("RATE_WINDOW_MIN", &c.RateWindowMin)
	str("ADMIN_EMAIL", &c.AdminEmail)
	str("ADMIN_PASSWORD", &c.AdminPassword)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	num("BCRYPT_COST", &c.BcryptCost)

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}

	return errors.Join(errs...)
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: invalid port %d", c.Port)
	case c.MaxAgeMinutes <= 0:
		return fmt.Errorf("config: MAX_AGE_MIN must be positive, got %d", c.MaxAgeMinutes)
	case c.RateLimit <= 0 || c.RateWindowMin <= 0:
		return fmt.Errorf("config: rate limit %d per %d min is not usable", c.RateLimit, c.RateWindowMin)
	case c.DBPath == "":
		return errors.New("config: DB_PATH is empty")
	}
	switch c.SessionBackend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("config: unknown session backend %q", c.SessionBackend)
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		return errors.New("config: SESSION_SECRET must be at least 32 bytes")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
