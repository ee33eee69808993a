// Package config loads server settings from a .env file, TENANTRY_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/dukerupert/tenantry/internal/storage"
)

type Config struct {
	Port      string
	DBPath    string
	BaseURL   string
	LogLevel  string
	LogFormat string

	// AdminEmail is promoted to admin on startup when set.
	AdminEmail string

	PostmarkToken string
	EmailFrom     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	S3        storage.S3Config
	UploadDir string

	// RedisAddr switches login rate limiting to Redis so limits hold across
	// instances.
	RedisAddr string

	JWTSecret      string
	SweepInterval  time.Duration
	AllowedOrigins []string
}

// Load reads the configuration. args excludes the program name. A missing
// .env file is not an error.
func Load(args []string) (*Config, error) {
	envFile := getEnv("TENANTRY_ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	sweep, err := time.ParseDuration(getEnv("TENANTRY_SWEEP_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("parse TENANTRY_SWEEP_INTERVAL: %w", err)
	}

	cfg := &Config{
		Port:       getEnv("TENANTRY_PORT", "8080"),
		DBPath:     getEnv("TENANTRY_DB_PATH", "tenantry.db"),
		BaseURL:    getEnv("TENANTRY_BASE_URL", "http://localhost:8080"),
		LogLevel:   getEnv("TENANTRY_LOG_LEVEL", "info"),
		LogFormat:  getEnv("TENANTRY_LOG_FORMAT", "text"),
		AdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv("TENANTRY_ADMIN_EMAIL"))),

		PostmarkToken: os.Getenv("TENANTRY_POSTMARK_TOKEN"),
		EmailFrom:     getEnv("TENANTRY_EMAIL_FROM", "noreply@tenantry.local"),

		VAPIDPublicKey:  os.Getenv("TENANTRY_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("TENANTRY_VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: getEnv("TENANTRY_VAPID_SUBSCRIBER", "mailto:admin@tenantry.local"),

		S3: storage.S3Config{
			Endpoint:  os.Getenv("TENANTRY_S3_ENDPOINT"),
			Bucket:    os.Getenv("TENANTRY_S3_BUCKET"),
			Region:    getEnv("TENANTRY_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("TENANTRY_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("TENANTRY_S3_SECRET_KEY"),
		},
		UploadDir: getEnv("TENANTRY_UPLOAD_DIR", "uploads"),

		RedisAddr:      os.Getenv("TENANTRY_REDIS_ADDR"),
		JWTSecret:      os.Getenv("TENANTRY_JWT_SECRET"),
		SweepInterval:  sweep,
		AllowedOrigins: splitList(os.Getenv("TENANTRY_ALLOWED_ORIGINS")),
	}

	fs := pflag.NewFlagSet("tenantry", pflag.ContinueOnError)
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "public URL used in emails")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often ended weeks are swept")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return errors.New("both VAPID keys must be set together")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
