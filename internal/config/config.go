// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all gateway server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database (optional — empty selects the local file-backed stores)
	DatabaseURL string

	// Blob storage backend ("local" or "s3", default: "local")
	StorageBackend   string
	LocalStoragePath string

	// Local document snapshot directory (used when DatabaseURL is empty)
	LocalDocumentsPath string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// TLS (optional — if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Trust domains. The two secrets are independent: a token signed under
	// one is never valid in the other.
	SessionSecret string
	RenderSecret  string

	// Login credentials for the session domain.
	AuthUsername string
	AuthPassword string

	// Public base URL the render service uses to reach this gateway.
	PublicBaseURL string

	// Token lifetimes
	SessionTokenTTL time.Duration
	GrantTTL        time.Duration

	// Upload limits
	MaxUploadSize  int64
	MaxUploadFiles int

	// Collaboration snapshot save debounce
	CollabSaveInterval time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:        envOr("METRICS_ADDR", ":9090"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogFormat:          envOr("LOG_FORMAT", "json"),
		DatabaseURL:        envOr("DATABASE_URL", ""),
		StorageBackend:     envOr("STORAGE_BACKEND", "local"),
		LocalStoragePath:   envOr("LOCAL_STORAGE_PATH", "/data/uploads"),
		LocalDocumentsPath: envOr("LOCAL_DOCUMENTS_PATH", "/data/docs"),
		S3Endpoint:         envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:           envOr("S3_BUCKET", "draftdesk"),
		S3AccessKey:        envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:           envOr("S3_REGION", "us-east-1"),
		S3UseSSL:           envBool("S3_USE_SSL", false),
		TLSCertFile:        envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:         envOr("TLS_KEY_FILE", ""),
		SessionSecret:      envOr("SESSION_JWT_SECRET", ""),
		RenderSecret:       envOr("RENDER_JWT_SECRET", ""),
		AuthUsername:       envOr("AUTH_USERNAME", ""),
		AuthPassword:       envOr("AUTH_PASSWORD", ""),
		PublicBaseURL:      envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		SessionTokenTTL:    envDuration("SESSION_TOKEN_TTL", 24*time.Hour),
		GrantTTL:           envDuration("GRANT_TTL", 30*time.Minute),
		MaxUploadSize:      envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
		MaxUploadFiles:     envInt("MAX_UPLOAD_FILES", 10),
		CollabSaveInterval: envDuration("COLLAB_SAVE_INTERVAL", 5*time.Second),
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_JWT_SECRET is required")
	}
	if cfg.RenderSecret == "" {
		return nil, fmt.Errorf("RENDER_JWT_SECRET is required")
	}
	if cfg.SessionSecret == cfg.RenderSecret {
		return nil, fmt.Errorf("SESSION_JWT_SECRET and RENDER_JWT_SECRET must differ")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
