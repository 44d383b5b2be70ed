// Package config loads booth settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the booth backend.
type Config struct {
	HTTPPort           string   `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	LogSource   bool   `env:"LOG_SOURCE" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"sdbooth"`

	// StoreDriver selects the job store: "postgres" or "memory".
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SeedTemplates bool   `env:"SEED_TEMPLATES" envDefault:"true"`
	// SeedFile replaces the stock catalogue with a YAML file.
	SeedFile string `env:"SEED_TEMPLATES_FILE"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	TrackerLockKey string        `env:"TRACKER_LOCK_KEY" envDefault:"sdbooth:tracker:lock"`
	TrackerLockTTL time.Duration `env:"TRACKER_LOCK_TTL" envDefault:"30s"`

	ComfyBaseURL string        `env:"COMFY_BASE_URL" envDefault:"http://localhost:8000"`
	ComfyTimeout time.Duration `env:"COMFY_TIMEOUT" envDefault:"30s"`

	TrackerInterval time.Duration `env:"TRACKER_INTERVAL" envDefault:"1s"`
	DownloadDir     string        `env:"DOWNLOAD_DIR" envDefault:"DownloadedImages"`
	WSKeepAlive     time.Duration `env:"WS_KEEPALIVE" envDefault:"120s"`

	Storage StorageConfig
}

// StorageConfig selects and configures the archive provider.
type StorageConfig struct {
	Provider string `env:"STORAGE_PROVIDER" envDefault:"localfs"`

	S3Bucket        string `env:"S3_BUCKET"`
	S3Region        string `env:"S3_REGION" envDefault:"eu-north-1"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	S3AccessKey     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`

	GDriveClientID     string `env:"GDRIVE_CLIENT_ID"`
	GDriveClientSecret string `env:"GDRIVE_CLIENT_SECRET"`
	GDriveRefreshToken string `env:"GDRIVE_REFRESH_TOKEN"`
	GDriveFolderID     string `env:"GDRIVE_FOLDER_ID"`

	LocalRoot    string `env:"STORAGE_LOCAL_ROOT" envDefault:"./data/archive"`
	LocalBaseURL string `env:"STORAGE_LOCAL_BASE_URL" envDefault:"http://localhost:8080/archive"`
}

// envFiles in precedence order. godotenv never overrides a variable that is
// already set, so the process env beats .env.local, which beats .env.
var envFiles = []string{".env.local", ".env"}

// loadDotEnv loads each file that exists. A missing file is skipped; a file
// that exists but cannot be parsed is an error.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads .env files when present and parses the environment.
func Load() (Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadStorage parses only the archive settings. Tools that never touch
// the job store use it to skip the database requirements.
func LoadStorage() (StorageConfig, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return StorageConfig{}, err
	}

	var sc StorageConfig
	if err := env.Parse(&sc); err != nil {
		return StorageConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return sc, nil
}

// Validate checks cross-field requirements env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER: %s", c.StoreDriver)
	}

	if c.TrackerInterval <= 0 {
		return fmt.Errorf("TRACKER_INTERVAL must be positive")
	}

	switch c.Storage.Provider {
	case "localfs", "gdrive":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER: %s", c.Storage.Provider)
	}
	return nil
}
