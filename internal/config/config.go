package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/robalobadob/wavelength/internal/store"
	"github.com/robalobadob/wavelength/internal/upload"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port         string
	LogLevel     string
	LogFormat    string
	ClientOrigin string

	StoreDriver          string
	RedisURL             string
	SQLitePath           string
	GameTTLSeconds       int
	GameCodeLength       int
	GameCodeAttempts     int
	UpdateRetries        int
	SweepIntervalSeconds int

	UploadMaxBytes    int64
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string

	GiphyAPIKey string
	ScalesFile  string

	AdminKeyHash   string
	AdminJWTSecret string
}

func Default() Config {
	return Config{
		Port:                 "5175",
		LogLevel:             "info",
		ClientOrigin:         "http://localhost:5173",
		StoreDriver:          DriverMemory,
		SQLitePath:           "./data/wavelength.db",
		GameTTLSeconds:       3600,
		GameCodeLength:       4,
		GameCodeAttempts:     5,
		UpdateRetries:        5,
		SweepIntervalSeconds: 60,
		UploadMaxBytes:       upload.DefaultMaxBytes,
		S3Region:             "auto",
	}
}

// Load reads overrides from the environment. Malformed or non-positive numbers
// keep their defaults.
func Load() Config {
	cfg := Default()
	str(&cfg.Port, "PORT")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.LogFormat, "LOG_FORMAT")
	str(&cfg.ClientOrigin, "CLIENT_ORIGIN")

	str(&cfg.StoreDriver, "STORE_DRIVER")
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	str(&cfg.RedisURL, "REDIS_URL")
	str(&cfg.SQLitePath, "SQLITE_PATH")
	positive(&cfg.GameTTLSeconds, "GAME_TTL_SECONDS")
	positive(&cfg.GameCodeLength, "GAME_CODE_LENGTH")
	positive(&cfg.GameCodeAttempts, "GAME_CODE_ATTEMPTS")
	positive(&cfg.UpdateRetries, "UPDATE_RETRIES")
	positive(&cfg.SweepIntervalSeconds, "SWEEP_INTERVAL_SECONDS")

	if raw := os.Getenv("UPLOAD_MAX_BYTES"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			cfg.UploadMaxBytes = value
		}
	}
	str(&cfg.S3Endpoint, "S3_ENDPOINT")
	str(&cfg.S3Region, "S3_REGION")
	str(&cfg.S3Bucket, "S3_BUCKET")
	str(&cfg.S3AccessKeyID, "S3_ACCESS_KEY_ID")
	str(&cfg.S3SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	str(&cfg.S3PublicBaseURL, "S3_PUBLIC_BASE_URL")

	str(&cfg.GiphyAPIKey, "GIPHY_API_KEY")
	str(&cfg.ScalesFile, "SCALES_FILE")

	str(&cfg.AdminKeyHash, "ADMIN_KEY_HASH")
	str(&cfg.AdminJWTSecret, "ADMIN_JWT_SECRET")
	return cfg
}

// Validate reports settings that make startup impossible.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("STORE_DRIVER=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want memory, redis or sqlite)", c.StoreDriver)
	}
	return nil
}

func (c Config) StoreOptions() store.Options {
	return store.Options{
		TTL:        time.Duration(c.GameTTLSeconds) * time.Second,
		MaxRetries: c.UpdateRetries,
	}
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// UploadsEnabled reports whether enough S3 settings are present to build an uploader.
func (c Config) UploadsEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

func (c Config) S3() upload.S3Config {
	return upload.S3Config{
		Endpoint:        c.S3Endpoint,
		Region:          c.S3Region,
		Bucket:          c.S3Bucket,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		PublicBaseURL:   c.S3PublicBaseURL,
	}
}

func str(dst *string, key string) {
	if raw := os.Getenv(key); raw != "" {
		*dst = raw
	}
}

func positive(dst *int, key string) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			*dst = value
		}
	}
}
