package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers selectable through STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMinIO    = "minio"
	StoreDriverMemory   = "memory"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	// StatementTimeout is sent as statement_timeout so the server also bounds each query.
	StatementTimeout time.Duration
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NoteConfig holds the note lifecycle settings.
type NoteConfig struct {
	BcryptCost    int
	StoreTimeout  time.Duration
	SweepInterval time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port             string
	Timezone         string
	LogLevel         string
	StoreDriver      string
	CORSAllowOrigins string
	Database         DatabaseConfig
	MinIO            MinIOConfig
	Note             NoteConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	storeTimeout := getEnvDuration("NOTE_STORE_TIMEOUT", 5*time.Second)
	return &AppConfig{
		Port:             getEnv("PORT", "5000"),
		Timezone:         getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			StatementTimeout:   storeTimeout,
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "textshare"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Note: NoteConfig{
			BcryptCost:    getEnvInt("NOTE_BCRYPT_COST", 10),
			StoreTimeout:  storeTimeout,
			SweepInterval: getEnvDuration("NOTE_SWEEP_INTERVAL", time.Minute),
		},
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("30s", "2m") and falls back on anything unparsable or non-positive.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
