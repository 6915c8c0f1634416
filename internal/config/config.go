package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageBackendSupabase = "supabase"
	StorageBackendMinIO    = "minio"

	MetadataBackendREST     = "rest"
	MetadataBackendPostgres = "postgres"
)

// DefaultAllowedTypes mirrors the upload form's accepted types: images, PDF, plain text and zip archives.
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"application/zip",
	"application/x-zip-compressed",
}

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
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicBaseURL overrides the scheme://endpoint prefix used for public object links.
	PublicBaseURL string
}

// SupabaseConfig holds the base URL and credentials shared by the storage and REST table services.
type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
}

// UploadConfig holds admission and naming settings.
type UploadConfig struct {
	MaxBytes          int64
	AllowedTypes      []string
	KeyStrategy       string
	CompensateOrphans bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost          string
	Port             string
	LogLevel         string
	StorageBackend   string
	MetadataBackend  string
	Bucket           string
	Table            string
	RemoteTimeoutSec int
	Supabase         SupabaseConfig
	Upload           UploadConfig
	Database         DatabaseConfig
	MinIO            MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:          getEnv("APP_HOST", "localhost:8080"),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StorageBackend:   getEnv("STORAGE_BACKEND", StorageBackendSupabase),
		MetadataBackend:  getEnv("METADATA_BACKEND", MetadataBackendREST),
		Bucket:           getEnv("STORAGE_BUCKET", "uploads"),
		Table:            getEnv("METADATA_TABLE", "files"),
		RemoteTimeoutSec: getEnvInt("REMOTE_TIMEOUT_SEC", 30),
		Supabase: SupabaseConfig{
			URL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		},
		Upload: UploadConfig{
			MaxBytes:          getEnvInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
			AllowedTypes:      getEnvList("ALLOWED_MIME_TYPES", DefaultAllowedTypes),
			KeyStrategy:       getEnv("KEY_STRATEGY", "timestamp"),
			CompensateOrphans: getEnvBool("COMPENSATE_ORPHANS", false),
		},
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
		},
		MinIO: MinIOConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
		},
	}
}

// RemoteTimeout is the deadline applied to every outbound call to the storage and table services.
func (c *AppConfig) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSec) * time.Second
}

// Validate reports missing or inconsistent settings. A non-nil error is fatal at startup.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageBackendSupabase, StorageBackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	switch c.MetadataBackend {
	case MetadataBackendREST, MetadataBackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown METADATA_BACKEND %q", c.MetadataBackend))
	}

	if c.StorageBackend == StorageBackendSupabase || c.MetadataBackend == MetadataBackendREST {
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" || c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("missing Supabase credentials: SUPABASE_URL, SUPABASE_ANON_KEY and SUPABASE_SERVICE_KEY are required"))
		}
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is required"))
	}
	if c.Table == "" {
		errs = append(errs, errors.New("METADATA_TABLE is required"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if len(c.Upload.AllowedTypes) == 0 {
		errs = append(errs, errors.New("ALLOWED_MIME_TYPES must not be empty"))
	}
	switch c.Upload.KeyStrategy {
	case "timestamp", "unique":
	default:
		errs = append(errs, fmt.Errorf("unknown KEY_STRATEGY %q", c.Upload.KeyStrategy))
	}
	if c.RemoteTimeoutSec <= 0 {
		errs = append(errs, errors.New("REMOTE_TIMEOUT_SEC must be positive"))
	}

	return errors.Join(errs...)
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

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
