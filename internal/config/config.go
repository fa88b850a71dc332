package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/brandcatalog/pkg/config"
	"github.com/utafrali/brandcatalog/pkg/database"
	"github.com/utafrali/brandcatalog/pkg/imaging"
	"github.com/utafrali/brandcatalog/pkg/middleware"
	"github.com/utafrali/brandcatalog/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Storage backends.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
)

// Config holds all configuration for the brand catalog service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"brandcatalog"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"BRANDS_HTTP_PORT" envDefault:"8015"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"brandcatalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"brandcatalog_secret"`
	PostgresDB   string `env:"BRANDS_DB_NAME" envDefault:"brand_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQuery         time.Duration `env:"LOG_SLOW_QUERY" envDefault:"500ms"`

	// Redis
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	BrandCacheTTL time.Duration `env:"BRAND_CACHE_TTL" envDefault:"10m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Admin auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:""`

	// Asset storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	StorageDir     string `env:"STORAGE_DIR" envDefault:"./media"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL" envDefault:"/media"`

	// Logo processing
	LogoMaxBytes     int64    `env:"LOGO_MAX_BYTES" envDefault:"5242880"`
	LogoContentTypes []string `env:"LOGO_CONTENT_TYPES" envDefault:"image/jpeg,image/png,image/gif,image/webp" envSeparator:","`
	ImageMinWidth    int      `env:"IMAGE_MIN_WIDTH" envDefault:"100"`
	ImageMinHeight   int      `env:"IMAGE_MIN_HEIGHT" envDefault:"100"`
	ImageMaxWidth    int      `env:"IMAGE_MAX_WIDTH" envDefault:"800"`
	ImageMaxHeight   int      `env:"IMAGE_MAX_HEIGHT" envDefault:"800"`
	ThumbSize        int      `env:"IMAGE_THUMB_SIZE" envDefault:"200"`
	ImageQuality     int      `env:"IMAGE_QUALITY" envDefault:"85"`
	ThumbQuality     int      `env:"IMAGE_THUMB_QUALITY" envDefault:"90"`
	ImageMaxPixels   int      `env:"IMAGE_MAX_PIXELS" envDefault:"16777216"`

	// Slugs
	SlugMaxLength   int `env:"SLUG_MAX_LENGTH" envDefault:"50"`
	SlugMaxAttempts int `env:"SLUG_MAX_ATTEMPTS" envDefault:"100"`

	// CSV import
	ImportMaxBytes     int64         `env:"IMPORT_MAX_BYTES" envDefault:"2097152"`
	ImportFetchLogos   bool          `env:"IMPORT_FETCH_LOGOS" envDefault:"false"`
	ImportFetchTimeout time.Duration `env:"IMPORT_FETCH_TIMEOUT" envDefault:"15s"`

	// Upload rate limit, per client IP
	UploadRateRPS   float64 `env:"UPLOAD_RATE_RPS" envDefault:"1"`
	UploadRateBurst int     `env:"UPLOAD_RATE_BURST" envDefault:"5"`
	// Proxies whose X-Forwarded-For is believed, as CIDRs or addresses.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from the environment after applying dotenvFiles.
func Load(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load brandcatalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	switch c.StorageBackend {
	case StorageLocal, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StorageMemory, c.StorageBackend)
	}
	if c.LogoMaxBytes <= 0 || c.ImportMaxBytes <= 0 {
		return fmt.Errorf("LOGO_MAX_BYTES and IMPORT_MAX_BYTES must be positive")
	}
	if c.ImageMinWidth <= 0 || c.ImageMinHeight <= 0 || c.ThumbSize <= 0 || c.ImageMaxPixels <= 0 {
		return fmt.Errorf("image dimensions must be positive")
	}
	if c.ImageMaxWidth < c.ImageMinWidth || c.ImageMaxHeight < c.ImageMinHeight {
		return fmt.Errorf("IMAGE_MAX_* must not be smaller than IMAGE_MIN_*")
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 || c.ThumbQuality < 1 || c.ThumbQuality > 100 {
		return fmt.Errorf("JPEG quality must be between 1 and 100")
	}
	if c.SlugMaxLength < 2 || c.SlugMaxLength > 100 {
		return fmt.Errorf("SLUG_MAX_LENGTH must be between 2 and 100, got %d", c.SlugMaxLength)
	}
	if c.SlugMaxAttempts < 1 {
		return fmt.Errorf("SLUG_MAX_ATTEMPTS must be positive, got %d", c.SlugMaxAttempts)
	}
	if c.UploadRateRPS <= 0 || c.UploadRateBurst < 1 {
		return fmt.Errorf("UPLOAD_RATE_RPS and UPLOAD_RATE_BURST must be positive")
	}
	if _, err := middleware.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	return nil
}

// Postgres returns the pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:               c.PostgresHost,
		Port:               c.PostgresPort,
		User:               c.PostgresUser,
		Password:           c.PostgresPass,
		DBName:             c.PostgresDB,
		SSLMode:            c.PostgresSSL,
		MaxConns:           c.DBMaxConns,
		MinConns:           c.DBMinConns,
		MaxConnLifetime:    c.DBMaxConnLifetime,
		MaxConnIdleTime:    c.DBMaxConnIdleTime,
		SlowQueryThreshold: c.SlowQuery,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}

// Tracing returns the tracer settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// Imaging returns the logo pipeline settings.
func (c *Config) Imaging() imaging.Options {
	return imaging.Options{
		MinWidth:     c.ImageMinWidth,
		MinHeight:    c.ImageMinHeight,
		MaxWidth:     c.ImageMaxWidth,
		MaxHeight:    c.ImageMaxHeight,
		ThumbSize:    c.ThumbSize,
		Quality:      c.ImageQuality,
		ThumbQuality: c.ThumbQuality,
		MaxPixels:    c.ImageMaxPixels,
	}
}
