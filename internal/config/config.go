package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CentralizedService configures the remote token authority client.
type CentralizedService struct {
	Enabled        bool
	BaseURL        string
	MaxRetries     int
	RetryBase      time.Duration
	RetryCap       time.Duration
	EnableFallback bool
}

type Config struct {
	Port     string
	LogLevel string

	JwtSecret string
	JwtTTL    time.Duration
	JwtIssuer string

	// Token store settings
	PersistentStore bool // use Redis instead of the in-process store
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	StoreFallback   bool // fall back to the in-process store when Redis is down

	// Student database settings
	DBAdapter  string
	SQLiteFile string
	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RateLimitPerMinute int

	JWTService CentralizedService
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable" // Default to disable for local development
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

func New() (*Config, error) {
	c := &Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		JwtSecret: getenv("JWT_SECRET", "change-me"),
		JwtTTL:    getenvDuration("JWT_TTL", 24*time.Hour),
		JwtIssuer: getenv("JWT_ISSUER", "student-management-api"),

		PersistentStore: getenvBool("TOKEN_STORE_PERSISTENT", false),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisDB:         getenvInt("REDIS_DB", 0),
		StoreFallback:   getenvBool("TOKEN_STORE_FALLBACK", true),

		DBAdapter:  getenv("DB_ADAPTER", "sqlite"),
		SQLiteFile: getenv("SQLITE_FILE", "./data/students.db"),

		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		PostgresPort:     getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		PostgresUser:     getenv("POSTGRES_USER", getenv("DB_USER", "students")),
		PostgresPassword: getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "")),
		PostgresDB:       getenv("POSTGRES_DB", getenv("DB_NAME", "students")),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable")),

		RateLimitPerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 100),

		JWTService: CentralizedService{
			Enabled:        getenvBool("JWT_SERVICE_ENABLED", false),
			BaseURL:        getenv("JWT_SERVICE_URL", "http://localhost:8081/api/v1/jwt"),
			MaxRetries:     getenvInt("JWT_SERVICE_MAX_RETRIES", 3),
			RetryBase:      getenvDuration("JWT_SERVICE_RETRY_BASE", time.Second),
			RetryCap:       getenvDuration("JWT_SERVICE_RETRY_CAP", 5*time.Second),
			EnableFallback: getenvBool("JWT_SERVICE_FALLBACK", true),
		},
	}

	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}

	if c.DBAdapter == "sqlite" && c.SQLiteFile == "" {
		return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
	}

	if c.JwtTTL <= 0 {
		return nil, errors.New("JWT_TTL must be positive")
	}

	if c.JWTService.Enabled && c.JWTService.BaseURL == "" {
		return nil, errors.New("JWT_SERVICE_URL must be set when JWT_SERVICE_ENABLED=true")
	}

	// Validate JWT secret in production
	env := strings.ToLower(getenv("ENV", ""))
	if env == "production" || env == "prod" {
		if c.JwtSecret == "" || c.JwtSecret == "change-me" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
