package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	JWTSecret   string

	OIDCIssuer   string
	OIDCAudience string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitBackend       string
	RateLimitTable         string
	RateLimitPerHour       int
	RateLimitFailurePolicy string
	RateLimitPurgeInterval time.Duration
	AdminOverrideUserIDs   []string

	OperationLogTable         string
	OperationLogFailurePolicy string

	ReplicateAPIToken string
	StabilityAPIToken string
	GeminiAPIKey      string
	GeminiModel       string
	RunwayAPIToken    string
	ResizeServiceURL  string
	ProviderTimeout   time.Duration

	GeoIPDBPath string

	StoragePath        string
	StorageBaseURL     string
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		OIDCIssuer:   os.Getenv("OIDC_ISSUER"),
		OIDCAudience: os.Getenv("OIDC_AUDIENCE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitBackend:       strings.ToLower(os.Getenv("RATE_LIMIT_BACKEND")),
		RateLimitTable:         getEnv("RATE_LIMIT_TABLE_NAME", "rate_limits"),
		RateLimitPerHour:       getEnvInt("RATE_LIMIT_PER_HOUR", 10),
		RateLimitFailurePolicy: getEnv("RATE_LIMIT_FAILURE_POLICY", "allow"),
		RateLimitPurgeInterval: time.Second * time.Duration(getEnvInt("RATE_LIMIT_PURGE_INTERVAL_SECONDS", 900)),
		AdminOverrideUserIDs:   getEnvList("ADMIN_OVERRIDE_USER_IDS", []string{"admin", "test-user"}),

		OperationLogTable:         os.Getenv("OPERATION_LOG_TABLE"),
		OperationLogFailurePolicy: getEnv("OPERATION_LOG_FAILURE_POLICY", "allow"),

		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		StabilityAPIToken: os.Getenv("STABILITY_API_TOKEN"),
		GeminiAPIKey:      os.Getenv("GCP_API_TOKEN"),
		GeminiModel:       os.Getenv("GEMINI_MODEL"),
		RunwayAPIToken:    os.Getenv("RUNWAY_API_TOKEN"),
		ResizeServiceURL:  os.Getenv("LAMBDA_RESIZE_URL"),
		ProviderTimeout:   time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120)),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.JWTSecret == "" && cfg.OIDCIssuer == "" {
		return nil, fmt.Errorf("JWT_SECRET or OIDC_ISSUER is required")
	}

	if cfg.RateLimitBackend == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.RateLimitBackend = "postgres"
		case cfg.RedisAddr != "":
			cfg.RateLimitBackend = "redis"
		default:
			cfg.RateLimitBackend = "memory"
		}
	}
	switch cfg.RateLimitBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres rate limit backend")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for the redis rate limit backend")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", cfg.RateLimitBackend)
	}

	if cfg.RateLimitPerHour <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_HOUR must be positive")
	}

	return cfg, nil
}

// OperationLogEnabled reports whether operation logging has a destination.
func (c *Config) OperationLogEnabled() bool {
	return c.OperationLogTable != "" && c.DatabaseURL != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
