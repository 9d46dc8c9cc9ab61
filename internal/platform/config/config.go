// Package config loads process configuration from the environment.
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Identity IdentityConfig
	Log      LogConfig
	Sentry   SentryConfig
	Limits   RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

func (s Server) IsProduction() bool { return s.Env == "production" }

type DatabaseConfig struct {
	// DSN empty selects the in-memory store.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheNone   CacheBackend = "none"
)

type CacheConfig struct {
	Backend    CacheBackend
	TTL        time.Duration
	MaxEntries int
}

type KafkaConfig struct {
	// Brokers empty selects the log publisher.
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

type IdentityConfig struct {
	DefaultRegion  string
	ResolverLimit  int
	IntegrityProbe bool
	Fingerprinting bool
}

// RateLimitConfig budgets requests per client address. Counters live in
// Redis when REDIS_URL is set, in process memory otherwise.
type RateLimitConfig struct {
	Enabled       bool
	ReadRequests  int
	WriteRequests int
	Window        time.Duration
}

type LogConfig struct {
	Level string
}

type SentryConfig struct {
	DSN string
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: Server{
			Addr:            getEnv("TRUSTDIR_ADDR", ":8080"),
			Env:             getEnv("APP_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Backend:    CacheBackend(strings.ToLower(getEnv("CACHE_BACKEND", string(CacheMemory)))),
			TTL:        getEnvAsDuration("CACHE_TTL", 60*time.Second),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 10_000),
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:             getEnv("KAFKA_TOPIC", "trustdir.events"),
			Partitions:        int32(getEnvAsInt("KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(getEnvAsInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     getEnv("JWT_ISSUER", "trustdir"),
			JWTAudience:   getEnv("JWT_AUDIENCE", "trustdir-admin"),
		},
		Identity: IdentityConfig{
			DefaultRegion:  strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "TR")),
			ResolverLimit:  getEnvAsInt("RESOLVER_LIMIT", 10),
			IntegrityProbe: getEnvAsBool("INTEGRITY_PROBE", true),
			Fingerprinting: getEnvAsBool("FINGERPRINTING", true),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Limits: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", true),
			ReadRequests:  getEnvAsInt("RATE_LIMIT_READ", 120),
			WriteRequests: getEnvAsInt("RATE_LIMIT_WRITE", 20),
			Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Redis.URL == "" {
			return errors.New("CACHE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return errors.New("CACHE_BACKEND must be one of memory, redis, none")
	}
	if c.Server.IsProduction() && c.Auth.JWTSigningKey == devSigningKey {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}
	if c.Limits.Enabled && c.Limits.Window <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Identity.DefaultRegion == "" {
		return errors.New("PHONE_DEFAULT_REGION must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
