// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendNATS   = "nats"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Tenancy       TenancyConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// AuthConfig holds bearer credential configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// TenancyConfig controls how stores are derived from the request host
type TenancyConfig struct {
	// ReservedLabels are first host labels that never name a store.
	ReservedLabels []string
}

// CacheConfig holds store cache configuration
type CacheConfig struct {
	Backend      string
	TenantTTL    time.Duration
	MaxCostBytes int64
	NATSURL      string
	NATSBucket   string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel         string
	LogFormat        string
	OTELEnabled      bool
	OTELInsecure     bool
	OTELLogBridge    bool
	TraceSampleRatio float64
	MetricsInterval  time.Duration
	Prometheus       bool
	ServiceName      string
	ServiceVersion   string
}

// SecurityConfig holds password hashing parameters
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// RateLimitConfig holds rate limiting configuration for /signup and /login
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "4000"),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			RequestTimeout:  parseDuration("SERVER_REQUEST_TIMEOUT", "60s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "storefront"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  parseDuration("TOKEN_TTL", "24h"),
		},
		Tenancy: TenancyConfig{
			ReservedLabels: parseList("TENANT_RESERVED_LABELS", []string{"localhost", "api"}),
		},
		Cache: CacheConfig{
			Backend:      strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			TenantTTL:    parseDuration("CACHE_TENANT_TTL", "3600s"),
			MaxCostBytes: int64(parseInt("CACHE_MAX_COST_BYTES", 16<<20)),
			NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			NATSBucket:   getEnv("NATS_KV_BUCKET", "storefront-stores"),
		},
		Observability: ObservabilityConfig{
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			LogFormat:        getEnv("LOG_FORMAT", "json"),
			OTELEnabled:      parseBool("OTEL_ENABLED", false),
			OTELInsecure:     parseBool("OTEL_INSECURE", false),
			OTELLogBridge:    parseBool("OTEL_LOG_BRIDGE", false),
			TraceSampleRatio: parseFloat("OTEL_TRACE_SAMPLE_RATIO", 1.0),
			MetricsInterval:  parseDuration("OTEL_METRICS_INTERVAL", "30s"),
			Prometheus:       parseBool("PROMETHEUS_ENABLED", false),
			ServiceName:      getEnv("OTEL_SERVICE_NAME", "storefront"),
			ServiceVersion:   getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
		if c.Cache.MaxCostBytes <= 0 {
			errs = append(errs, errors.New("CACHE_MAX_COST_BYTES must be positive"))
		}
	case CacheBackendNATS:
		if c.Cache.NATSURL == "" || c.Cache.NATSBucket == "" {
			errs = append(errs, errors.New("NATS_URL and NATS_KV_BUCKET are required for the nats cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q",
			CacheBackendMemory, CacheBackendNATS, c.Cache.Backend))
	}
	if c.Cache.TenantTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TENANT_TTL must be positive"))
	}
	if c.Security.Argon2Parallelism == 0 || c.Security.Argon2Iterations == 0 {
		errs = append(errs, errors.New("ARGON2_ITERATIONS and ARGON2_PARALLELISM must be positive"))
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

// parseList splits a comma separated value, dropping blanks. An unset
// variable yields defaultValue; a set but blank one yields an empty list.
func parseList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
