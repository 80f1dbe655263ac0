package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "vigil/pkg/platform/strings"
)

// Config is the root configuration for the gateway. Every tunable policy
// number (risk ceiling, extension threshold, cache TTL, readiness targets)
// lives here so no component hard-codes one.
type Config struct {
	Addr     string
	LogLevel string

	// PromoteEnhanced flips the source of truth for caller-visible results
	// from the legacy validator to the enhanced one. It is read exactly once,
	// by the orchestrator's selection step. Absent the flag, legacy wins
	// unconditionally.
	PromoteEnhanced bool

	// ValidatorTimeout bounds each validator run individually; it must stay
	// below any upstream request timeout so a stuck validator never delays
	// the response.
	ValidatorTimeout time.Duration

	SessionSigningKey string

	Cache     Cache
	Extension Extension
	Risk      Risk
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	Audit     Audit
	Readiness Readiness
}

// Cache configures the validation decision cache.
type Cache struct {
	// TTL is the policy cap; the effective entry TTL is min(TTL, remaining
	// credential lifetime).
	TTL time.Duration
	// Backend selects "memory" (default) or "redis".
	Backend   string
	KeyPrefix string
}

// Extension configures automatic credential extension.
type Extension struct {
	// ThresholdFraction is the consumed-lifetime fraction past which the
	// enhanced validator attempts an extension (0.9 = last 10% of lifetime).
	ThresholdFraction float64
	// Window is how far past the current expiry an extension reaches.
	Window time.Duration
}

// Risk configures risk scoring.
type Risk struct {
	// Ceiling is the score above which the enhanced validator degrades the
	// granted access level instead of failing the request.
	Ceiling float64
	// ResourcePolicy maps resource key prefixes to sensitivity and minimum
	// access requirements. Unknown resources get neutral sensitivity.
	ResourcePolicy map[string]ResourcePolicy
}

// ResourcePolicy describes one resource prefix.
type ResourcePolicy struct {
	Sensitivity float64 `json:"sensitivity"`
	MinAccess   string  `json:"min_access"`
}

// Postgres configures the durable stores. Empty URL keeps everything
// in memory.
type Postgres struct {
	URL string
}

// Redis configures the shared cache backend.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the optional audit mirror. Empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Audit configures the comparison record pipeline.
type Audit struct {
	BufferSize       int
	OverflowCapacity int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Readiness holds the promotion gate targets. Rates are fractions in [0,1];
// Disruption is a maximum, all others are minimums.
type Readiness struct {
	MaxDisruption          float64
	MinEnhancedSuccess     float64
	MinPerformanceParity   float64
	MinLoggingCompleteness float64
	MinCrossTenantBlock    float64
	MinExtensionSuccess    float64
	MinTranslationCoverage float64
}

// FromEnv builds the configuration from environment variables so main stays
// lean. Every value has a default good enough for local development.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:              envOr("VIGIL_ADDR", ":8080"),
		LogLevel:          envOr("VIGIL_LOG_LEVEL", "info"),
		PromoteEnhanced:   os.Getenv("VIGIL_PROMOTE_ENHANCED") == "true",
		ValidatorTimeout:  envDuration("VIGIL_VALIDATOR_TIMEOUT", 2*time.Second),
		SessionSigningKey: envOr("VIGIL_SESSION_SIGNING_KEY", "dev-secret-change-in-production"),
		Cache: Cache{
			TTL:       envDuration("VIGIL_CACHE_TTL", 5*time.Minute),
			Backend:   envOr("VIGIL_CACHE_BACKEND", "memory"),
			KeyPrefix: envOr("VIGIL_CACHE_KEY_PREFIX", "vigil:vc:"),
		},
		Extension: Extension{
			ThresholdFraction: envFloat("VIGIL_EXTENSION_THRESHOLD", 0.9),
			Window:            envDuration("VIGIL_EXTENSION_WINDOW", time.Hour),
		},
		Risk: Risk{
			Ceiling: envFloat("VIGIL_RISK_CEILING", 0.75),
		},
		Postgres: Postgres{
			URL: os.Getenv("VIGIL_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("VIGIL_REDIS_URL"),
			PoolSize:     envInt("VIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VIGIL_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VIGIL_REDIS_READ_TIMEOUT", 2*time.Second),
			WriteTimeout: envDuration("VIGIL_REDIS_WRITE_TIMEOUT", 2*time.Second),
		},
		Kafka: Kafka{
			Brokers: pkgstrings.DedupeAndTrim(strings.Split(os.Getenv("VIGIL_KAFKA_BROKERS"), ",")),
			Topic:   envOr("VIGIL_KAFKA_AUDIT_TOPIC", "vigil.validation.comparisons"),
		},
		Audit: Audit{
			BufferSize:       envInt("VIGIL_AUDIT_BUFFER_SIZE", 1024),
			OverflowCapacity: envInt("VIGIL_AUDIT_OVERFLOW_CAPACITY", 10000),
			BreakerThreshold: envInt("VIGIL_AUDIT_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  envDuration("VIGIL_AUDIT_BREAKER_COOLDOWN", time.Minute),
		},
		Readiness: Readiness{
			MaxDisruption:          envFloat("VIGIL_READY_MAX_DISRUPTION", 0.001),
			MinEnhancedSuccess:     envFloat("VIGIL_READY_MIN_ENHANCED_SUCCESS", 0.95),
			MinPerformanceParity:   envFloat("VIGIL_READY_MIN_PERF_PARITY", 0.5),
			MinLoggingCompleteness: envFloat("VIGIL_READY_MIN_LOGGING", 0.99),
			MinCrossTenantBlock:    envFloat("VIGIL_READY_MIN_CROSS_TENANT", 1.0),
			MinExtensionSuccess:    envFloat("VIGIL_READY_MIN_EXTENSION", 0.95),
			MinTranslationCoverage: envFloat("VIGIL_READY_MIN_TRANSLATION", 1.0),
		},
	}

	if raw := os.Getenv("VIGIL_RESOURCE_POLICY"); raw != "" {
		policy := map[string]ResourcePolicy{}
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return Config{}, fmt.Errorf("parse VIGIL_RESOURCE_POLICY: %w", err)
		}
		cfg.Risk.ResourcePolicy = policy
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Extension.ThresholdFraction <= 0 || c.Extension.ThresholdFraction >= 1 {
		return fmt.Errorf("extension threshold fraction must be in (0,1), got %v", c.Extension.ThresholdFraction)
	}
	if c.Risk.Ceiling <= 0 || c.Risk.Ceiling > 1 {
		return fmt.Errorf("risk ceiling must be in (0,1], got %v", c.Risk.Ceiling)
	}
	if c.ValidatorTimeout <= 0 {
		return fmt.Errorf("validator timeout must be positive, got %v", c.ValidatorTimeout)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("cache backend redis requires VIGIL_REDIS_URL")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
