package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	databaseURL        string
	replicaDatabaseURL string
	redisURL           string
	sentryDSN          string
	kafkaBrokers       string
	kafkaTopic         string
	instanceID         string
	port               string
	metricsExporter    string
	cacheTTL           time.Duration
	cacheWaitTimeout   time.Duration
	syncSleep          time.Duration
	replicaReadPercent int
	rateLimitRPS       int
	env                environment
}

func (c *Config) DatabaseURL() string {
	return c.databaseURL
}

// ReplicaDatabaseURL is empty when no read replica is configured.
func (c *Config) ReplicaDatabaseURL() string {
	return c.replicaDatabaseURL
}

func (c *Config) RedisURL() string {
	return c.redisURL
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) KafkaBrokers() string {
	return c.kafkaBrokers
}

func (c *Config) KafkaTopic() string {
	return c.kafkaTopic
}

func (c *Config) InstanceID() string {
	return c.instanceID
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) MetricsExporter() string {
	return c.metricsExporter
}

func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) CacheWaitTimeout() time.Duration {
	return c.cacheWaitTimeout
}

func (c *Config) SyncSleep() time.Duration {
	return c.syncSleep
}

func (c *Config) ReplicaReadPercent() int {
	return c.replicaReadPercent
}

func (c *Config) RateLimitRPS() int {
	return c.rateLimitRPS
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, instanceID: %s, cacheTTL: %s, cacheWaitTimeout: %s, replicaReadPercent: %d, metricsExporter: %s, kafkaTopic: %s, ...}",
		string(c.env),
		c.port,
		c.instanceID,
		c.cacheTTL,
		c.cacheWaitTimeout,
		c.replicaReadPercent,
		c.metricsExporter,
		c.kafkaTopic,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("HLSL_ENVIRONMENT")
	if !ok {
		return missingKey("HLSL_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: HLSL_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	replicaDatabaseURL := os.Getenv("REPLICA_DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	sentryDSN := os.Getenv("SENTRY_DSN")
	kafkaBrokers := os.Getenv("KAFKA_BOOTSTRAP_SERVERS")

	kafkaTopic := os.Getenv("KAFKA_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "async_messages"
	}

	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "app-1"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	metricsExporter := os.Getenv("METRICS_EXPORTER")
	if metricsExporter == "" {
		metricsExporter = "prometheus"
	}
	if metricsExporter != "prometheus" && metricsExporter != "otlp" {
		return Config{}, fmt.Errorf("%w: METRICS_EXPORTER (%s)", ErrInvalidValue, metricsExporter)
	}

	cacheTTLSeconds, err := intFromEnv("CACHE_TTL", 30)
	if err != nil {
		return Config{}, err
	}
	if cacheTTLSeconds <= 0 {
		return Config{}, fmt.Errorf("%w: CACHE_TTL (%d)", ErrInvalidValue, cacheTTLSeconds)
	}

	cacheWaitTimeoutMS, err := intFromEnv("CACHE_WAIT_TIMEOUT_MS", 10_000)
	if err != nil {
		return Config{}, err
	}
	if cacheWaitTimeoutMS <= 0 {
		return Config{}, fmt.Errorf("%w: CACHE_WAIT_TIMEOUT_MS (%d)", ErrInvalidValue, cacheWaitTimeoutMS)
	}

	syncSleepMS, err := intFromEnv("SYNC_SLEEP_MS", 300)
	if err != nil {
		return Config{}, err
	}
	if syncSleepMS < 0 {
		return Config{}, fmt.Errorf("%w: SYNC_SLEEP_MS (%d)", ErrInvalidValue, syncSleepMS)
	}

	replicaReadPercent, err := intFromEnv("REPLICA_READ_PERCENT", 50)
	if err != nil {
		return Config{}, err
	}
	if replicaReadPercent < 0 || replicaReadPercent > 100 {
		return Config{}, fmt.Errorf("%w: REPLICA_READ_PERCENT (%d)", ErrInvalidValue, replicaReadPercent)
	}

	rateLimitRPS, err := intFromEnv("RATE_LIMIT_RPS", 0)
	if err != nil {
		return Config{}, err
	}
	if rateLimitRPS < 0 {
		return Config{}, fmt.Errorf("%w: RATE_LIMIT_RPS (%d)", ErrInvalidValue, rateLimitRPS)
	}

	if env == production || env == staging {
		if databaseURL == "" {
			return missingKey("DATABASE_URL")
		}
		if redisURL == "" {
			return missingKey("REDIS_URL")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if kafkaBrokers == "" {
			return missingKey("KAFKA_BOOTSTRAP_SERVERS")
		}
	}

	return Config{
		databaseURL:        databaseURL,
		replicaDatabaseURL: replicaDatabaseURL,
		redisURL:           redisURL,
		sentryDSN:          sentryDSN,
		kafkaBrokers:       kafkaBrokers,
		kafkaTopic:         kafkaTopic,
		instanceID:         instanceID,
		port:               port,
		metricsExporter:    metricsExporter,
		cacheTTL:           time.Duration(cacheTTLSeconds) * time.Second,
		cacheWaitTimeout:   time.Duration(cacheWaitTimeoutMS) * time.Millisecond,
		syncSleep:          time.Duration(syncSleepMS) * time.Millisecond,
		replicaReadPercent: replicaReadPercent,
		rateLimitRPS:       rateLimitRPS,
		env:                env,
	}, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}
