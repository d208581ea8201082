package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "shatteredmoon.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SHATTEREDMOON_PORT")
	setString(&cfg.Server.MCPPort, "SHATTEREDMOON_MCP_PORT")
	setString(&cfg.Server.MCPAPIKey, "SHATTEREDMOON_MCP_API_KEY")
	setString(&cfg.Server.CORSOrigin, "SHATTEREDMOON_CORS_ORIGIN")
	setFloat64(&cfg.Server.RateLimitRPS, "SHATTEREDMOON_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "SHATTEREDMOON_RATE_LIMIT_BURST")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "SHATTEREDMOON_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.DefaultTTL, "SHATTEREDMOON_CACHE_TTL")
	setString(&cfg.Logging.Level, "SHATTEREDMOON_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SHATTEREDMOON_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SHATTEREDMOON_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "SHATTEREDMOON_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SHATTEREDMOON_BREAKER_TIMEOUT")
	setString(&cfg.Oracle.URL, "SHATTEREDMOON_ORACLE_URL")
	setDuration(&cfg.Oracle.Timeout, "SHATTEREDMOON_ORACLE_TIMEOUT")
	setUint64(&cfg.Oracle.MaxRetries, "SHATTEREDMOON_ORACLE_MAX_RETRIES")
	setDuration(&cfg.Oracle.CacheTTL, "SHATTEREDMOON_ORACLE_CACHE_TTL")
	setInt(&cfg.Scheduler.MaxSameTeamPerGroup, "SHATTEREDMOON_SCHED_MAX_SAME_TEAM")
	setString(&cfg.Scheduler.DefaultTeam, "SHATTEREDMOON_SCHED_DEFAULT_TEAM")
	setInt(&cfg.Scheduler.TargetParallelism, "SHATTEREDMOON_SCHED_PARALLELISM")
	setDuration(&cfg.Allocator.Capacity, "SHATTEREDMOON_ALLOC_CAPACITY")
	setDuration(&cfg.Allocator.HighWater, "SHATTEREDMOON_ALLOC_HIGH_WATER")
	setDuration(&cfg.Allocator.LowWater, "SHATTEREDMOON_ALLOC_LOW_WATER")
	setInt(&cfg.Allocator.MaxMovesPerPass, "SHATTEREDMOON_ALLOC_MAX_MOVES")
	setDuration(&cfg.Resolver.StaggerIncrement, "SHATTEREDMOON_RESOLVER_STAGGER")
	setDuration(&cfg.Resolver.TransferDuration, "SHATTEREDMOON_RESOLVER_TRANSFER")
	setInt(&cfg.Execution.MaxParallel, "SHATTEREDMOON_EXEC_MAX_PARALLEL")
	setFloat64(&cfg.Execution.BottleneckFactor, "SHATTEREDMOON_EXEC_BOTTLENECK_FACTOR")
	setBool(&cfg.Telemetry.Enabled, "SHATTEREDMOON_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "SHATTEREDMOON_TELEMETRY_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Server.RateLimitRPS <= 0 {
		return errors.New("server.rate_limit_rps must be positive")
	}
	if cfg.Server.RateLimitBurst < 1 {
		return errors.New("server.rate_limit_burst must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Scheduler.MaxSameTeamPerGroup < 1 {
		return errors.New("scheduler.max_same_team_per_group must be >= 1")
	}
	if cfg.Allocator.Capacity <= 0 {
		return errors.New("allocator.capacity must be positive")
	}
	if cfg.Allocator.HighWater > cfg.Allocator.Capacity {
		return errors.New("allocator.high_water must not exceed allocator.capacity")
	}
	if cfg.Execution.MaxParallel < 1 {
		return errors.New("execution.max_parallel must be >= 1")
	}
	if cfg.Execution.BottleneckFactor <= 1 {
		return errors.New("execution.bottleneck_factor must be > 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
