// Package config provides hierarchical configuration loading for Shattered Moon.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the coordination service.
type Config struct {
	Server    Server    `yaml:"server"`
	NATS      NATS      `yaml:"nats"`
	Cache     Cache     `yaml:"cache"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Oracle    Oracle    `yaml:"oracle"`
	Scheduler Scheduler `yaml:"scheduler"`
	Allocator Allocator `yaml:"allocator"`
	Resolver  Resolver  `yaml:"resolver"`
	Execution Execution `yaml:"execution"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port           string  `yaml:"port"`
	MCPPort        string  `yaml:"mcp_port"`
	MCPAPIKey      string  `yaml:"mcp_api_key"`
	CORSOrigin     string  `yaml:"cors_origin"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// NATS holds NATS JetStream configuration.
type NATS struct {
	URL string `yaml:"url"`
}

// Cache holds in-process cache configuration.
type Cache struct {
	MaxSizeMB  int64         `yaml:"max_size_mb"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Oracle holds the task decomposition oracle configuration.
// The oracle is an external HTTP service; when unreachable, a
// heuristic fallback decomposer is used instead.
type Oracle struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries uint64        `yaml:"max_retries"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// Scheduler holds phase scheduling configuration.
type Scheduler struct {
	MaxSameTeamPerGroup int    `yaml:"max_same_team_per_group"`
	DefaultTeam         string `yaml:"default_team"`
	TargetParallelism   int    `yaml:"target_parallelism"`
}

// Allocator holds workload allocation configuration.
type Allocator struct {
	Capacity        time.Duration `yaml:"capacity"`
	HighWater       time.Duration `yaml:"high_water"`
	LowWater        time.Duration `yaml:"low_water"`
	MaxMovesPerPass int           `yaml:"max_moves_per_pass"`
}

// Resolver holds conflict resolution configuration.
type Resolver struct {
	StaggerIncrement time.Duration `yaml:"stagger_increment"`
	TransferDuration time.Duration `yaml:"transfer_duration"`
}

// Execution holds plan execution engine configuration.
type Execution struct {
	MaxParallel      int     `yaml:"max_parallel"`
	BottleneckFactor float64 `yaml:"bottleneck_factor"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			MCPPort:        "8081",
			CORSOrigin:     "http://localhost:3000",
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		NATS: NATS{
			URL: "nats://localhost:4222",
		},
		Cache: Cache{
			MaxSizeMB:  64,
			DefaultTTL: 10 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "shatteredmoon-core",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Oracle: Oracle{
			URL:        "http://localhost:4000",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			CacheTTL:   5 * time.Minute,
		},
		Scheduler: Scheduler{
			MaxSameTeamPerGroup: 3,
			DefaultTeam:         "general",
			TargetParallelism:   4,
		},
		Allocator: Allocator{
			Capacity:        8 * time.Hour,
			HighWater:       400 * time.Minute,
			LowWater:        2 * time.Hour,
			MaxMovesPerPass: 2,
		},
		Resolver: Resolver{
			StaggerIncrement: 15 * time.Minute,
			TransferDuration: 30 * time.Minute,
		},
		Execution: Execution{
			MaxParallel:      4,
			BottleneckFactor: 1.5,
		},
		Telemetry: Telemetry{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
	}
}
