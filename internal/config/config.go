package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Triage server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	Probe    ProbeConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// PipelineConfig bounds the per-run orchestrator.
type PipelineConfig struct {
	// MaxWorkers caps how many suites are classified concurrently.
	MaxWorkers int
	// SuiteTimeout bounds one suite's processing, probe call included.
	SuiteTimeout time.Duration
}

// ProbeConfig selects the optional container-probe runtime.
type ProbeConfig struct {
	Runtime string
	Timeout time.Duration
}

var validProbeRuntimes = map[string]bool{
	"apptainer": true,
	"docker":    true,
	"none":      true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TRIAGE_PORT", 8080),
			Env:  envString("TRIAGE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Pipeline: PipelineConfig{
			MaxWorkers:   envInt("TRIAGE_MAX_WORKERS", 10),
			SuiteTimeout: envDuration("TRIAGE_SUITE_TIMEOUT", 2*time.Minute),
		},
		Probe: ProbeConfig{
			Runtime: envString("PROBE_RUNTIME", "none"),
			Timeout: envDuration("PROBE_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("TRIAGE_MAX_WORKERS must be at least 1, got %d", c.Pipeline.MaxWorkers)
	}

	if !validProbeRuntimes[c.Probe.Runtime] {
		return fmt.Errorf("PROBE_RUNTIME must be one of apptainer, docker, none; got %q", c.Probe.Runtime)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
