// Package config loads and validates startup configuration for the
// ingestion engine: an optional YAML overlay read first, then environment
// variables applied on top (env always wins), matching every option in
// the spec's configuration table and its defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the core components read at construction time.
type Config struct {
	DatabaseURL string `yaml:"database_url"`

	RegistryTokenEndpoint string `yaml:"registry_token_endpoint"`
	RegistryClientID      string `yaml:"registry_client_id"`
	RegistryClientSecret  string `yaml:"registry_client_secret"`
	RegistryScope         string `yaml:"registry_scope"`
	RegistryBaseURL       string `yaml:"registry_base_url"`

	ScraperBaseURL string `yaml:"scraper_base_url"`

	CacheTTL             time.Duration `yaml:"-"`
	CacheTTLHours        int           `yaml:"cache_ttl_hours"`
	RequestTimeout       time.Duration `yaml:"-"`
	RequestTimeoutSec    int           `yaml:"request_timeout_seconds"`
	ConnectTimeout       time.Duration `yaml:"-"`
	ConnectTimeoutSec    int           `yaml:"connect_timeout_seconds"`
	MaxRetries           int           `yaml:"max_retries"`
	RetryBackoffBase     time.Duration `yaml:"-"`
	RetryBackoffBaseSec  float64       `yaml:"retry_backoff_base_seconds"`
	RetryBackoffMax      time.Duration `yaml:"-"`
	RetryBackoffMaxSec   float64       `yaml:"retry_backoff_max_seconds"`
	RetryJitter          bool          `yaml:"retry_jitter"`
	CircuitFailureThresh int           `yaml:"circuit_failure_threshold"`
	CircuitRecovery      time.Duration `yaml:"-"`
	CircuitRecoverySec   float64       `yaml:"circuit_recovery_timeout_seconds"`
	MaxParallelSources   int           `yaml:"max_parallel_sources"`
	BatchParallelWorkers int           `yaml:"batch_parallel_workers"`
	VDMRequestDelay      time.Duration `yaml:"-"`
	VDMRequestDelaySec   float64       `yaml:"vdm_request_delay_seconds"`
	VDMConcurrency       int           `yaml:"vdm_concurrency"`

	ScraperRateInterval   time.Duration `yaml:"-"`
	RegistryRateInterval  time.Duration `yaml:"-"`
	XBRLDocRateInterval   time.Duration `yaml:"-"`

	StatusPort string `yaml:"status_port"`
}

// Defaults returns the spec's documented defaults (§6 of SPEC_FULL.md).
func Defaults() Config {
	return Config{
		CacheTTLHours:        24,
		RequestTimeoutSec:    15,
		ConnectTimeoutSec:    5,
		MaxRetries:           3,
		RetryBackoffBaseSec:  1.5,
		RetryBackoffMaxSec:   30,
		RetryJitter:          true,
		CircuitFailureThresh: 5,
		CircuitRecoverySec:   60,
		MaxParallelSources:   2,
		BatchParallelWorkers: 5,
		VDMRequestDelaySec:   5,
		VDMConcurrency:       1,
		ScraperRateInterval:  1 * time.Second,
		RegistryRateInterval: 500 * time.Millisecond,
		XBRLDocRateInterval:  5 * time.Second,
		RegistryScope:        "organisationer dokumentlista",
		StatusPort:           "8090",
	}
}

// Load reads an optional YAML file at path (if non-empty and present),
// overlays it onto Defaults(), then overlays environment variables on
// top, and finally derives duration fields from their *Sec counterparts.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	deriveDurations(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	str(&cfg.DatabaseURL, "DATABASE_URL")
	str(&cfg.RegistryTokenEndpoint, "REGISTRY_TOKEN_ENDPOINT")
	str(&cfg.RegistryClientID, "REGISTRY_CLIENT_ID")
	str(&cfg.RegistryClientSecret, "REGISTRY_CLIENT_SECRET")
	str(&cfg.RegistryScope, "REGISTRY_SCOPE")
	str(&cfg.RegistryBaseURL, "REGISTRY_BASE_URL")
	str(&cfg.ScraperBaseURL, "SCRAPER_BASE_URL")
	str(&cfg.StatusPort, "STATUS_PORT")

	intVar(&cfg.CacheTTLHours, "CACHE_TTL_HOURS")
	intVar(&cfg.RequestTimeoutSec, "REQUEST_TIMEOUT")
	intVar(&cfg.ConnectTimeoutSec, "CONNECT_TIMEOUT")
	intVar(&cfg.MaxRetries, "MAX_RETRIES")
	floatVar(&cfg.RetryBackoffBaseSec, "RETRY_BACKOFF_BASE")
	floatVar(&cfg.RetryBackoffMaxSec, "RETRY_BACKOFF_MAX")
	boolVar(&cfg.RetryJitter, "RETRY_JITTER")
	intVar(&cfg.CircuitFailureThresh, "CIRCUIT_FAILURE_THRESHOLD")
	floatVar(&cfg.CircuitRecoverySec, "CIRCUIT_RECOVERY_TIMEOUT")
	intVar(&cfg.MaxParallelSources, "MAX_PARALLEL_SOURCES")
	intVar(&cfg.BatchParallelWorkers, "BATCH_PARALLEL_WORKERS")
	floatVar(&cfg.VDMRequestDelaySec, "VDM_REQUEST_DELAY")
	intVar(&cfg.VDMConcurrency, "VDM_CONCURRENCY")
}

func deriveDurations(cfg *Config) {
	cfg.CacheTTL = time.Duration(cfg.CacheTTLHours) * time.Hour
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	cfg.ConnectTimeout = time.Duration(cfg.ConnectTimeoutSec) * time.Second
	cfg.RetryBackoffBase = time.Duration(cfg.RetryBackoffBaseSec * float64(time.Second))
	cfg.RetryBackoffMax = time.Duration(cfg.RetryBackoffMaxSec * float64(time.Second))
	cfg.CircuitRecovery = time.Duration(cfg.CircuitRecoverySec * float64(time.Second))
	cfg.VDMRequestDelay = time.Duration(cfg.VDMRequestDelaySec * float64(time.Second))
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVar(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVar(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate fails fast on missing fatal-configuration items (spec §7 item 8).
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.RegistryTokenEndpoint == "" || c.RegistryClientID == "" || c.RegistryClientSecret == "" {
		return fmt.Errorf("config: REGISTRY_TOKEN_ENDPOINT, REGISTRY_CLIENT_ID and REGISTRY_CLIENT_SECRET are required")
	}
	if c.RegistryBaseURL == "" {
		return fmt.Errorf("config: REGISTRY_BASE_URL is required")
	}
	if c.ScraperBaseURL == "" {
		return fmt.Errorf("config: SCRAPER_BASE_URL is required")
	}
	return nil
}
