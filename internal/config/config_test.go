package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTLHours != 24 {
		t.Errorf("CacheTTLHours = %d, want 24", cfg.CacheTTLHours)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL = %s, want 24h", cfg.CacheTTL)
	}
	if cfg.RegistryRateInterval != 500*time.Millisecond {
		t.Errorf("RegistryRateInterval = %s, want 500ms", cfg.RegistryRateInterval)
	}
	if cfg.StatusPort != "8090" {
		t.Errorf("StatusPort = %q, want 8090", cfg.StatusPort)
	}
}

func TestLoadOverlaysYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database_url: "postgres://yaml"
max_retries: 7
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MAX_RETRIES", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://yaml" {
		t.Errorf("DatabaseURL = %q, want value from YAML file", cfg.DatabaseURL)
	}
	if cfg.MaxRetries != 9 {
		t.Errorf("MaxRetries = %d, want 9 (env overrides YAML)", cfg.MaxRetries)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
}

func TestValidateRequiresFatalFields(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, true},
		{"missing registry credentials", func(c *Config) { c.RegistryClientSecret = "" }, true},
		{"missing registry base url", func(c *Config) { c.RegistryBaseURL = "" }, true},
		{"missing scraper base url", func(c *Config) { c.ScraperBaseURL = "" }, true},
		{"fully populated", func(c *Config) {}, false},
	}

	for _, tc := range cases {
		cfg := Defaults()
		cfg.DatabaseURL = "postgres://db"
		cfg.RegistryTokenEndpoint = "https://auth.example/token"
		cfg.RegistryClientID = "id"
		cfg.RegistryClientSecret = "secret"
		cfg.RegistryBaseURL = "https://registry.example"
		cfg.ScraperBaseURL = "https://scraper.example"
		tc.mutate(&cfg)

		err := cfg.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: Validate() = nil, want error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: Validate() = %v, want nil", tc.name, err)
		}
	}
}
