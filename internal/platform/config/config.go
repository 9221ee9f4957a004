// Package config provides application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Release drivers.
const (
	DriverCLI = "cli"
	DriverSDK = "sdk"
)

// Config holds the agent configuration loaded from environment variables.
// The four run arguments may be left empty here and supplied as CLI flags.
type Config struct {
	CallbackEndpoint           string
	ManifestFile               string
	CredentialProviderEndpoint string
	CredentialProviderAuth     string
	LogLevel                   string

	// Release management
	ReleaseDriver string // "cli" (helm binary) or "sdk" (in-process)
	HelmBin       string // helm binary for the cli driver
	Kubeconfig    string // empty means default loading rules

	MaxConcurrency int           // fan-out limit per phase, 0 is unbounded
	HTTPTimeout    time.Duration // per request, credential provider and callback
	DryRun         bool

	// OpenTelemetry (optional)
	OTelEnabled bool // OTEL_ENABLED feature flag
}

// Load reads configuration from environment variables and applies defaults
// for LogLevel ("info"), ReleaseDriver ("cli"), HelmBin ("helm"),
// MaxConcurrency (8) and HTTPTimeout (30s).
func Load() (Config, error) {
	cfg := Config{
		LogLevel:       "info",
		ReleaseDriver:  DriverCLI,
		HelmBin:        "helm",
		MaxConcurrency: 8,
		HTTPTimeout:    30 * time.Second,
	}

	loadRunConfig(&cfg)

	if err := loadReleaseConfig(&cfg); err != nil {
		return Config{}, err
	}

	if err := loadTuningConfig(&cfg); err != nil {
		return Config{}, err
	}

	loadOTelConfig(&cfg)

	return cfg, nil
}

func loadRunConfig(cfg *Config) {
	cfg.CallbackEndpoint = os.Getenv("CALLBACK_ENDPOINT")
	cfg.ManifestFile = os.Getenv("MANIFEST_FILE")
	cfg.CredentialProviderEndpoint = os.Getenv("CREDENTIAL_PROVIDER_ENDPOINT")
	cfg.CredentialProviderAuth = os.Getenv("CREDENTIAL_PROVIDER_AUTH")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
}

func loadReleaseConfig(cfg *Config) error {
	driver := strings.ToLower(getEnvOrDefault("RELEASE_DRIVER", cfg.ReleaseDriver))
	if driver != DriverCLI && driver != DriverSDK {
		return fmt.Errorf("invalid RELEASE_DRIVER %q: must be %q or %q", driver, DriverCLI, DriverSDK)
	}
	cfg.ReleaseDriver = driver
	cfg.HelmBin = getEnvOrDefault("HELM_BIN", cfg.HelmBin)
	cfg.Kubeconfig = os.Getenv("KUBECONFIG")
	return nil
}

func loadTuningConfig(cfg *Config) error {
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONCURRENCY %q: %w", v, err)
		}
		if n < 0 {
			return fmt.Errorf("invalid MAX_CONCURRENCY %q: must not be negative", v)
		}
		cfg.MaxConcurrency = n
	}

	dur, err := parseDurationOrDefault("HTTP_TIMEOUT", cfg.HTTPTimeout)
	if err != nil {
		return err
	}
	cfg.HTTPTimeout = dur

	if v := os.Getenv("DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DRY_RUN %q: %w", v, err)
		}
		cfg.DryRun = b
	}
	return nil
}

func getEnvOrDefault(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func loadOTelConfig(cfg *Config) {
	cfg.OTelEnabled = os.Getenv("OTEL_ENABLED") == "true"
}

func parseDurationOrDefault(envKey string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return defaultValue, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return dur, nil
}
