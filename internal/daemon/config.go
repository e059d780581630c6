// Package daemon wires the matchd services together and manages their
// configuration and lifecycle.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Engine     EngineConfig     `toml:"engine"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Travel     TravelConfig     `toml:"travel"`
	Resilience ResilienceConfig `toml:"resilience"`
	Queue      QueueConfig      `toml:"queue"`
	Webhook    WebhookConfig    `toml:"webhook"`
	Store      StoreConfig      `toml:"store"`
	Directory  DirectoryConfig  `toml:"directory"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Logging    LoggingConfig    `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	AuthSecret string `toml:"auth_secret"` // enables bearer auth on /v2 when set
}

// EngineConfig bounds the matching pipeline.
type EngineConfig struct {
	DefaultMinScore    float64   `toml:"default_min_score"`
	DefaultLimit       int       `toml:"default_limit"`
	LimitCap           int       `toml:"limit_cap"`
	ComparisonVariants []string  `toml:"comparison_variants"`
	ComparisonWeights  []float64 `toml:"comparison_weights"`
}

// ScoringConfig tunes the synonym table and the intelligence bonuses.
type ScoringConfig struct {
	SynonymsFile     string  `toml:"synonyms_file"`
	SynonymThreshold float64 `toml:"synonym_threshold"`
	BonusCap         float64 `toml:"bonus_cap"`
	BonusPoints      float64 `toml:"bonus_points"`
}

// TravelConfig controls the commute-time provider.
type TravelConfig struct {
	ProviderMode    string  `toml:"provider_mode"` // real, simulated, hybrid
	CacheTTLSeconds int     `toml:"cache_ttl_s"`
	CacheSize       int     `toml:"cache_size"`
	TimeoutSeconds  int     `toml:"timeout_s"`
	APIURL          string  `toml:"api_url"`
	APIKey          string  `toml:"api_key"`
	RateLimitRPS    float64 `toml:"rate_limit_rps"`
	MaxConcurrent   int     `toml:"max_concurrent"`
}

// ResilienceConfig tunes the breaker and retry budget for outbound calls.
type ResilienceConfig struct {
	CircuitFailMax      int `toml:"circuit_fail_max"`
	CircuitResetSeconds int `toml:"circuit_reset_s"`
	MaxRetries          int `toml:"max_retries"`
}

// QueueConfig controls the async matching queue.
type QueueConfig struct {
	Workers           int `toml:"workers"`
	JobTimeoutSeconds int `toml:"job_timeout_s"`
	ResultTTLSeconds  int `toml:"result_ttl_s"`
	MaxDepth          int `toml:"max_depth"`
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	MaxRetries     int    `toml:"max_retries"`
	TimeoutSeconds int    `toml:"timeout_s"`
	Secret         string `toml:"secret"` // HMAC signing key; empty disables signatures
}

// StoreConfig controls the tiered result store.
type StoreConfig struct {
	Driver                    string `toml:"driver"` // sqlite (default) or postgres
	DSN                       string `toml:"dsn"`
	LargeResultThresholdBytes int    `toml:"large_result_threshold_bytes"`
	HotTTLSeconds             int    `toml:"hot_ttl_s"`
	HotSize                   int    `toml:"hot_size"`
}

// DirectoryConfig points at optional fixture files for id-based lookups.
type DirectoryConfig struct {
	CandidatesFile string `toml:"candidates_file"`
	JobsFile       string `toml:"jobs_file"`
}

// TelemetryConfig controls the metrics endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Engine: EngineConfig{
			DefaultMinScore: 0.6,
			DefaultLimit:    10,
			LimitCap:        50,
		},
		Scoring: ScoringConfig{
			SynonymThreshold: 0.85,
			BonusCap:         15,
			BonusPoints:      5,
		},
		Travel: TravelConfig{
			ProviderMode:    "hybrid",
			CacheTTLSeconds: 3600,
			CacheSize:       4096,
			TimeoutSeconds:  5,
			RateLimitRPS:    10,
			MaxConcurrent:   8,
		},
		Resilience: ResilienceConfig{
			CircuitFailMax:      5,
			CircuitResetSeconds: 30,
			MaxRetries:          3,
		},
		Queue: QueueConfig{
			Workers:           4,
			JobTimeoutSeconds: 3600,
			ResultTTLSeconds:  86400,
			MaxDepth:          10000,
		},
		Webhook: WebhookConfig{
			MaxRetries:     3,
			TimeoutSeconds: 10,
		},
		Store: StoreConfig{
			Driver:                    "sqlite",
			LargeResultThresholdBytes: 100 << 10,
			HotTTLSeconds:             3600,
			HotSize:                   2048,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads config from $MATCHD_HOME/config.toml, falling back to
// defaults when no file exists.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(matchdHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the config to $MATCHD_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(matchdHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// matchdHome returns the matchd data directory.
func matchdHome() string {
	if env := os.Getenv("MATCHD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".matchd")
}

// MatchdHome is exported for use by other packages.
func MatchdHome() string {
	return matchdHome()
}
