package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

const DefaultModel = "gpt-4"

type Config struct {
	Service       ServiceConfig
	AI            AIConfig
	Cache         CacheConfig
	Mirror        MirrorConfig
	Schema        SchemaConfig
	History       HistoryConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type CacheConfig struct {
	Dir string
}

// MirrorConfig describes the optional S3-compatible bucket that receives a
// copy of every cache artifact. An empty Endpoint disables the mirror.
type MirrorConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

func (m MirrorConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != ""
}

type SchemaConfig struct {
	SampleRows    int
	RowCounts     bool
	Relationships bool
}

type HistoryConfig struct {
	DSN          string
	MaxOpenConns int
}

func (h HistoryConfig) Enabled() bool {
	return strings.TrimSpace(h.DSN) != ""
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsFile string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := defaults(homeDir(lookup))
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// OPENAI_API_KEY is the conventional variable; the prefixed one wins when both are set.
	if err := applyString(lookup, "OPENAI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "DUCKLLM_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKLLM_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_DIR", &cfg.Cache.Dir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_MIRROR_ENDPOINT", &cfg.Mirror.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_MIRROR_REGION", &cfg.Mirror.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_MIRROR_BUCKET", &cfg.Mirror.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_MIRROR_ACCESS_KEY", &cfg.Mirror.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_MIRROR_SECRET_KEY", &cfg.Mirror.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKLLM_CACHE_MIRROR_USE_SSL", &cfg.Mirror.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_CACHE_MIRROR_PREFIX", &cfg.Mirror.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKLLM_CACHE_MIRROR_AUTO_CREATE_BUCKET", &cfg.Mirror.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKLLM_SCHEMA_SAMPLE_ROWS", &cfg.Schema.SampleRows); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKLLM_SCHEMA_ROW_COUNTS", &cfg.Schema.RowCounts); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKLLM_SCHEMA_RELATIONSHIPS", &cfg.Schema.Relationships); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_HISTORY_DSN", &cfg.History.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKLLM_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "DUCKLLM_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKLLM_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKLLM_METRICS_FILE", &cfg.Observability.MetricsFile); err != nil {
		return Config{}, err
	}

	if cfg.AI.Model == "" {
		cfg.AI.Model = DefaultModel
	}
	if cfg.Cache.Dir == "" {
		return Config{}, fmt.Errorf("cache directory is required")
	}
	if cfg.Schema.SampleRows < 0 {
		return Config{}, fmt.Errorf("DUCKLLM_SCHEMA_SAMPLE_ROWS must be >= 0")
	}
	if cfg.AI.Timeout <= 0 {
		return Config{}, fmt.Errorf("DUCKLLM_AI_TIMEOUT must be > 0")
	}
	if cfg.Mirror.Enabled() && cfg.Mirror.Bucket == "" {
		return Config{}, fmt.Errorf("DUCKLLM_CACHE_MIRROR_BUCKET is required when the mirror is enabled")
	}
	return cfg, nil
}

func defaults(home string) Config {
	return Config{
		Service: ServiceConfig{Name: "duckllm"},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com",
			Model:       DefaultModel,
			Temperature: 0,
			Timeout:     60 * time.Second,
		},
		Cache: CacheConfig{
			Dir: DefaultCacheDir(home),
		},
		Mirror: MirrorConfig{
			Region:           "us-east-1",
			UseSSL:           true,
			AutoCreateBucket: false,
		},
		Schema: SchemaConfig{
			SampleRows:    3,
			RowCounts:     true,
			Relationships: true,
		},
		History: HistoryConfig{
			MaxOpenConns: 2,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelWarn,
			LogJSON:  false,
		},
	}
}

// DefaultCacheDir is <home>/.duckdb_llm/cache. An empty home falls back to the
// working directory so the CLI still works without a resolvable home.
func DefaultCacheDir(home string) string {
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".duckdb_llm", "cache")
}

func homeDir(lookup LookupFunc) string {
	if raw, ok := lookup("HOME"); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
