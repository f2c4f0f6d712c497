package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Simulation engine and base network.
	NetworkPath   string
	SWMMBinary    string
	EngineTimeout time.Duration
	WorkDir       string
	KeepArtifacts bool
	RainSeries    string

	// Vulnerability model; empty disables classification.
	ModelPath string

	// Result cache entries; 0 disables caching.
	CacheSize int

	// Run history database; empty disables history.
	RunStorePath string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	CORSAllowedOrigins []string
	TracingEnabled     bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	engineTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("ENGINE_TIMEOUT", "5m"))
	if err != nil || engineTimeout <= 0 {
		return nil, errors.New("invalid ENGINE_TIMEOUT")
	}

	cacheSize, err := parseCacheSize()
	if err != nil {
		return nil, err
	}

	keepArtifacts, err := parseBool("KEEP_ARTIFACTS")
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED")
	if err != nil {
		return nil, err
	}
	tracingEnabled, err := parseBool("TRACING_ENABLED")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		NetworkPath:   sharedcfg.EnvOrDefault("NETWORK_PATH", "network.inp"),
		SWMMBinary:    sharedcfg.EnvOrDefault("SWMM_BINARY", "runswmm"),
		EngineTimeout: engineTimeout,
		WorkDir:       sharedcfg.EnvOrDefault("WORK_DIR", filepath.Join(os.TempDir(), "floodsim")),
		KeepArtifacts: keepArtifacts,
		RainSeries:    sharedcfg.EnvOrDefault("RAIN_SERIES", "TS_Rain"),

		ModelPath:    os.Getenv("MODEL_PATH"),
		CacheSize:    cacheSize,
		RunStorePath: os.Getenv("RUN_STORE_PATH"),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "flood-simulation-results"),

		CORSAllowedOrigins: parseList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		TracingEnabled:     tracingEnabled,
	}

	if cfg.NetworkPath == "" {
		return nil, errors.New("NETWORK_PATH is required")
	}
	if cfg.RainSeries == "" {
		return nil, errors.New("RAIN_SERIES is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func parseCacheSize() (int, error) {
	s := os.Getenv("CACHE_SIZE")
	if s == "" {
		return 128, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid CACHE_SIZE")
	}
	return n, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
