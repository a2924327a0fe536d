package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MongoURI  string `yaml:"mongo_uri"`
	MongoDB   string `yaml:"mongo_db"`
	RedisURI  string `yaml:"redis_uri"`
	HTTPPort  string `yaml:"http_port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "json" or "console"

	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Offline runs
	BusinessConfigPath string `yaml:"business_config_path"`
	LogDBPath          string `yaml:"log_db_path"`
}

type PipelineConfig struct {
	LatencyBudgetMS   int     `yaml:"latency_budget_ms"`
	HardDeadline      bool    `yaml:"hard_deadline"`
	BufferPercentage  float64 `yaml:"buffer_percentage"`
	TransitionSeconds float64 `yaml:"transition_seconds"`
	DefaultMode       string  `yaml:"default_mode"`
	ParallelThreshold int     `yaml:"parallel_threshold"`
	FairnessWeight    float64 `yaml:"fairness_weight"`
}

type CacheConfig struct {
	ConfigTTLSeconds  int `yaml:"config_ttl_seconds"`
	HistoryTTLSeconds int `yaml:"history_ttl_seconds"`
}

type SchedulerConfig struct {
	WarmSchedule string   `yaml:"warm_schedule"` // 5-field cron, empty disables
	Businesses   []string `yaml:"businesses"`
}

// LatencyBudget returns the pipeline latency budget as a duration
func (c PipelineConfig) LatencyBudget() time.Duration {
	return time.Duration(c.LatencyBudgetMS) * time.Millisecond
}

// ConfigTTL returns the config cache TTL as a duration
func (c CacheConfig) ConfigTTL() time.Duration {
	return time.Duration(c.ConfigTTLSeconds) * time.Second
}

// HistoryTTL returns the presentation history TTL as a duration
func (c CacheConfig) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLSeconds) * time.Second
}

// Path returns the config file location, CONFIG_PATH or config.yaml
func Path() string {
	return getEnv("CONFIG_PATH", "config.yaml")
}

// Load reads the YAML file at path when it exists, then applies env overrides and defaults
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("error parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	envOverride(&cfg.MongoURI, "MONGO_URI")
	envOverride(&cfg.MongoDB, "MONGO_DB")
	envOverride(&cfg.RedisURI, "REDIS_URI")
	envOverride(&cfg.HTTPPort, "PORT")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverride(&cfg.BusinessConfigPath, "BUSINESS_CONFIG_PATH")
	envOverride(&cfg.LogDBPath, "LOG_DB_PATH")
	envOverrideInt(&cfg.Pipeline.LatencyBudgetMS, "PIPELINE_LATENCY_BUDGET_MS")
	envOverrideBool(&cfg.Pipeline.HardDeadline, "PIPELINE_HARD_DEADLINE")
	envOverride(&cfg.Pipeline.DefaultMode, "PIPELINE_DEFAULT_MODE")
	envOverride(&cfg.Scheduler.WarmSchedule, "CACHE_WARM_SCHEDULE")
	if ids := os.Getenv("CACHE_WARM_BUSINESSES"); ids != "" {
		cfg.Scheduler.Businesses = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.Scheduler.Businesses = append(cfg.Scheduler.Businesses, id)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.MongoDB == "" {
		c.MongoDB = "surveypilot"
	}
	if c.RedisURI == "" {
		c.RedisURI = "localhost:6379"
	}
	if c.HTTPPort == "" {
		c.HTTPPort = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.LogDBPath == "" {
		c.LogDBPath = "./surveypilot.db"
	}
	if c.Pipeline.LatencyBudgetMS == 0 {
		c.Pipeline.LatencyBudgetMS = 500
	}
	if c.Pipeline.BufferPercentage == 0 {
		c.Pipeline.BufferPercentage = 10
	}
	if c.Pipeline.TransitionSeconds == 0 {
		c.Pipeline.TransitionSeconds = 2
	}
	if c.Pipeline.DefaultMode == "" {
		c.Pipeline.DefaultMode = "balanced"
	}
	if c.Pipeline.ParallelThreshold == 0 {
		c.Pipeline.ParallelThreshold = 32
	}
	if c.Pipeline.FairnessWeight == 0 {
		c.Pipeline.FairnessWeight = 1.0
	}
	if c.Cache.ConfigTTLSeconds == 0 {
		c.Cache.ConfigTTLSeconds = 300
	}
	if c.Cache.HistoryTTLSeconds == 0 {
		c.Cache.HistoryTTLSeconds = 90 * 24 * 60 * 60
	}
}

// Validate rejects settings no run could honour
func (c *Config) Validate() error {
	if c.Pipeline.LatencyBudgetMS < 0 {
		return fmt.Errorf("pipeline.latency_budget_ms must be positive, got %d", c.Pipeline.LatencyBudgetMS)
	}
	if c.Pipeline.BufferPercentage < 0 || c.Pipeline.BufferPercentage >= 50 {
		return fmt.Errorf("pipeline.buffer_percentage must be in [0,50), got %v", c.Pipeline.BufferPercentage)
	}
	if c.Pipeline.TransitionSeconds < 0 {
		return fmt.Errorf("pipeline.transition_seconds must not be negative, got %v", c.Pipeline.TransitionSeconds)
	}
	switch c.Pipeline.DefaultMode {
	case "fast", "balanced", "comprehensive":
	default:
		return fmt.Errorf("pipeline.default_mode %q is not one of fast, balanced, comprehensive", c.Pipeline.DefaultMode)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format %q is not one of json, console", c.LogFormat)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envOverride(target *string, key string) {
	*target = getEnv(key, *target)
}

func envOverrideInt(target *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*target = n
		}
	}
}

func envOverrideBool(target *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = b
		}
	}
}
