package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Database Database `mapstructure:"database"`
	Streams  Streams  `mapstructure:"streams"`
	Events   Events   `mapstructure:"events"`
	Server   Server   `mapstructure:"server"`
	Worker   Worker   `mapstructure:"worker"`
	Logging  Logging  `mapstructure:"logging"`
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/taskstream")
	}

	v.SetEnvPrefix("TS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - don't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Flat environment names are supported without the TS_ prefix so the
	// service runs unchanged under the conventional deployment variables.
	applyFlatEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyFlatEnv maps the well-known flat environment variables onto nested
// config keys, the same way DATABASE_URL overrides database.url.
func applyFlatEnv(v *viper.Viper) {
	flat := map[string]string{
		"DATABASE_URL":       "database.url",
		"REDIS_URL":          "streams.url",
		"STREAM_NAME":        "streams.stream",
		"GROUP_NAME":         "streams.group",
		"CONSUMER_NAME":      "streams.consumer",
		"BLOCK_MS":           "streams.block_ms",
		"COUNT":              "streams.count",
		"RECLAIM_PENDING":    "streams.reclaim_pending",
		"RECLAIM_IDLE_MS":    "streams.reclaim_idle_ms",
		"STATUS_DELTA":       "events.status_delta",
		"RESULT_TTL_SECONDS": "events.result_ttl_seconds",
		"WORKER_CONCURRENCY": "worker.concurrency",
		"WORKER_QUEUES":      "worker.queues",
	}
	for env, key := range flat {
		if value := os.Getenv(env); value != "" {
			v.Set(key, value)
		}
	}
}

// LoadConfigOrDefault loads configuration or returns a default config on error
func LoadConfigOrDefault(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		defaultCfg := &Config{}
		SetDefaults(defaultCfg)
		return defaultCfg
	}
	return cfg
}

// MustLoadConfig loads configuration and panics on error (for use in main.go)
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
