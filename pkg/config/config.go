package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config document from path and unmarshals it into a
// Config. A missing file is reported as an error; callers that want to run
// on defaults alone should fall back to Default() instead of calling Load.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns a Config populated with the broker's built-in defaults,
// matching the constants called out by the original shard implementation
// (WAL batch size 100, checkpoint threshold 100).
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:            "0.0.0.0:7070",
			DataDirectory:      "./data",
			ShardCount:         8,
			PoolSize:           16,
			MaxSubmissionQueue: 1024,
		},
		Queue: QueueConfig{
			WalBatchSize:        100,
			CheckpointThreshold: 100,
			MaxFrameBytes:       SizeBytes(1 << 20),
		},
		Admin: AdminConfig{
			Enabled:   true,
			Address:   "127.0.0.1:7071",
			Transport: "nethttp",
			RateLimit: RateConf{RPS: 20, Burst: 40},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills zero-valued fields of cfg with Default()'s values,
// so a partial YAML document only needs to override what it cares about.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Server.Address == "" {
		cfg.Server.Address = d.Server.Address
	}
	if cfg.Server.DataDirectory == "" {
		cfg.Server.DataDirectory = d.Server.DataDirectory
	}
	if cfg.Server.ShardCount == 0 {
		cfg.Server.ShardCount = d.Server.ShardCount
	}
	if cfg.Server.PoolSize == 0 {
		cfg.Server.PoolSize = d.Server.PoolSize
	}
	if cfg.Server.MaxSubmissionQueue == 0 {
		cfg.Server.MaxSubmissionQueue = d.Server.MaxSubmissionQueue
	}
	if cfg.Queue.WalBatchSize == 0 {
		cfg.Queue.WalBatchSize = d.Queue.WalBatchSize
	}
	if cfg.Queue.CheckpointThreshold == 0 {
		cfg.Queue.CheckpointThreshold = d.Queue.CheckpointThreshold
	}
	if cfg.Queue.MaxFrameBytes == 0 {
		cfg.Queue.MaxFrameBytes = d.Queue.MaxFrameBytes
	}
	if cfg.Admin.Address == "" {
		cfg.Admin.Address = d.Admin.Address
	}
	if cfg.Admin.Transport == "" {
		cfg.Admin.Transport = d.Admin.Transport
	}
	if cfg.Admin.RateLimit.RPS == 0 {
		cfg.Admin.RateLimit.RPS = d.Admin.RateLimit.RPS
	}
	if cfg.Admin.RateLimit.Burst == 0 {
		cfg.Admin.RateLimit.Burst = d.Admin.RateLimit.Burst
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
}

// LoadEnvOverrides applies RBQ_*-prefixed environment overrides onto cfg and
// reports whether any env var was consulted.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("RBQ_BIND_ADDRESS"); v != "" {
		envUsed = true
		cfg.Server.Address = v
	}
	if v := os.Getenv("RBQ_DATA_DIRECTORY"); v != "" {
		envUsed = true
		cfg.Server.DataDirectory = v
	}
	if v := os.Getenv("RBQ_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Server.ShardCount = n
		}
	}
	if v := os.Getenv("RBQ_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Server.PoolSize = n
		}
	}
	if v := os.Getenv("RBQ_MAX_SUBMISSION_QUEUE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Server.MaxSubmissionQueue = n
		}
	}
	if v := os.Getenv("RBQ_WAL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Queue.WalBatchSize = n
		}
	}
	if v := os.Getenv("RBQ_CHECKPOINT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Queue.CheckpointThreshold = n
		}
	}
	if v := os.Getenv("RBQ_CHECKPOINT_CRON"); v != "" {
		envUsed = true
		cfg.Queue.CheckpointCron = v
	}
	if v := os.Getenv("RBQ_ADMIN_ENABLED"); v != "" {
		envUsed = true
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			cfg.Admin.Enabled = true
		default:
			cfg.Admin.Enabled = false
		}
	}
	if v := os.Getenv("RBQ_ADMIN_ADDRESS"); v != "" {
		envUsed = true
		cfg.Admin.Address = v
	}
	if v := os.Getenv("RBQ_ADMIN_TRANSPORT"); v != "" {
		envUsed = true
		cfg.Admin.Transport = v
	}
	if v := os.Getenv("RBQ_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RBQ_LOG_SINK_FILE"); v != "" {
		envUsed = true
		cfg.Logging.SinkFile = v
	}

	return envUsed
}

// ResolveConfigPath decides the config file path using the flag-provided
// value, falling back to RBQ_CONFIG when the flag was not explicitly set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("RBQ_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
