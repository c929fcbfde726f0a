package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document for the broker. Server carries
// the startup parameters the embedder must supply: bind address, shard
// count, pool size, submission queue bound, and data directory.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Queue   QueueConfig   `yaml:"queue"`
	Admin   AdminConfig   `yaml:"admin"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the TCP listener and worker pool settings.
type ServerConfig struct {
	Address            string `yaml:"address"`
	DataDirectory      string `yaml:"data_directory"`
	ShardCount         int    `yaml:"shard_count"`
	PoolSize           int    `yaml:"pool_size"`
	MaxSubmissionQueue int    `yaml:"max_submission_queue_size"`
}

// QueueConfig holds durability and checkpoint tunables. These govern the
// constants the storage engine treats as recommended defaults (WAL batch
// threshold, checkpoint threshold) rather than part of the on-disk format.
type QueueConfig struct {
	WalBatchSize        int       `yaml:"wal_batch_size"`
	CheckpointThreshold int       `yaml:"checkpoint_threshold"`
	CheckpointCron      string    `yaml:"checkpoint_cron"`
	MaxFrameBytes       SizeBytes `yaml:"max_frame_bytes"`
}

// AdminConfig controls the side-channel HTTP surface exposing health,
// metrics and docs. It is entirely separate from the TCP wire protocol.
type AdminConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Address   string   `yaml:"address"`
	Transport string   `yaml:"transport"` // "nethttp" | "fasthttp"
	RateLimit RateConf `yaml:"rate_limit"`
}

// RateConf configures a token-bucket limiter in front of the admin surface.
type RateConf struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoggingConfig controls the global slog logger and the optional
// fire-and-forget file sink.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	SinkFile string `yaml:"sink_file"`
}

// Addr returns the TCP bind address, defaulting when unset.
func (c *Config) Addr() string {
	if c.Server.Address == "" {
		return "0.0.0.0:7070"
	}
	return c.Server.Address
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }
