// Package config loads the bot's settings: built-in defaults, then an
// optional YAML or TOML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"chat-bot/internal/bot"
	"chat-bot/internal/codec"
)

// Config is the resolved configuration.
type Config struct {
	RequestAddress   string
	SubscribeAddress string // reserved; the bot never subscribes
	Codec            string
	Clock            bool
	Bots             int
	Timeout          time.Duration
	Workload         bot.Config
}

// FileConfig is the on-disk layout. Durations are Go duration strings.
type FileConfig struct {
	RequestAddress   string `yaml:"request_address" toml:"request_address"`
	SubscribeAddress string `yaml:"subscribe_address" toml:"subscribe_address"`
	Codec            string `yaml:"codec" toml:"codec"`
	Clock            *bool  `yaml:"clock" toml:"clock"`
	Bots             int    `yaml:"bots" toml:"bots"`
	Timeout          string `yaml:"timeout" toml:"timeout"`

	DefaultChannel string `yaml:"default_channel" toml:"default_channel"`
	ChannelsKey    string `yaml:"channels_key" toml:"channels_key"`
	BurstSize      int    `yaml:"burst_size" toml:"burst_size"`
	PublishPause   string `yaml:"publish_pause" toml:"publish_pause"`
	Cooldown       string `yaml:"cooldown" toml:"cooldown"`
	Backoff        string `yaml:"backoff" toml:"backoff"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		RequestAddress:   "tcp://broker:5555",
		SubscribeAddress: "tcp://proxy:5558",
		Codec:            codec.Binary,
		Clock:            true,
		Bots:             1,
		Timeout:          5 * time.Second,
		Workload:         bot.DefaultConfig(),
	}
}

// Load resolves the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := fc.apply(&cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile reads a YAML (.yaml, .yml) or TOML (.toml) file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	return &fc, nil
}

func (f *FileConfig) apply(cfg *Config) error {
	if f.RequestAddress != "" {
		cfg.RequestAddress = f.RequestAddress
	}
	if f.SubscribeAddress != "" {
		cfg.SubscribeAddress = f.SubscribeAddress
	}
	if f.Codec != "" {
		cfg.Codec = f.Codec
	}
	if f.Clock != nil {
		cfg.Clock = *f.Clock
	}
	if f.Bots != 0 {
		cfg.Bots = f.Bots
	}
	if f.DefaultChannel != "" {
		cfg.Workload.DefaultChannel = f.DefaultChannel
	}
	if f.ChannelsKey != "" {
		cfg.Workload.ChannelsKey = f.ChannelsKey
	}
	if f.BurstSize != 0 {
		cfg.Workload.BurstSize = f.BurstSize
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timeout", f.Timeout, &cfg.Timeout},
		{"publish_pause", f.PublishPause, &cfg.Workload.PublishPause},
		{"cooldown", f.Cooldown, &cfg.Workload.Cooldown},
		{"backoff", f.Backoff, &cfg.Workload.Backoff},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := get("REQ_ADDRESS"); v != "" {
		cfg.RequestAddress = v
	}
	if v := get("SUB_ADDRESS"); v != "" {
		cfg.SubscribeAddress = v
	}
	if v := get("BOT_CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := get("BOT_CLOCK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BOT_CLOCK: %w", err)
		}
		cfg.Clock = b
	}
	if v := get("BOT_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BOT_COUNT: %w", err)
		}
		cfg.Bots = n
	}
	if v := get("BOT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BOT_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := get("BOT_CHANNEL"); v != "" {
		cfg.Workload.DefaultChannel = v
	}
	return nil
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if c.RequestAddress == "" {
		return fmt.Errorf("request_address must be set")
	}
	if _, err := codec.New(c.Codec); err != nil {
		return err
	}
	if c.Bots < 1 {
		return fmt.Errorf("bots must be at least 1")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	w := c.Workload
	if w.BurstSize < 1 {
		return fmt.Errorf("burst_size must be at least 1")
	}
	if w.PublishPause < 0 || w.Cooldown < 0 || w.Backoff < 0 {
		return fmt.Errorf("publish_pause, cooldown and backoff must be non-negative")
	}
	if w.DefaultChannel == "" || w.ChannelsKey == "" {
		return fmt.Errorf("default_channel and channels_key must be set")
	}
	return nil
}
