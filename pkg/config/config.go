// Package config loads bridge settings from YAML, JSON or TOML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the root of a bridge configuration file.
type Config struct {
	Network NetworkConfig `yaml:"network" json:"network" toml:"network"`
	Files   FilesConfig   `yaml:"files" json:"files" toml:"files"`
	Redis   RedisConfig   `yaml:"redis" json:"redis" toml:"redis"`
	Stream  StreamConfig  `yaml:"stream" json:"stream" toml:"stream"`
	Admin   AdminConfig   `yaml:"admin" json:"admin" toml:"admin"`
	Log     LogConfig     `yaml:"log" json:"log" toml:"log"`
}

// NetworkConfig configures the HTTP executor.
type NetworkConfig struct {
	Enabled      *bool    `yaml:"enabled" json:"enabled" toml:"enabled"`
	Timeout      Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
	RateLimit    float64  `yaml:"rate_limit" json:"rate_limit" toml:"rate_limit"`
	Burst        int      `yaml:"burst" json:"burst" toml:"burst"`
	UserAgent    string   `yaml:"user_agent" json:"user_agent" toml:"user_agent"`
	MaxBodyBytes int64    `yaml:"max_body_bytes" json:"max_body_bytes" toml:"max_body_bytes"`
}

// FilesConfig configures the local file executor.
type FilesConfig struct {
	Enabled     *bool  `yaml:"enabled" json:"enabled" toml:"enabled"`
	Root        string `yaml:"root" json:"root" toml:"root"`
	Permissions string `yaml:"permissions" json:"permissions" toml:"permissions"`
}

// RedisConfig configures the redis executor and pub/sub source. An empty Addr disables both.
type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr" toml:"addr"`
	Password string   `yaml:"password" json:"password" toml:"password"`
	DB       int      `yaml:"db" json:"db" toml:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix" toml:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl" toml:"ttl"`
	// Files routes file kinds to redis instead of the local filesystem.
	Files bool `yaml:"files" json:"files" toml:"files"`
}

// StreamConfig configures subscriptions.
type StreamConfig struct {
	GracePeriod  Duration `yaml:"grace_period" json:"grace_period" toml:"grace_period"`
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`
	MaxFailures  int      `yaml:"max_failures" json:"max_failures" toml:"max_failures"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Addr string `yaml:"addr" json:"addr" toml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" toml:"level"`
	Format string `yaml:"format" json:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Network: NetworkConfig{Timeout: Duration(30 * time.Second)},
		Files:   FilesConfig{Permissions: "0644"},
		Redis:   RedisConfig{Prefix: "opbridge:file:"},
		Stream: StreamConfig{
			GracePeriod:  Duration(5 * time.Second),
			PollInterval: Duration(5 * time.Second),
		},
		Admin: AdminConfig{Addr: ":8080"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// The format follows the extension: .json, .toml, anything else is YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by decoding.
func (c Config) Validate() error {
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	if c.Stream.MaxFailures < 0 {
		return fmt.Errorf("stream.max_failures must not be negative")
	}
	if c.Stream.GracePeriod < 0 || c.Stream.PollInterval < 0 {
		return fmt.Errorf("stream durations must not be negative")
	}
	if _, err := c.Files.Mode(); err != nil {
		return err
	}
	return nil
}

// NetworkEnabled reports whether the network executor should be built. Default true.
func (c Config) NetworkEnabled() bool {
	return c.Network.Enabled == nil || *c.Network.Enabled
}

// FilesEnabled reports whether file kinds should be served. Default true.
func (c Config) FilesEnabled() bool {
	return c.Files.Enabled == nil || *c.Files.Enabled
}

// Mode parses Permissions as an octal file mode.
func (f FilesConfig) Mode() (os.FileMode, error) {
	if f.Permissions == "" {
		return 0o644, nil
	}
	var mode uint32
	if _, err := fmt.Sscanf(f.Permissions, "%o", &mode); err != nil || mode > 0o777 {
		return 0, fmt.Errorf("files.permissions %q is not an octal mode", f.Permissions)
	}
	return os.FileMode(mode), nil
}
