// Package config loads worker and client settings.
//
// Sources, later overriding earlier: built-in defaults, a YAML file, then
// environment variables. Variables use the RMOD_ prefix and a double
// underscore between sections, e.g. RMOD_WORKER__LEASE_TTL=30.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"remote-module/codec"
	"remote-module/loadbalance"
	"remote-module/logging"
	"remote-module/worker"
)

const EnvPrefix = "RMOD_"

type Config struct {
	Log      logging.Config `koanf:"log"`
	Worker   worker.Config  `koanf:"worker"`
	Client   ClientConfig   `koanf:"client"`
	Registry RegistryConfig `koanf:"registry"`
}

// Defaults are applied before any file or environment value.
func Defaults() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":       "info",
			"format":      "json",
			"max_size_mb": 100,
			"max_backups": 3,
		},
		"worker": map[string]any{
			"listen":          "127.0.0.1:0",
			"weight":          1,
			"lease_ttl":       10,
			"request_timeout": "30s",
			"shutdown_grace":  "5s",
		},
		"client": map[string]any{
			"codec":        "json",
			"pool_size":    2,
			"heartbeat":    "10s",
			"dial_timeout": "5s",
			"call_timeout": "30s",
			"balancer":     "consistent_hash",
		},
		"registry": map[string]any{
			"kind":         "static",
			"dial_timeout": "5s",
		},
	}
}

type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// Load reads the configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	envKey := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would only fail later at runtime.
func (c *Config) Validate() error {
	if c.Client.PoolSize < 0 {
		return errors.New("config: client.pool_size must not be negative")
	}
	if c.Worker.LeaseTTL < 0 {
		return errors.New("config: worker.lease_ttl must not be negative")
	}
	if _, err := codec.ParseCodecType(c.Client.Codec); err != nil {
		return fmt.Errorf("config: client.codec: %w", err)
	}
	if _, err := loadbalance.New(c.Client.Balancer); err != nil {
		return fmt.Errorf("config: client.balancer: %w", err)
	}
	switch c.Registry.Kind {
	case "static":
	case "etcd":
		if len(c.Registry.Endpoints) == 0 {
			return errors.New("config: registry.endpoints is required for etcd")
		}
	default:
		return fmt.Errorf("config: unknown registry kind %q", c.Registry.Kind)
	}
	return nil
}
