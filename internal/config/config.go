// Package config loads the gateway's settings from environment variables,
// the way brianly1003-cdev's viper-based loader does, restructured around a
// flat env-var surface instead of a YAML config tree.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Globidev/globibot-rs/internal/transport"
)

// Config is the gateway's full runtime configuration.
type Config struct {
	SubscriberAddr     string `mapstructure:"subscriber_addr"`
	RPCAddr            string `mapstructure:"rpc_addr"`
	DiscordToken       string `mapstructure:"discord_token"`
	ApplicationID      string `mapstructure:"application_id"`
	ObservabilityAddr  string `mapstructure:"observability_addr"`
	LogLevel           string `mapstructure:"log_level"`
	LogFormat          string `mapstructure:"log_format"`
	BroadcastBufferLen int    `mapstructure:"broadcast_buffer"`
}

// Load reads the gateway's configuration from environment variables, with
// the defaults below applied for anything unset. There is no config file:
// spec.md mandates a flat env-var surface, not a YAML/TOML tree.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envKeys = []string{
	"subscriber_addr",
	"rpc_addr",
	"discord_token",
	"application_id",
	"observability_addr",
	"log_level",
	"log_format",
	"broadcast_buffer",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("subscriber_addr", ":4242")
	v.SetDefault("rpc_addr", ":4243")
	v.SetDefault("discord_token", "")
	v.SetDefault("application_id", "")
	v.SetDefault("observability_addr", ":8001")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("broadcast_buffer", 16)
}

// Validate rejects a Config missing what the gateway cannot run without.
func Validate(cfg *Config) error {
	if cfg.DiscordToken == "" {
		return fmt.Errorf("config: DISCORD_TOKEN is required")
	}
	if cfg.ApplicationID == "" {
		return fmt.Errorf("config: APPLICATION_ID is required")
	}
	return nil
}

// SubscriberTransport resolves SubscriberAddr to a concrete Transport.
func (c *Config) SubscriberTransport() transport.Transport { return parseTransport(c.SubscriberAddr) }

// RPCTransport resolves RPCAddr to a concrete Transport.
func (c *Config) RPCTransport() transport.Transport { return parseTransport(c.RPCAddr) }

// parseTransport interprets an address string as a Unix socket path when it
// carries the "unix:" prefix, and as a TCP address otherwise.
func parseTransport(addr string) transport.Transport {
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		return transport.Unix{Path: path}
	}
	return transport.TCP{Address: addr}
}
