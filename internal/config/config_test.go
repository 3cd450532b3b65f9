package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Globidev/globibot-rs/internal/transport"
)

func TestLoadFailsWithoutRequiredCredentials(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("APPLICATION_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAppliesDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("APPLICATION_ID", "123")
	t.Setenv("RPC_ADDR", "unix:/tmp/gw-rpc.sock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.DiscordToken)
	assert.Equal(t, "123", cfg.ApplicationID)
	assert.Equal(t, ":4242", cfg.SubscriberAddr)
	assert.Equal(t, "unix:/tmp/gw-rpc.sock", cfg.RPCAddr)
	assert.Equal(t, ":8001", cfg.ObservabilityAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 16, cfg.BroadcastBufferLen)
}

func TestTransportResolutionPicksUnixOrTCP(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("APPLICATION_ID", "123")
	t.Setenv("SUBSCRIBER_ADDR", ":4242")
	t.Setenv("RPC_ADDR", "unix:/tmp/gw-rpc.sock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.IsType(t, transport.TCP{}, cfg.SubscriberTransport())
	assert.IsType(t, transport.Unix{}, cfg.RPCTransport())
	assert.Equal(t, "/tmp/gw-rpc.sock", cfg.RPCTransport().(transport.Unix).Path)
}
