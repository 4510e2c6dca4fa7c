package config

import (
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) *Config {
	t.Helper()

	var cfg Config
	parser := flags.NewParser(&cfg, flags.None)
	parser.NamespaceDelimiter = "-"

	_, err := parser.ParseArgs(args)
	require.NoError(t, err)

	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := parseArgs(t, "--auth-token", "secret")

	assert.Equal(t, 512, cfg.Relay.MaxMessageLength)
	assert.Equal(t, "--", cfg.Relay.CommandPrefix)
	assert.Equal(t, []string{"rcon", "command", "c"}, cfg.Relay.Commands)
	assert.Equal(t, []string{"error"}, cfg.Relay.ErrorMarkers)
	assert.Equal(t, "say_relay", cfg.Relay.Verb)
	assert.Equal(t, 500, cfg.Relay.Ceiling)
	assert.Equal(t, 1993, cfg.Relay.PreviewLength)
	assert.Equal(t, 500*time.Millisecond, cfg.RCON.IdleTimeout)
	assert.Equal(t, ":9871", cfg.Logs.Address)
	assert.Equal(t, "routes.yaml", cfg.Routes)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	require.NoError(t, cfg.Validate())
}

func TestNamespacedFlags(t *testing.T) {
	cfg := parseArgs(t,
		"--auth-token", "secret",
		"--relay-max-length", "100",
		"--relay-allowed-user", "1",
		"--relay-allowed-user", "2",
		"--rcon-idle-timeout", "1s",
		"--logs-secret", "abc",
		"--mqtt-broker", "tcp://localhost:1883",
	)

	assert.Equal(t, 100, cfg.Relay.MaxMessageLength)
	assert.Equal(t, []string{"1", "2"}, cfg.Relay.AllowedUsers)
	assert.Equal(t, time.Second, cfg.RCON.IdleTimeout)
	assert.Equal(t, "abc", cfg.Logs.Secret)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "api without token", mutate: func(c *Config) { c.Server.AuthToken = "" }, wantErr: true},
		{name: "api disabled without token", mutate: func(c *Config) { c.Server.AuthToken = ""; c.Server.Address = "" }},
		{name: "zero max length", mutate: func(c *Config) { c.Relay.MaxMessageLength = 0 }, wantErr: true},
		{name: "tiny ceiling", mutate: func(c *Config) { c.Relay.Ceiling = 10 }, wantErr: true},
		{name: "bad qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parseArgs(t, "--auth-token", "secret")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
