package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spellcast/server/internal/cast"
	"spellcast/server/logging"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, []string{"config/abilities.yaml"}, cfg.Catalog)
	assert.Equal(t, []string{"console"}, cfg.LogSinks)
	assert.Equal(t, 256, cfg.CommandCapacity)
	assert.True(t, cfg.OTelEnabled)
	assert.Empty(t, cfg.OTelEndpoint)

	policy, err := cfg.Faults()
	require.NoError(t, err)
	assert.Equal(t, cast.FaultAbort, policy)
	assert.Equal(t, time.Second/30, cfg.TickInterval())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SPELLCAST_ADDR", "127.0.0.1:9000")
	t.Setenv("SPELLCAST_TICK_RATE", "20")
	t.Setenv("SPELLCAST_CATALOG", "a.yaml,b.toml")
	t.Setenv("SPELLCAST_LOG_SINKS", "console,json")
	t.Setenv("SPELLCAST_LOG_JSON_PATH", "/tmp/events.jsonl")
	t.Setenv("SPELLCAST_LOG_MIN_SEVERITY", "debug")
	t.Setenv("SPELLCAST_FAULT_POLICY", "hold")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, []string{"a.yaml", "b.toml"}, cfg.Catalog)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval())

	logCfg := cfg.Logging()
	assert.Equal(t, logging.SeverityDebug, logCfg.MinimumSeverity)
	assert.True(t, logCfg.HasSink("json"))
	assert.Equal(t, "/tmp/events.jsonl", logCfg.JSON.FilePath)

	policy, err := cfg.Faults()
	require.NoError(t, err)
	assert.Equal(t, cast.FaultHold, policy)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"tick rate":      {"SPELLCAST_TICK_RATE", "0"},
		"not a number":   {"SPELLCAST_TICK_RATE", "fast"},
		"capacity":       {"SPELLCAST_COMMAND_CAPACITY", "-1"},
		"severity":       {"SPELLCAST_LOG_MIN_SEVERITY", "loud"},
		"fault policy":   {"SPELLCAST_FAULT_POLICY", "retry"},
		"sink":           {"SPELLCAST_LOG_SINKS", "syslog"},
		"json sink path": {"SPELLCAST_LOG_SINKS", "json"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
