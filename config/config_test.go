package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.True(t, cfg.NodeDB.ReapEmptyNodes)
	assert.Equal(t, 30*time.Second, cfg.Expiration.NodeTTL.Duration())
	assert.Equal(t, 5*time.Second, cfg.Expiration.ReapInterval.Duration())
	assert.Equal(t, 100*time.Millisecond, cfg.Expiration.MinReapInterval.Duration())
	assert.Equal(t, 64, cfg.Discovery.EventBuffer)
	assert.Equal(t, "btnodedb", cfg.Metrics.Namespace)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Storage.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig()
	cfg.Expiration.NodeTTL = 0
	cfg.Expiration.ReapInterval = Duration(time.Millisecond)
	cfg.Discovery.EventBuffer = 0
	cfg.Discovery.LocalGUID = "not-a-uuid"
	cfg.Log.Level = "loud"
	cfg.Storage.GCInterval = Duration(-time.Second)

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"expiration: node_ttl must be positive",
		"reap_interval must not be less than min_reap_interval",
		"discovery: event_buffer must be positive",
		"log: unknown log level",
		"storage: gc_interval must not be negative",
	} {
		assert.Contains(t, err.Error(), want)
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestDuration_JSON(t *testing.T) {
	var v struct {
		D Duration `json:"d"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"d":"1m30s"}`), &v))
	assert.Equal(t, 90*time.Second, v.D.Duration())

	require.NoError(t, json.Unmarshal([]byte(`{"d":1000000}`), &v))
	assert.Equal(t, time.Millisecond, v.D.Duration())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"soon"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"d":true}`), &v))

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"1ms"}`, string(data))
}

func TestDuration_YAML(t *testing.T) {
	var v struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("a: 250ms\nb: 2000\n"), &v))
	assert.Equal(t, 250*time.Millisecond, v.A.Duration())
	assert.Equal(t, Duration(2000), v.B)

	assert.Error(t, yaml.Unmarshal([]byte("a: [1, 2]\n"), &v))

	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a: 250ms")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "btnodedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
nodedb:
  reap_empty_nodes: false
expiration:
  node_ttl: 1m
log:
  level: debug
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.False(t, cfg.NodeDB.ReapEmptyNodes)
		assert.Equal(t, time.Minute, cfg.Expiration.NodeTTL.Duration())
		assert.Equal(t, 5*time.Second, cfg.Expiration.ReapInterval.Duration(), "未出现的字段保持默认值")
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "btnodedb.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"discovery":{"event_buffer":8}}`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Discovery.EventBuffer)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yml")
		require.NoError(t, os.WriteFile(path, []byte("discovery:\n  event_buffer: -1\n"), 0o600))

		_, err := Load(path)
		assert.ErrorContains(t, err, "event_buffer")
	})

	t.Run("unsupported", func(t *testing.T) {
		path := filepath.Join(dir, "btnodedb.toml")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		_, err := Load(path)
		assert.ErrorContains(t, err, "unsupported")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"BTNODEDB_NODE_TTL":         "45s",
		"BTNODEDB_REAP_EMPTY_NODES": "false",
		"BTNODEDB_EVENT_BUFFER":     "16",
		"BTNODEDB_LOG_LEVEL":        "warn",
		"BTNODEDB_METRICS_ADDR":     ":9102",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, 45*time.Second, cfg.Expiration.NodeTTL.Duration())
	assert.False(t, cfg.NodeDB.ReapEmptyNodes)
	assert.Equal(t, 16, cfg.Discovery.EventBuffer)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9102", cfg.Metrics.ListenAddr)

	env["BTNODEDB_NODE_TTL"] = "forever"
	env["BTNODEDB_EVENT_BUFFER"] = "many"
	err := cfg.ApplyEnv(lookup)
	assert.ErrorContains(t, err, "BTNODEDB_NODE_TTL")
	assert.ErrorContains(t, err, "BTNODEDB_EVENT_BUFFER")
}

func TestDiscoveryConfig_EnsureLocalGUID(t *testing.T) {
	cfg := DefaultDiscoveryConfig()

	guid := cfg.EnsureLocalGUID()
	assert.Len(t, guid, 32)
	assert.NotEmpty(t, cfg.LocalGUID)
	assert.Equal(t, guid, cfg.EnsureLocalGUID(), "生成后保持不变")
	require.NoError(t, cfg.Validate())

	cfg.LocalGUID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	assert.Equal(t, "6ba7b8109dad11d180b400c04fd430c8", cfg.EnsureLocalGUID())
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Expiration.NodeTTL = Duration(2 * time.Minute)

	data, err := cfg.ToYAML()
	require.NoError(t, err)
	fromYAML, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, fromYAML)

	data, err = cfg.ToJSON()
	require.NoError(t, err)
	fromJSON, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, fromJSON)
}
