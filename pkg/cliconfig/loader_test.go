package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	assert.Equal(t, "localhost", cfg.Broker)
	assert.Equal(t, 1883, cfg.Port)
	assert.Equal(t, 0, cfg.QoS)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SourceDefault, cfg.Sources["broker"])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"broker: broker.example.com\nport: 8883\nqos: 1\nverbose: true\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "broker.example.com", cfg.Broker)
	assert.Equal(t, 8883, cfg.Port)
	assert.Equal(t, 1, cfg.QoS)
	assert.True(t, cfg.Verbose)
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker: [unclosed\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMergePrecedence(t *testing.T) {
	dst := NewDefault()
	Merge(dst, &Config{Broker: "global.example.com", QoS: 2}, SourceGlobal)
	Merge(dst, &Config{Broker: "local.example.com"}, SourceLocal)

	assert.Equal(t, "local.example.com", dst.Broker)
	assert.Equal(t, SourceLocal, dst.Sources["broker"])
	assert.Equal(t, 2, dst.QoS)
	assert.Equal(t, SourceGlobal, dst.Sources["qos"])
	// Untouched values keep their defaults.
	assert.Equal(t, 1883, dst.Port)
	assert.Equal(t, SourceDefault, dst.Sources["port"])
}

func TestMergeZeroValuesIgnored(t *testing.T) {
	dst := NewDefault()
	Merge(dst, &Config{}, SourceLocal)
	assert.Equal(t, "localhost", dst.Broker)
	assert.Equal(t, SourceDefault, dst.Sources["broker"])
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(EnvBroker, "env.example.com")
	t.Setenv(EnvPort, "9001")
	t.Setenv(EnvQoS, "2")
	t.Setenv(EnvClientID, "env-client")

	cfg := NewDefault()
	LoadEnv(cfg)
	assert.Equal(t, "env.example.com", cfg.Broker)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 2, cfg.QoS)
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, SourceEnv, cfg.Sources["broker"])
}

func TestLoadEnvMalformedIgnored(t *testing.T) {
	t.Setenv(EnvPort, "not-a-number")
	t.Setenv(EnvQoS, "7")

	cfg := NewDefault()
	LoadEnv(cfg)
	assert.Equal(t, 1883, cfg.Port)
	assert.Equal(t, 0, cfg.QoS)
}

func TestFindLocalConfig(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	path, err := FindLocalConfig()
	require.NoError(t, err)
	assert.Empty(t, path)

	want := filepath.Join(dir, ".mqttctlrc.yaml")
	require.NoError(t, os.WriteFile(want, []byte("broker: x\n"), 0o644))

	path, err = FindLocalConfig()
	require.NoError(t, err)
	assert.Equal(t, want, path)
}
