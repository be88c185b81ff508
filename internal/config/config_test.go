package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostpin/internal/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.PrivilegeCheckEnabled())

	s := cfg.Settings()
	assert.Equal(t, DefaultAddresses, s.Addresses)
	assert.Equal(t, DefaultDomains, s.Domains)
	assert.Equal(t, time.Duration(0), s.Interval)
	assert.Equal(t, 16, s.Workers)
	assert.Equal(t, 3*time.Second, s.Timeout)
	assert.Equal(t, "https", s.Strategy)
	assert.Equal(t, 10, s.BackupKeep)
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
hosts_path: /tmp/hosts
listen: 0.0.0.0:9000
log_level: debug
privilege_check: false
defaults:
  addresses: [10.0.0.1, 10.0.0.2, 10.0.0.1]
  domains:
    - example.com
  interval: 10m
  timeout: 1500ms
  strategy: tls
  backup_keep: 0
`)

	cfg, got, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "/tmp/hosts", cfg.HostsPath)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.False(t, cfg.PrivilegeCheckEnabled())

	s := cfg.Settings()
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, s.Addresses)
	assert.Equal(t, []string{"example.com"}, s.Domains)
	assert.Equal(t, 10*time.Minute, s.Interval)
	assert.Equal(t, 16, s.Workers)
	assert.Equal(t, 1500*time.Millisecond, s.Timeout)
	assert.Equal(t, "tls", s.Strategy)
	assert.Equal(t, 0, s.BackupKeep, "an explicit zero keeps every backup")

	seed := cfg.SeedSettings()
	assert.Equal(t, "600", seed[storage.KeyInterval])
	assert.Equal(t, "1500", seed[storage.KeyTimeout])
	assert.Equal(t, "10.0.0.1\n10.0.0.2", seed[storage.KeyAddresses])
}

func TestLoadFromPathErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "defaults: [\n"},
		{"bad duration", "defaults:\n  interval: soon\n"},
		{"unknown strategy", "defaults:\n  strategy: icmp\n"},
		{"negative workers", "defaults:\n  workers: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadFromPath(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSearchOrder(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv(EnvConfigPath, "")

	cfg, path, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultListen, cfg.Listen)

	home := filepath.Join(dir, ".config", ConfigDirName)
	require.NoError(t, os.MkdirAll(home, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("listen: :1\n"), 0o644))
	cfg, _, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":1", cfg.Listen)

	require.NoError(t, os.WriteFile(ConfigFileName, []byte("listen: :2\n"), 0o644))
	cfg, _, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":2", cfg.Listen)

	t.Setenv(EnvConfigPath, writeConfig(t, "listen: :3\n"))
	cfg, _, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3", cfg.Listen)

	cfg, _, err = Load(writeConfig(t, "listen: :4\n"))
	require.NoError(t, err)
	assert.Equal(t, ":4", cfg.Listen)

	_, _, err = Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}
