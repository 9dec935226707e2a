package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()

	configContent := `
[server]
port = 9090
ip = "0.0.0.0"

[storage]
path = "/tmp/seaportd-test"
history = false

[chain]
id = 11155111
verifying_contract = "0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC"

[log]
level = "debug"
format = "console"
`

	configPath := filepath.Join(tempDir, "seaportd.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.IP)
	assert.Equal(t, "0.0.0.0:9090", config.ListenAddr())

	assert.Equal(t, "/tmp/seaportd-test", config.Storage.Path)
	assert.False(t, config.Storage.History)
	assert.Equal(t, filepath.Join("/tmp/seaportd-test", "status"), config.StatusDBPath())
	assert.Equal(t, filepath.Join("/tmp/seaportd-test", "history.db"), config.HistoryDBPath())

	assert.Equal(t, int64(11155111), config.Chain.ID)
	assert.Equal(t, int64(11155111), config.ChainID().Int64())
	assert.Equal(t, "0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC", config.Chain.VerifyingContract)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "console", config.Log.Format)

	assert.Equal(t, configPath, config.GetConfigPath())
}

func TestLoadDefaultConfig(t *testing.T) {
	config, err := LoadDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.IP)
	assert.Equal(t, "/var/lib/seaportd", config.Storage.Path)
	assert.True(t, config.Storage.History)
	assert.Equal(t, int64(1), config.Chain.ID)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SEAPORTD_SERVER_PORT", "7070")
	t.Setenv("SEAPORTD_LOG_LEVEL", "warn")

	config, err := LoadDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "warn", config.Log.Level)
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080, IP: "127.0.0.1"},
			Storage: StorageConfig{Path: "/tmp/test"},
			Chain:   ChainConfig{ID: 1, VerifyingContract: "0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC"},
			Log:     LogConfig{Level: "info", Format: "json"},
		}
	}

	require.NoError(t, ValidateConfig(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"empty ip", func(c *Config) { c.Server.IP = "" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"zero chain id", func(c *Config) { c.Chain.ID = 0 }},
		{"bad verifying contract", func(c *Config) { c.Chain.VerifyingContract = "not-an-address" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			assert.Error(t, ValidateConfig(config))
		})
	}
}
