// Package config loads the seaportd configuration from defaults, a TOML
// file and SEAPORTD_-prefixed environment variables, in that priority order.
package config

import (
	"fmt"
	"math/big"
	"path/filepath"
)

// Config is the complete seaportd configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	Chain   ChainConfig   `toml:"chain" mapstructure:"chain"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`

	configPath string `toml:"-" mapstructure:"-"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Port int    `toml:"port" mapstructure:"port"`
	IP   string `toml:"ip" mapstructure:"ip"`
}

// StorageConfig controls the on-disk stores.
type StorageConfig struct {
	// Path is the data directory; the status and history databases live
	// under it.
	Path string `toml:"path" mapstructure:"path"`

	// History enables the SQLite fill archive.
	History bool `toml:"history" mapstructure:"history"`
}

// ChainConfig pins the signing domain orders are hashed against.
type ChainConfig struct {
	// ID is the EIP-155 chain id of the signing domain.
	ID int64 `toml:"id" mapstructure:"id"`

	// VerifyingContract is the hex address bound into order digests.
	VerifyingContract string `toml:"verifying_contract" mapstructure:"verifying_contract"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" mapstructure:"level"`

	// Format is "json" or "console".
	Format string `toml:"format" mapstructure:"format"`
}

// ChainID returns the configured chain id as a big integer.
func (c *Config) ChainID() *big.Int {
	return big.NewInt(c.Chain.ID)
}

// StatusDBPath returns the path of the order status database.
func (c *Config) StatusDBPath() string {
	return filepath.Join(c.Storage.Path, "status")
}

// HistoryDBPath returns the path of the fill history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Storage.Path, "history.db")
}

// ListenAddr returns the address the API server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.IP, c.Server.Port)
}

// GetConfigPath returns the path the configuration was loaded from, empty
// when only defaults and environment were used.
func (c *Config) GetConfigPath() string {
	return c.configPath
}
