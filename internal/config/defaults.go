package config

import "github.com/spf13/viper"

// setDefaults sets the built-in defaults; a config file and environment
// variables override them.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ip", "127.0.0.1")

	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/seaportd")
	v.SetDefault("storage.history", true)

	// Chain defaults (Ethereum mainnet, canonical marketplace address)
	v.SetDefault("chain.id", 1)
	v.SetDefault("chain.verifying_contract", "0x0000000000000068F116a894984e2DB1123eB395")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
