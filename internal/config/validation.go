package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateConfig checks the complete configuration for consistency.
func ValidateConfig(c *Config) error {
	if err := validateServer(&c.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateStorage(&c.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := validateChain(&c.Chain); err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	if err := validateLog(&c.Log); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", s.Port)
	}
	if s.IP == "" {
		return fmt.Errorf("ip cannot be empty")
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	if s.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

func validateChain(c *ChainConfig) error {
	if c.ID <= 0 {
		return fmt.Errorf("id must be positive, got %d", c.ID)
	}
	if !common.IsHexAddress(c.VerifyingContract) {
		return fmt.Errorf("verifying_contract %q is not a hex address", c.VerifyingContract)
	}
	return nil
}

func validateLog(l *LogConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error; got %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be json or console; got %q", l.Format)
	}
	return nil
}
