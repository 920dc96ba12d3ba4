package config

import (
	"fmt"
	"strings"

	"utilitychain/observability/logging"
)

// Validate checks the values Load cannot default.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if _, _, err := c.AdminIdentity(); err != nil {
		return fmt.Errorf("config: Admin: %w", err)
	}
	if _, _, err := c.ContractIdentity(); err != nil {
		return fmt.Errorf("config: ContractAddress: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.Level: %w", err)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("config: log rotation limits must not be negative")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: telemetry Endpoint required when exporters are enabled")
	}
	return nil
}
