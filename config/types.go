package config

import (
	nativecommon "utilitychain/native/common"
	"utilitychain/native/utility"
)

// Pauses lists the modules an operator can switch off.
type Pauses struct {
	Utility bool `toml:"Utility"`
}

// View exposes the pause switches to the engine's guard.
func (p Pauses) View() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{utility.ModuleName: p.Utility}
}

// Log configures structured logging and the optional rotating file sink.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	// Headers is a comma separated key=value list.
	Headers string `toml:"Headers"`
	Traces  bool   `toml:"Traces"`
	Metrics bool   `toml:"Metrics"`
	// PromTextfile receives the Prometheus registry in text format after
	// each command, for a node_exporter textfile collector.
	PromTextfile string `toml:"PromTextfile"`
}
