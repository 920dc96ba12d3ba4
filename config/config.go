package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"utilitychain/crypto"
	"utilitychain/observability/logging"
	"utilitychain/observability/otel"
)

// DefaultKeystorePassEnv is the environment variable consulted for the
// operator keystore passphrase when the config does not name one.
const DefaultKeystorePassEnv = "UTILITY_KEYSTORE_PASS"

type Config struct {
	DataDir         string `toml:"DataDir"`
	Environment     string `toml:"Environment"`
	Admin           string `toml:"Admin"`
	ContractAddress string `toml:"ContractAddress"`
	KeystorePath    string `toml:"KeystorePath"`
	KeystorePassEnv string `toml:"KeystorePassEnv"`

	Pauses    Pauses    `toml:"pauses"`
	Log       Log       `toml:"log"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(path, cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(configPath string, cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./utility-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.KeystorePath) == "" {
		cfg.KeystorePath = defaultKeystorePath(configPath)
	}
	if strings.TrimSpace(cfg.KeystorePassEnv) == "" {
		cfg.KeystorePassEnv = DefaultKeystorePassEnv
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		cfg.Telemetry.Endpoint = "localhost:4318"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Telemetry: Telemetry{Insecure: true},
	}
	applyDefaults(path, cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in TOML form.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}

// AdminIdentity parses the configured admin. The boolean is false when no
// admin is configured.
func (c *Config) AdminIdentity() (common.Address, bool, error) {
	return optionalIdentity(c.Admin)
}

// ContractIdentity parses the configured contract holding identity.
func (c *Config) ContractIdentity() (common.Address, bool, error) {
	return optionalIdentity(c.ContractAddress)
}

func optionalIdentity(raw string) (common.Address, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, false, nil
	}
	id, err := crypto.ParseIdentity(raw)
	if err != nil {
		return common.Address{}, false, err
	}
	return id, true, nil
}

// LogOptions converts the [log] section for logging.SetupWithOptions.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// TelemetryConfig converts the [telemetry] section for otel.Init.
func (c *Config) TelemetryConfig(service string) otel.Config {
	return otel.Config{
		ServiceName: service,
		Environment: c.Environment,
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(c.Telemetry.Headers),
		Metrics:     c.Telemetry.Metrics,
		Traces:      c.Telemetry.Traces,
	}
}
