package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"utilitychain/crypto"
	"utilitychain/native/utility"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.DataDir != "./utility-data" || cfg.Environment != "local" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.KeystorePath != filepath.Join(filepath.Dir(path), "operator.keystore") {
		t.Fatalf("unexpected keystore path %s", cfg.KeystorePath)
	}
	if cfg.KeystorePassEnv != DefaultKeystorePassEnv || cfg.Log.Level != "info" || cfg.Log.MaxBackups != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Log.MaxSizeMB != 100 || !reloaded.Telemetry.Insecure {
		t.Fatalf("defaults did not round trip: %+v", reloaded)
	}
}

func TestLoadParsesSections(t *testing.T) {
	admin := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contract := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	path := writeConfig(t, `DataDir = "/var/lib/utility"
Environment = "staging"
Admin = "`+admin.Hex()+`"
ContractAddress = "`+crypto.FromCommon(contract).String()+`"
KeystorePath = "/etc/utility/op.keystore"
KeystorePassEnv = "OP_PASS"

[pauses]
Utility = true

[log]
Level = "debug"
File = "/var/log/utility.log"
MaxSizeMB = 10
MaxBackups = 2
MaxAgeDays = 3
Compress = true

[telemetry]
Endpoint = "collector:4318"
Headers = "x-api-key=abc, tenant=ops"
Traces = true
PromTextfile = "/var/lib/node_exporter/utility.prom"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gotAdmin, ok, err := cfg.AdminIdentity()
	if err != nil || !ok || gotAdmin != admin {
		t.Fatalf("admin not parsed: %s ok=%v err=%v", gotAdmin.Hex(), ok, err)
	}
	gotContract, ok, err := cfg.ContractIdentity()
	if err != nil || !ok || gotContract != contract {
		t.Fatalf("bech32 contract not parsed: %s ok=%v err=%v", gotContract.Hex(), ok, err)
	}
	if !cfg.Pauses.View().IsPaused(utility.ModuleName) {
		t.Fatalf("utility pause not applied")
	}
	opts := cfg.LogOptions()
	if opts.Level != "debug" || opts.File != "/var/log/utility.log" || !opts.Compress || opts.MaxAgeDays != 3 {
		t.Fatalf("unexpected log options %+v", opts)
	}
	tel := cfg.TelemetryConfig("utilityctl")
	if tel.ServiceName != "utilityctl" || tel.Environment != "staging" || !tel.Traces || tel.Metrics {
		t.Fatalf("unexpected telemetry %+v", tel)
	}
	if cfg.Telemetry.PromTextfile != "/var/lib/node_exporter/utility.prom" {
		t.Fatalf("textfile path lost: %q", cfg.Telemetry.PromTextfile)
	}
	if tel.Headers["x-api-key"] != "abc" || tel.Headers["tenant"] != "ops" {
		t.Fatalf("headers not parsed: %v", tel.Headers)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "DataDir = \"./d\"\nListenAddress = \":6001\"\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ListenAddress") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"admin":    "Admin = \"not-an-address\"\n",
		"contract": "ContractAddress = \"0x1234\"\n",
		"level":    "[log]\nLevel = \"loud\"\n",
		"rotation": "[log]\nMaxBackups = -1\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, contents)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateTelemetryEndpoint(t *testing.T) {
	cfg := &Config{DataDir: "./d", Telemetry: Telemetry{Metrics: true}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing endpoint to be rejected")
	}
	cfg.Telemetry.Endpoint = "localhost:4318"
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := Validate(nil); err == nil {
		t.Fatalf("expected nil config to be rejected")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := &Config{DataDir: "./d", Admin: "0x00000000000000000000000000000000000000a1"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Admin != cfg.Admin {
		t.Fatalf("admin lost: %q", loaded.Admin)
	}
}
