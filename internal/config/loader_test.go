package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modem.yaml")
	writeFile(t, path, "modem:\n  listenPort: 2323\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Modem.ListenPort != 2323 {
		t.Errorf("ListenPort = %d, want 2323", cfg.Modem.ListenPort)
	}
	if cfg.Serial.Baud != 19200 {
		t.Errorf("Serial.Baud = %d, want default 19200", cfg.Serial.Baud)
	}
	if cfg.Modem.TermType != "dumb" {
		t.Errorf("TermType = %q, want default dumb", cfg.Modem.TermType)
	}
	if !cfg.Modem.TelnetEnabled() {
		t.Error("TelnetEnabled() = false, want default true")
	}
}

func TestLoadIncludeAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SIOMODEM_TEST_PORT", "/dev/ttyACM3")

	writeFile(t, filepath.Join(dir, "base.yaml"), `
serial:
  port: /dev/ttyUSB9
  commandLine: dsr
modem:
  telnet: false
  ringInterval: 5s
`)
	main := filepath.Join(dir, "main.yaml")
	writeFile(t, main, `
include:
  - base.yaml
  - main.yaml
serial:
  port: ${SIOMODEM_TEST_PORT}
sniffer:
  file: capture.log
  enabled: true
`)

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM3" {
		t.Errorf("Serial.Port = %q, want env value", cfg.Serial.Port)
	}
	if cfg.Serial.CommandLine != "dsr" {
		t.Errorf("Serial.CommandLine = %q, want included dsr", cfg.Serial.CommandLine)
	}
	if cfg.Modem.TelnetEnabled() {
		t.Error("TelnetEnabled() = true, want false from include")
	}
	if cfg.Modem.RingInterval != 5*time.Second {
		t.Errorf("RingInterval = %v, want 5s", cfg.Modem.RingInterval)
	}
	if !cfg.Sniffer.Enabled || cfg.Sniffer.File != "capture.log" {
		t.Errorf("Sniffer = %+v", cfg.Sniffer)
	}
	if len(cfg.LoadedFiles) != 2 {
		t.Errorf("LoadedFiles = %v, want 2 files", cfg.LoadedFiles)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil")
	}

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "modem: [\n")
	if _, err := Load(bad); err == nil {
		t.Error("Load(bad yaml) error = nil")
	}
}
