package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole configuration file.
type Config struct {
	LoadedFiles []string       `yaml:"-"` // Track all files loaded for this config
	Include     []string       `yaml:"include"`
	Serial      SerialConfig   `yaml:"serial"`
	Modem       ModemConfig    `yaml:"modem"`
	Sniffer     SnifferConfig  `yaml:"sniffer"`
	Loggers     []LoggerConfig `yaml:"loggers"`
}

// SerialConfig selects the SIO adapter.
type SerialConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	CommandLine string `yaml:"commandLine"` // ri, dsr or cts
	Pty         bool   `yaml:"pty"`         // expose a pseudo-terminal instead of a serial port
}

// ModemConfig holds the modem defaults and timings.
type ModemConfig struct {
	Id            string        `yaml:"id"`
	TermType      string        `yaml:"termType"`
	Telnet        *bool         `yaml:"telnet"`
	ListenPort    int           `yaml:"listenPort"`
	AutoAnswer    bool          `yaml:"autoAnswer"`
	BaudLock      bool          `yaml:"baudLock"`
	FirmwareDir   string        `yaml:"firmwareDir"`
	WatchFirmware bool          `yaml:"watchFirmware"`
	RingInterval  time.Duration `yaml:"ringInterval"`
	AnswerSettle  time.Duration `yaml:"answerSettle"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
}

// SnifferConfig sets up traffic capture.
type SnifferConfig struct {
	File    string `yaml:"file"`
	Enabled bool   `yaml:"enabled"`
}

// LoggerConfig describes one log sink.
type LoggerConfig struct {
	Stdout     bool   `yaml:"stdout,omitempty"`
	File       string `yaml:"file,omitempty"`
	Level      string `yaml:"level"`
	Source     bool   `yaml:"source"`
	HideTime   bool   `yaml:"hideTime,omitempty"`
	TimeFormat string `yaml:"timeFormat,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LoadedFiles: []string{},
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			Baud:        19200,
			CommandLine: "ri",
		},
		Modem: ModemConfig{
			Id:          "R1",
			TermType:    "dumb",
			FirmwareDir: "firmware",
		},
		Loggers: []LoggerConfig{{Stdout: true, Level: "info"}},
	}
}

// TelnetEnabled reports the telnet setting, on unless explicitly disabled.
func (m ModemConfig) TelnetEnabled() bool {
	return m.Telnet == nil || *m.Telnet
}

// Load reads filename over Default. Files listed under include are loaded
// first, relative to the including file, and environment variables are expanded.
func Load(filename string) (*Config, error) {
	cfg := Default()

	// Keep track of processed files to avoid infinite loops
	processed := make(map[string]bool)

	if err := loadRecursive(filename, cfg, processed); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRecursive(filename string, cfg *Config, processed map[string]bool) error {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return err
	}

	if processed[absPath] {
		return nil // Already processed
	}
	processed[absPath] = true
	cfg.LoadedFiles = append(cfg.LoadedFiles, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	// Unmarshal into a temporary struct to load includes first
	var tempCfg struct {
		Include []string `yaml:"include"`
	}
	if err := yaml.Unmarshal(expandedData, &tempCfg); err != nil {
		return fmt.Errorf("parsing %s: %w", absPath, err)
	}

	baseDir := filepath.Dir(absPath)
	for _, includePath := range tempCfg.Include {
		fullPath := includePath
		if !filepath.IsAbs(includePath) {
			fullPath = filepath.Join(baseDir, includePath)
		}

		if err := loadRecursive(fullPath, cfg, processed); err != nil {
			return fmt.Errorf("failed to load included config %s: %w", fullPath, err)
		}
	}

	// Now apply the current file's configuration over the accumulated config
	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", absPath, err)
	}
	return nil
}
