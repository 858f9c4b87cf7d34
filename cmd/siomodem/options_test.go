package main

import (
	"testing"

	"github.com/jessevdk/go-flags"

	"github.com/jaracil/siomodem/internal/config"
)

func TestOptions_Apply(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(*config.Config) bool
	}{
		{"defaults kept", nil, func(c *config.Config) bool {
			return c.Serial.Port == "/dev/ttyUSB0" && c.Serial.Baud == 19200 && c.Modem.TelnetEnabled()
		}},
		{"serial", []string{"-p", "/dev/ttyS1", "-b", "57600", "--command-line", "dsr"}, func(c *config.Config) bool {
			return c.Serial.Port == "/dev/ttyS1" && c.Serial.Baud == 57600 && c.Serial.CommandLine == "dsr"
		}},
		{"pty", []string{"--pty"}, func(c *config.Config) bool {
			return c.Serial.Pty
		}},
		{"modem", []string{"-f", "/srv/fw", "-l", "6400", "-a", "--raw"}, func(c *config.Config) bool {
			return c.Modem.FirmwareDir == "/srv/fw" && c.Modem.ListenPort == 6400 &&
				c.Modem.AutoAnswer && !c.Modem.TelnetEnabled()
		}},
		{"sniffer", []string{"--sniff", "capture.log"}, func(c *config.Config) bool {
			return c.Sniffer.File == "capture.log" && c.Sniffer.Enabled
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts Options
			if _, err := flags.ParseArgs(&opts, tt.args); err != nil {
				t.Fatalf("ParseArgs() error = %v", err)
			}
			cfg, err := loadConfig(&opts)
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("unexpected config %+v", cfg)
			}
		})
	}
}

func TestOptions_RejectsUnknownChoice(t *testing.T) {
	var opts Options
	if _, err := flags.ParseArgs(&opts, []string{"--command-line", "dcd"}); err == nil {
		t.Error("ParseArgs() accepted an unknown command line")
	}
}
