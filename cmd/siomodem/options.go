package main

import (
	"github.com/jaracil/siomodem/internal/config"
)

// Options are the command line flags. Non-zero values override the
// configuration file.
type Options struct {
	Config      string `short:"c" long:"config" description:"YAML configuration file"`
	Port        string `short:"p" long:"port" description:"Serial port attached to the SIO bus"`
	Baud        int    `short:"b" long:"baud" description:"SIO bus baud rate"`
	CommandLine string `long:"command-line" choice:"ri" choice:"dsr" choice:"cts" description:"Status line carrying the SIO command signal"`
	Pty         bool   `long:"pty" description:"Expose a pseudo-terminal instead of a serial port"`
	Firmware    string `short:"f" long:"firmware" description:"Directory holding 850relocator.bin and 850handler.bin"`
	Listen      int    `short:"l" long:"listen" description:"TCP port for incoming calls"`
	AutoAnswer  bool   `short:"a" long:"auto-answer" description:"Answer incoming calls without ATA"`
	Raw         bool   `long:"raw" description:"Start with Telnet negotiation disabled"`
	Sniff       string `long:"sniff" description:"Capture relayed traffic to this file"`
	LogLevel    string `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Override the configured log level"`
	Quiet       bool   `short:"q" long:"quiet" description:"Disable logging"`
}

// apply copies the flags that were given over cfg.
func (o *Options) apply(cfg *config.Config) {
	if o.Port != "" {
		cfg.Serial.Port = o.Port
	}
	if o.Baud != 0 {
		cfg.Serial.Baud = o.Baud
	}
	if o.CommandLine != "" {
		cfg.Serial.CommandLine = o.CommandLine
	}
	if o.Pty {
		cfg.Serial.Pty = true
	}
	if o.Firmware != "" {
		cfg.Modem.FirmwareDir = o.Firmware
	}
	if o.Listen != 0 {
		cfg.Modem.ListenPort = o.Listen
	}
	if o.AutoAnswer {
		cfg.Modem.AutoAnswer = true
	}
	if o.Raw {
		telnet := false
		cfg.Modem.Telnet = &telnet
	}
	if o.Sniff != "" {
		cfg.Sniffer.File = o.Sniff
		cfg.Sniffer.Enabled = true
	}
}
