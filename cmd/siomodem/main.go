package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	sm "github.com/jaracil/siomodem"
	"github.com/jaracil/siomodem/internal/config"
	"github.com/jaracil/siomodem/internal/firmware"
	"github.com/jaracil/siomodem/internal/hostnet"
	"github.com/jaracil/siomodem/internal/logger"
	"github.com/jaracil/siomodem/internal/serialport"
	"github.com/jaracil/siomodem/internal/sniffer"
)

type closableBus interface {
	sm.Bus
	Close() error
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := run(&opts); err != nil {
		fmt.Fprintf(os.Stderr, "siomodem: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}
	opts.apply(cfg)
	return cfg, nil
}

func openBus(cfg *config.Config, log *slog.Logger) (closableBus, error) {
	if cfg.Serial.Pty {
		b, err := NewPtyBus(log)
		if err != nil {
			return nil, fmt.Errorf("creating pty: %w", err)
		}
		fmt.Printf("tty path: %s\r\n", b.Name())
		return b, nil
	}
	line, err := serialport.ParseCommandLine(cfg.Serial.CommandLine)
	if err != nil {
		return nil, err
	}
	return serialport.Open(cfg.Serial.Port, cfg.Serial.Baud, line, log)
}

func modeTransition(m *sm.Modem, prevMode sm.Mode, newMode sm.Mode) {
	slog.Info("Modem mode", "modem", m.Id(), "from", prevMode, "to", newMode, "baud", m.Baud(), "active", m.Active())
}

func run(opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Loggers, opts.LogLevel, opts.Quiet)
	for _, f := range cfg.LoadedFiles {
		log.Debug("Configuration loaded", "file", f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := firmware.NewStore(cfg.Modem.FirmwareDir, log)
	if cfg.Modem.WatchFirmware {
		go func() {
			if err := store.Watch(ctx); err != nil {
				log.Warn("Firmware watcher stopped", "error", err)
			}
		}()
	}

	var capture sm.Sniffer
	if cfg.Sniffer.File != "" {
		s, err := sniffer.Create(cfg.Sniffer.File, cfg.Sniffer.Enabled)
		if err != nil {
			return err
		}
		capture = s
	}

	bus, err := openBus(cfg, log)
	if err != nil {
		return err
	}
	defer bus.Close()

	m, err := sm.NewModem(&sm.Config{
		Id:             cfg.Modem.Id,
		Bus:            bus,
		Network:        &sm.TCPNetwork{Logger: log},
		Firmware:       store,
		Sniffer:        capture,
		WiFi:           hostnet.New(log),
		Logger:         log,
		ModeTransition: modeTransition,
		TermType:       cfg.Modem.TermType,
		BaudLock:       cfg.Modem.BaudLock,
		AutoAnswer:     cfg.Modem.AutoAnswer,
		RawTCP:         !cfg.Modem.TelnetEnabled(),
		ListenPort:     cfg.Modem.ListenPort,
		RingInterval:   cfg.Modem.RingInterval,
		AnswerSettle:   cfg.Modem.AnswerSettle,
		DialTimeout:    cfg.Modem.DialTimeout,
	})
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return err
	}
	defer m.Close()

	err = m.Run(ctx)
	log.Info("Modem stopped", "metrics", fmt.Sprintf("%+v", *m.Metrics()))
	return err
}
