// cmd/sensorsim/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	bugserial "go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/config"
	"github.com/tamzrod/analog-sim/internal/console"
	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/logging"
	"github.com/tamzrod/analog-sim/internal/sim"
)

func main() {
	cfgPath := flag.String("config", "sensorsim.yaml", "YAML config; created on first address/UART change")
	logPath := flag.String("log", "sensorsim.log", "log file used while the console owns the terminal")
	headless := flag.Bool("headless", false, "run without the console, logging to stderr")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	port := flag.String("port", "", "serial port override (e.g. /dev/ttyUSB0, COM5)")
	listen := flag.String("tcp", "", "TCP listen address override (e.g. :5020)")
	flag.Parse()

	if *listPorts {
		ports, err := bugserial.GetPortsList()
		if err != nil {
			log.Fatalf("list ports failed: %v", err)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if err := run(*cfgPath, *logPath, *port, *listen, *headless); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource so deferred cleanup happens before main exits.
func run(cfgPath, logPath, port, listen string, headless bool) error {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if port != "" {
		cfg.Device.Serial.Port = port
	}
	if listen != "" {
		cfg.Device.TCP.Listen = listen
	}
	if cfg.Device.Serial.Port == "" && cfg.Device.TCP.Listen == "" {
		return errors.New("no transport: set device.serial.port or device.tcp.listen (or -port / -tcp)")
	}

	// --------------------
	// Logger
	// --------------------

	opts := logging.Options{Level: cfg.Logging.Level, Development: cfg.Logging.Development}
	if !headless {
		opts.File = logPath
	}
	logger, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer logger.Sync()

	// --------------------
	// Build + start
	// --------------------

	s, err := sim.New(sim.Options{Config: cfg, ConfigPath: cfgPath, Logger: logger})
	if err != nil {
		logger.Error("simulation build failed", zap.Error(err))
		return fmt.Errorf("simulation build failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		logger.Error("simulation start failed", zap.Error(err))
		return fmt.Errorf("simulation start failed: %w", err)
	}
	defer s.Stop()

	unsubscribe := s.Events().Subscribe(func(e hub.Event) {
		logger.Info("hub event",
			zap.String("id", e.ID.String()),
			zap.String("type", string(e.Type)),
			zap.Int("channel", e.Channel),
		)
	})
	defer unsubscribe()

	if headless {
		<-ctx.Done()
		logger.Info("signal received, shutting down")
		return nil
	}

	events, cancelEvents := s.Events().SubscribeChan(32)
	defer cancelEvents()

	p := tea.NewProgram(console.NewModel(s, events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		logger.Error("console failed", zap.Error(err))
		return fmt.Errorf("console error: %w", err)
	}
	logger.Info("application exiting")
	return nil
}
