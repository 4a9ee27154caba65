// cmd/probe/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/logging"
	"github.com/tamzrod/analog-sim/internal/probe"
	pmodbus "github.com/tamzrod/analog-sim/internal/probe/modbus"
	"github.com/tamzrod/analog-sim/internal/sensor"
)

func main() {
	endpoint := flag.String("tcp", "", "emulator TCP endpoint (host:port)")
	port := flag.String("port", "", "serial port of the bus")
	baud := flag.Int("baud", 9600, "serial baud rate")
	parity := flag.String("parity", "N", "serial parity N|E|O")
	unit := flag.Uint("unit", 1, "unit id to poll (0 = broadcast)")
	interval := flag.Duration("interval", time.Second, "poll interval")
	timeout := flag.Duration("timeout", 2*time.Second, "per-request timeout")
	fullScale := flag.Float64("full-scale", sensor.DefaultFullScale, "physical full scale for display")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if *unit > 255 {
		log.Fatalf("unit %d out of range", *unit)
	}

	logger, err := logging.New(logging.Options{Level: *level, Development: true})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	bc := probe.BuildConfig{
		Endpoint: *endpoint,
		Unit:     uint8(*unit),
		Timeout:  *timeout,
		Interval: *interval,
	}
	if *port != "" {
		bc.Serial = &pmodbus.SerialConfig{
			Port:     *port,
			Baud:     *baud,
			DataBits: 8,
			Parity:   strings.ToUpper(*parity),
			StopBits: 1,
		}
	}

	p, closeProbe, err := probe.Build(bc)
	if err != nil {
		logger.Error("probe build failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	defer closeProbe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := make(chan probe.PollResult)
	go p.Run(ctx, out)

	for {
		select {
		case <-ctx.Done():
			s := p.Stats().Summary()
			fmt.Printf("\nrequests=%d avg=%.2fms min=%.2fms max=%.2fms jitter=%.2fms\n",
				s.TotalRequests, s.AvgMs, s.MinMs, s.MaxMs, s.JitterMs)
			return

		case res := <-out:
			r, err := probe.Decode(res, *fullScale)
			if err != nil {
				logger.Warn("poll failed", zap.Uint8("unit", res.Unit), zap.Error(err))
				continue
			}
			printReport(res, r, p.Stats().Summary().AvgMs)
		}
	}
}

func printReport(res probe.PollResult, r probe.Report, avgMs float64) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s unit=%d", res.At.Format("15:04:05.000"), res.Unit)
	for i, v := range r.Values {
		fmt.Fprintf(&b, " ch%d=%.4f(%d)", i+1, v, r.Registers[i])
	}
	if r.HasConfig {
		c := r.Config
		fmt.Fprintf(&b, " | addr=%d %d%s fw=%s", c.DeviceAddress, c.BaudRate, c.Parity, c.SoftwareVersion)
	}
	fmt.Fprintf(&b, " | avg=%.2fms", avgMs)
	fmt.Println(b.String())
}
