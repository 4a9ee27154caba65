// internal/probe/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Client implements probe.Client on goburrow/modbus over TCP or RTU.
// Requests are serialized; the handlers are not safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	handler interface {
		Connect() error
		Close() error
	}
	client modbus.Client
}

// SerialConfig is the RTU line when the probe talks to a serial port.
type SerialConfig struct {
	Port     string
	Baud     int
	DataBits int
	Parity   string
	StopBits int
}

// Config selects exactly one transport.
type Config struct {
	Endpoint string // host:port for TCP
	Serial   *SerialConfig
	UnitID   uint8
	Timeout  time.Duration
}

// New creates a connected client.
func New(cfg Config) (*Client, error) {
	switch {
	case cfg.Endpoint != "" && cfg.Serial != nil:
		return nil, errors.New("probe modbus: endpoint and serial are mutually exclusive")
	case cfg.Endpoint != "":
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		return connect(h, h)
	case cfg.Serial != nil && cfg.Serial.Port != "":
		h := modbus.NewRTUClientHandler(cfg.Serial.Port)
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		h.BaudRate = cfg.Serial.Baud
		h.DataBits = cfg.Serial.DataBits
		h.Parity = cfg.Serial.Parity
		h.StopBits = cfg.Serial.StopBits
		return connect(h, h)
	}
	return nil, errors.New("probe modbus: endpoint or serial port required")
}

func connect(h interface {
	Connect() error
	Close() error
}, ch modbus.ClientHandler) (*Client, error) {
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &Client{handler: h, client: modbus.NewClient(ch)}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ---- probe.Client interface ----

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, qty)
}

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, qty)
}

func unpackRegisters(data []byte, qty uint16) ([]uint16, error) {
	if len(data) != 2*int(qty) {
		return nil, fmt.Errorf("probe modbus: got %d bytes for %d registers", len(data), qty)
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out, nil
}
