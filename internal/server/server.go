// internal/server/server.go
package server

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/goburrow/serial"
	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/device"
)

// Function codes served by the emulator.
const (
	FuncReadHoldingRegisters   uint8 = 3
	FuncReadInputRegisters     uint8 = 4
	FuncWriteSingleRegister    uint8 = 6
	FuncWriteMultipleRegisters uint8 = 16
)

// gatewayTargetFailed is returned for units nothing is mounted on.
var gatewayTargetFailed = mbserver.Exception(11)

// Target is the register map a unit resolves to.
type Target interface {
	Read(bank device.Bank, addr, count uint16) ([]uint16, error)
	Write(bank device.Bank, addr uint16, values []uint16) error
}

// WriteObserver sees every decoded write, whichever unit it is addressed to.
type WriteObserver func(unit uint8, addr uint16, values []uint16)

// Server adapts mbserver to unit-addressed targets.
// mbserver answers every unit id, so dispatch by unit happens here.
type Server struct {
	mb  *mbserver.Server
	log *zap.Logger

	mu        sync.RWMutex
	units     map[uint8]Target
	observers []WriteObserver
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mb:    mbserver.NewServer(),
		log:   logger,
		units: make(map[uint8]Target),
	}

	s.mb.RegisterFunctionHandler(FuncReadHoldingRegisters, s.readHandler(device.HoldingRegisters))
	s.mb.RegisterFunctionHandler(FuncReadInputRegisters, s.readHandler(device.InputRegisters))
	s.mb.RegisterFunctionHandler(FuncWriteSingleRegister, s.writeSingle)
	s.mb.RegisterFunctionHandler(FuncWriteMultipleRegisters, s.writeMultiple)

	// Coils and discrete inputs do not exist on an analog input module.
	for _, fc := range []uint8{1, 2, 5, 15} {
		s.mb.RegisterFunctionHandler(fc, illegalFunction)
	}
	return s
}

// Mount makes t reachable under each of units.
func (s *Server) Mount(t Target, units ...uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range units {
		s.units[u] = t
		s.log.Info("unit mounted", zap.Uint8("unit", u))
	}
}

// OnWrite registers an observer for bus writes.
func (s *Server) OnWrite(fn WriteObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Server) ListenTCP(addr string) error {
	if err := s.mb.ListenTCP(addr); err != nil {
		return err
	}
	s.log.Info("listening", zap.String("transport", "tcp"), zap.String("addr", addr))
	return nil
}

func (s *Server) ListenRTU(cfg *serial.Config) error {
	if cfg == nil || cfg.Address == "" {
		return errors.New("server: serial port required")
	}
	if err := s.mb.ListenRTU(cfg); err != nil {
		return err
	}
	s.log.Info("listening",
		zap.String("transport", "rtu"),
		zap.String("port", cfg.Address),
		zap.Int("baud", cfg.BaudRate),
		zap.String("parity", cfg.Parity),
	)
	return nil
}

func (s *Server) Close() {
	s.mb.Close()
	s.log.Info("server closed")
}

// --------------------
// handlers
// --------------------

type handler func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception)

func (s *Server) readHandler(bank device.Bank) handler {
	return func(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := f.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := binary.BigEndian.Uint16(data[0:2])
		count := binary.BigEndian.Uint16(data[2:4])

		t, ok := s.target(unitOf(f))
		if !ok {
			return []byte{}, &gatewayTargetFailed
		}

		regs, err := t.Read(bank, addr, count)
		if err != nil {
			s.log.Debug("read rejected",
				zap.Uint8("unit", unitOf(f)),
				zap.Stringer("bank", bank),
				zap.Uint16("addr", addr),
				zap.Uint16("count", count),
				zap.Error(err),
			)
			return []byte{}, exceptionFor(err)
		}

		out := make([]byte, 1+2*len(regs))
		out[0] = byte(2 * len(regs))
		for i, r := range regs {
			binary.BigEndian.PutUint16(out[1+2*i:], r)
		}
		return out, &mbserver.Success
	}
}

func (s *Server) writeSingle(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := f.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if ex := s.write(unitOf(f), addr, []uint16{value}); ex != &mbserver.Success {
		return []byte{}, ex
	}
	return data[0:4], &mbserver.Success
}

func (s *Server) writeMultiple(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := f.GetData()
	if len(data) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	count := int(binary.BigEndian.Uint16(data[2:4]))
	byteCount := int(data[4])

	if count == 0 || byteCount != 2*count || len(data) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}

	values := make([]uint16, count)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[5+2*i:])
	}

	if ex := s.write(unitOf(f), addr, values); ex != &mbserver.Success {
		return []byte{}, ex
	}
	return data[0:4], &mbserver.Success
}

func (s *Server) write(unit uint8, addr uint16, values []uint16) *mbserver.Exception {
	s.mu.RLock()
	t, ok := s.units[unit]
	observers := s.observers
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(unit, addr, values)
	}

	if !ok {
		return &gatewayTargetFailed
	}
	if err := t.Write(device.HoldingRegisters, addr, values); err != nil {
		s.log.Debug("write rejected", zap.Uint8("unit", unit), zap.Uint16("addr", addr), zap.Error(err))
		return exceptionFor(err)
	}
	return &mbserver.Success
}

func (s *Server) target(unit uint8) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.units[unit]
	return t, ok
}

func illegalFunction(_ *mbserver.Server, _ mbserver.Framer) ([]byte, *mbserver.Exception) {
	return []byte{}, &mbserver.IllegalFunction
}

// unitOf extracts the addressed unit from a TCP or RTU frame.
func unitOf(f mbserver.Framer) uint8 {
	switch fr := f.(type) {
	case *mbserver.TCPFrame:
		return fr.Device
	case *mbserver.RTUFrame:
		return fr.Address
	}
	return 0
}

// exceptionFor maps device errors to protocol exceptions.
func exceptionFor(err error) *mbserver.Exception {
	switch {
	case errors.Is(err, device.ErrIllegalAddress), errors.Is(err, device.ErrReadOnly):
		return &mbserver.IllegalDataAddress
	case errors.Is(err, device.ErrIllegalValue):
		return &mbserver.IllegalDataValue
	}
	return &mbserver.SlaveDeviceFailure
}
