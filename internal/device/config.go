// internal/device/config.go
package device

import (
	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/regmap"
)

// SetDataType selects the signal type of channel 1..8.
// Out-of-range input is logged and ignored.
func (d *Device) SetDataType(channel int, dataType uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setDataTypeLocked(channel, dataType)
}

// SetDeviceAddress stores a new bus address (1..255).
// The register map keeps answering on SlaveID until restarted with the new address.
func (d *Device) SetDeviceAddress(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setAddressLocked(addr)
}

// SetUARTParams packs parity and baud codes into the UART word.
// Codes outside the lookup tables are stored as-is and decode to the power-on defaults.
func (d *Device) SetUARTParams(parity, baud uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setUARTLocked(parity, baud)
}

// ProcessValues returns the process-value bank without the read latency.
func (d *Device) ProcessValues() [regmap.Channels]uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// DataTypes returns the per-channel data-type selectors.
func (d *Device) DataTypes() [regmap.Channels]uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dataTypes
}

func (d *Device) DeviceAddress() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// UARTParams returns the decoded baud rate and parity letter.
func (d *Device) UARTParams() (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return regmap.DecodeUART(d.uart)
}

// ConfigState decodes the configuration bank for display.
func (d *Device) ConfigState() regmap.ConfigState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return regmap.Decode(d.slaveID, d.address, d.uart, d.version, d.dataTypes)
}

func (d *Device) setDataTypeLocked(channel int, dataType uint16) {
	if channel < 1 || channel > regmap.Channels || !regmap.ValidDataType(dataType) {
		d.log.Warn("data type rejected", zap.Int("channel", channel), zap.Uint16("data_type", dataType))
		return
	}
	d.dataTypes[channel-1] = dataType
	d.log.Info("data type set", zap.Int("channel", channel), zap.String("data_type", regmap.DataTypeName(dataType)))
}

func (d *Device) setAddressLocked(addr uint16) {
	if !regmap.ValidDeviceAddress(addr) {
		d.log.Warn("device address rejected", zap.Uint16("address", addr))
		return
	}
	d.address = addr
	d.log.Info("device address set", zap.Uint16("address", addr))
}

func (d *Device) setUARTLocked(parity, baud uint8) {
	d.uart = regmap.PackUART(parity, baud)
	rate, par := regmap.DecodeUART(d.uart)
	d.log.Info("uart params set", zap.Int("baud", rate), zap.String("parity", par))
}
