// internal/regmap/constants.go
package regmap

// Register map of the emulated 8-channel analog input module.
// These values define the protocol and MUST NOT be configurable.

// ---- PROCESS VALUES (input registers, FC 4) ----

// Channels is the number of process-value slots exposed by the module.
const Channels = 8

// InputBase is the first process-value register (channel 1).
const InputBase uint16 = 0x0000

// InputEnd is the last process-value register (channel 8, inclusive).
const InputEnd = InputBase + Channels - 1

// ---- CONFIGURATION (holding registers, FC 3/6/16) ----

// DataTypeBase is the data-type selector of channel 1; channels 2..8 follow.
const DataTypeBase uint16 = 0x1000

// DataTypeEnd is the data-type selector of channel 8 (inclusive).
const DataTypeEnd = DataTypeBase + Channels - 1

// UARTParams holds parity (high byte) and baud code (low byte).
const UARTParams uint16 = 0x2000

// DeviceAddress holds the module's own bus address.
const DeviceAddress uint16 = 0x4000

// SoftwareVersion holds major*100+minor.
const SoftwareVersion uint16 = 0x8000

// ---- BUS ADDRESSES ----

// BroadcastAddress is answered by every module in addition to its own address.
const BroadcastAddress uint8 = 0

const (
	MinDeviceAddress = 1
	MaxDeviceAddress = 255
)

// ---- DATA TYPES ----

const (
	DataType0To5V   uint16 = 0x0000
	DataType1To5V   uint16 = 0x0001
	DataType0To20mA uint16 = 0x0002
	DataType4To20mA uint16 = 0x0003
	DataTypeRaw     uint16 = 0x0004
	MaxDataType            = DataTypeRaw
	DefaultDataType        = DataType4To20mA
)

// ---- POWER-ON DEFAULTS ----

// DefaultUARTWord is the power-on UART word (parity none, baud code 0).
const DefaultUARTWord uint16 = 0x0000

// FirmwareVersion is the value reported at SoftwareVersion (V1.00).
const FirmwareVersion uint16 = 100

// DefaultBaud and DefaultParity are used when a UART code is not in the tables.
const (
	DefaultBaud   = 9600
	DefaultParity = "N"
)

// ---- UART CODES ----

const (
	ParityNone uint8 = 0x00
	ParityEven uint8 = 0x01
	ParityOdd  uint8 = 0x02
)

const (
	Baud4800   uint8 = 0x00
	Baud9600   uint8 = 0x01
	Baud19200  uint8 = 0x02
	Baud38400  uint8 = 0x03
	Baud57600  uint8 = 0x04
	Baud115200 uint8 = 0x05
)
