// internal/regmap/encode.go
package regmap

import "fmt"

var baudRates = map[uint8]int{
	Baud4800:   4800,
	Baud9600:   9600,
	Baud19200:  19200,
	Baud38400:  38400,
	Baud57600:  57600,
	Baud115200: 115200,
}

var parityModes = map[uint8]string{
	ParityNone: "N",
	ParityEven: "E",
	ParityOdd:  "O",
}

var dataTypeNames = map[uint16]string{
	DataType0To5V:   "0-5V",
	DataType1To5V:   "1-5V",
	DataType0To20mA: "0-20mA",
	DataType4To20mA: "4-20mA",
	DataTypeRaw:     "raw",
}

// PackUART builds the UART parameter word. No IO. No validation.
func PackUART(parity, baud uint8) uint16 {
	return uint16(parity)<<8 | uint16(baud)
}

// UnpackUART splits the UART parameter word into its codes.
func UnpackUART(word uint16) (parity, baud uint8) {
	return uint8(word >> 8), uint8(word)
}

// DecodeUART resolves a UART word to baud rate and parity letter.
// Unknown codes fall back to the power-on defaults.
func DecodeUART(word uint16) (baud int, parity string) {
	pc, bc := UnpackUART(word)

	baud, ok := baudRates[bc]
	if !ok {
		baud = DefaultBaud
	}
	parity, ok = parityModes[pc]
	if !ok {
		parity = DefaultParity
	}
	return baud, parity
}

// BaudRate returns the rate for a baud code.
func BaudRate(code uint8) (int, bool) {
	b, ok := baudRates[code]
	return b, ok
}

// BaudCode is the inverse of BaudRate.
func BaudCode(rate int) (uint8, bool) {
	for c, b := range baudRates {
		if b == rate {
			return c, true
		}
	}
	return 0, false
}

// ParityCode maps a parity letter (N/E/O) to its code.
func ParityCode(letter string) (uint8, bool) {
	for c, p := range parityModes {
		if p == letter {
			return c, true
		}
	}
	return 0, false
}

// VersionString renders the version word as "V<major>.<minor:02>".
func VersionString(word uint16) string {
	return fmt.Sprintf("V%d.%02d", word/100, word%100)
}

// DataTypeName returns a display name for a data-type code.
func DataTypeName(code uint16) string {
	if n, ok := dataTypeNames[code]; ok {
		return n
	}
	return fmt.Sprintf("0x%04x", code)
}

// ValidDataType reports whether code is a defined data-type selector.
func ValidDataType(code uint16) bool {
	return code <= MaxDataType
}

// ValidDeviceAddress reports whether addr may be stored at DeviceAddress.
func ValidDeviceAddress(addr uint16) bool {
	return addr >= MinDeviceAddress && addr <= MaxDeviceAddress
}
