// internal/regmap/snapshot.go
package regmap

// ConfigState is the display-friendly view of the configuration bank.
// It contains no logic and no memory of the past beyond current state.
type ConfigState struct {
	SlaveID         uint8
	DeviceAddress   uint16
	UARTWord        uint16
	BaudRate        int
	Parity          string
	SoftwareVersion string
	DataTypes       [Channels]uint16
}

// Decode fills the derived fields of a ConfigState from its raw words.
func Decode(slaveID uint8, addr, uart, version uint16, dataTypes [Channels]uint16) ConfigState {
	baud, parity := DecodeUART(uart)
	return ConfigState{
		SlaveID:         slaveID,
		DeviceAddress:   addr,
		UARTWord:        uart,
		BaudRate:        baud,
		Parity:          parity,
		SoftwareVersion: VersionString(version),
		DataTypes:       dataTypes,
	}
}
