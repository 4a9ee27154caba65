// internal/regmap/encode_test.go
package regmap

import "testing"

func TestAddressMap(t *testing.T) {
	if InputBase != 0x0000 || InputEnd != 0x0007 {
		t.Fatalf("input range got=%#x-%#x", InputBase, InputEnd)
	}
	if DataTypeBase != 0x1000 || DataTypeEnd != 0x1007 {
		t.Fatalf("data type range got=%#x-%#x", DataTypeBase, DataTypeEnd)
	}
	if UARTParams != 0x2000 || DeviceAddress != 0x4000 || SoftwareVersion != 0x8000 {
		t.Fatalf("config addresses moved")
	}
}

func TestPackUnpackUART(t *testing.T) {
	w := PackUART(ParityEven, Baud19200)
	if w != 0x0102 {
		t.Fatalf("PackUART got=%#04x want=0x0102", w)
	}
	p, b := UnpackUART(w)
	if p != ParityEven || b != Baud19200 {
		t.Fatalf("UnpackUART got=%d/%d", p, b)
	}
}

func TestDecodeUART(t *testing.T) {
	cases := []struct {
		word   uint16
		baud   int
		parity string
	}{
		{0x0000, 4800, "N"},
		{0x0001, 9600, "N"},
		{0x0203, 38400, "O"},
		{0x0105, 115200, "E"},
		{0x0009, DefaultBaud, "N"},    // unknown baud code
		{0x0701, 9600, DefaultParity}, // unknown parity code
	}
	for _, c := range cases {
		baud, parity := DecodeUART(c.word)
		if baud != c.baud || parity != c.parity {
			t.Fatalf("DecodeUART(%#04x) got=%d/%s want=%d/%s", c.word, baud, parity, c.baud, c.parity)
		}
	}
}

func TestBaudCodeRoundTrip(t *testing.T) {
	for code := Baud4800; code <= Baud115200; code++ {
		rate, ok := BaudRate(code)
		if !ok {
			t.Fatalf("missing rate for code %d", code)
		}
		back, ok := BaudCode(rate)
		if !ok || back != code {
			t.Fatalf("BaudCode(%d) got=%d want=%d", rate, back, code)
		}
	}
	if _, ok := BaudCode(1234); ok {
		t.Fatalf("unexpected code for 1234 baud")
	}
}

func TestVersionString(t *testing.T) {
	if got := VersionString(FirmwareVersion); got != "V1.00" {
		t.Fatalf("got=%s want=V1.00", got)
	}
	if got := VersionString(207); got != "V2.07" {
		t.Fatalf("got=%s want=V2.07", got)
	}
}

func TestValidators(t *testing.T) {
	if !ValidDataType(DataTypeRaw) || ValidDataType(5) {
		t.Fatalf("ValidDataType bounds wrong")
	}
	if ValidDeviceAddress(0) || !ValidDeviceAddress(1) || !ValidDeviceAddress(255) || ValidDeviceAddress(256) {
		t.Fatalf("ValidDeviceAddress bounds wrong")
	}
}
