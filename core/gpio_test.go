package core

import (
	"testing"

	"gopix/protocol"
)

// MockGPIODriver is a test implementation of GPIODriver
type MockGPIODriver struct {
	pins map[GPIOPin]bool
}

func NewMockGPIODriver() *MockGPIODriver {
	return &MockGPIODriver{
		pins: make(map[GPIOPin]bool),
	}
}

func (m *MockGPIODriver) ConfigureOutput(pin GPIOPin) error {
	m.pins[pin] = false
	return nil
}

func (m *MockGPIODriver) ConfigureInputPullUp(pin GPIOPin) error {
	m.pins[pin] = true
	return nil
}

func (m *MockGPIODriver) ConfigureInputPullDown(pin GPIOPin) error {
	m.pins[pin] = false
	return nil
}

func (m *MockGPIODriver) SetPin(pin GPIOPin, value bool) error {
	m.pins[pin] = value
	return nil
}

func (m *MockGPIODriver) GetPin(pin GPIOPin) (bool, error) {
	return m.pins[pin], nil
}

func (m *MockGPIODriver) ReadPin(pin GPIOPin) bool {
	return m.pins[pin]
}

// encodeArgs packs VLQ arguments the way the transport hands them to a
// command handler.
func encodeArgs(vals ...uint32) []byte {
	out := protocol.NewScratchOutput()
	for _, v := range vals {
		protocol.EncodeVLQUint(out, v)
	}
	return out.Result()
}

func TestDigitalOutConfigAndUpdate(t *testing.T) {
	mock := NewMockGPIODriver()
	SetGPIODriver(mock)
	digitalOutputs = make(map[uint8]*DigitalOut)

	// config_digital_out oid=1 pin=25 value=1 default_value=0
	data := encodeArgs(1, 25, 1, 0)
	if err := handleConfigDigitalOut(&data); err != nil {
		t.Fatalf("config failed: %v", err)
	}

	dout, ok := digitalOutputs[1]
	if !ok {
		t.Fatal("digital out not registered")
	}
	if dout.Pin != 25 {
		t.Errorf("pin = %d, want 25", dout.Pin)
	}
	if dout.Flags&DF_ON == 0 {
		t.Error("initial value flag not set")
	}
	if v, _ := mock.GetPin(25); !v {
		t.Error("pin not driven high")
	}

	// update_digital_out oid=1 value=0
	data = encodeArgs(1, 0)
	if err := handleUpdateDigitalOut(&data); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if v, _ := mock.GetPin(25); v {
		t.Error("pin not driven low")
	}
	if dout.Flags&DF_ON != 0 {
		t.Error("DF_ON flag not cleared")
	}

	// Unknown OID is ignored
	data = encodeArgs(99, 1)
	if err := handleUpdateDigitalOut(&data); err != nil {
		t.Errorf("unknown oid errored: %v", err)
	}
}

func TestDigitalOutShutdown(t *testing.T) {
	mock := NewMockGPIODriver()
	SetGPIODriver(mock)
	digitalOutputs = make(map[uint8]*DigitalOut)

	// oid=2 pin=7 value=1 default_value=0: shuts down to low
	data := encodeArgs(2, 7, 1, 0)
	if err := handleConfigDigitalOut(&data); err != nil {
		t.Fatal(err)
	}
	// oid=3 pin=8 value=0 default_value=1: shuts down to high
	data = encodeArgs(3, 8, 0, 1)
	if err := handleConfigDigitalOut(&data); err != nil {
		t.Fatal(err)
	}

	ShutdownAllDigitalOut()

	if v, _ := mock.GetPin(7); v {
		t.Error("pin 7 not returned to default low")
	}
	if v, _ := mock.GetPin(8); !v {
		t.Error("pin 8 not returned to default high")
	}
}
