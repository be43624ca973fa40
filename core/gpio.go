// GPIO (General Purpose Input/Output) support
// Implements simple host-controlled digital outputs, used for status and
// diagnostic pins alongside the pixel channels.
package core

import (
	"gopix/protocol"
)

// DigitalOut flags
const (
	DF_ON         = 1 << 0 // Current pin state (1=high, 0=low)
	DF_DEFAULT_ON = 1 << 1 // Default state for shutdown/power-loss
)

// DigitalOut represents a configured GPIO output pin
type DigitalOut struct {
	OID   uint8   // Object ID
	Pin   GPIOPin // Hardware pin
	Flags uint8   // State flags (DF_*)
}

// Global registry of digital outputs
var digitalOutputs = make(map[uint8]*DigitalOut)

// InitGPIOCommands registers GPIO-related commands with the command registry
func InitGPIOCommands() {
	// Command to configure a digital output pin
	RegisterCommand("config_digital_out", "oid=%c pin=%u value=%c default_value=%c", handleConfigDigitalOut)

	// Command to immediately update a pin value
	RegisterCommand("update_digital_out", "oid=%c value=%c", handleUpdateDigitalOut)
}

// handleConfigDigitalOut configures a pin for digital output
// Format: config_digital_out oid=%c pin=%u value=%c default_value=%c
func handleConfigDigitalOut(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	defaultValue, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	// Create new digital output instance
	dout := &DigitalOut{
		OID:   uint8(oid),
		Pin:   GPIOPin(pin),
		Flags: 0,
	}

	// Set default value flag
	if defaultValue != 0 {
		dout.Flags |= DF_DEFAULT_ON
	}

	// Configure GPIO pin via HAL
	if err := MustGPIO().ConfigureOutput(dout.Pin); err != nil {
		return err
	}

	// Set initial value
	initialState := value != 0
	if err := MustGPIO().SetPin(dout.Pin, initialState); err != nil {
		return err
	}

	// Set current state flag
	if initialState {
		dout.Flags |= DF_ON
	}

	// Register in global map
	digitalOutputs[uint8(oid)] = dout

	return nil
}

// handleUpdateDigitalOut immediately updates a pin value
// Format: update_digital_out oid=%c value=%c
func handleUpdateDigitalOut(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	// Get the digital output object
	dout, exists := digitalOutputs[uint8(oid)]
	if !exists {
		// Invalid OID - digital output not configured
		return nil
	}

	// Update pin state immediately
	state := value != 0
	if err := MustGPIO().SetPin(dout.Pin, state); err != nil {
		return err
	}

	// Update flags
	if state {
		dout.Flags |= DF_ON
	} else {
		dout.Flags &^= DF_ON
	}

	return nil
}

// ShutdownDigitalOut returns a pin to its default state (called during shutdown)
func ShutdownDigitalOut(dout *DigitalOut) {
	defaultState := (dout.Flags & DF_DEFAULT_ON) != 0
	_ = MustGPIO().SetPin(dout.Pin, defaultState)

	if defaultState {
		dout.Flags |= DF_ON
	} else {
		dout.Flags &^= DF_ON
	}
}

// ShutdownAllDigitalOut returns all pins to their default states
// Call this from the global shutdown handler
func ShutdownAllDigitalOut() {
	for _, dout := range digitalOutputs {
		if dout != nil {
			ShutdownDigitalOut(dout)
		}
	}
}
