package core

// WaveBinding is an exclusively owned waveform-generator unit bound to one
// GPIO pin, running the pixel-protocol serializer at the fixed bit rate.
// The bit encoding itself is a black-box capability of the target driver.
type WaveBinding interface {
	// Release stops the generator and returns the unit and its program
	// slot for reuse. Safe to call once per claim.
	Release()
}

// WaveDriver claims waveform-generator units for pins. Platform-specific
// implementations handle the actual hardware programming.
type WaveDriver interface {
	// Claim claims a free unit and program slot for the pin and programs
	// it for the pixel bit stream. Returns ErrResourceExhausted (possibly
	// wrapped) when no unit or slot is free for that pin.
	Claim(pin GPIOPin) (WaveBinding, error)
}

// Global singleton used by core code.
var waveDriver WaveDriver

// SetWaveDriver is called by target-specific code to register its driver.
func SetWaveDriver(d WaveDriver) {
	waveDriver = d
}

// MustWave returns the configured driver or panics if missing.
func MustWave() WaveDriver {
	if waveDriver == nil {
		panic("wave driver not configured")
	}
	return waveDriver
}
