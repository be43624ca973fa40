package core

// StreamBinding is an exclusively owned transfer-engine channel chained to
// one waveform unit's input queue. It is configured once at claim time;
// repeated triggers reuse the same channel identity.
type StreamBinding interface {
	// Trigger arms and starts an asynchronous transfer of len(buf) bytes
	// from buf to the waveform unit's input queue. The engine paces itself
	// on the unit's data-request signal and raises the completion callback
	// registered at claim time when the full length has moved. The caller
	// must not touch buf until that completion fires.
	Trigger(buf []byte)

	// Release cancels any in-flight transfer, disables the completion
	// interrupt for this identity and unclaims the channel.
	Release()
}

// StreamDriver claims transfer-engine channels. The complete callback runs
// in interrupt context and must not block.
type StreamDriver interface {
	// Claim claims transfer-engine channel id and binds it to the wave
	// unit's input queue: byte-granularity, source auto-increment, fixed
	// destination, chained to itself, completion interrupt enabled.
	Claim(id uint8, wave WaveBinding, complete func(id uint8)) (StreamBinding, error)
}

// Global singleton used by core code.
var streamDriver StreamDriver

// SetStreamDriver is called by target-specific code to register its driver.
func SetStreamDriver(d StreamDriver) {
	streamDriver = d
}

// MustStream returns the configured driver or panics if missing.
func MustStream() StreamDriver {
	if streamDriver == nil {
		panic("stream driver not configured")
	}
	return streamDriver
}
