package core

import "errors"

// Command failures the host can provoke. None of these is fatal; the
// offending command is rejected and the firmware keeps serving.
var (
	// ErrInvalidChannel means the channel index is out of range.
	ErrInvalidChannel = errors.New("invalid channel index")

	// ErrInvalidFormat means the pixel format code is not recognized.
	ErrInvalidFormat = errors.New("invalid pixel format")

	// ErrResourceExhausted means no free waveform unit or program slot
	// exists for the requested pin.
	ErrResourceExhausted = errors.New("no free waveform unit for pin")

	// ErrNotConfigured means pixel data arrived for a channel that was
	// never successfully configured.
	ErrNotConfigured = errors.New("channel not configured")

	// ErrPayloadTooLarge means the pixel payload exceeds the channel
	// frame buffer.
	ErrPayloadTooLarge = errors.New("payload exceeds channel buffer")

	// ErrBadSequence means a frame chunk or show request did not line up
	// with the bytes staged so far. The staged frame is discarded.
	ErrBadSequence = errors.New("frame staging out of sequence")
)

// Wire status codes for the channel_result response.
const (
	StatusOK                = 0
	StatusInvalidChannel    = 1
	StatusInvalidFormat     = 2
	StatusResourceExhausted = 3
	StatusNotConfigured     = 4
	StatusPayloadTooLarge   = 5
	StatusBadSequence       = 6
	StatusUnknown           = 255
)

// StatusForError maps a command error to its wire status code.
func StatusForError(err error) uint8 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidChannel):
		return StatusInvalidChannel
	case errors.Is(err, ErrInvalidFormat):
		return StatusInvalidFormat
	case errors.Is(err, ErrResourceExhausted):
		return StatusResourceExhausted
	case errors.Is(err, ErrNotConfigured):
		return StatusNotConfigured
	case errors.Is(err, ErrPayloadTooLarge):
		return StatusPayloadTooLarge
	case errors.Is(err, ErrBadSequence):
		return StatusBadSequence
	}
	return StatusUnknown
}
