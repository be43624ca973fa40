package core

import "sync/atomic"

// Channel geometry and timing for the WS2812/WS2815 protocol family.
const (
	// NumChannels is the number of independent pixel output channels.
	NumChannels = 8

	// ChannelBufferSize is the frame buffer capacity in bytes.
	ChannelBufferSize = 4096

	// ChannelPinOffset maps channel index to GPIO pin: pin = index + 3.
	ChannelPinOffset = 3

	// LatchDelayUS is the minimum idle time after a frame before the
	// strip reliably accepts the next one (WS2815B, measured).
	LatchDelayUS = 320

	// PixelBitRate is the serial bit rate of the pixel protocol.
	PixelBitRate = 800000
)

// Channel is one pixel output: format, hardware bindings, frame buffer and
// the ready permit. The slots live in a fixed arena owned by this package;
// interrupt context touches only the latch marker and the permit.
type Channel struct {
	format     PixelFormat
	configured bool

	wave   WaveBinding
	stream StreamBinding

	// latchPending is nonzero while a latch alarm is armed. Written from
	// interrupt context, read from the foreground.
	latchPending uint32

	// staging is true while the foreground holds the permit to assemble
	// a chunked frame in buf. stagedLen counts the bytes staged so far.
	staging   bool
	stagedLen uint32

	ready permit

	buf [ChannelBufferSize]byte
}

// channels is the fixed arena of channel slots, indexed by channel number.
var channels [NumChannels]Channel

// ChannelPin returns the GPIO pin driven by a channel.
func ChannelPin(index uint8) GPIOPin {
	return GPIOPin(index) + ChannelPinOffset
}

// ChannelConfigured reports whether the channel holds valid bindings.
func ChannelConfigured(index uint8) bool {
	if index >= NumChannels {
		return false
	}
	return channels[index].configured
}

// ChannelFormat returns the configured pixel format of a channel.
func ChannelFormat(index uint8) PixelFormat {
	if index >= NumChannels {
		return FormatUnset
	}
	return channels[index].format
}

// ChannelReady reports whether a channel would accept a frame without
// blocking.
func ChannelReady(index uint8) bool {
	if index >= NumChannels {
		return false
	}
	return channels[index].ready.Available()
}

func (c *Channel) setLatchPending(v bool) {
	if v {
		atomic.StoreUint32(&c.latchPending, 1)
	} else {
		atomic.StoreUint32(&c.latchPending, 0)
	}
}

func (c *Channel) isLatchPending() bool {
	return atomic.LoadUint32(&c.latchPending) != 0
}
