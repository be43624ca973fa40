//go:build rp2040

package main

import (
	"machine"
	"time"

	"gopix/core"
	"gopix/effects"
)

// RunDemoMode drives a rainbow animation on channel 0 without a host.
// Useful for bench bring-up: flash, connect a strip to gpio3 and watch.
func RunDemoMode() {
	const demoPixels = 60

	if err := core.ConfigureChannel(0, core.FormatCodeRGB); err != nil {
		// Flash LED rapidly to indicate error
		led := machine.LED
		led.Configure(machine.PinConfig{Mode: machine.PinOutput})
		for {
			led.High()
			time.Sleep(100 * time.Millisecond)
			led.Low()
			time.Sleep(100 * time.Millisecond)
		}
	}

	frame := make([]byte, demoPixels*effects.BytesPerPixelRGB)
	offset := uint8(0)

	for {
		UpdateSystemTime()

		effects.Rainbow(frame, effects.BytesPerPixelRGB, offset)
		offset++

		if err := core.SubmitFrame(0, frame); err != nil {
			return
		}

		time.Sleep(16 * time.Millisecond)
	}
}
