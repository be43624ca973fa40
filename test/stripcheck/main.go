//go:build tinygo

// Strip checker: bit-bangs a test pattern on the channel 0 pin using
// the plain ws2812 driver, bypassing the PIO and DMA path entirely.
// Flash this to tell wiring faults apart from firmware faults.
package main

import (
	"image/color"
	"machine"
	"runtime/interrupt"
	"time"

	"tinygo.org/x/drivers/ws2812"
)

const numPixels = 8

var cycles = []color.RGBA{
	{R: 64},
	{G: 64},
	{B: 64},
	{R: 32, G: 32, B: 32},
}

func main() {
	pin := machine.GPIO3
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	strip := ws2812.New(pin)
	leds := make([]color.RGBA, numPixels)

	status := machine.LED
	status.Configure(machine.PinConfig{Mode: machine.PinOutput})

	step := 0
	for {
		// One lit pixel walks the strip, changing color per lap
		current := cycles[(step/numPixels)%len(cycles)]
		for i := range leds {
			leds[i] = color.RGBA{}
		}
		leds[step%numPixels] = current

		critical(func() { strip.WriteColors(leds) })

		status.Set(step%2 == 0)
		step++
		time.Sleep(100 * time.Millisecond)
	}
}

// The bit-bang timing is tight enough that an interrupt mid-write
// corrupts the frame.
func critical(f func()) {
	state := interrupt.Disable()
	f()
	interrupt.Restore(state)
}
