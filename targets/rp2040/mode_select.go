//go:build rp2040

package main

import (
	"machine"
	"time"
)

// DemoStrapPin selects demo mode when tied to ground at boot.
// Kept clear of the channel output range (GPIO3-GPIO10).
const DemoStrapPin = machine.GPIO22

// ModeConfig determines which mode to run
type ModeConfig struct {
	// Set to true to run the built-in demo animation instead of the
	// host protocol loop.
	Demo bool
}

// GetMode returns the current mode configuration
// This can be modified at compile time or runtime
func GetMode() ModeConfig {
	DemoStrapPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	// Let the pull-up settle before sampling.
	time.Sleep(time.Millisecond)
	demo := !DemoStrapPin.Get()

	return ModeConfig{
		Demo: demo,
	}
}

// To force demo mode without the strap, change the Demo value above to true.
