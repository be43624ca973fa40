//go:build rp2040

package main

import (
	"machine"
	"unsafe"

	pio "github.com/tinygo-org/pio/rp2-pio"

	"gopix/core"
)

// Pixel waveform program, assembled from the ws2812 side-set source.
// Each data bit takes 10 PIO cycles, so the state machine clock runs at
// 10x the pixel bit rate.
var pixelWaveInstructions = []uint16{
	0x6221, //  0: out    x, 1            side 0 [2]
	0x1123, //  1: jmp    !x, 3           side 1 [1]
	0x1400, //  2: jmp    0               side 1 [4]
	0xa442, //  3: nop                    side 0 [4]
}

const (
	pixelWaveOrigin       = -1
	pixelWaveWrapTarget   = 0
	pixelWaveWrap         = 3
	pixelWaveCyclesPerBit = 10
)

// PIOWaveDriver implements core.WaveDriver on the RP2040 PIO blocks.
// Each claim takes one state machine; with 4 state machines per block
// and 2 blocks, all 8 pixel channels can run concurrently.
type PIOWaveDriver struct {
	blocks  [2]*pio.PIO
	offsets [2]uint8
	loaded  [2]bool
	claims  [2]uint8
}

// pioWaveBinding is one claimed state machine running the waveform program.
type pioWaveBinding struct {
	drv      *PIOWaveDriver
	sm       pio.StateMachine
	pin      machine.Pin
	blockIdx uint8
}

// NewPIOWaveDriver creates the waveform driver over PIO0 and PIO1
func NewPIOWaveDriver() *PIOWaveDriver {
	return &PIOWaveDriver{blocks: [2]*pio.PIO{pio.PIO0, pio.PIO1}}
}

// Claim grabs a free state machine, loads the waveform program if the
// block doesn't have it yet, and starts the machine on the given pin.
func (d *PIOWaveDriver) Claim(pin core.GPIOPin) (core.WaveBinding, error) {
	for bi, block := range d.blocks {
		sm, ok := claimStateMachine(block)
		if !ok {
			continue
		}

		if !d.loaded[bi] {
			offset, err := block.AddProgram(pixelWaveInstructions, pixelWaveOrigin)
			if err != nil {
				sm.Unclaim()
				continue
			}
			d.offsets[bi] = offset
			d.loaded[bi] = true
		}
		offset := d.offsets[bi]

		machinePin := machine.Pin(pin)
		machinePin.Configure(machine.PinConfig{Mode: block.PinMode()})
		sm.SetPindirsConsecutive(machinePin, 1, true)

		cfg := pio.DefaultStateMachineConfig()
		cfg.SetWrap(offset+pixelWaveWrapTarget, offset+pixelWaveWrap)
		cfg.SetSidesetParams(1, false, false)
		cfg.SetSidesetPins(machinePin)
		// Frame bytes are pushed into the TX FIFO one at a time.
		// Shift left with autopull at 8 bits so the MSB of each byte
		// leaves the pin first.
		cfg.SetOutShift(false, true, 8)
		cfg.SetFIFOJoin(pio.FifoJoinTx)

		whole, frac, err := pio.ClkDivFromFrequency(
			uint32(core.PixelBitRate)*pixelWaveCyclesPerBit, machine.CPUFrequency())
		if err != nil {
			sm.Unclaim()
			return nil, err
		}
		cfg.SetClkDivIntFrac(whole, frac)

		sm.Init(offset, cfg)
		sm.SetEnabled(true)

		d.claims[bi]++
		return &pioWaveBinding{drv: d, sm: sm, pin: machinePin, blockIdx: uint8(bi)}, nil
	}
	return nil, core.ErrResourceExhausted
}

// claimStateMachine finds a free state machine within a block
func claimStateMachine(block *pio.PIO) (pio.StateMachine, bool) {
	for i := uint8(0); i < 4; i++ {
		sm := block.StateMachine(i)
		if sm.TryClaim() {
			return sm, true
		}
	}
	return pio.StateMachine{}, false
}

// dreq returns the DREQ number pacing DMA writes to this state machine's
// TX FIFO. DREQ_PIO0_TX0..3 are 0..3 and DREQ_PIO1_TX0..3 are 8..11.
func (b *pioWaveBinding) dreq() uint32 {
	return uint32(b.blockIdx)*8 + uint32(b.sm.StateMachineIndex())
}

// txReg returns the address of the TX FIFO register for DMA writes
func (b *pioWaveBinding) txReg() uintptr {
	return uintptr(unsafe.Pointer(b.sm.TxReg()))
}

// Release stops the state machine, parks the pin low and returns the
// hardware to the pool. The waveform program is unloaded from the block
// once its last state machine is released.
func (b *pioWaveBinding) Release() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Unclaim()

	b.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.pin.Low()

	d := b.drv
	bi := b.blockIdx
	if d.claims[bi] > 0 {
		d.claims[bi]--
	}
	if d.claims[bi] == 0 && d.loaded[bi] {
		d.blocks[bi].ClearProgramSection(d.offsets[bi], uint8(len(pixelWaveInstructions)))
		d.loaded[bi] = false
	}
}
