//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"gopix/core"
)

// Single DMA channel register window. See rp.DMA_Type.
type dmaChannelHW struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	_           [12]volatile.Register32 // alias registers
}

// DMA channels usable on the RP2040.
var dmaChannels = (*[12]dmaChannelHW)(unsafe.Pointer(rp.DMA))

// DMAStreamDriver implements core.StreamDriver on the RP2040 DMA
// controller. The DMA channel number equals the pixel channel index, so
// a set bit in the IRQ status register identifies the pixel channel
// directly with no lookup table.
type DMAStreamDriver struct {
	claimedMask uint32
	complete    [core.NumChannels]func(uint8)
}

// dmaStreamBinding is one claimed DMA channel feeding a PIO TX FIFO.
type dmaStreamBinding struct {
	drv  *DMAStreamDriver
	id   uint8
	hw   *dmaChannelHW
	ctrl uint32
}

var dmaStream *DMAStreamDriver

var dmaIntr = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMAInterrupt)

// NewDMAStreamDriver creates the stream driver and enables the shared
// completion interrupt.
func NewDMAStreamDriver() *DMAStreamDriver {
	d := &DMAStreamDriver{}
	dmaStream = d
	dmaIntr.SetPriority(0xc0)
	dmaIntr.Enable()
	return d
}

// Claim reserves the DMA channel matching the pixel channel index and
// wires it to the wave binding's TX FIFO.
func (d *DMAStreamDriver) Claim(id uint8, wave core.WaveBinding, complete func(uint8)) (core.StreamBinding, error) {
	if id >= core.NumChannels {
		return nil, core.ErrInvalidChannel
	}
	wb, ok := wave.(*pioWaveBinding)
	if !ok {
		return nil, core.ErrResourceExhausted
	}

	mask := uint32(1) << id

	state := interrupt.Disable()
	if d.claimedMask&mask != 0 {
		interrupt.Restore(state)
		return nil, core.ErrResourceExhausted
	}
	d.claimedMask |= mask
	d.complete[id] = complete
	rp.DMA.INTE0.SetBits(mask)
	interrupt.Restore(state)

	// Byte transfers paced by the PIO TX DREQ. Read side walks the
	// frame buffer, write side stays on the FIFO register. Chain to
	// self disables chaining.
	ctrl := uint32(rp.DMA_CH0_CTRL_TRIG_EN_Msk)
	ctrl |= 0 << rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos // 8-bit transfers
	ctrl |= 1 << rp.DMA_CH0_CTRL_TRIG_INCR_READ_Pos
	ctrl |= 0 << rp.DMA_CH0_CTRL_TRIG_INCR_WRITE_Pos
	ctrl |= uint32(id) << rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos
	ctrl |= wb.dreq() << rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos

	b := &dmaStreamBinding{drv: d, id: id, hw: &dmaChannels[id], ctrl: ctrl}
	b.hw.WRITE_ADDR.Set(uint32(wb.txReg()))
	return b, nil
}

// Trigger starts streaming buf into the TX FIFO. The caller guarantees
// the channel is idle and keeps buf untouched until the completion
// callback runs.
func (b *dmaStreamBinding) Trigger(buf []byte) {
	if len(buf) == 0 {
		// Nothing to stream, report completion directly.
		if cb := b.drv.complete[b.id]; cb != nil {
			cb(b.id)
		}
		return
	}
	b.hw.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	b.hw.TRANS_COUNT.Set(uint32(len(buf)))
	b.hw.CTRL_TRIG.Set(b.ctrl)
}

// Release aborts any in-flight transfer and returns the channel.
func (b *dmaStreamBinding) Release() {
	mask := uint32(1) << b.id

	state := interrupt.Disable()
	rp.DMA.INTE0.ClearBits(mask)
	b.drv.claimedMask &^= mask
	b.drv.complete[b.id] = nil
	interrupt.Restore(state)

	b.hw.CTRL_TRIG.ClearBits(rp.DMA_CH0_CTRL_TRIG_EN_Msk)
	rp.DMA.CHAN_ABORT.Set(mask)
	for rp.DMA.CHAN_ABORT.Get()&mask != 0 {
	}
	// Drop the stale status bit so a later claim of this channel does
	// not see a phantom completion.
	rp.DMA.INTR.Set(mask)
}

// handleDMAInterrupt demultiplexes DMA completions. Only bits belonging
// to claimed channels are consumed; anything else is left for other
// users of the controller.
func handleDMAInterrupt(interrupt.Interrupt) {
	d := dmaStream
	if d == nil {
		return
	}
	status := rp.DMA.INTS0.Get() & d.claimedMask
	if status == 0 {
		return
	}
	rp.DMA.INTS0.Set(status) // acknowledge
	for id := uint8(0); id < core.NumChannels; id++ {
		if status&(1<<id) == 0 {
			continue
		}
		if cb := d.complete[id]; cb != nil {
			cb(id)
		}
	}
}
