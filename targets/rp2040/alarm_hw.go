//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"

	"gopix/core"
)

// ALARM0 is left for other users, the latch driver owns ALARM1.
const (
	latchAlarmNum  = 1
	latchAlarmMask = 1 << latchAlarmNum
)

// HWAlarmDriver implements core.AlarmDriver on the RP2040 TIMER
// peripheral. The timer counts microseconds, so delays pass through
// unscaled. All per-channel deadlines are multiplexed onto ALARM1; the
// interrupt handler fires every expired channel and re-arms the alarm
// with the next earliest deadline.
type HWAlarmDriver struct {
	deadline [core.NumChannels]uint32
	fire     [core.NumChannels]func(uint8)
	armed    uint32
}

var hwAlarm *HWAlarmDriver

var alarmIntr = interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarmInterrupt)

// NewHWAlarmDriver creates the alarm driver and enables its interrupt
func NewHWAlarmDriver() *HWAlarmDriver {
	d := &HWAlarmDriver{}
	hwAlarm = d
	rp.TIMER.INTE.SetBits(latchAlarmMask)
	alarmIntr.Enable()
	return d
}

// Schedule arms (or re-arms) the alarm for a channel. A pending alarm
// for the same channel is replaced, not queued.
func (d *HWAlarmDriver) Schedule(ch uint8, us uint32, fire func(uint8)) {
	if ch >= core.NumChannels {
		return
	}
	state := interrupt.Disable()
	d.deadline[ch] = rp.TIMER.TIMERAWL.Get() + us
	d.fire[ch] = fire
	d.armed |= 1 << ch
	d.rearm()
	interrupt.Restore(state)
}

// Cancel drops any pending alarm for a channel
func (d *HWAlarmDriver) Cancel(ch uint8) {
	if ch >= core.NumChannels {
		return
	}
	state := interrupt.Disable()
	d.armed &^= 1 << ch
	d.fire[ch] = nil
	d.rearm()
	interrupt.Restore(state)
}

// rearm writes the earliest pending deadline into ALARM1, or disarms
// the alarm when nothing is pending. Caller holds interrupts disabled.
func (d *HWAlarmDriver) rearm() {
	if d.armed == 0 {
		rp.TIMER.ARMED.Set(latchAlarmMask)
		return
	}
	now := rp.TIMER.TIMERAWL.Get()
	var best int32
	found := false
	for ch := uint8(0); ch < core.NumChannels; ch++ {
		if d.armed&(1<<ch) == 0 {
			continue
		}
		delta := int32(d.deadline[ch] - now)
		if !found || delta < best {
			best = delta
			found = true
		}
	}
	// The alarm fires on exact match of the low counter word. A target
	// in the past would wrap for over an hour, so clamp to just ahead
	// of now.
	if best < 2 {
		best = 2
	}
	rp.TIMER.ALARM1.Set(now + uint32(best))
}

// handleAlarmInterrupt fires all expired channel alarms
func handleAlarmInterrupt(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(latchAlarmMask)
	d := hwAlarm
	if d == nil {
		return
	}
	now := rp.TIMER.TIMERAWL.Get()
	for ch := uint8(0); ch < core.NumChannels; ch++ {
		if d.armed&(1<<ch) == 0 {
			continue
		}
		if int32(d.deadline[ch]-now) > 0 {
			continue
		}
		d.armed &^= 1 << ch
		cb := d.fire[ch]
		d.fire[ch] = nil
		if cb != nil {
			cb(ch)
		}
	}
	d.rearm()
}
