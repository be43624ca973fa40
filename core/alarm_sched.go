package core

// SchedAlarmDriver implements AlarmDriver on the portable timer queue.
// Alarms fire from ProcessTimers, so this backend is only suitable where
// the main loop keeps running while SubmitFrame blocks (host tests, sim).
// Hardware targets install an interrupt-driven driver instead.
type SchedAlarmDriver struct {
	timers [NumChannels]Timer
	fires  [NumChannels]func(ch uint8)
	armed  [NumChannels]bool
}

// NewSchedAlarmDriver creates a timer-queue backed alarm driver.
func NewSchedAlarmDriver() *SchedAlarmDriver {
	d := &SchedAlarmDriver{}
	for i := range d.timers {
		ch := uint8(i)
		d.timers[i].Handler = func(t *Timer) uint8 {
			d.armed[ch] = false
			if fire := d.fires[ch]; fire != nil {
				fire(ch)
			}
			return SF_DONE
		}
	}
	return d
}

// Schedule arms the channel's alarm, replacing any pending one.
func (d *SchedAlarmDriver) Schedule(ch uint8, us uint32, fire func(ch uint8)) {
	if ch >= NumChannels {
		return
	}
	if d.armed[ch] {
		CancelTimer(&d.timers[ch])
	}
	d.fires[ch] = fire
	d.timers[ch].WakeTime = GetTime() + TimerFromUS(us)
	d.armed[ch] = true
	ScheduleTimer(&d.timers[ch])
}

// Cancel removes the channel's pending alarm if one exists.
func (d *SchedAlarmDriver) Cancel(ch uint8) {
	if ch >= NumChannels {
		return
	}
	if d.armed[ch] {
		CancelTimer(&d.timers[ch])
		d.armed[ch] = false
	}
}
