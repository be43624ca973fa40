package core

// AlarmDriver provides one delayed callback slot per channel, used for the
// end-of-frame latch delay. Schedule replaces any pending alarm for the
// channel, so alarms never stack. The fire callback runs in interrupt
// context on hardware targets and must not block.
type AlarmDriver interface {
	// Schedule arms (or re-arms) the channel's alarm to fire after us
	// microseconds.
	Schedule(ch uint8, us uint32, fire func(ch uint8))

	// Cancel removes the channel's pending alarm if one exists.
	Cancel(ch uint8)
}

// Global singleton used by core code.
var alarmDriver AlarmDriver

// SetAlarmDriver is called by target-specific code to register its driver.
func SetAlarmDriver(d AlarmDriver) {
	alarmDriver = d
}

// MustAlarm returns the configured driver or panics if missing.
func MustAlarm() AlarmDriver {
	if alarmDriver == nil {
		panic("alarm driver not configured")
	}
	return alarmDriver
}
