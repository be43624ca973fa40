package core

import "testing"

func resetTimersForTest() {
	timerList = nil
	SetTime(0)
}

func TestTimerOrdering(t *testing.T) {
	resetTimersForTest()

	var fired []int
	mk := func(n int, wake uint32) *Timer {
		return &Timer{
			WakeTime: wake,
			Handler: func(*Timer) uint8 {
				fired = append(fired, n)
				return SF_DONE
			},
		}
	}

	// Insert out of order
	ScheduleTimer(mk(2, 200))
	ScheduleTimer(mk(0, 50))
	ScheduleTimer(mk(1, 100))

	SetTime(60)
	ProcessTimers()
	if len(fired) != 1 || fired[0] != 0 {
		t.Fatalf("fired = %v, want [0]", fired)
	}

	SetTime(500)
	ProcessTimers()
	if len(fired) != 3 || fired[1] != 1 || fired[2] != 2 {
		t.Fatalf("fired = %v, want [0 1 2]", fired)
	}
}

func TestTimerReschedule(t *testing.T) {
	resetTimersForTest()

	count := 0
	tmr := &Timer{WakeTime: 10}
	tmr.Handler = func(tm *Timer) uint8 {
		count++
		if count < 3 {
			tm.WakeTime += 10
			return SF_RESCHEDULE
		}
		return SF_DONE
	}
	ScheduleTimer(tmr)

	SetTime(100)
	ProcessTimers()
	if count != 3 {
		t.Errorf("handler ran %d times, want 3", count)
	}
	if timerList != nil {
		t.Error("timer list not empty after SF_DONE")
	}
}

func TestCancelTimer(t *testing.T) {
	resetTimersForTest()

	fired := false
	a := &Timer{WakeTime: 10, Handler: func(*Timer) uint8 { return SF_DONE }}
	b := &Timer{WakeTime: 20, Handler: func(*Timer) uint8 { fired = true; return SF_DONE }}

	ScheduleTimer(a)
	ScheduleTimer(b)

	if !CancelTimer(b) {
		t.Fatal("cancel of pending timer failed")
	}
	if CancelTimer(b) {
		t.Error("second cancel reported success")
	}

	SetTime(100)
	ProcessTimers()
	if fired {
		t.Error("cancelled timer fired")
	}
}

func TestSchedAlarmDriver(t *testing.T) {
	resetTimersForTest()
	d := NewSchedAlarmDriver()

	var fired []uint8
	record := func(ch uint8) { fired = append(fired, ch) }

	d.Schedule(1, 300, record)
	d.Schedule(0, 100, record)

	SetTime(50)
	ProcessTimers()
	if len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}

	SetTime(150)
	ProcessTimers()
	if len(fired) != 1 || fired[0] != 0 {
		t.Fatalf("fired = %v, want [0]", fired)
	}

	SetTime(400)
	ProcessTimers()
	if len(fired) != 2 || fired[1] != 1 {
		t.Fatalf("fired = %v, want [0 1]", fired)
	}
}

func TestSchedAlarmReplace(t *testing.T) {
	resetTimersForTest()
	d := NewSchedAlarmDriver()

	count := 0
	d.Schedule(0, 100, func(uint8) { count++ })
	// Re-arming the same channel replaces the pending alarm
	d.Schedule(0, 500, func(uint8) { count++ })

	SetTime(200)
	ProcessTimers()
	if count != 0 {
		t.Error("replaced alarm fired at old deadline")
	}

	SetTime(600)
	ProcessTimers()
	if count != 1 {
		t.Errorf("alarm fired %d times, want 1", count)
	}
}

func TestSchedAlarmCancel(t *testing.T) {
	resetTimersForTest()
	d := NewSchedAlarmDriver()

	d.Schedule(2, 100, func(uint8) { t.Error("cancelled alarm fired") })
	d.Cancel(2)

	// Cancel of an idle channel is a no-op
	d.Cancel(5)

	SetTime(1000)
	ProcessTimers()
}
