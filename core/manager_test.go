package core

import (
	"bytes"
	"errors"
	"testing"
)

// Mock hardware drivers for exercising the channel manager without a
// target board.

type mockWaveBinding struct {
	pin      GPIOPin
	released bool
}

func (b *mockWaveBinding) Release() { b.released = true }

type mockWaveDriver struct {
	fail   bool
	units  int // claimable unit pool; 0 means NumChannels
	claims []*mockWaveBinding
}

// held counts claims not yet released, mirroring the hardware's fixed
// state-machine pool.
func (d *mockWaveDriver) held() int {
	n := 0
	for _, b := range d.claims {
		if !b.released {
			n++
		}
	}
	return n
}

func (d *mockWaveDriver) Claim(pin GPIOPin) (WaveBinding, error) {
	if d.fail {
		return nil, ErrResourceExhausted
	}
	units := d.units
	if units == 0 {
		units = NumChannels
	}
	if d.held() >= units {
		return nil, ErrResourceExhausted
	}
	b := &mockWaveBinding{pin: pin}
	d.claims = append(d.claims, b)
	return b, nil
}

type mockStreamBinding struct {
	id        uint8
	complete  func(uint8)
	triggered [][]byte
	released  bool
}

func (b *mockStreamBinding) Trigger(buf []byte) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	b.triggered = append(b.triggered, cp)
}

func (b *mockStreamBinding) Release() { b.released = true }

type mockStreamDriver struct {
	fail     bool
	bindings map[uint8]*mockStreamBinding
}

func (d *mockStreamDriver) Claim(id uint8, wave WaveBinding, complete func(uint8)) (StreamBinding, error) {
	if d.fail {
		return nil, ErrResourceExhausted
	}
	b := &mockStreamBinding{id: id, complete: complete}
	d.bindings[id] = b
	return b, nil
}

type mockAlarmDriver struct {
	delays  map[uint8]uint32
	fires   map[uint8]func(uint8)
	cancels []uint8
}

func (d *mockAlarmDriver) Schedule(ch uint8, us uint32, fire func(uint8)) {
	d.delays[ch] = us
	d.fires[ch] = fire
}

func (d *mockAlarmDriver) Cancel(ch uint8) {
	d.cancels = append(d.cancels, ch)
	delete(d.fires, ch)
}

// fire runs the pending alarm for a channel, if armed.
func (d *mockAlarmDriver) fire(ch uint8) {
	if cb, ok := d.fires[ch]; ok {
		delete(d.fires, ch)
		cb(ch)
	}
}

func setupMockDrivers(t *testing.T) (*mockWaveDriver, *mockStreamDriver, *mockAlarmDriver) {
	t.Helper()
	resetChannelsForTest()

	wave := &mockWaveDriver{}
	stream := &mockStreamDriver{bindings: make(map[uint8]*mockStreamBinding)}
	alarm := &mockAlarmDriver{delays: make(map[uint8]uint32), fires: make(map[uint8]func(uint8))}

	SetWaveDriver(wave)
	SetStreamDriver(stream)
	SetAlarmDriver(alarm)

	t.Cleanup(resetChannelsForTest)
	return wave, stream, alarm
}

func TestConfigureChannel(t *testing.T) {
	wave, stream, _ := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatalf("configure failed: %v", err)
	}

	if !ChannelConfigured(0) {
		t.Error("channel 0 not marked configured")
	}
	if ChannelFormat(0) != FormatRGB {
		t.Errorf("format = %v, want RGB", ChannelFormat(0))
	}
	if !ChannelReady(0) {
		t.Error("fresh channel should be ready")
	}

	// Pin mapping: channel index + 3
	if len(wave.claims) != 1 || wave.claims[0].pin != 3 {
		t.Errorf("wave claim pin = %v, want 3", wave.claims)
	}
	if _, ok := stream.bindings[0]; !ok {
		t.Error("stream binding not claimed for channel 0")
	}
}

func TestConfigureChannelPinMapping(t *testing.T) {
	wave, _, _ := setupMockDrivers(t)

	for idx := uint8(0); idx < NumChannels; idx++ {
		if err := ConfigureChannel(idx, FormatCodeRGBW); err != nil {
			t.Fatalf("configure channel %d: %v", idx, err)
		}
	}

	for i, b := range wave.claims {
		want := GPIOPin(i) + ChannelPinOffset
		if b.pin != want {
			t.Errorf("channel %d claimed pin %d, want %d", i, b.pin, want)
		}
	}
}

func TestConfigureChannelInvalid(t *testing.T) {
	setupMockDrivers(t)

	if err := ConfigureChannel(NumChannels, FormatCodeRGB); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("bad index: err = %v, want ErrInvalidChannel", err)
	}
	if err := ConfigureChannel(0, 0x03); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("bad format: err = %v, want ErrInvalidFormat", err)
	}
	if err := ConfigureChannel(0, 0x00); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("zero format: err = %v, want ErrInvalidFormat", err)
	}
	if ChannelConfigured(0) {
		t.Error("failed configure must leave channel unconfigured")
	}
}

func TestConfigureChannelBadFormatKeepsOldConfig(t *testing.T) {
	setupMockDrivers(t)

	if err := ConfigureChannel(2, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	if err := ConfigureChannel(2, 0x7F); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}

	// The earlier configuration survives an invalid request untouched
	if !ChannelConfigured(2) || ChannelFormat(2) != FormatRGB {
		t.Error("invalid format request disturbed existing configuration")
	}
}

func TestConfigureChannelRollback(t *testing.T) {
	wave, stream, _ := setupMockDrivers(t)
	stream.fail = true

	err := ConfigureChannel(1, FormatCodeRGB)
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}

	if ChannelConfigured(1) {
		t.Error("channel marked configured after partial claim")
	}
	// The wave binding acquired before the stream failure is returned
	if len(wave.claims) != 1 || !wave.claims[0].released {
		t.Error("wave binding not rolled back")
	}
}

func TestSubmitFrameCycle(t *testing.T) {
	_, stream, alarm := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}

	payload := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	if err := SubmitFrame(0, payload); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Permit held until the latch fires
	if ChannelReady(0) {
		t.Error("channel ready while frame in flight")
	}

	b := stream.bindings[0]
	if len(b.triggered) != 1 {
		t.Fatalf("trigger count = %d, want 1", len(b.triggered))
	}
	if string(b.triggered[0]) != string(payload) {
		t.Errorf("streamed %v, want %v", b.triggered[0], payload)
	}

	// Completion interrupt arms the latch alarm for 320us
	b.complete(0)
	if alarm.delays[0] != LatchDelayUS {
		t.Errorf("latch delay = %d, want %d", alarm.delays[0], LatchDelayUS)
	}
	if ChannelReady(0) {
		t.Error("channel ready before latch expiry")
	}

	// Latch expiry releases the permit
	alarm.fire(0)
	if !ChannelReady(0) {
		t.Error("channel not ready after latch expiry")
	}

	// And the next frame goes straight through
	if err := SubmitFrame(0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if len(b.triggered) != 2 {
		t.Errorf("trigger count = %d, want 2", len(b.triggered))
	}
}

func TestSubmitFrameErrors(t *testing.T) {
	setupMockDrivers(t)

	if err := SubmitFrame(NumChannels, []byte{1}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("bad index: err = %v, want ErrInvalidChannel", err)
	}
	if err := SubmitFrame(0, []byte{1}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured: err = %v, want ErrNotConfigured", err)
	}

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	big := make([]byte, ChannelBufferSize+1)
	if err := SubmitFrame(0, big); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversize: err = %v, want ErrPayloadTooLarge", err)
	}
	// A full buffer is accepted exactly
	if err := SubmitFrame(0, big[:ChannelBufferSize]); err != nil {
		t.Errorf("max payload rejected: %v", err)
	}
}

func TestZeroLengthFrame(t *testing.T) {
	_, stream, _ := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	if err := SubmitFrame(0, nil); err != nil {
		t.Fatalf("empty frame rejected: %v", err)
	}
	b := stream.bindings[0]
	if len(b.triggered) != 1 || len(b.triggered[0]) != 0 {
		t.Errorf("empty frame not passed through: %v", b.triggered)
	}
}

func TestReleaseChannel(t *testing.T) {
	wave, stream, alarm := setupMockDrivers(t)

	if err := ConfigureChannel(3, FormatCodeRGBW); err != nil {
		t.Fatal(err)
	}
	if err := ReleaseChannel(3); err != nil {
		t.Fatal(err)
	}

	if ChannelConfigured(3) {
		t.Error("channel still configured after release")
	}
	if ChannelFormat(3) != FormatUnset {
		t.Error("format not cleared on release")
	}
	if !wave.claims[0].released || !stream.bindings[3].released {
		t.Error("bindings not released")
	}
	// Alarm cancelled before teardown
	if len(alarm.cancels) == 0 || alarm.cancels[0] != 3 {
		t.Errorf("alarm cancel order wrong: %v", alarm.cancels)
	}

	// Idempotent
	if err := ReleaseChannel(3); err != nil {
		t.Errorf("second release errored: %v", err)
	}
	if err := ReleaseChannel(NumChannels); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("bad index: err = %v, want ErrInvalidChannel", err)
	}
}

func TestReconfigureReplacesBindings(t *testing.T) {
	wave, stream, _ := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	first := stream.bindings[0]

	if err := ConfigureChannel(0, FormatCodeRGBW); err != nil {
		t.Fatal(err)
	}

	if !wave.claims[0].released || !first.released {
		t.Error("old bindings not released on reconfigure")
	}
	if len(wave.claims) != 2 {
		t.Fatalf("wave claims = %d, want 2", len(wave.claims))
	}
	if ChannelFormat(0) != FormatRGBW {
		t.Error("format not updated on reconfigure")
	}
	if !ChannelReady(0) {
		t.Error("reconfigured channel should be ready")
	}
}

func TestShutdownAllChannels(t *testing.T) {
	wave, _, _ := setupMockDrivers(t)

	for idx := uint8(0); idx < 4; idx++ {
		if err := ConfigureChannel(idx, FormatCodeRGB); err != nil {
			t.Fatal(err)
		}
	}

	ShutdownAllChannels()

	for idx := uint8(0); idx < NumChannels; idx++ {
		if ChannelConfigured(idx) {
			t.Errorf("channel %d still configured after shutdown", idx)
		}
	}
	for i, b := range wave.claims {
		if !b.released {
			t.Errorf("wave binding %d not released", i)
		}
	}
}

func TestLatchCoalescing(t *testing.T) {
	_, stream, alarm := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	if err := SubmitFrame(0, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	b := stream.bindings[0]
	// A repeated completion replaces the armed alarm instead of
	// stacking a second one.
	b.complete(0)
	b.complete(0)
	alarm.fire(0)

	if !ChannelReady(0) {
		t.Error("channel not ready after single latch expiry")
	}
	if len(alarm.fires) != 0 {
		t.Error("stale alarm left armed")
	}
}

func TestChannelsIndependent(t *testing.T) {
	_, stream, alarm := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	if err := ConfigureChannel(1, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}

	if err := SubmitFrame(0, []byte{1}); err != nil {
		t.Fatal(err)
	}

	// Channel 0 busy must not affect channel 1
	if ChannelReady(0) {
		t.Error("channel 0 should be busy")
	}
	if !ChannelReady(1) {
		t.Error("channel 1 should be ready")
	}
	if err := SubmitFrame(1, []byte{2}); err != nil {
		t.Fatalf("channel 1 submit blocked by channel 0: %v", err)
	}

	stream.bindings[1].complete(1)
	alarm.fire(1)
	if !ChannelReady(1) {
		t.Error("channel 1 not ready after its own latch")
	}
	if ChannelReady(0) {
		t.Error("channel 1 latch released channel 0")
	}
}

func TestWaveUnitPoolExhaustion(t *testing.T) {
	wave, _, _ := setupMockDrivers(t)
	wave.units = 1

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	// Channel 0 holds the only unit; a second claim must fail cleanly
	if err := ConfigureChannel(1, FormatCodeRGB); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("second claim: err = %v, want ErrResourceExhausted", err)
	}
	if ChannelConfigured(1) {
		t.Error("channel 1 marked configured despite claim failure")
	}

	// Reconfigure releases the old unit before reclaiming, so it succeeds
	// even with the pool at capacity
	if err := ConfigureChannel(0, FormatCodeRGBW); err != nil {
		t.Fatalf("reconfigure with full pool: %v", err)
	}

	if err := ReleaseChannel(0); err != nil {
		t.Fatal(err)
	}
	if err := ConfigureChannel(1, FormatCodeRGB); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestStagedFrameDelivery(t *testing.T) {
	_, stream, alarm := setupMockDrivers(t)

	if err := ConfigureChannel(2, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}

	// 100 RGB pixels, split the way the host link delivers them
	frame := make([]byte, 300)
	for i := range frame {
		frame[i] = byte(i)
	}
	const chunk = 48
	for off := 0; off < len(frame); off += chunk {
		end := off + chunk
		if end > len(frame) {
			end = len(frame)
		}
		if err := StageFrame(2, uint32(off), frame[off:end]); err != nil {
			t.Fatalf("chunk at %d: %v", off, err)
		}
	}

	// Staging holds the permit until the frame is shown
	if ChannelReady(2) {
		t.Error("channel ready while a frame is staged")
	}

	if err := ShowFrame(2, uint32(len(frame))); err != nil {
		t.Fatal(err)
	}

	b := stream.bindings[2]
	if len(b.triggered) != 1 {
		t.Fatalf("triggered %d transfers, want 1", len(b.triggered))
	}
	if !bytes.Equal(b.triggered[0], frame) {
		t.Error("reassembled frame does not match staged chunks")
	}

	b.complete(2)
	alarm.fire(2)
	if !ChannelReady(2) {
		t.Error("channel not ready after latch")
	}
}

func TestStagedFrameRestart(t *testing.T) {
	_, stream, _ := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}

	if err := StageFrame(0, 0, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	// An offset-0 chunk mid-staging restarts the frame
	if err := StageFrame(0, 0, []byte{9, 9}); err != nil {
		t.Fatal(err)
	}
	if err := ShowFrame(0, 2); err != nil {
		t.Fatal(err)
	}

	b := stream.bindings[0]
	if len(b.triggered) != 1 || !bytes.Equal(b.triggered[0], []byte{9, 9}) {
		t.Errorf("triggered = %v, want the restarted frame", b.triggered)
	}
}

func TestStagedFrameErrors(t *testing.T) {
	setupMockDrivers(t)

	if err := StageFrame(NumChannels, 0, []byte{1}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("bad index: err = %v, want ErrInvalidChannel", err)
	}
	if err := StageFrame(0, 0, []byte{1}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured: err = %v, want ErrNotConfigured", err)
	}

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}

	// A gap in the chunk run discards the staged frame and frees the
	// channel instead of wedging it
	if err := StageFrame(0, 0, make([]byte, 48)); err != nil {
		t.Fatal(err)
	}
	if err := StageFrame(0, 99, []byte{1}); !errors.Is(err, ErrBadSequence) {
		t.Errorf("gap: err = %v, want ErrBadSequence", err)
	}
	if !ChannelReady(0) {
		t.Error("permit still held after staging abort")
	}

	// Show with nothing staged
	if err := ShowFrame(0, 0); !errors.Is(err, ErrBadSequence) {
		t.Errorf("show unstaged: err = %v, want ErrBadSequence", err)
	}

	// Count mismatch discards too
	if err := StageFrame(0, 0, make([]byte, 48)); err != nil {
		t.Fatal(err)
	}
	if err := ShowFrame(0, 47); !errors.Is(err, ErrBadSequence) {
		t.Errorf("count mismatch: err = %v, want ErrBadSequence", err)
	}
	if !ChannelReady(0) {
		t.Error("permit still held after count mismatch")
	}

	// Overflow mid-run
	if err := StageFrame(0, 0, make([]byte, 48)); err != nil {
		t.Fatal(err)
	}
	if err := StageFrame(0, 48, make([]byte, ChannelBufferSize)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("overflow: err = %v, want ErrPayloadTooLarge", err)
	}
	if !ChannelReady(0) {
		t.Error("permit still held after overflow abort")
	}
}

func TestReconfigureDiscardsStagedFrame(t *testing.T) {
	_, stream, _ := setupMockDrivers(t)

	if err := ConfigureChannel(0, FormatCodeRGB); err != nil {
		t.Fatal(err)
	}
	if err := StageFrame(0, 0, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	// Reconfigure must not deadlock on the permit the stager holds
	if err := ConfigureChannel(0, FormatCodeRGBW); err != nil {
		t.Fatal(err)
	}
	if !ChannelReady(0) {
		t.Error("channel not ready after reconfigure")
	}
	if err := ShowFrame(0, 3); !errors.Is(err, ErrBadSequence) {
		t.Errorf("stale show: err = %v, want ErrBadSequence", err)
	}
	if len(stream.bindings[0].triggered) != 0 {
		t.Error("stale staged frame was triggered")
	}
}
