package core

// Channel manager: configuration, frame ingest and the completion/latch
// state machine. Per channel the cycle is
//
//	IDLE -> TRANSFERRING   SubmitFrame triggers the stream engine
//	TRANSFERRING -> LATCHING   completion interrupt arms the latch alarm
//	LATCHING -> IDLE   alarm expiry releases the ready permit
//
// ConfigureChannel and ReleaseChannel run only in the foreground context;
// TransferComplete and the alarm callback run in interrupt context.

// ConfigureChannel validates the request, tears down any previous bindings
// and claims fresh ones. The channel is marked configured only after both
// claims succeed; a partial acquisition is rolled back and the channel is
// left unconfigured.
func ConfigureChannel(index uint8, formatCode uint8) error {
	if index >= NumChannels {
		return ErrInvalidChannel
	}

	format, err := formatFromCode(formatCode)
	if err != nil {
		// Leave the channel exactly as it was, configured or not.
		return err
	}

	ch := &channels[index]

	if ch.configured {
		// Drain: wait out any in-flight transfer plus its latch delay so
		// the bindings are quiescent before teardown. A half-staged frame
		// already holds the permit; discard it instead of waiting.
		if ch.staging {
			ch.staging = false
			ch.stagedLen = 0
		} else {
			ch.ready.Acquire()
		}
		releaseBindings(index, ch)
	}

	wave, err := MustWave().Claim(ChannelPin(index))
	if err != nil {
		DebugPrintln("configure ch" + utoa(uint32(index)) + " failed: " + err.Error())
		return err
	}

	stream, err := MustStream().Claim(index, wave, TransferComplete)
	if err != nil {
		wave.Release()
		DebugPrintln("configure ch" + utoa(uint32(index)) + " failed: " + err.Error())
		return err
	}

	ch.wave = wave
	ch.stream = stream
	ch.format = format
	ch.ready.Reset(1)
	ch.configured = true

	RecordTiming(EvtConfigure, index, GetTime(), uint32(formatCode), 0)
	return nil
}

// ReleaseChannel force-releases a channel's bindings, aborting any
// in-flight transfer. Idempotent: releasing an unconfigured channel is a
// no-op. Used by emergency stop and firmware reset; the configure path
// prefers draining first.
func ReleaseChannel(index uint8) error {
	if index >= NumChannels {
		return ErrInvalidChannel
	}

	ch := &channels[index]
	if !ch.configured {
		return nil
	}
	releaseBindings(index, ch)
	return nil
}

// releaseBindings tears down both bindings and resets channel state. The
// alarm is cancelled first so a stale latch expiry cannot release the
// permit of a dead binding.
func releaseBindings(index uint8, ch *Channel) {
	MustAlarm().Cancel(index)
	ch.setLatchPending(false)

	if ch.stream != nil {
		ch.stream.Release()
		ch.stream = nil
	}
	if ch.wave != nil {
		ch.wave.Release()
		ch.wave = nil
	}

	ch.configured = false
	ch.format = FormatUnset
	ch.staging = false
	ch.stagedLen = 0
	ch.ready.Reset(0)

	RecordTiming(EvtRelease, index, GetTime(), 0, 0)
}

// SubmitFrame copies payload into the channel buffer and starts streaming
// it to the waveform unit. Blocks the calling context until the previous
// frame has finished transferring and latching; returns immediately after
// triggering the new transfer.
func SubmitFrame(index uint8, payload []byte) error {
	if index >= NumChannels {
		return ErrInvalidChannel
	}
	if len(payload) > ChannelBufferSize {
		return ErrPayloadTooLarge
	}

	ch := &channels[index]
	if !ch.configured {
		return ErrNotConfigured
	}

	ch.ready.Acquire()
	n := copy(ch.buf[:], payload)

	RecordTiming(EvtFrameSubmit, index, GetTime(), uint32(n), 0)
	ch.stream.Trigger(ch.buf[:n])
	return nil
}

// StageFrame copies one chunk of a frame into the channel buffer. The
// host link caps a single message well below the buffer capacity, so a
// full frame arrives as a run of chunks followed by ShowFrame.
//
// A chunk at offset 0 starts a frame: it blocks until the previous frame
// has latched, then holds the buffer until ShowFrame triggers it. Later
// chunks must continue exactly where the staged bytes end; a gap or
// overlap discards the staged frame and frees the channel.
func StageFrame(index uint8, offset uint32, data []byte) error {
	if index >= NumChannels {
		return ErrInvalidChannel
	}
	ch := &channels[index]
	if !ch.configured {
		return ErrNotConfigured
	}
	if offset > ChannelBufferSize || int(offset)+len(data) > ChannelBufferSize {
		abortStaging(ch)
		return ErrPayloadTooLarge
	}

	if offset == 0 {
		// A fresh offset-0 chunk while staging restarts the frame; the
		// permit is already held.
		if !ch.staging {
			ch.ready.Acquire()
			ch.staging = true
		}
		ch.stagedLen = 0
	} else if !ch.staging || offset != ch.stagedLen {
		abortStaging(ch)
		return ErrBadSequence
	}

	copy(ch.buf[offset:], data)
	ch.stagedLen = offset + uint32(len(data))
	return nil
}

// ShowFrame triggers the transfer of a staged frame. count must equal the
// number of bytes staged; a mismatch means chunks were lost and the frame
// is discarded rather than shown truncated.
func ShowFrame(index uint8, count uint32) error {
	if index >= NumChannels {
		return ErrInvalidChannel
	}
	ch := &channels[index]
	if !ch.configured {
		return ErrNotConfigured
	}
	if !ch.staging || count != ch.stagedLen {
		abortStaging(ch)
		return ErrBadSequence
	}

	n := ch.stagedLen
	ch.staging = false
	ch.stagedLen = 0

	RecordTiming(EvtFrameSubmit, index, GetTime(), n, 0)
	ch.stream.Trigger(ch.buf[:n])
	return nil
}

// abortStaging discards a half-staged frame and returns the permit so the
// channel does not stay wedged after a chunk error.
func abortStaging(ch *Channel) {
	if !ch.staging {
		return
	}
	ch.staging = false
	ch.stagedLen = 0
	ch.ready.Release()
}

// TransferComplete is the per-channel completion event, dispatched by the
// stream driver's interrupt handler. It coalesces rapid repeated
// completions: an already-armed latch alarm is replaced, never stacked, so
// only the latest completion's delay applies.
func TransferComplete(index uint8) {
	if index >= NumChannels {
		return
	}
	ch := &channels[index]

	ch.setLatchPending(true)
	MustAlarm().Schedule(index, LatchDelayUS, latchExpired)

	RecordTiming(EvtTransferDone, index, GetTime(), 0, 0)
}

// latchExpired runs when the latch delay elapses: the strip has committed
// the frame and the channel may accept the next one.
func latchExpired(index uint8) {
	ch := &channels[index]
	ch.setLatchPending(false)
	ch.ready.Release()

	RecordTiming(EvtLatchFire, index, GetTime(), 0, 0)
}

// ShutdownAllChannels releases every configured channel. Called on
// emergency stop and before a firmware reset.
func ShutdownAllChannels() {
	for i := uint8(0); i < NumChannels; i++ {
		_ = ReleaseChannel(i)
	}
}

// resetChannelsForTest clears the arena between tests.
func resetChannelsForTest() {
	for i := range channels {
		channels[i] = Channel{}
	}
}
