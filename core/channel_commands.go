//go:build tinygo

package core

import (
	"gopix/protocol"
)

// InitChannelCommands registers the pixel channel commands and responses.
// Call after InitCoreCommands so the bootstrap IDs stay stable.
func InitChannelCommands() {
	RegisterCommand("configure_channel", "channel=%c format=%c", handleConfigureChannel)
	RegisterCommand("channel_data", "channel=%c offset=%hu data=%*s", handleChannelData)
	RegisterCommand("channel_show", "channel=%c count=%hu", handleChannelShow)

	// Response messages (MCU -> Host)
	RegisterCommand("channel_result", "channel=%c status=%c", nil)

	RegisterConstant("NUM_CHANNELS", uint32(NumChannels))
	RegisterConstant("CHANNEL_BUFFER_SIZE", uint32(ChannelBufferSize))
	RegisterConstant("CHANNEL_PIN_OFFSET", uint32(ChannelPinOffset))
	RegisterConstant("LATCH_DELAY_US", uint32(LatchDelayUS))
	RegisterConstant("PIXEL_BIT_RATE", uint32(PixelBitRate))
	RegisterEnumeration("pixel_format", []string{"unset", "rgb", "rgbw"})
}

// handleConfigureChannel processes a channel configuration request.
// Format: configure_channel channel=%c format=%c
func handleConfigureChannel(data *[]byte) error {
	index, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	formatCode, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	cfgErr := ConfigureChannel(uint8(index), uint8(formatCode))
	sendChannelResult(uint8(index), cfgErr)
	return cfgErr
}

// handleChannelData stages one chunk of a pixel frame.
// Format: channel_data channel=%c offset=%hu data=%*s
//
// A frame larger than one transport message arrives as consecutive chunks;
// the offset-0 chunk blocks until the channel's previous frame has latched.
// A channel_show then triggers the transfer.
func handleChannelData(data *[]byte) error {
	index, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}

	stageErr := StageFrame(uint8(index), offset, payload)
	if stageErr != nil {
		// Success stays silent on the data path to keep frame streaming
		// cheap; only failures are reported.
		sendChannelResult(uint8(index), stageErr)
	}
	return stageErr
}

// handleChannelShow triggers transfer of the staged frame.
// Format: channel_show channel=%c count=%hu
//
// Always answers with channel_result so the host has one sync point per
// frame instead of per chunk.
func handleChannelShow(data *[]byte) error {
	index, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	showErr := ShowFrame(uint8(index), count)
	sendChannelResult(uint8(index), showErr)
	return showErr
}

// sendChannelResult reports a command outcome to the host.
func sendChannelResult(index uint8, err error) {
	status := StatusForError(err)
	SendResponse("channel_result", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(index))
		protocol.EncodeVLQUint(output, uint32(status))
	})
}
