//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/hex"
	"syscall/js"

	"gopix/protocol"
)

// Browser bindings for the pixel-channel protocol inspector. The page
// fetches the firmware dictionary itself and passes the dictionary-assigned
// command IDs in; these helpers build and dissect the wire messages.

func main() {
	js.Global().Set("gopixWasm", js.ValueOf(map[string]interface{}{
		"encodeConfigureChannel": js.FuncOf(encodeConfigureChannelWrapper),
		"encodeChannelData":      js.FuncOf(encodeChannelDataWrapper),
		"encodeChannelShow":      js.FuncOf(encodeChannelShowWrapper),
		"chunkFrame":             js.FuncOf(chunkFrameWrapper),
		"decodeChannelResult":    js.FuncOf(decodeChannelResultWrapper),
		"decodePixels":           js.FuncOf(decodePixelsWrapper),
		"decodeMessage":          js.FuncOf(decodeMessageWrapper),
		"crc16":                  js.FuncOf(crc16Wrapper),
		"version":                protocol.Version,
	}))

	// Keep the program running
	select {}
}

// frameChunkMax mirrors the host library's chunk size: the largest data
// blob that fits one transport message next to the command fields.
const frameChunkMax = 48

// Wire status codes from the firmware's channel_result response.
var statusNames = map[int]string{
	0:   "ok",
	1:   "invalid channel",
	2:   "invalid format",
	3:   "resource exhausted",
	4:   "not configured",
	5:   "payload too large",
	6:   "bad chunk sequence",
	255: "unknown",
}

// buildMessage frames one command the way the host transport does, using
// a throwaway transport for the sequence/CRC plumbing.
func buildMessage(cmdID uint16, args func(output protocol.OutputBuffer)) string {
	msgOutput := protocol.NewScratchOutput()
	tempTransport := protocol.NewTransport(msgOutput, nil)
	tempTransport.SendCommand(cmdID, args)
	return hex.EncodeToString(msgOutput.Result())
}

// encodeConfigureChannelWrapper builds a configure_channel message.
// Args: cmdID (number), channel (0-7), format (1=RGB, 2=RGBW)
// Returns: hex string of the framed message
func encodeConfigureChannelWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf("error: need cmdID, channel, format")
	}

	cmdID := uint16(args[0].Int())
	channel := uint32(args[1].Int())
	format := uint32(args[2].Int())

	msg := buildMessage(cmdID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, channel)
		protocol.EncodeVLQUint(output, format)
	})
	return js.ValueOf(msg)
}

// encodeChannelDataWrapper builds one channel_data chunk message.
// Args: cmdID (number), channel (0-7), offset (number), dataHex (string)
// Returns: hex string of the framed message
func encodeChannelDataWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf("error: need cmdID, channel, offset, dataHex")
	}

	cmdID := uint16(args[0].Int())
	channel := uint32(args[1].Int())
	offset := uint32(args[2].Int())

	data, err := hex.DecodeString(args[3].String())
	if err != nil {
		return js.ValueOf("error: invalid data hex: " + err.Error())
	}
	if len(data) > frameChunkMax {
		return js.ValueOf("error: chunk exceeds transport message capacity")
	}

	msg := buildMessage(cmdID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, channel)
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, data)
	})
	return js.ValueOf(msg)
}

// encodeChannelShowWrapper builds the channel_show message that commits a
// staged frame.
// Args: cmdID (number), channel (0-7), count (total staged bytes)
// Returns: hex string of the framed message
func encodeChannelShowWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf("error: need cmdID, channel, count")
	}

	cmdID := uint16(args[0].Int())
	channel := uint32(args[1].Int())
	count := uint32(args[2].Int())

	msg := buildMessage(cmdID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, channel)
		protocol.EncodeVLQUint(output, count)
	})
	return js.ValueOf(msg)
}

// chunkFrameWrapper splits a full frame into the offset/data pieces a
// channel_data run would carry, so the page can preview the chunking.
// Args: frameHex (string)
// Returns: [{offset: number, data: string}], or {error}
func chunkFrameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing frame hex"})
	}

	frame, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": "invalid frame hex: " + err.Error()})
	}

	chunks := []interface{}{}
	offset := 0
	for {
		n := len(frame) - offset
		if n > frameChunkMax {
			n = frameChunkMax
		}
		chunks = append(chunks, map[string]interface{}{
			"offset": offset,
			"data":   hex.EncodeToString(frame[offset : offset+n]),
		})
		offset += n
		if offset >= len(frame) {
			break
		}
	}
	return js.ValueOf(chunks)
}

// decodeChannelResultWrapper dissects a channel_result payload (the bytes
// after the response command ID).
// Args: payloadHex (string)
// Returns: {channel, status, statusText, error}
func decodeChannelResultWrapper(this js.Value, args []js.Value) interface{} {
	fail := func(msg string) js.Value {
		return js.ValueOf(map[string]interface{}{"error": msg})
	}
	if len(args) < 1 {
		return fail("missing payload hex")
	}

	payload, err := hex.DecodeString(args[0].String())
	if err != nil {
		return fail("invalid payload hex: " + err.Error())
	}

	channel, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return fail("failed to decode channel: " + err.Error())
	}
	status, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return fail("failed to decode status: " + err.Error())
	}

	name, ok := statusNames[int(status)]
	if !ok {
		name = "unknown"
	}
	return js.ValueOf(map[string]interface{}{
		"channel":    int(channel),
		"status":     int(status),
		"statusText": name,
	})
}

// decodePixelsWrapper turns raw frame bytes into per-pixel color values.
// The wire order is GRB(W), matching what the strips clock in.
// Args: frameHex (string), bytesPerPixel (3 or 4)
// Returns: [{r, g, b, w}], or {error}
func decodePixelsWrapper(this js.Value, args []js.Value) interface{} {
	fail := func(msg string) js.Value {
		return js.ValueOf(map[string]interface{}{"error": msg})
	}
	if len(args) < 2 {
		return fail("need frame hex and bytes per pixel")
	}

	frame, err := hex.DecodeString(args[0].String())
	if err != nil {
		return fail("invalid frame hex: " + err.Error())
	}
	bpp := args[1].Int()
	if bpp != 3 && bpp != 4 {
		return fail("bytes per pixel must be 3 or 4")
	}
	if len(frame)%bpp != 0 {
		return fail("frame length is not a whole number of pixels")
	}

	pixels := []interface{}{}
	for i := 0; i < len(frame); i += bpp {
		px := map[string]interface{}{
			"g": int(frame[i]),
			"r": int(frame[i+1]),
			"b": int(frame[i+2]),
			"w": 0,
		}
		if bpp == 4 {
			px["w"] = int(frame[i+3])
		}
		pixels = append(pixels, px)
	}
	return js.ValueOf(pixels)
}

// crc16Wrapper calculates the frame checksum over hex-encoded bytes.
// Args: hexString (string)
// Returns: number (uint16)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}

	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// decodeMessageWrapper dissects a complete wire message: framing fields,
// CRC check, command ID and any VLQ parameters.
// Args: hexString (string)
// Returns: {length, sequence, cmdID, params: [{value, bytes}], crc, crcValid, error}
func decodeMessageWrapper(this js.Value, args []js.Value) interface{} {
	fail := func(msg string) js.Value {
		return js.ValueOf(map[string]interface{}{"error": msg})
	}
	if len(args) < 1 {
		return fail("missing hex string argument")
	}

	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return fail("invalid hex string: " + err.Error())
	}
	if len(data) < protocol.MessageLengthMin {
		return fail("message too short")
	}
	if data[len(data)-1] != protocol.MessageValueSync {
		return fail("missing sync byte")
	}

	msgLen := int(data[protocol.MessagePositionLen])
	seq := data[protocol.MessagePositionSeq]
	if msgLen < protocol.MessageLengthMin || msgLen > len(data) {
		return fail("length field out of range")
	}

	frameCRC := uint16(data[msgLen-3])<<8 | uint16(data[msgLen-2])
	crcValid := frameCRC == protocol.CRC16(data[:msgLen-3])

	payload := data[protocol.MessageHeaderSize : msgLen-3]

	var cmdID int32
	params := []interface{}{}
	if len(payload) > 0 {
		var consumed int
		cmdID, consumed, err = protocol.DecodeVLQ(payload)
		if err != nil {
			return fail("failed to decode command ID: " + err.Error())
		}
		payload = payload[consumed:]

		for len(payload) > 0 {
			val, n, decodeErr := protocol.DecodeVLQ(payload)
			if decodeErr != nil {
				// Byte-blob arguments are not plain VLQ, stop here
				break
			}
			params = append(params, map[string]interface{}{
				"value": int(val),
				"bytes": n,
			})
			payload = payload[n:]
		}
	}

	return js.ValueOf(map[string]interface{}{
		"length":   msgLen,
		"sequence": int(seq),
		"cmdID":    int(cmdID),
		"params":   params,
		"crc":      int(frameCRC),
		"crcValid": crcValid,
	})
}
