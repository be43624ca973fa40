package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopix/host/serial"
	"gopix/protocol"
)

// MCU represents a connection to a pixel controller board
type MCU struct {
	// Transport layer
	transport *protocol.HostTransport

	// Serial port
	port serial.Port

	// Dictionary data
	dictionary     *Dictionary
	dictionaryData []byte

	// Connection state
	connected bool
}

// Dictionary represents the parsed MCU dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		connected: false,
	}
}

// Connect connects to an MCU via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	// Open serial port
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.connected = true

	// Set up response handler for identify responses
	m.transport.SetResponseHandler(m.handleResponse)

	// Give MCU time to initialize (if it just powered on)
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			return err
		}
	}
	m.connected = false
	return nil
}

// RetrieveDictionary retrieves the complete dictionary from the MCU
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return fmt.Errorf("not connected to MCU")
	}

	// Dictionary will be retrieved in chunks
	// Start with offset 0, count 40 (typical chunk size)
	var dictBuffer bytes.Buffer
	offset := uint32(0)
	chunkSize := uint8(40)
	maxIterations := 1000 // Safety limit

	for i := 0; i < maxIterations; i++ {
		// Send identify command
		chunk, err := m.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}

		if len(chunk) == 0 {
			// No more data
			break
		}

		// Append chunk to buffer
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		// If we got less than requested, we're done
		if len(chunk) < int(chunkSize) {
			break
		}
	}

	m.dictionaryData = dictBuffer.Bytes()

	// The firmware compresses its dictionary with zlib; fall back to the
	// raw bytes when it sent plain JSON.
	decompressed, err := m.tryDecompress(m.dictionaryData)
	if err == nil && len(decompressed) > 0 {
		m.dictionaryData = decompressed
	}

	// Parse dictionary JSON
	if err := m.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	return nil
}

// sendIdentify sends an identify command and waits for response
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	// Build identify command: cmdID=1, offset (VLQ uint), count (VLQ uint)
	err := m.transport.SendCommand(1, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})

	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	// Wait for response (identify_response has cmdID=0)
	resp, err := m.transport.ReceiveResponse(1 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to receive identify response: %w", err)
	}

	// Parse response payload: cmdID (VLQ), offset (VLQ), data (VLQ bytes)
	payload := resp.Payload

	// Decode command ID (should be 0 for identify_response)
	cmdID, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response command ID: %w", err)
	}

	if cmdID != 0 {
		return nil, fmt.Errorf("unexpected response command ID: %d (expected 0)", cmdID)
	}

	// Decode offset (should match our request)
	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}

	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	// Decode data (VLQ-encoded byte array)
	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}

	return data, nil
}

// tryDecompress attempts to decompress the dictionary data
func (m *MCU) tryDecompress(data []byte) ([]byte, error) {
	// Check if data looks like zlib (starts with 0x78)
	if len(data) < 2 || data[0] != 0x78 {
		return nil, fmt.Errorf("not zlib compressed")
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open zlib stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress dictionary: %w", err)
	}
	return out, nil
}

// parseDictionary parses the dictionary JSON
func (m *MCU) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(m.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	m.dictionary = dict
	return nil
}

// handleResponse handles responses from the MCU (async callback)
func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	// Synchronous waits pull responses through ReceiveResponse; nothing
	// to do for unsolicited traffic yet.
	return nil
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary data
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// PrintDictionary prints a summary of the dictionary
func (m *MCU) PrintDictionary() {
	if m.dictionary == nil {
		fmt.Println("No dictionary loaded")
		return
	}

	fmt.Println("\n=== MCU Dictionary ===")
	fmt.Printf("Version: %s\n", m.dictionary.Version)
	fmt.Printf("Build: %s\n", m.dictionary.BuildVersions)

	fmt.Println("\nConfig:")
	for k, v := range m.dictionary.Config {
		fmt.Printf("  %s = %s\n", k, v)
	}

	fmt.Printf("\nCommands (%d):\n", len(m.dictionary.Commands))
	for name, id := range m.dictionary.Commands {
		fmt.Printf("  [%d] %s\n", id, name)
	}

	fmt.Printf("\nResponses (%d):\n", len(m.dictionary.Responses))
	for name, id := range m.dictionary.Responses {
		fmt.Printf("  [%d] %s\n", id, name)
	}

	if len(m.dictionary.Enumerations) > 0 {
		fmt.Printf("\nEnumerations (%d):\n", len(m.dictionary.Enumerations))
		for name, values := range m.dictionary.Enumerations {
			fmt.Printf("  %s: %d values\n", name, len(values))
		}
	}

	fmt.Println("======================")
}

// findCommand resolves a command name to its wire ID. Dictionary keys
// carry the full format string ("configure_channel channel=%c format=%c"),
// so match on the leading word.
func (m *MCU) findCommand(name string) (uint16, bool) {
	if m.dictionary == nil {
		return 0, false
	}
	if id, ok := m.dictionary.Commands[name]; ok {
		return uint16(id), true
	}
	for key, id := range m.dictionary.Commands {
		if word, _, _ := strings.Cut(key, " "); word == name {
			return uint16(id), true
		}
	}
	return 0, false
}

// findResponse resolves a response name to its wire ID
func (m *MCU) findResponse(name string) (uint16, bool) {
	if m.dictionary == nil {
		return 0, false
	}
	for key, id := range m.dictionary.Responses {
		if word, _, _ := strings.Cut(key, " "); word == name {
			return uint16(id), true
		}
	}
	return 0, false
}

// SendCommand sends a generic command to the MCU
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !m.connected {
		return fmt.Errorf("not connected to MCU")
	}

	cmdID, ok := m.findCommand(name)
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}

	return m.transport.SendCommand(cmdID, args)
}

// Pixel channel status codes, mirrored from the firmware's channel_result
const (
	StatusOK                = 0
	StatusInvalidChannel    = 1
	StatusInvalidFormat     = 2
	StatusResourceExhausted = 3
	StatusNotConfigured     = 4
	StatusPayloadTooLarge   = 5
	StatusBadSequence       = 6
)

// frameChunkMax is the largest data blob that fits a single transport
// message next to the command ID, channel and offset fields
// (MessageLengthMax 64 minus framing and field overhead).
const frameChunkMax = 48

// statusError maps a channel_result status byte to an error
func statusError(status uint32) error {
	switch status {
	case StatusOK:
		return nil
	case StatusInvalidChannel:
		return fmt.Errorf("invalid channel index")
	case StatusInvalidFormat:
		return fmt.Errorf("invalid pixel format")
	case StatusResourceExhausted:
		return fmt.Errorf("no free waveform or transfer unit")
	case StatusNotConfigured:
		return fmt.Errorf("channel not configured")
	case StatusPayloadTooLarge:
		return fmt.Errorf("frame larger than channel buffer")
	case StatusBadSequence:
		return fmt.Errorf("frame chunks arrived out of sequence")
	default:
		return fmt.Errorf("channel error status %d", status)
	}
}

// ConfigureChannel binds a pixel channel to its output pin with the given
// format code and waits for the firmware's acknowledgement.
func (m *MCU) ConfigureChannel(channel, format uint8) error {
	err := m.SendCommand("configure_channel", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(channel))
		protocol.EncodeVLQUint(output, uint32(format))
	})
	if err != nil {
		return err
	}

	return m.waitChannelResult(channel, 1*time.Second)
}

// SendFrame streams a frame of raw pixel bytes to a configured channel.
// A frame does not fit one transport message, so it is split into
// channel_data chunks and committed with channel_show; the firmware's
// channel_result for the show is awaited so the caller sees the outcome.
func (m *MCU) SendFrame(channel uint8, frame []byte) error {
	offset := 0
	for {
		n := len(frame) - offset
		if n > frameChunkMax {
			n = frameChunkMax
		}
		chunk := frame[offset : offset+n]

		err := m.SendCommand("channel_data", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(channel))
			protocol.EncodeVLQUint(output, uint32(offset))
			protocol.EncodeVLQBytes(output, chunk)
		})
		if err != nil {
			return fmt.Errorf("chunk at offset %d: %w", offset, err)
		}

		offset += n
		if offset >= len(frame) {
			break
		}
	}

	err := m.SendCommand("channel_show", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(channel))
		protocol.EncodeVLQUint(output, uint32(len(frame)))
	})
	if err != nil {
		return err
	}

	return m.waitChannelResult(channel, 1*time.Second)
}

// waitChannelResult blocks until a channel_result for the given channel
// arrives and converts its status to an error.
func (m *MCU) waitChannelResult(channel uint8, timeout time.Duration) error {
	resultID, ok := m.findResponse("channel_result")
	if !ok {
		return fmt.Errorf("firmware dictionary has no channel_result response")
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("timed out waiting for channel_result")
		}

		resp, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return fmt.Errorf("failed to receive channel_result: %w", err)
		}

		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return fmt.Errorf("failed to decode response command ID: %w", err)
		}
		if uint16(cmdID) != resultID {
			// Unrelated response, keep waiting
			continue
		}

		respChannel, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return fmt.Errorf("failed to decode channel: %w", err)
		}
		if respChannel != uint32(channel) {
			continue
		}

		status, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return fmt.Errorf("failed to decode status: %w", err)
		}
		return statusError(status)
	}
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}
