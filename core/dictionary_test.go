package core

import (
	"strings"
	"testing"
)

func TestDictionary(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())

	// Add test constants
	dict.AddConstant("TEST_CONST", uint32(42))
	dict.AddConstant("TEST_STR", "hello")

	// Add test enumeration
	dict.AddEnumeration("test_pins", []string{"PA0", "PA1", "PB0"})

	// Register test command
	dict.commandReg.Register("test_cmd", "arg=%u", func(data *[]byte) error {
		return nil
	})

	// Generate dictionary
	output := string(dict.Generate())

	t.Log("Generated dictionary:\n" + output)

	// Verify version present (JSON format)
	if !strings.Contains(output, `"version":"gopix-0.1.0"`) {
		t.Error("Dictionary missing version")
	}

	// Verify constants present (JSON format)
	if !strings.Contains(output, `"TEST_CONST":"42"`) {
		t.Error("Dictionary missing TEST_CONST")
	}
	if !strings.Contains(output, `"TEST_STR":"hello"`) {
		t.Error("Dictionary missing TEST_STR")
	}

	// Verify enumeration present (JSON format)
	if !strings.Contains(output, `"test_pins"`) {
		t.Error("Dictionary missing test_pins enumeration")
	}
	if !strings.Contains(output, `"PA0":0`) && !strings.Contains(output, `"PA1":1`) {
		t.Error("Dictionary missing test_pins values")
	}

	// Verify command present (JSON format)
	if !strings.Contains(output, `"test_cmd arg=%u"`) {
		t.Error("Dictionary missing test_cmd")
	}
}

func TestDictionaryResponses(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())

	// Commands have handlers, responses have nil handlers
	dict.commandReg.Register("do_thing", "oid=%c", func(data *[]byte) error { return nil })
	dict.commandReg.Register("thing_result", "oid=%c status=%c", nil)

	output := string(dict.Generate())

	if !strings.Contains(output, `"commands":{"do_thing oid=%c":0`) {
		t.Errorf("command missing or misplaced: %s", output)
	}
	if !strings.Contains(output, `"responses":{"thing_result oid=%c status=%c":1`) {
		t.Errorf("response missing or misplaced: %s", output)
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("TEST", uint32(123))

	// Generate full dictionary
	full := dict.Generate()

	// Test getting chunks
	chunk1 := dict.GetChunk(0, 10)
	if len(chunk1) == 0 {
		t.Error("First chunk is empty")
	}
	if len(chunk1) > 10 {
		t.Errorf("First chunk too large: %d bytes", len(chunk1))
	}

	// Test offset beyond end
	chunkEnd := dict.GetChunk(uint32(len(full)+100), 10)
	if len(chunkEnd) != 0 {
		t.Error("Chunk beyond end should be empty")
	}

	// Test chunk at exact end
	chunkAtEnd := dict.GetChunk(uint32(len(full)), 10)
	if len(chunkAtEnd) != 0 {
		t.Error("Chunk at end should be empty")
	}

	// Chunks reassemble into the full dictionary
	var rebuilt []byte
	offset := uint32(0)
	for {
		chunk := dict.GetChunk(offset, 16)
		if len(chunk) == 0 {
			break
		}
		rebuilt = append(rebuilt, chunk...)
		offset += uint32(len(chunk))
	}
	if string(rebuilt) != string(full) {
		t.Error("Reassembled chunks do not match full dictionary")
	}
}
