package core

import (
	"errors"
	"testing"
)

func TestFormatFromCode(t *testing.T) {
	f, err := formatFromCode(FormatCodeRGB)
	if err != nil || f != FormatRGB {
		t.Errorf("RGB code: f=%v err=%v", f, err)
	}

	f, err = formatFromCode(FormatCodeRGBW)
	if err != nil || f != FormatRGBW {
		t.Errorf("RGBW code: f=%v err=%v", f, err)
	}

	for _, code := range []uint8{0x00, 0x03, 0x10, 0xFF} {
		if _, err := formatFromCode(code); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("code %#x: err = %v, want ErrInvalidFormat", code, err)
		}
	}
}

func TestBytesPerPixel(t *testing.T) {
	if FormatRGB.BytesPerPixel() != 3 {
		t.Error("RGB stride != 3")
	}
	if FormatRGBW.BytesPerPixel() != 4 {
		t.Error("RGBW stride != 4")
	}
	if FormatUnset.BytesPerPixel() != 0 {
		t.Error("unset stride != 0")
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		code uint8
	}{
		{nil, StatusOK},
		{ErrInvalidChannel, StatusInvalidChannel},
		{ErrInvalidFormat, StatusInvalidFormat},
		{ErrResourceExhausted, StatusResourceExhausted},
		{ErrNotConfigured, StatusNotConfigured},
		{ErrPayloadTooLarge, StatusPayloadTooLarge},
		{errors.New("somewhere else"), StatusUnknown},
	}
	for _, c := range cases {
		if got := StatusForError(c.err); got != c.code {
			t.Errorf("StatusForError(%v) = %d, want %d", c.err, got, c.code)
		}
	}
}
