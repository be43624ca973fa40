package core

// PixelFormat is the electrical byte layout of one pixel on the wire.
type PixelFormat uint8

const (
	FormatUnset PixelFormat = iota
	FormatRGB               // 3 bytes per pixel
	FormatRGBW              // 4 bytes per pixel
)

// Wire values carried by the configure_channel command.
const (
	FormatCodeRGB  = 0x01
	FormatCodeRGBW = 0x02
)

// BytesPerPixel returns the pixel stride for the format, or 0 for unset.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB:
		return 3
	case FormatRGBW:
		return 4
	}
	return 0
}

func (f PixelFormat) String() string {
	switch f {
	case FormatRGB:
		return "rgb"
	case FormatRGBW:
		return "rgbw"
	}
	return "unset"
}

// formatFromCode translates a wire format code, rejecting unknown values.
func formatFromCode(code uint8) (PixelFormat, error) {
	switch code {
	case FormatCodeRGB:
		return FormatRGB, nil
	case FormatCodeRGBW:
		return FormatRGBW, nil
	}
	return FormatUnset, ErrInvalidFormat
}
