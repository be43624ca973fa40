// Package effects generates pixel frame buffers for demo and test
// animations. Frames hold raw wire bytes in GRB order (plus a trailing
// white byte for 4-byte pixels), matching what the shift registers in
// the LEDs expect.
package effects

// BytesPerPixelRGB and BytesPerPixelRGBW are the supported pixel strides
const (
	BytesPerPixelRGB  = 3
	BytesPerPixelRGBW = 4
)

// Wheel maps a position on a 0-255 color wheel to an RGB triple.
// The wheel transitions red -> green -> blue -> red.
func Wheel(pos uint8) (r, g, b uint8) {
	pos = 255 - pos
	switch {
	case pos < 85:
		return 255 - pos*3, 0, pos * 3
	case pos < 170:
		pos -= 85
		return 0, pos * 3, 255 - pos*3
	default:
		pos -= 170
		return pos * 3, 255 - pos*3, 0
	}
}

// Fill sets every pixel in the frame to a single color
func Fill(frame []byte, bpp int, r, g, b uint8) {
	if bpp != BytesPerPixelRGB && bpp != BytesPerPixelRGBW {
		return
	}
	for i := 0; i+bpp <= len(frame); i += bpp {
		setPixel(frame, i, bpp, r, g, b)
	}
}

// Rainbow paints a color wheel across the frame. offset rotates the
// wheel, so incrementing it per frame animates the rainbow.
func Rainbow(frame []byte, bpp int, offset uint8) {
	if bpp != BytesPerPixelRGB && bpp != BytesPerPixelRGBW {
		return
	}
	count := len(frame) / bpp
	if count == 0 {
		return
	}
	for i := 0; i < count; i++ {
		pos := uint8(i*256/count) + offset
		r, g, b := Wheel(pos)
		setPixel(frame, i*bpp, bpp, r, g, b)
	}
}

// Chase lights a single moving pixel, clearing the rest. step selects
// which pixel is lit and wraps around the strip.
func Chase(frame []byte, bpp int, step int, r, g, b uint8) {
	if bpp != BytesPerPixelRGB && bpp != BytesPerPixelRGBW {
		return
	}
	count := len(frame) / bpp
	if count == 0 {
		return
	}
	Fill(frame, bpp, 0, 0, 0)
	lit := step % count
	if lit < 0 {
		lit += count
	}
	setPixel(frame, lit*bpp, bpp, r, g, b)
}

// setPixel writes one pixel in GRB wire order. The white byte of
// 4-byte pixels is left dark.
func setPixel(frame []byte, at, bpp int, r, g, b uint8) {
	frame[at] = g
	frame[at+1] = r
	frame[at+2] = b
	if bpp == BytesPerPixelRGBW {
		frame[at+3] = 0
	}
}
