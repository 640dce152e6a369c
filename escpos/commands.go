package escpos

// Control bytes shared by all command builders.
const (
	esc = 0x1B
	gs  = 0x1D
)

// Alignment arguments for setJustify.
const (
	alignLeft   = 0x00
	alignCenter = 0x01
	alignRight  = 0x02
)

// initPrinter resets the device to its power-on state (ESC @).
func initPrinter() []byte {
	return []byte{esc, 0x40}
}

// setJustify sets the alignment for subsequent lines (ESC a n).
func setJustify(n byte) []byte {
	return []byte{esc, 0x61, n}
}

// feedLines advances the paper by n lines (ESC d n).
func feedLines(n byte) []byte {
	return []byte{esc, 0x64, n}
}

// partialCut cuts the paper leaving one point uncut (GS V 1).
func partialCut() []byte {
	return []byte{gs, 0x56, 0x01}
}

// setTextSize selects the character multipliers, each 1-8 (GS ! n). The high
// nibble carries the width, the low nibble the height, both zero-based.
func setTextSize(width, height int) []byte {
	n := byte(width-1)<<4 | byte(height-1)
	return []byte{gs, 0x21, n}
}

// setUpsideDown toggles 180-degree rotated printing (ESC { n).
func setUpsideDown(on bool) []byte {
	return []byte{esc, 0x7B, boolByte(on)}
}

// setSmoothing toggles character smoothing (GS b n).
func setSmoothing(on bool) []byte {
	return []byte{gs, 0x62, boolByte(on)}
}

// rasterBlock announces one raster block of widthBytes x rows bytes, normal
// scale (GS v 0 0). The row data follows immediately.
func rasterBlock(widthBytes, rows int) []byte {
	out := []byte{gs, 0x76, 0x30, 0x00}
	out = append(out, lowHigh(widthBytes, 2)...)
	out = append(out, lowHigh(rows, 2)...)
	return out
}

// lowHigh encodes v as n little-endian bytes.
func lowHigh(v, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func boolByte(on bool) byte {
	if on {
		return 0x01
	}
	return 0x00
}
