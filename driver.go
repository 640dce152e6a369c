// Package posprint provides resilient, buffered printing on top of a narrow
// receipt-printer driver interface. A Printer wraps a Driver and retries every
// command once after a reconnect, so a flaky USB or network link does not
// surface as a failed receipt. A Receipt records formatting operations and
// replays them as a unit, optionally in reverse for upside-down printing, and
// can render simple bar charts and label/value tables as ASCII art.
package posprint

import "image"

// Justify selects the horizontal alignment of printed text.
type Justify string

const (
	JustifyLeft   Justify = "left"
	JustifyCenter Justify = "center"
	JustifyRight  Justify = "right"
)

func (j Justify) valid() bool {
	switch j {
	case JustifyLeft, JustifyCenter, JustifyRight:
		return true
	}
	return false
}

// Driver is the low-level command surface a Printer drives. Implementations
// translate each call into device commands on some transport; the escpos
// package provides one for ESC/POS printers. Methods hold no retry logic,
// any error is reported as-is and the Printer decides how to recover.
type Driver interface {
	// Connect tears down any existing connection and establishes a fresh
	// one, leaving the device initialized and ready for commands. It must
	// be safe to call at any time, including while already connected.
	Connect() error
	// Close releases the connection. Closing a closed driver is a no-op.
	Close() error

	// Text prints one line of text, terminated by a line feed.
	Text(s string) error
	// Feed advances the paper by the given number of blank lines.
	Feed(lines int) error
	// Line prints a horizontal rule of width copies of symbol.
	Line(symbol string, width int) error
	// Justify sets the alignment for subsequent text.
	Justify(side Justify) error
	// TextSize sets the character width and height multipliers (1-8).
	TextSize(width, height int) error
	// Cut feeds the given number of lines and cuts the paper.
	Cut(feedLines int) error
	// UpsideDown toggles 180-degree rotated printing for subsequent lines.
	UpsideDown(on bool) error
	// Smooth toggles character smoothing.
	Smooth(on bool) error
	// Image prints a raster image.
	Image(img image.Image) error
	// Raw sends bytes to the device unmodified.
	Raw(data []byte) error
}
