// Package escpos implements a posprint.Driver speaking the ESC/POS command
// language over any adapter transport. Every Driver method maps to one short
// command sequence; the device is initialized with ESC @ on every connect so
// a power-cycled printer comes back in a known state.
package escpos

import (
	"fmt"
	"image"
	"strings"

	"github.com/tillworks/posprint"
	"github.com/tillworks/posprint/adapter"
)

// DefaultDotWidth is the raster width of a typical 80mm head at 203 dpi.
const DefaultDotWidth = 576

// Config carries the optional settings for a Device.
type Config struct {
	// DotWidth is the printable raster width in dots, used to scale images.
	// Defaults to DefaultDotWidth.
	DotWidth int
}

// Device translates driver calls into ESC/POS command bytes on an adapter.
// It holds no connection state of its own; open/closed is whatever the
// adapter reports.
type Device struct {
	adapter  adapter.Adapter
	dotWidth int
}

var _ posprint.Driver = (*Device)(nil)

// New returns a Device with default settings writing to a.
func New(a adapter.Adapter) *Device {
	return NewWithConfig(a, Config{})
}

// NewWithConfig is like New but applies cfg. Zero fields keep their defaults.
func NewWithConfig(a adapter.Adapter, cfg Config) *Device {
	if cfg.DotWidth <= 0 {
		cfg.DotWidth = DefaultDotWidth
	}
	return &Device{
		adapter:  a,
		dotWidth: cfg.DotWidth,
	}
}

// Connect (re)establishes the transport and initializes the printer. An open
// adapter is closed first, so a half-dead connection is replaced rather than
// reused.
func (d *Device) Connect() error {
	if d.adapter.IsOpen() {
		_ = d.adapter.Close()
	}
	if err := d.adapter.Open(); err != nil {
		return fmt.Errorf("escpos: open transport: %w", err)
	}
	if err := d.write(initPrinter()); err != nil {
		return fmt.Errorf("escpos: initialize printer: %w", err)
	}
	return nil
}

// Close releases the transport.
func (d *Device) Close() error {
	if !d.adapter.IsOpen() {
		return nil
	}
	return d.adapter.Close()
}

// write sends data and insists on a complete write.
func (d *Device) write(data []byte) error {
	n, err := d.adapter.Write(data)
	if err != nil {
		return err
	}
	if n < len(data) {
		return fmt.Errorf("escpos: short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// Text prints one line of text, terminated by a line feed.
func (d *Device) Text(s string) error {
	return d.write(append([]byte(s), '\n'))
}

// Feed advances the paper by lines blank lines (0-255).
func (d *Device) Feed(lines int) error {
	if lines < 0 || lines > 255 {
		return fmt.Errorf("escpos: feed lines %d out of range 0-255", lines)
	}
	return d.write(feedLines(byte(lines)))
}

// Line prints width copies of symbol as one line.
func (d *Device) Line(symbol string, width int) error {
	if symbol == "" || width < 1 {
		return fmt.Errorf("escpos: invalid rule %q x %d", symbol, width)
	}
	return d.Text(strings.Repeat(symbol, width))
}

// Justify sets the alignment for subsequent lines.
func (d *Device) Justify(side posprint.Justify) error {
	switch side {
	case posprint.JustifyLeft:
		return d.write(setJustify(alignLeft))
	case posprint.JustifyCenter:
		return d.write(setJustify(alignCenter))
	case posprint.JustifyRight:
		return d.write(setJustify(alignRight))
	}
	return fmt.Errorf("escpos: unknown justify side %q", side)
}

// TextSize sets the character width and height multipliers, each 1-8.
func (d *Device) TextSize(width, height int) error {
	if width < 1 || width > 8 || height < 1 || height > 8 {
		return fmt.Errorf("escpos: text size %dx%d out of range 1-8", width, height)
	}
	return d.write(setTextSize(width, height))
}

// Cut feeds feedLines lines and performs a partial cut.
func (d *Device) Cut(feedLines int) error {
	if err := d.Feed(feedLines); err != nil {
		return err
	}
	return d.write(partialCut())
}

// UpsideDown toggles 180-degree rotated printing for subsequent lines.
func (d *Device) UpsideDown(on bool) error {
	return d.write(setUpsideDown(on))
}

// Smooth toggles character smoothing.
func (d *Device) Smooth(on bool) error {
	return d.write(setSmoothing(on))
}

// Image dithers img to the device dot width and prints it as raster blocks.
func (d *Device) Image(img image.Image) error {
	if img == nil {
		return fmt.Errorf("escpos: nil image")
	}
	r, err := rasterize(img, d.dotWidth)
	if err != nil {
		return err
	}
	for start := 0; start < r.height; start += maxRasterRows {
		rows := r.height - start
		if rows > maxRasterRows {
			rows = maxRasterRows
		}
		if err := d.write(rasterBlock(r.stride, rows)); err != nil {
			return err
		}
		if err := d.write(r.rows(start, rows)); err != nil {
			return err
		}
	}
	return nil
}

// Raw sends bytes to the device unmodified.
func (d *Device) Raw(data []byte) error {
	return d.write(data)
}
