package posprint

import (
	"fmt"
	"image"
	"io"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultWidth is the printable width in characters of a typical 80mm
	// receipt printer using font A.
	DefaultWidth = 48

	// DefaultLineChar is the symbol horizontal rules are drawn with when
	// none is configured.
	DefaultLineChar = "#"

	// DefaultCutFeed is the number of lines fed before a cut so the last
	// printed line clears the blade.
	DefaultCutFeed = 2
)

// Config carries the optional settings for a Printer.
type Config struct {
	// Width is the printable width in characters. Defaults to DefaultWidth.
	Width int

	// LineChar is the default symbol for Line. Defaults to DefaultLineChar.
	LineChar string

	// UpsideDown enables 180-degree rotated printing from the start. The
	// mode is reapplied after every reconnect.
	UpsideDown bool

	// Logger receives connection and retry events. Defaults to a logger
	// that discards everything.
	Logger logrus.FieldLogger
}

// Printer executes commands against a Driver and shields callers from
// transient connection failures: a command that errors is retried exactly once
// after the connection has been torn down and reestablished. If the retry
// fails too, the command fails with a *DriverError.
//
// A Printer is not safe for concurrent use.
type Printer struct {
	driver   Driver
	width    int
	lineChar string
	log      logrus.FieldLogger

	connected  bool
	upsideDown bool

	metrics Metrics
}

// New returns a Printer with default settings driving d. No connection is
// made until Connect or the first command.
func New(d Driver) *Printer {
	return NewWithConfig(d, Config{})
}

// NewWithConfig is like New but applies cfg. Zero fields keep their defaults.
func NewWithConfig(d Driver, cfg Config) *Printer {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.LineChar == "" {
		cfg.LineChar = DefaultLineChar
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Printer{
		driver:     d,
		width:      cfg.Width,
		lineChar:   cfg.LineChar,
		upsideDown: cfg.UpsideDown,
		log:        cfg.Logger.WithField("module", "printer"),
	}
}

// Connect tears down any existing connection, establishes a fresh one and
// restores the persistent upside-down mode. It is safe to call at any time;
// commands connect lazily, so calling it up front is optional.
func (p *Printer) Connect() error {
	p.connected = false
	if err := p.driver.Connect(); err != nil {
		p.metrics.ReconnectFailures.Inc()
		return err
	}
	if p.upsideDown {
		if err := p.driver.UpsideDown(true); err != nil {
			p.metrics.ReconnectFailures.Inc()
			return err
		}
	}
	p.connected = true
	p.metrics.Connects.Inc()
	p.log.Debug("connected")
	return nil
}

// Close releases the driver connection. The printer reconnects on the next
// command.
func (p *Printer) Close() error {
	p.connected = false
	return p.driver.Close()
}

// Connected reports whether the last connection attempt succeeded and no
// command has failed past recovery since.
func (p *Printer) Connected() bool {
	return p.connected
}

// Width returns the printable width in characters.
func (p *Printer) Width() int {
	return p.width
}

// Driver returns the wrapped driver.
func (p *Printer) Driver() Driver {
	return p.driver
}

// Metrics returns a snapshot of the executor counters.
func (p *Printer) Metrics() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// do runs one driver command with the recovery policy: connect if needed,
// attempt, and on failure reconnect and attempt exactly once more.
func (p *Printer) do(name string, op func(Driver) error) error {
	p.metrics.Commands.Inc()

	if !p.connected {
		if err := p.Connect(); err != nil {
			return &ReconnectError{Op: name, Err: err}
		}
	}

	err := op(p.driver)
	if err == nil {
		return nil
	}

	p.log.WithError(err).WithField("command", name).Warn("command failed, reconnecting")
	p.metrics.Reconnects.Inc()
	if cerr := p.Connect(); cerr != nil {
		return &ReconnectError{Op: name, Err: cerr}
	}

	p.metrics.Retries.Inc()
	if rerr := op(p.driver); rerr != nil {
		p.metrics.FatalErrors.Inc()
		p.log.WithError(rerr).WithField("command", name).Error("command failed after retry")
		return &DriverError{Op: name, Err: rerr}
	}
	p.log.WithField("command", name).Debug("retry succeeded")
	return nil
}

// Print prints one line of text. A non-empty justify switches the alignment
// for this line and switches back to left afterwards.
func (p *Printer) Print(text string, justify Justify) error {
	if justify != "" {
		if err := p.Justify(justify); err != nil {
			return err
		}
	}
	if err := p.do("print", func(d Driver) error { return d.Text(text) }); err != nil {
		return err
	}
	if justify != "" {
		return p.Justify(JustifyLeft)
	}
	return nil
}

// Feed advances the paper by lines blank lines (0-255).
func (p *Printer) Feed(lines int) error {
	if lines < 0 || lines > 255 {
		return fmt.Errorf("posprint: feed lines %d out of range 0-255", lines)
	}
	return p.do("feed", func(d Driver) error { return d.Feed(lines) })
}

// Line prints a full-width horizontal rule. An empty symbol uses the
// configured default.
func (p *Printer) Line(symbol string) error {
	if symbol == "" {
		symbol = p.lineChar
	}
	return p.do("line", func(d Driver) error { return d.Line(symbol, p.width) })
}

// Justify sets the alignment for subsequent text.
func (p *Printer) Justify(side Justify) error {
	if !side.valid() {
		return ErrInvalidJustify
	}
	return p.do("justify", func(d Driver) error { return d.Justify(side) })
}

// SetTextSize sets the character width and height multipliers, each 1-8.
func (p *Printer) SetTextSize(width, height int) error {
	if width < 1 || width > 8 || height < 1 || height > 8 {
		return ErrInvalidTextSize
	}
	return p.do("text size", func(d Driver) error { return d.TextSize(width, height) })
}

// Cut feeds feedLines lines and cuts the paper.
func (p *Printer) Cut(feedLines int) error {
	if feedLines < 0 || feedLines > 255 {
		return fmt.Errorf("posprint: cut feed %d out of range 0-255", feedLines)
	}
	return p.do("cut", func(d Driver) error { return d.Cut(feedLines) })
}

// SetUpsideDown toggles 180-degree rotated printing. The mode persists across
// reconnects until changed again.
func (p *Printer) SetUpsideDown(on bool) error {
	err := p.do("upside down", func(d Driver) error { return d.UpsideDown(on) })
	if err != nil {
		return err
	}
	p.upsideDown = on
	return nil
}

// UpsideDown reports the persistent upside-down mode.
func (p *Printer) UpsideDown() bool {
	return p.upsideDown
}

// SetSmooth toggles character smoothing.
func (p *Printer) SetSmooth(on bool) error {
	return p.do("smooth", func(d Driver) error { return d.Smooth(on) })
}

// Image prints a raster image.
func (p *Printer) Image(img image.Image) error {
	if img == nil {
		return ErrNilImage
	}
	return p.do("image", func(d Driver) error { return d.Image(img) })
}

// Raw sends bytes to the device unmodified, still with reconnect-and-retry.
func (p *Printer) Raw(data []byte) error {
	return p.do("raw", func(d Driver) error { return d.Raw(data) })
}
