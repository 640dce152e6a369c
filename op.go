package posprint

import "image"

// op is one recorded printing instruction. Implementations are immutable
// values; apply dispatches to the matching Printer command, so every replayed
// instruction gets the same reconnect-and-retry treatment as a direct call.
type op interface {
	apply(p *Printer) error
}

type textOp struct {
	text    string
	justify Justify
	size    int // 0 means the current size is kept
}

// apply wraps sized text in a set-size / print / reset sequence so the size
// never leaks into neighboring lines, regardless of replay direction.
func (o textOp) apply(p *Printer) error {
	if o.size > 0 {
		if err := p.SetTextSize(o.size, o.size); err != nil {
			return err
		}
	}
	if err := p.Print(o.text, o.justify); err != nil {
		return err
	}
	if o.size > 0 {
		return p.SetTextSize(1, 1)
	}
	return nil
}

type feedOp struct {
	lines int
}

func (o feedOp) apply(p *Printer) error { return p.Feed(o.lines) }

type lineOp struct {
	symbol string // empty means the printer default
}

func (o lineOp) apply(p *Printer) error { return p.Line(o.symbol) }

type justifyOp struct {
	side Justify
}

func (o justifyOp) apply(p *Printer) error { return p.Justify(o.side) }

type textSizeOp struct {
	width, height int
}

func (o textSizeOp) apply(p *Printer) error { return p.SetTextSize(o.width, o.height) }

type cutOp struct {
	feedLines int
}

func (o cutOp) apply(p *Printer) error { return p.Cut(o.feedLines) }

type imageOp struct {
	img image.Image
}

func (o imageOp) apply(p *Printer) error { return p.Image(o.img) }
