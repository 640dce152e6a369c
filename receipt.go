package posprint

import (
	"fmt"
	"image"
	"math"
	"strings"
	"unicode/utf8"
)

// Receipt records printing operations instead of executing them, then replays
// the whole batch with Print. Recording costs nothing on the wire, so a
// receipt can be assembled, thrown away or reordered freely before paper
// moves.
//
// With upside-down mode enabled the batch is replayed in reverse recorded
// order while the printer rotates each line 180 degrees. Held the other way
// up, the paper then reads top to bottom like the recorded sequence.
type Receipt struct {
	printer    *Printer
	width      int
	upsideDown bool
	ops        []op
}

// TableRow is one label/value pair of a two-column table.
type TableRow struct {
	Label string
	Value any
}

// NewReceipt returns an empty receipt that replays against p. The receipt
// inherits the printer's width for charts and tables.
func NewReceipt(p *Printer) *Receipt {
	return &Receipt{
		printer:    p,
		width:      p.Width(),
		upsideDown: p.UpsideDown(),
	}
}

// SetUpsideDown switches the replay direction of this receipt and the
// printer's persistent rotation mode together. Switching mid-receipt is
// allowed but affects the whole buffer on the next Print.
func (r *Receipt) SetUpsideDown(on bool) error {
	if err := r.printer.SetUpsideDown(on); err != nil {
		return err
	}
	r.upsideDown = on
	return nil
}

// UpsideDown reports the replay direction.
func (r *Receipt) UpsideDown() bool {
	return r.upsideDown
}

// SetWidth overrides the width used for charts and tables on this receipt.
// Horizontal rules keep the printer's width. Already recorded operations are
// unaffected.
func (r *Receipt) SetWidth(w int) error {
	if w < 1 {
		return fmt.Errorf("posprint: receipt width %d must be at least 1", w)
	}
	r.width = w
	return nil
}

// Width returns the width used for charts and tables.
func (r *Receipt) Width() int {
	return r.width
}

// Len returns the number of recorded operations.
func (r *Receipt) Len() int {
	return len(r.ops)
}

// Reset discards all recorded operations without printing them.
func (r *Receipt) Reset() {
	r.ops = r.ops[:0]
}

func (r *Receipt) record(o op) {
	r.ops = append(r.ops, o)
}

// Text records one line of plain text.
func (r *Receipt) Text(s string) {
	r.record(textOp{text: s})
}

// TextOpts records one line of text with optional alignment and size. An
// empty justify keeps the current alignment; size 0 keeps the current size.
// A non-zero size prints just this line at size x size and resets to 1x1
// afterwards.
func (r *Receipt) TextOpts(s string, justify Justify, size int) error {
	if justify != "" && !justify.valid() {
		return ErrInvalidJustify
	}
	if size != 0 && (size < 1 || size > 8) {
		return ErrInvalidTextSize
	}
	r.record(textOp{text: s, justify: justify, size: size})
	return nil
}

// Feed records a paper feed of lines blank lines (0-255).
func (r *Receipt) Feed(lines int) error {
	if lines < 0 || lines > 255 {
		return fmt.Errorf("posprint: feed lines %d out of range 0-255", lines)
	}
	r.record(feedOp{lines: lines})
	return nil
}

// Line records a full-width horizontal rule using the printer's default
// symbol.
func (r *Receipt) Line() {
	r.record(lineOp{})
}

// Justify records an alignment change for all subsequent text.
func (r *Receipt) Justify(side Justify) error {
	if !side.valid() {
		return ErrInvalidJustify
	}
	r.record(justifyOp{side: side})
	return nil
}

// SetTextSize records a persistent character size change (multipliers 1-8).
func (r *Receipt) SetTextSize(width, height int) error {
	if width < 1 || width > 8 || height < 1 || height > 8 {
		return ErrInvalidTextSize
	}
	r.record(textSizeOp{width: width, height: height})
	return nil
}

// Cut records a feed-and-cut.
func (r *Receipt) Cut() {
	r.record(cutOp{feedLines: DefaultCutFeed})
}

// Image records a raster image.
func (r *Receipt) Image(img image.Image) error {
	if img == nil {
		return ErrNilImage
	}
	r.record(imageOp{img: img})
	return nil
}

// Chart renders values as a vertical ASCII bar chart and records it line by
// line. The series is resampled to the width between the borders, each
// column's bar height is its share of the series maximum rounded to the
// nearest row, and the rows are framed top and bottom:
//
//	+----------+
//	|        * |
//	|    *  ***|
//	|*** ******|
//	+----------+
//
// Negative values render as empty columns. A series with no positive values
// renders an empty frame. The chart occupies exactly height rows between the
// borders.
func (r *Receipt) Chart(values []float64, height int) error {
	if len(values) == 0 {
		return ErrNoChartValues
	}
	if height < 1 {
		return fmt.Errorf("posprint: chart height %d must be at least 1", height)
	}
	inner := r.width - 2
	if inner < 1 {
		return fmt.Errorf("posprint: receipt width %d leaves no room for chart columns", r.width)
	}

	bars := barHeights(resample(values, inner), height)
	border := "+" + strings.Repeat("-", inner) + "+"

	r.Text(border)
	for y := height; y >= 1; y-- {
		row := make([]byte, inner)
		for x := range row {
			if bars[x] >= y {
				row[x] = '*'
			} else {
				row[x] = ' '
			}
		}
		r.Text("|" + string(row) + "|")
	}
	r.Text(border)
	return nil
}

// Table records one line per row, label on the left and value right-justified
// against the receipt width, with padding spaces of margin on both sides:
//
//	Subtotal:                12.50
//	Total:                   13.75
//
// Labels longer than the available width push their value past it rather than
// truncate.
func (r *Receipt) Table(rows []TableRow, padding int) error {
	if padding < 0 {
		return fmt.Errorf("posprint: table padding %d must not be negative", padding)
	}
	margin := strings.Repeat(" ", padding)
	for _, row := range rows {
		field := r.width - utf8.RuneCountInString(row.Label) - 2 - 2*padding
		if field < 0 {
			field = 0
		}
		r.Text(fmt.Sprintf("%s%s: %*v", margin, row.Label, field, row.Value))
	}
	return nil
}

// Print replays the recorded operations in order, or in reverse order when
// upside-down mode is on, and clears the buffer on success.
//
// On failure the replay stops at the failed operation and the buffer keeps,
// in recorded order, exactly the operations that have not been printed: the
// failed one plus everything not yet attempted. A later Print picks up where
// this one left off.
func (r *Receipt) Print() error {
	if r.upsideDown {
		for i := len(r.ops) - 1; i >= 0; i-- {
			if err := r.ops[i].apply(r.printer); err != nil {
				r.ops = r.ops[:i+1]
				return err
			}
		}
	} else {
		for i := 0; i < len(r.ops); i++ {
			if err := r.ops[i].apply(r.printer); err != nil {
				r.ops = r.ops[i:]
				return err
			}
		}
	}
	r.ops = r.ops[:0]
	return nil
}

// PrintCut replays the buffer like Print and, if everything printed, feeds
// and cuts the paper.
func (r *Receipt) PrintCut() error {
	if err := r.Print(); err != nil {
		return err
	}
	return r.printer.Cut(DefaultCutFeed)
}

// resample maps a series of any length onto exactly n columns, linearly
// interpolating between neighboring samples.
func resample(values []float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = values[0]
		return out
	}
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		frac := pos - float64(lo)
		if frac > 0 && lo+1 < len(values) {
			out[i] = values[lo]*(1-frac) + values[lo+1]*frac
		} else {
			out[i] = values[lo]
		}
	}
	return out
}

// barHeights scales every column to its share of the maximum, in rows. A
// series without positive values yields all-zero bars.
func barHeights(cols []float64, height int) []int {
	max := cols[0]
	for _, v := range cols[1:] {
		if v > max {
			max = v
		}
	}
	bars := make([]int, len(cols))
	if max <= 0 {
		return bars
	}
	for i, v := range cols {
		if v <= 0 {
			continue
		}
		b := int(math.Round(v / max * float64(height)))
		if b > height {
			b = height
		}
		bars[i] = b
	}
	return bars
}
