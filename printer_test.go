package posprint

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeDriver records every primitive call as a readable string and can be
// scripted to fail specific calls or connects.
type fakeDriver struct {
	calls    []string
	connects int
	closes   int

	// failOn maps a recorded call string to the number of times it should
	// fail; -1 means always.
	failOn       map[string]int
	failConnects int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{failOn: make(map[string]int)}
}

func (f *fakeDriver) call(s string) error {
	f.calls = append(f.calls, s)
	if n, ok := f.failOn[s]; ok && n != 0 {
		if n > 0 {
			f.failOn[s] = n - 1
		}
		return errBoom
	}
	return nil
}

// count returns how many times call s was attempted.
func (f *fakeDriver) count(s string) int {
	n := 0
	for _, c := range f.calls {
		if c == s {
			n++
		}
	}
	return n
}

func (f *fakeDriver) Connect() error {
	f.connects++
	if f.failConnects > 0 {
		f.failConnects--
		return errBoom
	}
	return nil
}

func (f *fakeDriver) Close() error {
	f.closes++
	return nil
}

func (f *fakeDriver) Text(s string) error         { return f.call("text:" + s) }
func (f *fakeDriver) Feed(lines int) error        { return f.call(fmt.Sprintf("feed:%d", lines)) }
func (f *fakeDriver) Justify(side Justify) error  { return f.call("justify:" + string(side)) }
func (f *fakeDriver) UpsideDown(on bool) error    { return f.call(fmt.Sprintf("upsidedown:%t", on)) }
func (f *fakeDriver) Smooth(on bool) error        { return f.call(fmt.Sprintf("smooth:%t", on)) }
func (f *fakeDriver) Cut(feedLines int) error     { return f.call(fmt.Sprintf("cut:%d", feedLines)) }
func (f *fakeDriver) Raw(data []byte) error       { return f.call(fmt.Sprintf("raw:%x", data)) }
func (f *fakeDriver) Image(img image.Image) error { return f.call("image") }

func (f *fakeDriver) Line(symbol string, width int) error {
	return f.call(fmt.Sprintf("line:%s:%d", symbol, width))
}

func (f *fakeDriver) TextSize(width, height int) error {
	return f.call(fmt.Sprintf("size:%dx%d", width, height))
}

func TestPrinterConnectsLazily(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	assert.False(t, p.Connected())
	assert.Equal(t, 0, fake.connects)

	require.NoError(t, p.Print("hello", ""))

	assert.True(t, p.Connected())
	assert.Equal(t, 1, fake.connects)
	assert.Equal(t, []string{"text:hello"}, fake.calls)
}

func TestPrinterConnectRepeatable(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	require.NoError(t, p.Connect())
	require.NoError(t, p.Connect())

	assert.Equal(t, 2, fake.connects)
	assert.True(t, p.Connected())
	assert.Empty(t, fake.calls)
}

func TestPrinterConnectRestoresUpsideDown(t *testing.T) {
	fake := newFakeDriver()
	p := NewWithConfig(fake, Config{UpsideDown: true})

	require.NoError(t, p.Connect())
	assert.Equal(t, []string{"upsidedown:true"}, fake.calls)

	// A transient failure must reapply the mode before the retry.
	fake.failOn["text:total"] = 1
	require.NoError(t, p.Print("total", ""))
	assert.Equal(t, []string{
		"upsidedown:true",
		"text:total",
		"upsidedown:true",
		"text:total",
	}, fake.calls)
}

func TestPrinterRetriesOnceAfterReconnect(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	fake.failOn["text:x"] = 1
	require.NoError(t, p.Print("x", ""))

	assert.Equal(t, 2, fake.count("text:x"))
	assert.Equal(t, 2, fake.connects)

	m := p.Metrics()
	assert.Equal(t, int64(1), m.Commands)
	assert.Equal(t, int64(1), m.Reconnects)
	assert.Equal(t, int64(1), m.Retries)
	assert.Equal(t, int64(0), m.FatalErrors)
}

func TestPrinterFailsAfterSecondAttempt(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	fake.failOn["text:x"] = -1
	err := p.Print("x", "")

	var driverErr *DriverError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, "print", driverErr.Op)
	assert.ErrorIs(t, err, errBoom)

	// Exactly two attempts, never a third.
	assert.Equal(t, 2, fake.count("text:x"))
	assert.Equal(t, int64(1), p.Metrics().FatalErrors)
}

func TestPrinterReportsReconnectFailure(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)
	require.NoError(t, p.Connect())

	fake.failOn["text:x"] = 1
	fake.failConnects = 1
	err := p.Print("x", "")

	var reconnectErr *ReconnectError
	require.ErrorAs(t, err, &reconnectErr)
	assert.Equal(t, "print", reconnectErr.Op)
	assert.ErrorIs(t, err, errBoom)

	// The command was attempted once; the retry never ran.
	assert.Equal(t, 1, fake.count("text:x"))
	assert.False(t, p.Connected())
	assert.Equal(t, int64(1), p.Metrics().ReconnectFailures)
}

func TestPrinterFirstConnectFailure(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	fake.failConnects = 1
	err := p.Print("x", "")

	var reconnectErr *ReconnectError
	require.ErrorAs(t, err, &reconnectErr)
	assert.Empty(t, fake.calls)
	assert.False(t, p.Connected())
}

func TestPrinterPrintJustified(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	require.NoError(t, p.Print("hi", JustifyCenter))
	assert.Equal(t, []string{"justify:center", "text:hi", "justify:left"}, fake.calls)
}

func TestPrinterLine(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		fake := newFakeDriver()
		p := New(fake)

		require.NoError(t, p.Line(""))
		assert.Equal(t, []string{"line:#:48"}, fake.calls)
	})

	t.Run("Configured", func(t *testing.T) {
		fake := newFakeDriver()
		p := NewWithConfig(fake, Config{Width: 32, LineChar: "="})

		require.NoError(t, p.Line(""))
		require.NoError(t, p.Line("-"))
		assert.Equal(t, []string{"line:=:32", "line:-:32"}, fake.calls)
	})
}

func TestPrinterValidatesArguments(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	assert.ErrorIs(t, p.Justify("diagonal"), ErrInvalidJustify)
	assert.ErrorIs(t, p.SetTextSize(0, 1), ErrInvalidTextSize)
	assert.ErrorIs(t, p.SetTextSize(1, 9), ErrInvalidTextSize)
	assert.Error(t, p.Feed(-1))
	assert.Error(t, p.Feed(256))
	assert.Error(t, p.Cut(-1))
	assert.ErrorIs(t, p.Image(nil), ErrNilImage)

	// Rejected arguments must not touch the driver at all.
	assert.Empty(t, fake.calls)
	assert.Equal(t, 0, fake.connects)
}

func TestPrinterSetUpsideDownTracksMode(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	require.NoError(t, p.SetUpsideDown(true))
	assert.True(t, p.UpsideDown())
	assert.Equal(t, []string{"upsidedown:true"}, fake.calls)

	// The mode survives an explicit reconnect.
	require.NoError(t, p.Connect())
	assert.Equal(t, []string{"upsidedown:true", "upsidedown:true"}, fake.calls)

	// Once switched off, reconnects stop emitting the mode.
	require.NoError(t, p.SetUpsideDown(false))
	assert.False(t, p.UpsideDown())
	require.NoError(t, p.Connect())
	assert.Equal(t, []string{
		"upsidedown:true",
		"upsidedown:true",
		"upsidedown:false",
	}, fake.calls)
}

func TestPrinterCommands(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	require.NoError(t, p.Feed(3))
	require.NoError(t, p.Cut(2))
	require.NoError(t, p.SetSmooth(true))
	require.NoError(t, p.SetTextSize(2, 4))
	require.NoError(t, p.Raw([]byte{0x1B, 0x40}))

	assert.Equal(t, []string{
		"feed:3",
		"cut:2",
		"smooth:true",
		"size:2x4",
		"raw:1b40",
	}, fake.calls)
	assert.Equal(t, int64(5), p.Metrics().Commands)
}

func TestPrinterClose(t *testing.T) {
	fake := newFakeDriver()
	p := New(fake)

	require.NoError(t, p.Connect())
	require.NoError(t, p.Close())

	assert.False(t, p.Connected())
	assert.Equal(t, 1, fake.closes)

	// The next command reconnects on its own.
	require.NoError(t, p.Feed(1))
	assert.Equal(t, 2, fake.connects)
}

func TestMetricsReset(t *testing.T) {
	var m Metrics
	m.Commands.Inc()
	m.Retries.Inc()

	m.Reset()
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
