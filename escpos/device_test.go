package escpos

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/posprint"
)

// fakeAdapter captures everything the device writes.
type fakeAdapter struct {
	buf    bytes.Buffer
	open   bool
	opens  int
	closes int

	openErr  error
	writeErr error
	short    bool
}

func (f *fakeAdapter) Open() error {
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	f.opens++
	return nil
}

func (f *fakeAdapter) Write(data []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if f.short {
		n := len(data) - 1
		f.buf.Write(data[:n])
		return n, nil
	}
	return f.buf.Write(data)
}

func (f *fakeAdapter) Read(buf []byte) (int, error) { return 0, nil }

func (f *fakeAdapter) Close() error {
	f.open = false
	f.closes++
	return nil
}

func (f *fakeAdapter) IsOpen() bool { return f.open }

func TestDeviceConnectInitializes(t *testing.T) {
	fake := &fakeAdapter{}
	d := New(fake)

	require.NoError(t, d.Connect())
	assert.Equal(t, 1, fake.opens)
	assert.Equal(t, []byte{0x1B, 0x40}, fake.buf.Bytes())
}

func TestDeviceConnectReplacesConnection(t *testing.T) {
	fake := &fakeAdapter{}
	d := New(fake)

	require.NoError(t, d.Connect())
	require.NoError(t, d.Connect())

	// The second connect closes the stale transport before reopening.
	assert.Equal(t, 1, fake.closes)
	assert.Equal(t, 2, fake.opens)
	assert.Equal(t, []byte{0x1B, 0x40, 0x1B, 0x40}, fake.buf.Bytes())
}

func TestDeviceConnectOpenFailure(t *testing.T) {
	fake := &fakeAdapter{openErr: errors.New("no such device")}
	d := New(fake)

	err := d.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open transport")
}

func TestDeviceClose(t *testing.T) {
	fake := &fakeAdapter{}
	d := New(fake)

	// Closing an unopened device is a no-op.
	require.NoError(t, d.Close())
	assert.Equal(t, 0, fake.closes)

	require.NoError(t, d.Connect())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, fake.closes)
}

func TestDeviceText(t *testing.T) {
	fake := &fakeAdapter{open: true}
	d := New(fake)

	require.NoError(t, d.Text("hello"))
	assert.Equal(t, []byte("hello\n"), fake.buf.Bytes())
}

func TestDeviceCommandEncoding(t *testing.T) {
	tests := []struct {
		name string
		call func(d *Device) error
		want []byte
	}{
		{"Feed", func(d *Device) error { return d.Feed(3) }, []byte{0x1B, 0x64, 0x03}},
		{"JustifyLeft", func(d *Device) error { return d.Justify(posprint.JustifyLeft) }, []byte{0x1B, 0x61, 0x00}},
		{"JustifyCenter", func(d *Device) error { return d.Justify(posprint.JustifyCenter) }, []byte{0x1B, 0x61, 0x01}},
		{"JustifyRight", func(d *Device) error { return d.Justify(posprint.JustifyRight) }, []byte{0x1B, 0x61, 0x02}},
		{"TextSize", func(d *Device) error { return d.TextSize(2, 3) }, []byte{0x1D, 0x21, 0x12}},
		{"Cut", func(d *Device) error { return d.Cut(2) }, []byte{0x1B, 0x64, 0x02, 0x1D, 0x56, 0x01}},
		{"UpsideDownOn", func(d *Device) error { return d.UpsideDown(true) }, []byte{0x1B, 0x7B, 0x01}},
		{"UpsideDownOff", func(d *Device) error { return d.UpsideDown(false) }, []byte{0x1B, 0x7B, 0x00}},
		{"SmoothOn", func(d *Device) error { return d.Smooth(true) }, []byte{0x1D, 0x62, 0x01}},
		{"Line", func(d *Device) error { return d.Line("=", 5) }, []byte("=====\n")},
		{"Raw", func(d *Device) error { return d.Raw([]byte{0x05}) }, []byte{0x05}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeAdapter{open: true}
			d := New(fake)

			require.NoError(t, tc.call(d))
			assert.Equal(t, tc.want, fake.buf.Bytes())
		})
	}
}

func TestDeviceValidatesArguments(t *testing.T) {
	fake := &fakeAdapter{open: true}
	d := New(fake)

	assert.Error(t, d.Feed(-1))
	assert.Error(t, d.Feed(256))
	assert.Error(t, d.TextSize(0, 1))
	assert.Error(t, d.TextSize(1, 9))
	assert.Error(t, d.Justify("diagonal"))
	assert.Error(t, d.Line("", 5))
	assert.Error(t, d.Line("#", 0))
	assert.Error(t, d.Image(nil))

	// Rejected arguments must not reach the wire.
	assert.Equal(t, 0, fake.buf.Len())
}

func TestDeviceShortWrite(t *testing.T) {
	fake := &fakeAdapter{open: true, short: true}
	d := New(fake)

	err := d.Text("hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short write")
}

func TestDeviceWriteFailure(t *testing.T) {
	fake := &fakeAdapter{open: true, writeErr: errors.New("pipe broken")}
	d := New(fake)

	assert.Error(t, d.Feed(1))
	assert.Error(t, d.Text("x"))
}

func TestDeviceImage(t *testing.T) {
	fake := &fakeAdapter{open: true}
	d := New(fake)

	// 8x2 all black: one byte per row, both rows solid.
	img := image.NewGray(image.Rect(0, 0, 8, 2))
	require.NoError(t, d.Image(img))

	want := []byte{
		0x1D, 0x76, 0x30, 0x00, 0x01, 0x00, 0x02, 0x00,
		0xFF,
		0xFF,
	}
	assert.Equal(t, want, fake.buf.Bytes())
}

func TestDeviceImagePartialByte(t *testing.T) {
	fake := &fakeAdapter{open: true}
	d := New(fake)

	// 10 black dots need two bytes per row; the last six bits stay white.
	img := image.NewGray(image.Rect(0, 0, 10, 1))
	require.NoError(t, d.Image(img))

	want := []byte{
		0x1D, 0x76, 0x30, 0x00, 0x02, 0x00, 0x01, 0x00,
		0xFF, 0xC0,
	}
	assert.Equal(t, want, fake.buf.Bytes())
}

func TestDeviceImageWhite(t *testing.T) {
	fake := &fakeAdapter{open: true}
	d := New(fake)

	img := image.NewGray(image.Rect(0, 0, 8, 1))
	for x := 0; x < 8; x++ {
		img.SetGray(x, 0, color.Gray{Y: 0xFF})
	}
	require.NoError(t, d.Image(img))

	want := []byte{
		0x1D, 0x76, 0x30, 0x00, 0x01, 0x00, 0x01, 0x00,
		0x00,
	}
	assert.Equal(t, want, fake.buf.Bytes())
}
