// Package adapter provides interchangeable printer transports. Every
// transport implements the same Adapter interface, so upper layers never care
// whether bytes travel over USB, TCP, a serial line or Bluetooth LE.
package adapter

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyOpen is returned by Open on an adapter that is already open.
	ErrAlreadyOpen = errors.New("adapter: already open")

	// ErrNotOpen is returned by Write and Read on an adapter that is not open.
	ErrNotOpen = errors.New("adapter: not open")

	// ErrReadNotSupported is returned by transports that cannot read back
	// from the device.
	ErrReadNotSupported = errors.New("adapter: read not supported")
)

// Adapter is a byte transport to a printer.
type Adapter interface {
	// Open establishes the connection. Opening an open adapter is an error.
	Open() error

	// Write sends data to the printer.
	Write(data []byte) (int, error)

	// Read reads status or response data from the printer. Not every
	// transport supports reading back.
	Read(buf []byte) (int, error)

	// Close releases the connection. Closing a closed adapter is a no-op.
	Close() error

	// IsOpen reports whether the connection is open.
	IsOpen() bool
}

// discardLogger returns a logger that drops everything, for adapters built
// without one.
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
