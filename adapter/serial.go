package adapter

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.uber.org/atomic"
)

// DefaultBaudRate matches the factory setting of most ESC/POS serial printers.
const DefaultBaudRate = 19200

// portHandle is the slice of serial.Port the adapter uses. Tests substitute
// fakes through openPort.
type portHandle interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// openPort is swapped out by tests so the adapter can be exercised without
// real hardware.
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// SerialConfig selects the port a SerialAdapter opens.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0 or COM3.
	Port string

	// BaudRate defaults to DefaultBaudRate. The remaining mode fields
	// default to 8 data bits, no parity, one stop bit.
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits

	// Logger receives connection events. Defaults to a logger that
	// discards everything.
	Logger logrus.FieldLogger
}

// SerialAdapter drives a printer over an RS-232 line.
type SerialAdapter struct {
	cfg SerialConfig
	log logrus.FieldLogger

	mu   sync.Mutex
	port portHandle
	open atomic.Bool
}

// NewSerialAdapter returns an unopened adapter for the port cfg selects.
func NewSerialAdapter(cfg SerialConfig) *SerialAdapter {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &SerialAdapter{
		cfg: cfg,
		log: cfg.Logger.WithField("module", "serial"),
	}
}

// Open opens the serial port with the configured mode.
func (a *SerialAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open.Load() {
		return ErrAlreadyOpen
	}
	if a.cfg.Port == "" {
		return fmt.Errorf("serial port name is empty")
	}

	mode := &serial.Mode{
		BaudRate: a.cfg.BaudRate,
		DataBits: a.cfg.DataBits,
		Parity:   a.cfg.Parity,
		StopBits: a.cfg.StopBits,
	}
	port, err := openPort(a.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", a.cfg.Port, err)
	}

	a.port = port
	a.open.Store(true)
	a.log.WithFields(logrus.Fields{
		"port": a.cfg.Port,
		"baud": a.cfg.BaudRate,
	}).Info("serial printer open")
	return nil
}

// Write sends data to the serial port.
func (a *SerialAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}

	n, err := a.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("serial write: %w", err)
	}
	return n, nil
}

// Read reads status or response data from the serial port.
func (a *SerialAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}

	n, err := a.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("serial read: %w", err)
	}
	return n, nil
}

// Close closes the serial port.
func (a *SerialAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return nil
	}

	err := a.port.Close()
	a.port = nil
	a.open.Store(false)
	a.log.Info("serial printer closed")
	return err
}

// IsOpen reports whether the port is open.
func (a *SerialAdapter) IsOpen() bool {
	return a.open.Load()
}
