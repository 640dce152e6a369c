package adapter

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Default timeouts for network printers.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultIOTimeout   = 10 * time.Second
)

// TCPConfig selects the network printer a TCPAdapter connects to.
type TCPConfig struct {
	// Address is the printer's host:port. Port 9100 is the usual raw
	// printing port.
	Address string

	// DialTimeout bounds connection establishment. Defaults to
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// IOTimeout bounds each Write and Read. Defaults to DefaultIOTimeout;
	// negative disables deadlines.
	IOTimeout time.Duration

	// Logger receives connection events. Defaults to a logger that
	// discards everything.
	Logger logrus.FieldLogger
}

// TCPAdapter drives a network printer over a raw TCP socket, the JetDirect
// style most ESC/POS printers with an ethernet or wifi port speak on 9100.
type TCPAdapter struct {
	cfg TCPConfig
	log logrus.FieldLogger

	mu   sync.Mutex
	conn net.Conn
	open atomic.Bool
}

// NewTCPAdapter returns an unopened adapter for the printer at cfg.Address.
func NewTCPAdapter(cfg TCPConfig) *TCPAdapter {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.IOTimeout == 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &TCPAdapter{
		cfg: cfg,
		log: cfg.Logger.WithField("module", "tcp"),
	}
}

// Open dials the printer.
func (a *TCPAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open.Load() {
		return ErrAlreadyOpen
	}

	conn, err := net.DialTimeout("tcp", a.cfg.Address, a.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("dial printer %s: %w", a.cfg.Address, err)
	}

	a.conn = conn
	a.open.Store(true)
	a.log.WithField("address", a.cfg.Address).Info("network printer open")
	return nil
}

// Write sends data to the printer socket.
func (a *TCPAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}

	if a.cfg.IOTimeout > 0 {
		a.conn.SetWriteDeadline(time.Now().Add(a.cfg.IOTimeout))
	}
	n, err := a.conn.Write(data)
	if err != nil {
		return n, fmt.Errorf("tcp write: %w", err)
	}
	return n, nil
}

// Read reads status or response data from the printer socket.
func (a *TCPAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}

	if a.cfg.IOTimeout > 0 {
		a.conn.SetReadDeadline(time.Now().Add(a.cfg.IOTimeout))
	}
	n, err := a.conn.Read(buf)
	if err != nil {
		return n, fmt.Errorf("tcp read: %w", err)
	}
	return n, nil
}

// Close closes the socket.
func (a *TCPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return nil
	}

	err := a.conn.Close()
	a.conn = nil
	a.open.Store(false)
	a.log.Info("network printer closed")
	return err
}

// IsOpen reports whether the socket is open.
func (a *TCPAdapter) IsOpen() bool {
	return a.open.Load()
}
