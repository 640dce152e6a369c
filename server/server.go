// Package server exposes a printer on a TCP port. Anything a client sends is
// forwarded verbatim to the printer through the resilient executor, so legacy
// point-of-sale software that only knows how to talk to a JetDirect port
// still benefits from reconnect-and-retry.
package server

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Printer is the executor the server forwards raw bytes to. It is satisfied
// by *posprint.Printer. The server serializes all calls, so the
// implementation does not need to be safe for concurrent use.
type Printer interface {
	// Connect establishes the printer connection.
	Connect() error

	// Connected reports whether the printer connection is up.
	Connected() bool

	// Raw sends bytes to the printer unmodified.
	Raw(data []byte) error

	// Close releases the printer connection.
	Close() error
}

// Server is a TCP listener that forwards client data to a printer. Clients
// are handled concurrently; their printer commands are serialized.
type Server struct {
	printer Printer
	address string
	log     logrus.FieldLogger

	mu       sync.Mutex
	listener net.Listener
	running  bool
	wg       sync.WaitGroup

	// printerMu serializes printer calls; connection handlers run
	// concurrently but the printer is single-owner.
	printerMu sync.Mutex
}

// New returns a server forwarding to printer, listening on address once
// started.
func New(printer Printer, address string) *Server {
	return NewWithLogger(printer, address, logrus.New())
}

// NewWithLogger is like New with a custom logger.
func NewWithLogger(printer Printer, address string, logger logrus.FieldLogger) *Server {
	return &Server{
		printer: printer,
		address: address,
		log:     logger.WithField("module", "server"),
	}
}

// Start starts the server and blocks accepting connections until Stop is
// called.
func (s *Server) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.acceptConnections()
	return nil
}

// StartAsync starts the server and returns once it is accepting connections.
func (s *Server) StartAsync() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()
	return nil
}

// listen binds the port and brings up the printer connection.
func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.printerMu.Lock()
	if !s.printer.Connected() {
		s.log.Info("connecting printer")
		if err := s.printer.Connect(); err != nil {
			s.printerMu.Unlock()
			listener.Close()
			return fmt.Errorf("failed to connect printer: %w", err)
		}
	}
	s.printerMu.Unlock()

	s.listener = listener
	s.running = true
	s.log.WithField("address", s.address).Info("server listening")
	return nil
}

// acceptConnections handles incoming client connections until the listener
// closes.
func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()

			if !running {
				return
			}
			s.log.WithError(err).Error("accept failed")
			continue
		}

		s.log.WithField("client", conn.RemoteAddr().String()).Info("client connected")
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection forwards one client's stream to the printer.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	client := conn.RemoteAddr().String()
	log := s.log.WithField("client", client)
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Error("read from client failed")
			} else {
				log.Info("client disconnected")
			}
			return
		}
		if n == 0 {
			continue
		}

		s.printerMu.Lock()
		err = s.printer.Raw(buf[:n])
		s.printerMu.Unlock()
		if err != nil {
			log.WithError(err).Error("forward to printer failed")
			return
		}
		log.WithField("bytes", n).Debug("forwarded to printer")
	}
}

// Stop stops the server, waits for active connections to finish and closes
// the printer. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()

	// The connected flag can be stale after a failed reconnect while the
	// transport still holds a handle. Closing a closed printer is a no-op,
	// so close unconditionally.
	s.printerMu.Lock()
	err := s.printer.Close()
	s.printerMu.Unlock()
	if err != nil {
		s.log.WithError(err).Error("closing printer failed")
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

// GetPrinter returns the printer the server forwards to.
func (s *Server) GetPrinter() Printer {
	return s.printer
}
