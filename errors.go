package posprint

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJustify is returned for alignment values other than
	// JustifyLeft, JustifyCenter or JustifyRight.
	ErrInvalidJustify = errors.New("posprint: invalid justify side")

	// ErrInvalidTextSize is returned for size multipliers outside 1-8.
	ErrInvalidTextSize = errors.New("posprint: text size must be between 1 and 8")

	// ErrNoChartValues is returned when a chart is requested for an empty
	// series.
	ErrNoChartValues = errors.New("posprint: chart needs at least one value")

	// ErrNilImage is returned when a nil image is buffered or printed.
	ErrNilImage = errors.New("posprint: nil image")
)

// DriverError reports a driver command that still failed on the second
// attempt, after the connection had been reestablished. The wrapped error is
// the one from the retried attempt.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("posprint: %s failed after reconnect and retry: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// ReconnectError reports that the connection could not be (re)established
// while executing a command, so the command was not retried.
type ReconnectError struct {
	Op  string
	Err error
}

func (e *ReconnectError) Error() string {
	return fmt.Sprintf("posprint: reconnect during %s failed: %v", e.Op, e.Err)
}

func (e *ReconnectError) Unwrap() error { return e.Err }
