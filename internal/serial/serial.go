// Package serial owns the raw byte channel to the display: opening the tty,
// putting it in raw mode at a fixed speed, and bounded readiness polling so
// that neither reads nor writes ever block the caller for long.
package serial

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Poll timeouts used by the display. Writes are checked without waiting;
// key reads back off for half a second since the panel is sluggish right
// after a frame and callers poll on a cadence anyway.
const (
	WriteTimeout time.Duration = 0
	ReadTimeout  time.Duration = 500 * time.Millisecond
)

// Sentinel errors for common failure modes.
var (
	ErrDeviceOpen          = errors.New("device open failed")
	ErrConfigure           = errors.New("configure failed")
	ErrPoll                = errors.New("poll failed")
	ErrRead                = errors.New("read failed")
	ErrWrite               = errors.New("write failed")
	ErrClosed              = errors.New("connection is closed")
	ErrUnsupportedSpeed    = errors.New("unsupported speed")
	ErrUnsupportedPlatform = errors.New("serial: not supported on this platform")
)

// OpError records a failed operation on a serial device. Kind is one of
// the sentinel errors above; Err is the underlying OS error.
type OpError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("serial: %s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("serial: %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Readiness is the outcome of a poll that did not fail outright.
type Readiness int

const (
	// Timeout means nothing happened within the wait.
	Timeout Readiness = iota
	// NotReady means poll returned but the requested event bit is not set
	// (e.g. only POLLHUP/POLLERR came back).
	NotReady
	// Ready means the descriptor can be read from or written to.
	Ready
)

func (r Readiness) String() string {
	switch r {
	case Timeout:
		return "timeout"
	case NotReady:
		return "not-ready"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("Readiness(%d)", int(r))
	}
}

// Speed is a symbolic line speed.
type Speed int

const (
	Speed1200   Speed = 1200
	Speed2400   Speed = 2400
	Speed4800   Speed = 4800
	Speed9600   Speed = 9600
	Speed19200  Speed = 19200
	Speed38400  Speed = 38400
	Speed57600  Speed = 57600
	Speed115200 Speed = 115200
)

// SpeedFromBaud maps a numeric baud rate to a Speed.
func SpeedFromBaud(baud int) (Speed, error) {
	switch s := Speed(baud); s {
	case Speed1200, Speed2400, Speed4800, Speed9600,
		Speed19200, Speed38400, Speed57600, Speed115200:
		return s, nil
	default:
		return 0, fmt.Errorf("%w: %d baud", ErrUnsupportedSpeed, baud)
	}
}

// Baud returns the numeric baud rate.
func (s Speed) Baud() int {
	return int(s)
}

// Frequency returns the symbol rate as a physic.Frequency.
func (s Speed) Frequency() physic.Frequency {
	return physic.Frequency(s) * physic.Hertz
}

func (s Speed) String() string {
	return fmt.Sprintf("%d baud", int(s))
}
