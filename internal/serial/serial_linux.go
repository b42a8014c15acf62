//go:build linux

package serial

import (
	"errors"
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// Conn is an open, raw-mode serial line. fd is -1 once closed.
type Conn struct {
	path string
	fd   int
}

// Open opens path read/write without making it the controlling terminal and
// in non-blocking mode, then applies raw framing at the given speed. No retry
// is attempted; the error carries ErrDeviceOpen or ErrConfigure.
func Open(path string, speed Speed) (*Conn, error) {
	flag, err := speed.termiosFlag()
	if err != nil {
		return nil, &OpError{Op: "open", Path: path, Kind: ErrConfigure, Err: err}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &OpError{Op: "open", Path: path, Kind: ErrDeviceOpen, Err: err}
	}

	c := &Conn{path: path, fd: fd}
	if err := c.configureRaw(flag); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// configureRaw disables all input, output and line processing, selects 8-bit
// characters with the receiver enabled and modem lines ignored, and sets the
// same input and output speed. VMIN/VTIME are zeroed so read never blocks.
func (c *Conn) configureRaw(speedFlag uint32) error {
	t, err := unix.IoctlGetTermios(c.fd, unix.TCGETS)
	if err != nil {
		return &OpError{Op: "tcgetattr", Path: c.path, Kind: ErrConfigure, Err: err}
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speedFlag
	t.Ispeed = speedFlag
	t.Ospeed = speedFlag

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(c.fd, unix.TCSETS, t); err != nil {
		return &OpError{Op: "tcsetattr", Path: c.path, Kind: ErrConfigure, Err: err}
	}
	return nil
}

func (s Speed) termiosFlag() (uint32, error) {
	switch s {
	case Speed1200:
		return unix.B1200, nil
	case Speed2400:
		return unix.B2400, nil
	case Speed4800:
		return unix.B4800, nil
	case Speed9600:
		return unix.B9600, nil
	case Speed19200:
		return unix.B19200, nil
	case Speed38400:
		return unix.B38400, nil
	case Speed57600:
		return unix.B57600, nil
	case Speed115200:
		return unix.B115200, nil
	default:
		return 0, ErrUnsupportedSpeed
	}
}

// PollWritable waits up to timeout for the line to accept output.
func (c *Conn) PollWritable(timeout time.Duration) (Readiness, error) {
	return c.poll(unix.POLLOUT, timeout)
}

// PollReadable waits up to timeout for input to arrive.
func (c *Conn) PollReadable(timeout time.Duration) (Readiness, error) {
	return c.poll(unix.POLLIN, timeout)
}

func (c *Conn) poll(events int16, timeout time.Duration) (Readiness, error) {
	if c.fd < 0 {
		return NotReady, &OpError{Op: "poll", Path: c.path, Kind: ErrPoll, Err: ErrClosed}
	}

	ms := int(timeout / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: events}}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return NotReady, &OpError{Op: "poll", Path: c.path, Kind: ErrPoll, Err: err}
		}
		if n == 0 {
			return Timeout, nil
		}
		if fds[0].Revents&events == 0 {
			return NotReady, nil
		}
		return Ready, nil
	}
}

// Write writes buf in one call. A short count is returned as is.
func (c *Conn) Write(buf []byte) (int, error) {
	if c.fd < 0 {
		return 0, &OpError{Op: "write", Path: c.path, Kind: ErrWrite, Err: ErrClosed}
	}
	n, err := unix.Write(c.fd, buf)
	if err != nil {
		return max(n, 0), &OpError{Op: "write", Path: c.path, Kind: ErrWrite, Err: err}
	}
	return n, nil
}

// ReadByte reads a single byte. With VMIN=0 an empty line reports io.EOF.
func (c *Conn) ReadByte() (byte, error) {
	if c.fd < 0 {
		return 0, &OpError{Op: "read", Path: c.path, Kind: ErrRead, Err: ErrClosed}
	}
	var b [1]byte
	n, err := unix.Read(c.fd, b[:])
	if err != nil {
		return 0, &OpError{Op: "read", Path: c.path, Kind: ErrRead, Err: err}
	}
	if n == 0 {
		return 0, &OpError{Op: "read", Path: c.path, Kind: ErrRead, Err: io.EOF}
	}
	return b[0], nil
}

// Close closes the descriptor. Closing twice is a no-op.
func (c *Conn) Close() error {
	if c == nil || c.fd < 0 {
		return nil
	}
	fd := c.fd
	c.fd = -1
	return unix.Close(fd)
}
