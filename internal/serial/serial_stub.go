//go:build !linux

// Stub transport for non-linux targets so the rest of the tree still builds
// on development machines. Every operation fails with ErrUnsupportedPlatform.

package serial

import "time"

type Conn struct{}

func Open(path string, speed Speed) (*Conn, error) {
	return nil, &OpError{Op: "open", Path: path, Kind: ErrDeviceOpen, Err: ErrUnsupportedPlatform}
}

func (c *Conn) PollWritable(time.Duration) (Readiness, error) {
	return NotReady, ErrUnsupportedPlatform
}

func (c *Conn) PollReadable(time.Duration) (Readiness, error) {
	return NotReady, ErrUnsupportedPlatform
}

func (c *Conn) Write([]byte) (int, error) { return 0, ErrUnsupportedPlatform }

func (c *Conn) ReadByte() (byte, error) { return 0, ErrUnsupportedPlatform }

func (c *Conn) Close() error { return nil }
