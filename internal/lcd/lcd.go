// Package lcd drives the AX89063 16x2 character display found on the front
// panel of some network appliances. The panel hangs off a serial line, takes
// the whole screen as one 81-byte frame and reports its four buttons as
// single ASCII bytes on the same line.
//
// A Session keeps the intended screen contents in a logical grid. Writes
// only touch the grid; Flush encodes it into a wire frame and sends it if it
// changed since the last transmission. Clears are applied lazily so that a
// clear followed by new content goes out as a single frame: every frame
// written makes the panel noticeably slower to report key presses.
package lcd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"

	"axlcd/internal/config"
	"axlcd/internal/convert"
	appLog "axlcd/internal/log"
	"axlcd/internal/model"
	"axlcd/internal/serial"
)

// Fixed panel geometry.
const (
	Width      = convert.GridWidth
	Height     = convert.GridHeight
	CellWidth  = 5
	CellHeight = 7
)

// DefaultSpeed is the only line speed the panel understands.
const DefaultSpeed = serial.Speed9600

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("lcd: session is closed")

// ErrPartialWrite marks a frame the line accepted only part of. It is only
// ever logged; the frame still counts as sent.
var ErrPartialWrite = errors.New("lcd: partial frame write")

// Port is the byte channel a Session talks through. *serial.Conn
// implements it.
type Port interface {
	PollWritable(timeout time.Duration) (serial.Readiness, error)
	PollReadable(timeout time.Duration) (serial.Readiness, error)
	Write(p []byte) (int, error)
	ReadByte() (byte, error)
	Close() error
}

// Opener opens a fresh Port. It is called once at construction and again
// on every Reopen.
type Opener func() (Port, error)

// Config is the part of the host configuration the driver reads.
type Config interface {
	DevicePath() string
	BaudRate() int
}

// Driver is the contract the display server holds a session through. All
// calls are synchronous.
type Driver interface {
	conn.Resource

	Close() error
	Width() int
	Height() int
	CellWidth() int
	CellHeight() int
	Clear()
	WriteString(x, y int, text string)
	WriteChar(x, y int, ch byte)
	Flush()
	PollKey() model.Button
}

var _ Driver = (*Session)(nil)

// Session is one open display. All methods are serialized behind a single
// lock; the checksum of the last frame sent lives here so that separate
// sessions never suppress each other's writes.
type Session struct {
	mu sync.Mutex

	name string
	log  appLog.Logger
	open Opener
	port Port

	grid         []byte
	frame        []byte
	pendingClear bool

	sent         bool
	lastChecksum int

	// faults counts consecutive key polls that failed or saw a hung-up line.
	faults int
}

// Init reads the device from conf, opens and configures the serial line and
// returns a ready Session. Any failure aborts construction.
func Init(conf Config, logger appLog.Logger) (*Session, error) {
	if logger == nil {
		logger = appLog.Default()
	}

	device := conf.DevicePath()
	if device == "" {
		device = config.DefaultDevice
	}
	logger.Info("lcd: using device", "device", device, "rate", DefaultSpeed.Frequency())

	if speed, err := serial.SpeedFromBaud(conf.BaudRate()); err != nil || speed != DefaultSpeed {
		logger.Warn("lcd: illegal speed in config, using default",
			"speed", conf.BaudRate(),
			"default", DefaultSpeed.Frequency(),
		)
	}

	open := func() (Port, error) {
		c, err := serial.Open(device, DefaultSpeed)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewSession(device, open, logger)
}

// NewSession builds a Session on top of an arbitrary Opener.
func NewSession(name string, open Opener, logger appLog.Logger) (*Session, error) {
	if open == nil {
		return nil, errors.New("lcd: nil opener")
	}
	if logger == nil {
		logger = appLog.Nop()
	}

	port, err := open()
	if err != nil {
		return nil, fmt.Errorf("lcd: open %s: %w", name, err)
	}

	return &Session{
		name:  name,
		log:   appLog.With(logger, "device", name),
		open:  open,
		port:  port,
		grid:  convert.NewGrid(),
		frame: convert.NewFrame(),
	}, nil
}

// String implements conn.Resource.
func (s *Session) String() string {
	return "ax89063(" + s.name + ")"
}

// Halt blanks the panel. It implements conn.Resource and is meant for
// shutdown paths.
func (s *Session) Halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrClosed
	}
	s.pendingClear = true
	s.flushLocked()
	return nil
}

func (s *Session) Width() int      { return Width }
func (s *Session) Height() int     { return Height }
func (s *Session) CellWidth() int  { return CellWidth }
func (s *Session) CellHeight() int { return CellHeight }

// Geometry returns all four size accessors at once.
func (s *Session) Geometry() model.Geometry {
	return model.Geometry{
		Width:      Width,
		Height:     Height,
		CellWidth:  CellWidth,
		CellHeight: CellHeight,
	}
}

// Clear schedules a blank screen. The grid is wiped on the next write or
// flush, before that call's own content is applied.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingClear = true
}

func (s *Session) materializePendingClear() {
	if !s.pendingClear {
		return
	}
	convert.Blank(s.grid)
	s.pendingClear = false
}

// WriteString places text at 1-based column x of row y. Rows off screen are
// ignored. Characters left of column 1 are skipped but still consume their
// position, and the text is cut at the right edge.
func (s *Session) WriteString(x, y int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grid == nil {
		return
	}
	s.materializePendingClear()

	x--
	y--
	if y < 0 || y >= Height {
		return
	}

	row := s.grid[y*Width : (y+1)*Width]
	for i := 0; i < len(text) && x < Width; i, x = i+1, x+1 {
		if x >= 0 {
			row[x] = text[i]
		}
	}
}

// WriteChar places one character at 1-based (x, y) if it is on screen.
func (s *Session) WriteChar(x, y int, ch byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grid == nil {
		return
	}
	s.materializePendingClear()

	x--
	y--
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return
	}
	s.grid[y*Width+x] = ch
}

// Flush sends the grid to the panel if the line is writable right now and
// the frame differs from the last one sent. Failures are logged and the
// cycle is skipped; the next Flush tries again.
func (s *Session) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Session) flushLocked() {
	if s.port == nil {
		return
	}
	s.materializePendingClear()

	if err := convert.PackGrid(s.frame, s.grid); err != nil {
		s.log.Error("lcd: pack frame", err)
		return
	}

	ready, err := s.port.PollWritable(serial.WriteTimeout)
	if err != nil {
		s.log.Error("lcd: flush: poll failed", err)
		return
	}
	switch ready {
	case serial.Timeout:
		return
	case serial.NotReady:
		s.log.Info("lcd: flush: device not writable, skipping frame")
		return
	}

	sum := convert.Checksum(s.frame)
	if s.sent && sum == s.lastChecksum {
		return
	}

	n, err := s.port.Write(s.frame)
	if err != nil {
		s.log.Error("lcd: flush: write failed", err, "written", n)
		return
	}
	if n != len(s.frame) {
		s.log.Warn("lcd: flush: short write",
			"err", ErrPartialWrite,
			"written", n,
			"want", len(s.frame),
		)
	}
	s.lastChecksum = sum
	s.sent = true
	s.log.Debug("lcd: frame sent", "checksum", sum)
}

// PollKey waits up to half a second for a key byte and decodes it. Anything
// other than a clean single-byte read of a known key yields ButtonNone.
func (s *Session) PollKey() model.Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		if s.grid != nil {
			// Open but without a line, e.g. after a failed Reopen.
			s.faults++
		}
		return model.ButtonNone
	}

	ready, err := s.port.PollReadable(serial.ReadTimeout)
	if err != nil {
		s.faults++
		s.log.Error("lcd: get key: poll failed", err)
		return model.ButtonNone
	}
	switch ready {
	case serial.Timeout:
		s.faults = 0
		return model.ButtonNone
	case serial.NotReady:
		s.faults++
		return model.ButtonNone
	}

	b, err := s.port.ReadByte()
	if err != nil {
		s.faults++
		s.log.Error("lcd: get key: read failed", err)
		return model.ButtonNone
	}
	s.faults = 0

	key := DecodeKey(b)
	if key != model.ButtonNone {
		s.log.Debug("lcd: key", "key", key)
	}
	return key
}

// LineFaults reports how many key polls in a row failed, hit a hung-up
// line or found no line at all. Any clean poll resets it.
func (s *Session) LineFaults() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// Reopen closes the line and opens it again. The new connection starts with
// no remembered checksum, so the next Flush always transmits.
func (s *Session) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grid == nil {
		return ErrClosed
	}

	if s.port != nil {
		if err := s.port.Close(); err != nil {
			s.log.Error("lcd: reopen: close failed", err)
		}
		s.port = nil
	}
	s.sent = false
	s.lastChecksum = 0
	s.faults = 0

	port, err := s.open()
	if err != nil {
		return fmt.Errorf("lcd: reopen %s: %w", s.name, err)
	}
	s.port = port
	return nil
}

// Close releases the buffers and the serial line. It is safe to call more
// than once and on a nil Session.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grid = nil
	s.frame = nil
	s.pendingClear = false
	s.sent = false
	s.lastChecksum = 0
	s.faults = 0

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Cell returns the character that will be shown at 1-based (x, y), taking a
// pending clear into account. ok is false off screen or after Close.
func (s *Session) Cell(x, y int) (ch byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x--
	y--
	if s.grid == nil || x < 0 || x >= Width || y < 0 || y >= Height {
		return 0, false
	}
	if s.pendingClear {
		return convert.BlankByte, true
	}
	return s.grid[y*Width+x], true
}

// Rows returns the screen contents as one string per row.
func (s *Session) Rows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grid == nil {
		return nil
	}
	rows := make([]string, Height)
	for y := range rows {
		if s.pendingClear {
			rows[y] = string(convert.NewGrid()[:Width])
			continue
		}
		rows[y] = string(s.grid[y*Width : (y+1)*Width])
	}
	return rows
}

// Frame returns a copy of the most recently encoded wire frame.
func (s *Session) Frame() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	return append([]byte(nil), s.frame...)
}
