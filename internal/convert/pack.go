package convert

import "fmt"

// Panel geometry and wire framing for the AX89063 16x2 character display.
//
// The controller keeps a native 40-column buffer per row, so every frame
// carries two 40-byte rows even though only the first 16 bytes of each are
// visible. The remaining 24 bytes per row are padding: filled with '*' once
// and never touched afterwards. The device ignores them, but they must stay
// on the wire for the framing to line up.
const (
	GridWidth  = 16
	GridHeight = 2
	GridSize   = GridWidth * GridHeight

	WireStride    = 40 // bytes per row on the wire
	PayloadSize   = WireStride * GridHeight
	FrameSize     = 1 + PayloadSize
	FrameLeader   = 0x0D
	PaddingByte   = '*'
	BlankByte     = ' '
	payloadOffset = 1
)

// NewGrid returns a logical grid filled with spaces.
func NewGrid() []byte {
	g := make([]byte, GridSize)
	Blank(g)
	return g
}

// Blank fills a grid with spaces.
func Blank(grid []byte) {
	for i := range grid {
		grid[i] = BlankByte
	}
}

// NewFrame returns a wire frame with the leader byte set and the payload
// padded with '*'.
func NewFrame() []byte {
	f := make([]byte, FrameSize)
	f[0] = FrameLeader
	for i := payloadOffset; i < FrameSize; i++ {
		f[i] = PaddingByte
	}
	return f
}

// FrameOffset returns the index in the wire frame of grid cell (col,row),
// both 0-based.
func FrameOffset(col, row int) int {
	return row*WireStride + col + payloadOffset
}

// PackGrid copies the logical grid row-major into the frame payload. Only
// the visible 16 bytes of each wire row are written; padding is left as is.
func PackGrid(frame, grid []byte) error {
	if len(grid) != GridSize {
		return fmt.Errorf("convert: expected grid of %d bytes, got %d", GridSize, len(grid))
	}
	if len(frame) != FrameSize {
		return fmt.Errorf("convert: expected frame of %d bytes, got %d", FrameSize, len(frame))
	}

	frame[0] = FrameLeader
	for row := 0; row < GridHeight; row++ {
		src := grid[row*GridWidth : (row+1)*GridWidth]
		copy(frame[FrameOffset(0, row):], src)
	}
	return nil
}

// Checksum sums the payload bytes of a frame. It is used only for change
// detection between flushes, so a plain additive sum is enough.
func Checksum(frame []byte) int {
	sum := 0
	if len(frame) <= payloadOffset {
		return sum
	}
	for _, b := range frame[payloadOffset:] {
		sum += int(b)
	}
	return sum
}
