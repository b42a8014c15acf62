package model

// Button is a decoded front-panel key press. The zero value means no key.
type Button int

const (
	ButtonNone Button = iota
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// String returns the key name the display server expects, or "" for none.
func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "Up"
	case ButtonDown:
		return "Down"
	case ButtonLeft:
		return "Left"
	case ButtonRight:
		return "Right"
	default:
		return ""
	}
}

// Geometry describes the character grid and the pixel size of one glyph cell.
type Geometry struct {
	Width      int // characters per row
	Height     int // rows
	CellWidth  int // pixels per glyph, horizontal
	CellHeight int // pixels per glyph, vertical
}

// Cells returns the number of characters on screen.
func (g Geometry) Cells() int {
	return g.Width * g.Height
}
