package lcd

import "axlcd/internal/model"

// The panel sends one ASCII letter per button press.
var keyBytes = map[byte]model.Button{
	'U': model.ButtonUp,
	'D': model.ButtonDown,
	'L': model.ButtonLeft,
	'R': model.ButtonRight,
}

// DecodeKey maps a byte read from the panel to a button. Unknown bytes
// decode to ButtonNone.
func DecodeKey(b byte) model.Button {
	return keyBytes[b]
}
