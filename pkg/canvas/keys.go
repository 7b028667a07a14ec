package canvas

import "strings"

// Key names understood by HandleKey besides single characters.
const (
	KeyEscape    = "esc"
	KeyDelete    = "delete"
	KeyBackspace = "backspace"
)

// KeyEvent is a key press while the canvas has focus. Key is a single
// character or one of the Key* names.
type KeyEvent struct {
	Key  string
	Mods Modifiers
}

// HandleKey applies the canvas keyboard shortcuts and reports whether the
// key was consumed.
func (c *Controller) HandleKey(ev KeyEvent) bool {
	key := strings.ToLower(ev.Key)
	if key == "escape" {
		key = KeyEscape
	}

	if ev.Mods.Platform() {
		switch key {
		case "+", "=":
			c.ZoomIn()
		case "-", "_":
			c.ZoomOut()
		case "0":
			c.ResetView()
		default:
			return false
		}
		return true
	}

	switch key {
	case "v":
		c.SetTool(ToolSelect)
	case "h":
		c.SetTool(ToolPan)
	case "c":
		c.SetTool(ToolConnect)
	case "g":
		c.ToggleGrid()
	case "s":
		c.ToggleSnap()
	case KeyEscape:
		c.Escape()
	case KeyDelete, KeyBackspace:
		c.DeleteSelection()
	default:
		return false
	}
	return true
}
