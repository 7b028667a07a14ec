package ui

import "github.com/charmbracelet/bubbles/key"

// editorKeyMap holds the editor bindings handled outside the canvas
// controller. Tool, grid and delete keys go to canvas.Controller.HandleKey.
type editorKeyMap struct {
	Quit      key.Binding
	Save      key.Binding
	Help      key.Binding
	Template  key.Binding
	LineType  key.Binding
	Loops     key.Binding
	Copy      key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	ZoomReset key.Binding
	Up        key.Binding
	Down      key.Binding
	Enter     key.Binding
	Esc       key.Binding

	// Canvas keys, listed for help only.
	Tools  key.Binding
	Grid   key.Binding
	Delete key.Binding
}

var editorKeys = editorKeyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Template:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "node type")),
	LineType:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "line type")),
	Loops:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "loops")),
	Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
	ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
	ZoomReset: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset view")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
	Esc:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

	Tools:  key.NewBinding(key.WithKeys("v", "h", "c"), key.WithHelp("v/h/c", "select/pan/connect")),
	Grid:   key.NewBinding(key.WithKeys("g", "s"), key.WithHelp("g/s", "grid/snap")),
	Delete: key.NewBinding(key.WithKeys("delete", "backspace"), key.WithHelp("del", "delete")),
}

func (k editorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tools, k.Delete, k.Template, k.Loops, k.Save, k.Help, k.Quit}
}

func (k editorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tools, k.Grid, k.Delete, k.Template, k.LineType},
		{k.ZoomIn, k.ZoomOut, k.ZoomReset, k.Loops, k.Copy},
		{k.Save, k.Help, k.Quit},
	}
}

// playerKeyMap holds the simulation player bindings.
type playerKeyMap struct {
	Quit    key.Binding
	Toggle  key.Binding
	Back    key.Binding
	Forward key.Binding
	First   key.Binding
	Last    key.Binding
	Speed   key.Binding
	Series  key.Binding
	Copy    key.Binding
	Export  key.Binding
	Reload  key.Binding
	Run     key.Binding
	Help    key.Binding
}

var playerKeys = playerKeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Back:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "step back")),
	Forward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "step")),
	First:   key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "first")),
	Last:    key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "last")),
	Speed:   key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "speed")),
	Series:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "series")),
	Copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy csv")),
	Export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export csv")),
	Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Run:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "run simulator")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

func (k playerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Back, k.Forward, k.Speed, k.Series, k.Export, k.Quit}
}

func (k playerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Back, k.Forward, k.First, k.Last},
		{k.Speed, k.Series, k.Copy, k.Export, k.Reload},
		{k.Run, k.Help, k.Quit},
	}
}
