package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Context names the screen or mode help is shown for.
type Context string

const (
	ContextCanvas   Context = "canvas"
	ContextConnect  Context = "connect"
	ContextPan      Context = "pan"
	ContextLoops    Context = "loops"
	ContextPlayer   Context = "player"
	ContextPicker   Context = "picker"
	ContextDiagrams Context = "diagrams"
)

// ContextHelpContent holds one screen of markdown help per context.
var ContextHelpContent = map[Context]string{
	ContextCanvas:   contextHelpCanvas,
	ContextConnect:  contextHelpConnect,
	ContextPan:      contextHelpPan,
	ContextLoops:    contextHelpLoops,
	ContextPlayer:   contextHelpPlayer,
	ContextPicker:   contextHelpPicker,
	ContextDiagrams: contextHelpDiagrams,
}

// GetContextHelp returns the help content for a context, falling back to
// the generic page.
func GetContextHelp(ctx Context) string {
	if content, ok := ContextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpGeneric
}

// RenderContextHelp renders the help modal. When md is non-nil the content
// is rendered as markdown, otherwise it is shown verbatim.
func RenderContextHelp(ctx Context, theme Theme, md *MarkdownRenderer, width, height int) string {
	content := GetContextHelp(ctx)
	r := theme.Renderer

	modalWidth := 64
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	modalWidth = max(modalWidth, 20)

	body := r.NewStyle().Foreground(theme.Subtext).Render(content)
	if md != nil {
		md.SetWidth(modalWidth - 6)
		if rendered, err := md.Render(content); err == nil {
			body = strings.TrimSpace(rendered)
		}
	}

	var b strings.Builder
	b.WriteString(r.NewStyle().Bold(true).Foreground(theme.Primary).Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(r.NewStyle().Foreground(theme.Muted).Italic(true).Render("? or Esc to close"))

	modal := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}

const contextHelpCanvas = `## Canvas

**Mouse**
  Click          Select node or link
  Ctrl+Click     Toggle node in selection
  Drag node      Move (snaps when snap is on)
  Drag empty     Marquee select
  Shift+Drag     Pan
  Drag a port    Connect (+ or −)
  Double-click   New node at pointer
  Right-click    Duplicate / Delete menu
  Wheel          Zoom

**Keys**
  v / h / c      Select, Pan, Connect tool
  g / s          Toggle grid / snap
  Del            Delete selection
  + - 0          Zoom in, out, reset
  t              Node type for new nodes
  L              Cycle line type
  l              Feedback loops panel
  Ctrl+S         Save`

const contextHelpConnect = `## Connect Tool

  Press a node's **+** or **−** port and release over another node
  to add a link with that polarity.

  Pressing a node body starts a **+** link.

  Self links and duplicates are rejected.
  Esc cancels and returns to Select.`

const contextHelpPan = `## Pan Tool

  Drag anywhere to move the view.
  Wheel zooms around the canvas origin.
  Esc returns to Select.`

const contextHelpLoops = `## Feedback Loops

  j/k            Move between loops
  Enter          Highlight loop on canvas
  Esc            Close panel

  **R** loops reinforce: an even number of − links.
  **B** loops balance: an odd number of − links.`

const contextHelpPlayer = `## Simulation Player

  Space          Play / pause
  ←/→            Step one time step
  Home/End       First / last step
  1 2 3 4        Speed 0.5x 1x 2x 4x
  Tab            Next series in sparkline
  c              Copy CSV to clipboard
  e              Export CSV file
  r              Reload results
  R              Run simulator`

const contextHelpPicker = `## Node Type

  j/k            Move
  Enter          Use for new nodes
  Esc            Cancel`

const contextHelpDiagrams = `## Diagrams

  Type           Filter by name or path
  j/k            Move
  Enter          Open diagram
  Esc            Clear filter / close`

const contextHelpGeneric = `## Help

  ?              Toggle this help
  q              Quit`
