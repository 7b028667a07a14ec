package canvas

import "github.com/vanderheijden86/loopcanvas/pkg/model"

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// Modifiers are the keyboard modifiers held during an event.
type Modifiers struct {
	Ctrl  bool
	Meta  bool
	Shift bool
}

// Platform reports whether the platform modifier (ctrl or cmd) is held.
func (m Modifiers) Platform() bool {
	return m.Ctrl || m.Meta
}

// PointerEvent is a pointer press, move or release in screen coordinates.
type PointerEvent struct {
	X, Y   float64
	Button Button
	Mods   Modifiers
}

// PointerDown handles a button press.
func (c *Controller) PointerDown(ev PointerEvent) {
	// Any click dismisses an open context menu.
	c.state.Menu = nil
	if ev.Button != ButtonPrimary {
		return
	}

	p := c.state.View.ToModel(ev.X, ev.Y)
	nodes, links := c.doc.Graph()

	// Ports work from every tool.
	if n, pol, ok := c.layout.PortAt(nodes, p); ok {
		c.state.Pending = &PendingLink{SourceID: n.ID, Polarity: pol, Pointer: p}
		return
	}

	switch c.state.Tool {
	case ToolPan:
		c.state.Pan = &PanGesture{LastX: ev.X, LastY: ev.Y}

	case ToolConnect:
		if n, ok := c.layout.NodeAt(nodes, p); ok {
			c.state.Pending = &PendingLink{SourceID: n.ID, Polarity: model.PolarityPositive, Pointer: p}
			return
		}
		c.setSelection(Selection{})

	case ToolSelect:
		if ev.Mods.Shift {
			c.state.Pan = &PanGesture{LastX: ev.X, LastY: ev.Y}
			return
		}
		if n, ok := c.layout.NodeAt(nodes, p); ok {
			if ev.Mods.Platform() {
				c.setSelection(c.state.Selection.toggle(n.ID))
				return
			}
			c.setSelection(singleNode(n.ID))
			c.state.Drag = &Drag{NodeID: n.ID, Grab: p.Sub(n.Position)}
			return
		}
		if l, ok := c.layout.LinkAt(nodes, links, p, c.state.View.Zoom); ok {
			c.setSelection(singleLink(l.ID))
			return
		}
		c.state.Marquee = &Marquee{Start: p, End: p}
	}
}

// PointerMove handles pointer motion. Every qualifying move updates state
// immediately.
func (c *Controller) PointerMove(ev PointerEvent) {
	p := c.state.View.ToModel(ev.X, ev.Y)

	if g := c.state.Pan; g != nil {
		c.state.View.PanBy(ev.X-g.LastX, ev.Y-g.LastY)
		g.LastX, g.LastY = ev.X, ev.Y
	}
	if d := c.state.Drag; d != nil {
		res := c.dispatch(model.MoveNode{ID: d.NodeID, Position: c.snap(p.Sub(d.Grab))})
		if res.Status == model.StatusIgnored {
			// The node vanished under the pointer.
			c.state.Drag = nil
		} else {
			d.Moved = true
		}
	}
	if m := c.state.Marquee; m != nil {
		m.End = p
	}
	if pl := c.state.Pending; pl != nil {
		pl.Pointer = p
	}
}

// PointerUp handles a button release and completes the active gesture.
func (c *Controller) PointerUp(ev PointerEvent) {
	p := c.state.View.ToModel(ev.X, ev.Y)
	nodes, _ := c.doc.Graph()

	if pl := c.state.Pending; pl != nil {
		c.state.Pending = nil
		if n, ok := c.layout.NodeAt(nodes, p); ok && n.ID != pl.SourceID {
			res := c.dispatch(model.CreateLink{
				SourceID: pl.SourceID,
				TargetID: n.ID,
				Polarity: pl.Polarity,
				LineType: c.state.LineType,
			})
			if res.OK() {
				c.setSelection(singleLink(res.LinkID))
			}
		}
	}

	if m := c.state.Marquee; m != nil {
		c.state.Marquee = nil
		m.End = p
		var ids []string
		for _, n := range nodes {
			if m.Contains(n.Position) {
				ids = append(ids, n.ID)
			}
		}
		c.setSelection(multi(ids))
	}

	c.state.Drag = nil
	c.state.Pan = nil
}

// DoubleClick creates a node from the current template on empty canvas.
// It only applies to the select tool.
func (c *Controller) DoubleClick(ev PointerEvent) {
	c.state.Menu = nil
	if c.state.Tool != ToolSelect || ev.Button != ButtonPrimary {
		return
	}
	p := c.state.View.ToModel(ev.X, ev.Y)
	nodes, _ := c.doc.Graph()
	if _, ok := c.layout.NodeAt(nodes, p); ok {
		return
	}
	c.dispatch(model.CreateNode{Position: c.snap(p), Template: c.state.Template})
}

// ContextMenu opens the menu for the node or link under the pointer. On
// empty canvas it only closes any open menu.
func (c *Controller) ContextMenu(ev PointerEvent) {
	c.state.Menu = nil
	p := c.state.View.ToModel(ev.X, ev.Y)
	nodes, links := c.doc.Graph()
	sx, sy := c.state.View.ToScreen(p)

	if n, ok := c.layout.NodeAt(nodes, p); ok {
		c.state.Menu = &ContextMenu{
			Kind:     TargetNode,
			TargetID: n.ID,
			Actions:  []MenuAction{ActionDuplicate, ActionDelete},
			ScreenX:  sx,
			ScreenY:  sy,
		}
		return
	}
	if l, ok := c.layout.LinkAt(nodes, links, p, c.state.View.Zoom); ok {
		c.state.Menu = &ContextMenu{
			Kind:     TargetLink,
			TargetID: l.ID,
			Actions:  []MenuAction{ActionDelete},
			ScreenX:  sx,
			ScreenY:  sy,
		}
	}
}

// ChooseMenu runs an action from the open context menu and closes it.
// It returns false if no menu was open or the action is not offered.
func (c *Controller) ChooseMenu(action MenuAction) bool {
	m := c.state.Menu
	c.state.Menu = nil
	if m == nil {
		return false
	}
	offered := false
	for _, a := range m.Actions {
		offered = offered || a == action
	}
	if !offered {
		return false
	}

	switch {
	case action == ActionDelete && m.Kind == TargetNode:
		c.deleteNode(m.TargetID)
	case action == ActionDelete && m.Kind == TargetLink:
		c.deleteLink(m.TargetID)
	case action == ActionDuplicate:
		nodes, _ := c.doc.Graph()
		for _, n := range nodes {
			if n.ID == m.TargetID {
				pos := n.Position.Add(c.offset, c.offset)
				c.dispatch(model.CreateNode{Position: pos, Template: model.TemplateOf(n)})
				break
			}
		}
	}
	return true
}
