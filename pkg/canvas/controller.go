package canvas

import (
	"io"
	"log/slog"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/view"
)

// Document is the host-owned diagram the controller edits. Reads go
// through Graph; every mutation is a dispatched command.
type Document interface {
	model.Dispatcher
	Graph() ([]model.Node, []model.Link)
}

// EventKind identifies a notification sent to the host.
type EventKind int

const (
	// EventSelectNode carries the newly selected node id, or "" when the
	// single node selection was cleared.
	EventSelectNode EventKind = iota
	// EventSelectLink carries the newly selected link id, or "".
	EventSelectLink
	// EventRejected reports a command the model refused.
	EventRejected
)

func (k EventKind) String() string {
	switch k {
	case EventSelectNode:
		return "select-node"
	case EventSelectLink:
		return "select-link"
	case EventRejected:
		return "rejected"
	}
	return "unknown"
}

// Event is a selection change or rejection emitted to the host.
type Event struct {
	Kind   EventKind
	NodeID string
	LinkID string
	// Result is set for EventRejected.
	Result model.Result
}

// Controller is the tool-mode state machine for one canvas.
type Controller struct {
	doc      Document
	state    EditorState
	layout   Layout
	offset   float64
	logger   *slog.Logger
	observer func(Event)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a callback for selection and rejection events.
func WithObserver(f func(Event)) Option {
	return func(c *Controller) { c.observer = f }
}

// WithLayout overrides node geometry used for hit testing.
func WithLayout(l Layout) Option {
	return func(c *Controller) { c.layout = l }
}

// WithState sets the initial editor state.
func WithState(s EditorState) Option {
	return func(c *Controller) { c.state = s.Clone() }
}

// WithDuplicateOffset sets how far a duplicated node is shifted on each axis.
func WithDuplicateOffset(d float64) Option {
	return func(c *Controller) { c.offset = d }
}

// NewController returns a controller editing doc.
func NewController(doc Document, opts ...Option) *Controller {
	c := &Controller{
		doc:    doc,
		state:  NewEditorState(),
		layout: DefaultLayout(),
		offset: DefaultDuplicateOffset,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the editor state.
func (c *Controller) State() EditorState {
	return c.state.Clone()
}

// Layout returns the node geometry used for hit testing.
func (c *Controller) Layout() Layout {
	return c.layout
}

// Graph returns the document's current nodes and links.
func (c *Controller) Graph() ([]model.Node, []model.Link) {
	return c.doc.Graph()
}

// SetTool switches tool mode. Any in-progress connector drag is dropped.
func (c *Controller) SetTool(t Tool) {
	if !t.IsValid() {
		return
	}
	c.state.Tool = t
	c.state.Pending = nil
}

// Escape returns to the select tool and cancels connector drags,
// marquees and the multi-select set.
func (c *Controller) Escape() {
	c.state.Tool = ToolSelect
	c.state.Pending = nil
	c.state.Marquee = nil
	c.state.Menu = nil
	if len(c.state.Selection.Nodes) > 0 {
		c.state.Selection.Nodes = nil
	}
}

// ToggleGrid flips grid visibility.
func (c *Controller) ToggleGrid() { c.state.ShowGrid = !c.state.ShowGrid }

// ToggleSnap flips snap-to-grid.
func (c *Controller) ToggleSnap() { c.state.SnapToGrid = !c.state.SnapToGrid }

// SetTemplate sets the template for nodes created by double-click.
func (c *Controller) SetTemplate(t model.Template) { c.state.Template = t }

// SetLineType sets the line style for links created by connector drags.
func (c *Controller) SetLineType(lt model.LineType) {
	if lt.IsValid() {
		c.state.LineType = lt
	}
}

// SetOrigin records the canvas element's top-left in screen coordinates.
func (c *Controller) SetOrigin(x, y float64) {
	c.state.View.Origin = model.Position{X: x, Y: y}
}

// ZoomIn applies toolbar zoom in.
func (c *Controller) ZoomIn() { c.state.View.ZoomIn() }

// ZoomOut applies toolbar zoom out.
func (c *Controller) ZoomOut() { c.state.View.ZoomOut() }

// ResetView restores default zoom and pan.
func (c *Controller) ResetView() { c.state.View.Reset() }

// Wheel applies a wheel notch.
func (c *Controller) Wheel(deltaY float64) { c.state.View.WheelZoom(deltaY) }

// Select replaces the selection with a single node. An empty id clears it.
func (c *Controller) Select(nodeID string) {
	if nodeID == "" {
		c.setSelection(Selection{})
		return
	}
	c.setSelection(singleNode(nodeID))
}

// SelectLink replaces the selection with a single link.
func (c *Controller) SelectLink(linkID string) {
	if linkID == "" {
		c.setSelection(Selection{})
		return
	}
	c.setSelection(singleLink(linkID))
}

// PendingLine returns the connector preview segment while a connector
// drag is active: from the source port to the pointer.
func (c *Controller) PendingLine() (from, to model.Position, ok bool) {
	p := c.state.Pending
	if p == nil {
		return model.Position{}, model.Position{}, false
	}
	nodes, _ := c.doc.Graph()
	for _, n := range nodes {
		if n.ID == p.SourceID {
			return c.layout.Port(n, p.Polarity), p.Pointer, true
		}
	}
	return model.Position{}, model.Position{}, false
}

// DeleteSelection deletes every selected node or the selected link.
func (c *Controller) DeleteSelection() {
	sel := c.state.Selection
	switch {
	case sel.NodeID != "":
		c.deleteNode(sel.NodeID)
	case sel.LinkID != "":
		c.deleteLink(sel.LinkID)
	default:
		for _, id := range sel.Nodes {
			c.deleteNode(id)
		}
	}
}

func (c *Controller) dispatch(cmd model.Command) model.Result {
	res := c.doc.Dispatch(cmd)
	c.logger.Debug("command dispatched", "command", cmd.Name(), "status", res.Status.String(),
		"node", res.NodeID, "link", res.LinkID)
	if res.Status == model.StatusRejected {
		c.logger.Info("command rejected", "command", cmd.Name(), "error", res.Err)
		c.emit(Event{Kind: EventRejected, NodeID: res.NodeID, LinkID: res.LinkID, Result: res})
	}
	return res
}

func (c *Controller) deleteNode(id string) {
	res := c.dispatch(model.DeleteNode{ID: id})
	if !res.OK() {
		return
	}
	sel := c.state.Selection.withoutNode(id)
	for _, lid := range res.RemovedLinks {
		if sel.LinkID == lid {
			sel = Selection{}
		}
	}
	c.setSelection(sel)
}

func (c *Controller) deleteLink(id string) {
	res := c.dispatch(model.DeleteLink{ID: id})
	if res.OK() && c.state.Selection.LinkID == id {
		c.setSelection(Selection{})
	}
}

// setSelection replaces the selection and notifies the host when the
// single node or single link selection changed.
func (c *Controller) setSelection(s Selection) {
	prev := c.state.Selection
	c.state.Selection = s
	if prev.NodeID != s.NodeID {
		c.emit(Event{Kind: EventSelectNode, NodeID: s.NodeID})
	}
	if prev.LinkID != s.LinkID {
		c.emit(Event{Kind: EventSelectLink, LinkID: s.LinkID})
	}
}

func (c *Controller) emit(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}

func (c *Controller) snap(p model.Position) model.Position {
	if !c.state.SnapToGrid {
		return p
	}
	return view.Snap(p, c.state.GridSize)
}
