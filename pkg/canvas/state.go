// Package canvas implements the diagram editor's interaction state machine.
//
// A Controller consumes synthetic pointer and keyboard events, converts
// them through a view.Transform and turns them into model.Command values
// dispatched to the host. All transient editor state lives in EditorState.
package canvas

import (
	"fmt"
	"slices"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/view"
)

// Tool is the active interpretation of pointer input.
type Tool string

const (
	ToolSelect  Tool = "select"
	ToolPan     Tool = "pan"
	ToolConnect Tool = "connect"
)

// IsValid returns true if the tool is a recognized value.
func (t Tool) IsValid() bool {
	switch t {
	case ToolSelect, ToolPan, ToolConnect:
		return true
	}
	return false
}

// Selection is either one node, one link, or a set of nodes. The three
// forms are mutually exclusive.
type Selection struct {
	NodeID string `json:"node_id,omitempty"`
	LinkID string `json:"link_id,omitempty"`
	// Nodes is the multi-select set, kept sorted.
	Nodes []string `json:"nodes,omitempty"`
}

// IsEmpty returns true if nothing is selected.
func (s Selection) IsEmpty() bool {
	return s.NodeID == "" && s.LinkID == "" && len(s.Nodes) == 0
}

// HasNode returns true if the node is selected singly or in the set.
func (s Selection) HasNode(id string) bool {
	if id == "" {
		return false
	}
	if s.NodeID == id {
		return true
	}
	_, found := slices.BinarySearch(s.Nodes, id)
	return found
}

// NodeIDs returns every selected node id.
func (s Selection) NodeIDs() []string {
	if s.NodeID != "" {
		return []string{s.NodeID}
	}
	return slices.Clone(s.Nodes)
}

func (s Selection) clone() Selection {
	s.Nodes = slices.Clone(s.Nodes)
	return s
}

func singleNode(id string) Selection { return Selection{NodeID: id} }
func singleLink(id string) Selection { return Selection{LinkID: id} }

func multi(ids []string) Selection {
	if len(ids) == 0 {
		return Selection{}
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return Selection{Nodes: slices.Compact(ids)}
}

// toggle flips id in the multi-select set. A single selected node seeds
// the set so ctrl-clicking a second node keeps the first.
func (s Selection) toggle(id string) Selection {
	set := slices.Clone(s.Nodes)
	if s.NodeID != "" {
		set = append(set, s.NodeID)
	}
	slices.Sort(set)
	set = slices.Compact(set)
	if i, found := slices.BinarySearch(set, id); found {
		set = slices.Delete(set, i, i+1)
	} else {
		set = slices.Insert(set, i, id)
	}
	return multi(set)
}

func (s Selection) withoutNode(id string) Selection {
	if s.NodeID == id {
		return Selection{}
	}
	if i, found := slices.BinarySearch(s.Nodes, id); found {
		s.Nodes = slices.Delete(slices.Clone(s.Nodes), i, i+1)
		if len(s.Nodes) == 0 {
			s.Nodes = nil
		}
	}
	return s
}

// Drag is an in-progress node drag.
type Drag struct {
	NodeID string `json:"node_id"`
	// Grab is the pointer offset from the node center at press time.
	Grab  model.Position `json:"grab"`
	Moved bool           `json:"moved"`
}

// PanGesture is an in-progress pan, tracked in screen coordinates.
type PanGesture struct {
	LastX float64 `json:"last_x"`
	LastY float64 `json:"last_y"`
}

// Marquee is an in-progress multi-select rectangle in model space.
type Marquee struct {
	Start model.Position `json:"start"`
	End   model.Position `json:"end"`
}

// Bounds returns the axis-aligned min and max corners.
func (m Marquee) Bounds() (lo, hi model.Position) {
	lo = model.Position{X: min(m.Start.X, m.End.X), Y: min(m.Start.Y, m.End.Y)}
	hi = model.Position{X: max(m.Start.X, m.End.X), Y: max(m.Start.Y, m.End.Y)}
	return lo, hi
}

// Contains reports whether p lies inside the rectangle, edges included.
func (m Marquee) Contains(p model.Position) bool {
	lo, hi := m.Bounds()
	return p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y
}

// PendingLink is a connector drag waiting for a target node.
type PendingLink struct {
	SourceID string         `json:"source_id"`
	Polarity model.Polarity `json:"polarity"`
	// Pointer is the live preview endpoint in model space.
	Pointer model.Position `json:"pointer"`
}

// MenuAction is an entry in the context menu.
type MenuAction string

const (
	ActionDuplicate MenuAction = "duplicate"
	ActionDelete    MenuAction = "delete"
)

// TargetKind says what a context menu was opened on.
type TargetKind string

const (
	TargetNode TargetKind = "node"
	TargetLink TargetKind = "link"
)

// ContextMenu is an open right-click menu.
type ContextMenu struct {
	Kind     TargetKind   `json:"kind"`
	TargetID string       `json:"target_id"`
	Actions  []MenuAction `json:"actions"`
	// ScreenX and ScreenY place the menu at the mapped click point.
	ScreenX float64 `json:"screen_x"`
	ScreenY float64 `json:"screen_y"`
}

// EditorState is the complete transient state of one canvas. It is plain
// data and can be serialized or compared in tests.
type EditorState struct {
	Tool       Tool           `json:"tool"`
	View       view.Transform `json:"view"`
	Selection  Selection      `json:"selection"`
	ShowGrid   bool           `json:"show_grid"`
	SnapToGrid bool           `json:"snap_to_grid"`
	GridSize   float64        `json:"grid_size"`
	// LineType is applied to links created by connector drags.
	LineType model.LineType `json:"line_type"`
	// Template is applied to nodes created by double-click.
	Template model.Template `json:"template"`

	Drag    *Drag        `json:"drag,omitempty"`
	Pan     *PanGesture  `json:"pan,omitempty"`
	Marquee *Marquee     `json:"marquee,omitempty"`
	Pending *PendingLink `json:"pending,omitempty"`
	Menu    *ContextMenu `json:"menu,omitempty"`
}

// DefaultGridSize is the snap unit in model coordinates.
const DefaultGridSize = 16

// NewEditorState returns the initial state: select tool, default view,
// grid shown, snap off.
func NewEditorState() EditorState {
	return EditorState{
		Tool:     ToolSelect,
		View:     view.NewTransform(),
		ShowGrid: true,
		GridSize: DefaultGridSize,
		LineType: model.LineStraight,
		Template: model.DefaultTemplate(),
	}
}

// Validate checks the persistent fields of a restored state.
func (s *EditorState) Validate() error {
	if !s.Tool.IsValid() {
		return fmt.Errorf("invalid tool: %q", s.Tool)
	}
	if s.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %v", s.GridSize)
	}
	if s.LineType != "" && !s.LineType.IsValid() {
		return fmt.Errorf("invalid line type: %q", s.LineType)
	}
	if s.View.Zoom < view.WheelMinZoom || s.View.Zoom > view.WheelMaxZoom {
		return fmt.Errorf("zoom %v out of range", s.View.Zoom)
	}
	return nil
}

// Clone returns a deep copy.
func (s EditorState) Clone() EditorState {
	s.Selection = s.Selection.clone()
	if s.Template.Value != nil {
		v := *s.Template.Value
		s.Template.Value = &v
	}
	if s.Drag != nil {
		d := *s.Drag
		s.Drag = &d
	}
	if s.Pan != nil {
		p := *s.Pan
		s.Pan = &p
	}
	if s.Marquee != nil {
		m := *s.Marquee
		s.Marquee = &m
	}
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	if s.Menu != nil {
		m := *s.Menu
		m.Actions = slices.Clone(m.Actions)
		s.Menu = &m
	}
	return s
}

// Busy reports whether a gesture is in progress.
func (s EditorState) Busy() bool {
	return s.Drag != nil || s.Pan != nil || s.Marquee != nil || s.Pending != nil
}
