package model

import (
	"fmt"
	"math"
)

// Position is a point in model space (not screen space).
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p offset by (dx, dy).
func (p Position) Add(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Sub returns the vector from q to p.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// NodeType categorizes a causal loop variable
type NodeType string

const (
	NodeStock     NodeType = "stock"
	NodeFlow      NodeType = "flow"
	NodeAuxiliary NodeType = "auxiliary"
	NodeConstant  NodeType = "constant"
)

// NodeTypes lists every node type in palette order.
func NodeTypes() []NodeType {
	return []NodeType{NodeStock, NodeFlow, NodeAuxiliary, NodeConstant}
}

// IsValid returns true if the node type is a recognized value
func (t NodeType) IsValid() bool {
	switch t {
	case NodeStock, NodeFlow, NodeAuxiliary, NodeConstant:
		return true
	}
	return false
}

// Polarity indicates whether an increase in the source tends to increase
// (positive) or decrease (negative) the target.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// IsValid returns true if the polarity is a recognized value
func (p Polarity) IsValid() bool {
	return p == PolarityPositive || p == PolarityNegative
}

// Symbol returns the conventional CLD annotation for the polarity.
func (p Polarity) Symbol() string {
	if p == PolarityNegative {
		return "−"
	}
	return "+"
}

// LineType selects how a link is routed between its endpoints.
type LineType string

const (
	LineStraight LineType = "straight"
	LineCurved   LineType = "curved"
	LineElbow    LineType = "elbow"
)

// LineTypes lists the available line-style renderings.
func LineTypes() []LineType {
	return []LineType{LineStraight, LineCurved, LineElbow}
}

// IsValid returns true if the line type is a recognized value
func (l LineType) IsValid() bool {
	switch l {
	case LineStraight, LineCurved, LineElbow:
		return true
	}
	return false
}

// Node is a variable in a causal loop diagram.
type Node struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        NodeType `json:"type" yaml:"type"`
	Position    Position `json:"position" yaml:"position"`
	Value       *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Delay       *float64 `json:"delay,omitempty" yaml:"delay,omitempty"`
	Volatility  *float64 `json:"volatility,omitempty" yaml:"volatility,omitempty"`
	Tracked     *bool    `json:"tracked,omitempty" yaml:"tracked,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// Clone creates a deep copy of the node
func (n Node) Clone() Node {
	clone := n
	clone.Value = cloneFloat(n.Value)
	clone.Delay = cloneFloat(n.Delay)
	clone.Volatility = cloneFloat(n.Volatility)
	if n.Tracked != nil {
		v := *n.Tracked
		clone.Tracked = &v
	}
	return clone
}

// DisplayLabel returns the label, falling back to the id.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Validate checks if the node data is logically valid
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("node %s: invalid type: %q", n.ID, n.Type)
	}
	return nil
}

// Link is a polarity-signed influence between two nodes.
type Link struct {
	ID       string   `json:"id" yaml:"id"`
	SourceID string   `json:"source_id" yaml:"source_id"`
	TargetID string   `json:"target_id" yaml:"target_id"`
	Polarity Polarity `json:"polarity" yaml:"polarity"`
	Strength *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
	Delay    *float64 `json:"delay,omitempty" yaml:"delay,omitempty"`
	LineType LineType `json:"line_type" yaml:"line_type"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Clone creates a deep copy of the link
func (l Link) Clone() Link {
	clone := l
	clone.Strength = cloneFloat(l.Strength)
	clone.Delay = cloneFloat(l.Delay)
	return clone
}

// Validate checks if the link data is logically valid
func (l *Link) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("link ID cannot be empty")
	}
	if l.SourceID == "" || l.TargetID == "" {
		return fmt.Errorf("link %s: source and target are required", l.ID)
	}
	if !l.Polarity.IsValid() {
		return fmt.Errorf("link %s: invalid polarity: %q", l.ID, l.Polarity)
	}
	if l.LineType != "" && !l.LineType.IsValid() {
		return fmt.Errorf("link %s: invalid line type: %q", l.ID, l.LineType)
	}
	return nil
}

// Template supplies the attributes applied to a newly created node.
type Template struct {
	Label    string   `json:"label" yaml:"label"`
	Type     NodeType `json:"type" yaml:"type"`
	Value    *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// DefaultTemplate returns the generic defaults for a new node.
func DefaultTemplate() Template {
	return Template{Label: "New Variable", Type: NodeAuxiliary}
}

// TemplateFor returns the generic template for a node type.
func TemplateFor(t NodeType) Template {
	tpl := DefaultTemplate()
	if t.IsValid() {
		tpl.Type = t
	}
	return tpl
}

// TemplateOf captures a node's attributes so it can be duplicated.
func TemplateOf(n Node) Template {
	return Template{
		Label:    n.Label,
		Type:     n.Type,
		Value:    cloneFloat(n.Value),
		Category: n.Category,
	}
}

// NodePatch is a partial node update; nil fields are left untouched.
type NodePatch struct {
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Type        *NodeType `json:"type,omitempty"`
	Value       *float64  `json:"value,omitempty"`
	Delay       *float64  `json:"delay,omitempty"`
	Volatility  *float64  `json:"volatility,omitempty"`
	Tracked     *bool     `json:"tracked,omitempty"`
	Category    *string   `json:"category,omitempty"`
}

// LinkPatch is a partial link update; nil fields are left untouched.
// Endpoints are deliberately absent: a link's source and target never change.
type LinkPatch struct {
	Polarity *Polarity `json:"polarity,omitempty"`
	Strength *float64  `json:"strength,omitempty"`
	Delay    *float64  `json:"delay,omitempty"`
	LineType *LineType `json:"line_type,omitempty"`
	Label    *string   `json:"label,omitempty"`
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
