package model

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces fresh identifiers for nodes and links.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Sequence issues "1", "2", ... and is used for starter graphs and tests.
type Sequence struct {
	next atomic.Int64
}

// NewSequence returns a sequence whose first id is start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// NewID returns the next number in the sequence.
func (s *Sequence) NewID() string {
	return strconv.FormatInt(s.next.Add(1)-1, 10)
}

// Diagram is the authoritative in-memory causal loop graph. All mutation
// goes through Dispatch (or the typed helpers that wrap it); each mutation
// is atomic and stamps UpdatedAt.
type Diagram struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Links []Link `json:"links" yaml:"links"`
	// Annotations holds per-link side data (delay notes and the like) owned
	// by the properties editor. Entries are dropped with their link.
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`

	changed bool
	rev     uint64
	ids     IDGenerator
	now     func() time.Time
}

// Option configures a Diagram.
type Option func(*Diagram)

// WithIDGenerator sets the id source for new nodes and links.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Diagram) { d.ids = g }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Diagram) { d.now = now }
}

// NewDiagram creates an empty diagram.
func NewDiagram(opts ...Option) *Diagram {
	d := &Diagram{
		Annotations: make(map[string]string),
		ids:         UUIDGenerator{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.CreatedAt = d.now()
	d.UpdatedAt = d.CreatedAt
	return d
}

// FromGraph creates a diagram seeded with a starter graph. The graph must
// already satisfy the diagram invariants: unique node ids, links whose
// endpoints exist, and no duplicate directed pairs.
func FromGraph(nodes []Node, links []Link, opts ...Option) (*Diagram, error) {
	d := NewDiagram(opts...)
	seen := make(map[string]bool, len(nodes))
	for i := range nodes {
		n := nodes[i].Clone()
		if n.Type == "" {
			n.Type = NodeAuxiliary
		}
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		d.Nodes = append(d.Nodes, n)
	}
	pairs := make(map[[2]string]bool, len(links))
	linkIDs := make(map[string]bool, len(links))
	for i := range links {
		l := links[i].Clone()
		if l.LineType == "" {
			l.LineType = LineStraight
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if linkIDs[l.ID] {
			return nil, fmt.Errorf("duplicate link id %q", l.ID)
		}
		if !seen[l.SourceID] || !seen[l.TargetID] {
			return nil, fmt.Errorf("link %s: %w", l.ID, ErrUnknownNode)
		}
		key := [2]string{l.SourceID, l.TargetID}
		if pairs[key] {
			return nil, fmt.Errorf("link %s: %w", l.ID, ErrDuplicateLink)
		}
		pairs[key] = true
		linkIDs[l.ID] = true
		d.Links = append(d.Links, l)
	}
	return d, nil
}

// Changed reports whether the diagram was mutated since creation or the
// last MarkSaved.
func (d *Diagram) Changed() bool {
	return d.changed
}

// MarkSaved clears the changed flag after an external save.
func (d *Diagram) MarkSaved() {
	d.changed = false
}

// Node returns the node with the given id.
func (d *Diagram) Node(id string) (Node, bool) {
	if i := d.nodeIndex(id); i >= 0 {
		return d.Nodes[i], true
	}
	return Node{}, false
}

// Link returns the link with the given id.
func (d *Diagram) Link(id string) (Link, bool) {
	if i := d.linkIndex(id); i >= 0 {
		return d.Links[i], true
	}
	return Link{}, false
}

// Graph returns the current nodes and links. Callers must not modify them.
func (d *Diagram) Graph() ([]Node, []Link) {
	return d.Nodes, d.Links
}

// FindLink returns the link from source to target, if any.
func (d *Diagram) FindLink(sourceID, targetID string) (Link, bool) {
	for _, l := range d.Links {
		if l.SourceID == sourceID && l.TargetID == targetID {
			return l, true
		}
	}
	return Link{}, false
}

// Snapshot returns a deep copy of the diagram that shares no state with d.
func (d *Diagram) Snapshot() *Diagram {
	c := &Diagram{
		Nodes:       make([]Node, len(d.Nodes)),
		Links:       make([]Link, len(d.Links)),
		Annotations: make(map[string]string, len(d.Annotations)),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		changed:     d.changed,
		ids:         d.ids,
		now:         d.now,
	}
	for i, n := range d.Nodes {
		c.Nodes[i] = n.Clone()
	}
	for i, l := range d.Links {
		c.Links[i] = l.Clone()
	}
	for k, v := range d.Annotations {
		c.Annotations[k] = v
	}
	return c
}

// Dispatch applies a command and reports the outcome.
func (d *Diagram) Dispatch(cmd Command) Result {
	switch c := cmd.(type) {
	case CreateNode:
		return d.createNode(c)
	case MoveNode:
		return d.moveNode(c)
	case DeleteNode:
		return d.deleteNode(c)
	case CreateLink:
		return d.createLink(c)
	case DeleteLink:
		return d.deleteLink(c)
	case UpdateNode:
		return d.updateNode(c)
	case UpdateLink:
		return d.updateLink(c)
	}
	return Result{Status: StatusRejected, Command: cmd, Err: ErrInvalidCommand}
}

// AddNode creates a node at pos from tpl and returns it.
func (d *Diagram) AddNode(pos Position, tpl Template) Node {
	res := d.Dispatch(CreateNode{Position: pos, Template: tpl})
	n, _ := d.Node(res.NodeID)
	return n
}

// MoveNode replaces a node's position; unknown ids are ignored.
func (d *Diagram) MoveNode(id string, pos Position) Result {
	return d.Dispatch(MoveNode{ID: id, Position: pos})
}

// DeleteNode removes a node and its incident links; unknown ids are ignored.
func (d *Diagram) DeleteNode(id string) Result {
	return d.Dispatch(DeleteNode{ID: id})
}

// AddLink creates a link unless the same directed pair already exists.
func (d *Diagram) AddLink(sourceID, targetID string, polarity Polarity) Result {
	return d.Dispatch(CreateLink{SourceID: sourceID, TargetID: targetID, Polarity: polarity})
}

// DeleteLink removes a link; unknown ids are ignored.
func (d *Diagram) DeleteLink(id string) Result {
	return d.Dispatch(DeleteLink{ID: id})
}

func (d *Diagram) createNode(c CreateNode) Result {
	tpl := c.Template
	if tpl.Type == "" {
		tpl.Type = DefaultTemplate().Type
	}
	if !tpl.Type.IsValid() {
		return Result{Status: StatusRejected, Command: c, Err: fmt.Errorf("%w: node type %q", ErrInvalidCommand, tpl.Type)}
	}
	if tpl.Label == "" {
		tpl.Label = DefaultTemplate().Label
	}
	id := d.freshID()
	d.Nodes = append(d.Nodes, Node{
		ID:       id,
		Label:    tpl.Label,
		Type:     tpl.Type,
		Position: c.Position,
		Value:    cloneFloat(tpl.Value),
		Category: tpl.Category,
	})
	d.touch()
	return Result{Status: StatusApplied, Command: c, NodeID: id}
}

func (d *Diagram) moveNode(c MoveNode) Result {
	i := d.nodeIndex(c.ID)
	if i < 0 {
		return Result{Status: StatusIgnored, Command: c, NodeID: c.ID}
	}
	d.Nodes[i].Position = c.Position
	d.touch()
	return Result{Status: StatusApplied, Command: c, NodeID: c.ID}
}

func (d *Diagram) deleteNode(c DeleteNode) Result {
	i := d.nodeIndex(c.ID)
	if i < 0 {
		return Result{Status: StatusIgnored, Command: c, NodeID: c.ID}
	}
	var removed []string
	kept := make([]Link, 0, len(d.Links))
	for _, l := range d.Links {
		if l.SourceID == c.ID || l.TargetID == c.ID {
			removed = append(removed, l.ID)
			delete(d.Annotations, l.ID)
			continue
		}
		kept = append(kept, l)
	}
	d.Links = kept
	d.Nodes = append(d.Nodes[:i], d.Nodes[i+1:]...)
	d.touch()
	return Result{Status: StatusApplied, Command: c, NodeID: c.ID, RemovedLinks: removed}
}

func (d *Diagram) createLink(c CreateLink) Result {
	reject := func(err error) Result {
		return Result{Status: StatusRejected, Command: c, Err: err}
	}
	if !c.Polarity.IsValid() {
		return reject(fmt.Errorf("%w: polarity %q", ErrInvalidCommand, c.Polarity))
	}
	lineType := c.LineType
	if lineType == "" {
		lineType = LineStraight
	}
	if !lineType.IsValid() {
		return reject(fmt.Errorf("%w: line type %q", ErrInvalidCommand, c.LineType))
	}
	if d.nodeIndex(c.SourceID) < 0 || d.nodeIndex(c.TargetID) < 0 {
		return reject(ErrUnknownNode)
	}
	if c.SourceID == c.TargetID {
		return reject(ErrSelfLink)
	}
	if existing, ok := d.FindLink(c.SourceID, c.TargetID); ok {
		res := reject(ErrDuplicateLink)
		res.LinkID = existing.ID
		return res
	}
	strength := 1.0
	id := d.freshID()
	d.Links = append(d.Links, Link{
		ID:       id,
		SourceID: c.SourceID,
		TargetID: c.TargetID,
		Polarity: c.Polarity,
		Strength: &strength,
		LineType: lineType,
	})
	d.touch()
	return Result{Status: StatusApplied, Command: c, LinkID: id}
}

func (d *Diagram) deleteLink(c DeleteLink) Result {
	i := d.linkIndex(c.ID)
	if i < 0 {
		return Result{Status: StatusIgnored, Command: c, LinkID: c.ID}
	}
	d.Links = append(d.Links[:i], d.Links[i+1:]...)
	delete(d.Annotations, c.ID)
	d.touch()
	return Result{Status: StatusApplied, Command: c, LinkID: c.ID}
}

func (d *Diagram) updateNode(c UpdateNode) Result {
	i := d.nodeIndex(c.ID)
	if i < 0 {
		return Result{Status: StatusIgnored, Command: c, NodeID: c.ID}
	}
	p := c.Patch
	if p.Type != nil && !p.Type.IsValid() {
		return Result{Status: StatusRejected, Command: c, NodeID: c.ID, Err: fmt.Errorf("%w: node type %q", ErrInvalidCommand, *p.Type)}
	}
	n := &d.Nodes[i]
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Value != nil {
		n.Value = cloneFloat(p.Value)
	}
	if p.Delay != nil {
		n.Delay = cloneFloat(p.Delay)
	}
	if p.Volatility != nil {
		n.Volatility = cloneFloat(p.Volatility)
	}
	if p.Tracked != nil {
		v := *p.Tracked
		n.Tracked = &v
	}
	if p.Category != nil {
		n.Category = *p.Category
	}
	d.touch()
	return Result{Status: StatusApplied, Command: c, NodeID: c.ID}
}

func (d *Diagram) updateLink(c UpdateLink) Result {
	i := d.linkIndex(c.ID)
	if i < 0 {
		return Result{Status: StatusIgnored, Command: c, LinkID: c.ID}
	}
	p := c.Patch
	if p.Polarity != nil && !p.Polarity.IsValid() {
		return Result{Status: StatusRejected, Command: c, LinkID: c.ID, Err: fmt.Errorf("%w: polarity %q", ErrInvalidCommand, *p.Polarity)}
	}
	if p.LineType != nil && !p.LineType.IsValid() {
		return Result{Status: StatusRejected, Command: c, LinkID: c.ID, Err: fmt.Errorf("%w: line type %q", ErrInvalidCommand, *p.LineType)}
	}
	l := &d.Links[i]
	if p.Polarity != nil {
		l.Polarity = *p.Polarity
	}
	if p.Strength != nil {
		l.Strength = cloneFloat(p.Strength)
	}
	if p.Delay != nil {
		l.Delay = cloneFloat(p.Delay)
	}
	if p.LineType != nil {
		l.LineType = *p.LineType
	}
	if p.Label != nil {
		l.Label = *p.Label
	}
	d.touch()
	return Result{Status: StatusApplied, Command: c, LinkID: c.ID}
}

// freshID draws ids until one is not already taken. Starter graphs may use
// ids that collide with a sequence generator.
func (d *Diagram) freshID() string {
	if d.ids == nil {
		d.ids = UUIDGenerator{}
	}
	for {
		id := d.ids.NewID()
		if d.nodeIndex(id) < 0 && d.linkIndex(id) < 0 {
			return id
		}
	}
}

func (d *Diagram) touch() {
	if d.now == nil {
		d.now = time.Now
	}
	d.changed = true
	d.rev++
	d.UpdatedAt = d.now()
}

// Revision counts applied mutations. Unlike UpdatedAt it changes on every
// edit even under a fixed clock.
func (d *Diagram) Revision() uint64 {
	return d.rev
}

func (d *Diagram) nodeIndex(id string) int {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Diagram) linkIndex(id string) int {
	for i := range d.Links {
		if d.Links[i].ID == id {
			return i
		}
	}
	return -1
}
