package model

import "errors"

var (
	// ErrDuplicateLink is returned when a link with the same source and
	// target already exists. The reverse direction is not considered a
	// duplicate.
	ErrDuplicateLink = errors.New("a link between these nodes already exists")
	// ErrUnknownNode is returned when a link references a node that does not exist.
	ErrUnknownNode = errors.New("link endpoint does not exist")
	// ErrSelfLink is returned when a link would connect a node to itself.
	ErrSelfLink = errors.New("link source and target must differ")
	// ErrInvalidCommand is returned for commands carrying invalid attributes.
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is a diagram mutation request. The set is closed: only the types
// in this file implement it.
type Command interface {
	command()
	// Name identifies the command in logs.
	Name() string
}

// CreateNode adds a node at Position using Template's attributes.
type CreateNode struct {
	Position Position
	Template Template
}

// MoveNode replaces a node's position.
type MoveNode struct {
	ID       string
	Position Position
}

// DeleteNode removes a node and every link touching it.
type DeleteNode struct {
	ID string
}

// CreateLink adds a directed link. An empty LineType means straight.
type CreateLink struct {
	SourceID string
	TargetID string
	Polarity Polarity
	LineType LineType
}

// DeleteLink removes a link.
type DeleteLink struct {
	ID string
}

// UpdateNode shallow-merges Patch into an existing node.
type UpdateNode struct {
	ID    string
	Patch NodePatch
}

// UpdateLink shallow-merges Patch into an existing link.
type UpdateLink struct {
	ID    string
	Patch LinkPatch
}

func (CreateNode) command() {}
func (MoveNode) command()   {}
func (DeleteNode) command() {}
func (CreateLink) command() {}
func (DeleteLink) command() {}
func (UpdateNode) command() {}
func (UpdateLink) command() {}

func (CreateNode) Name() string { return "create-node" }
func (MoveNode) Name() string   { return "move-node" }
func (DeleteNode) Name() string { return "delete-node" }
func (CreateLink) Name() string { return "create-link" }
func (DeleteLink) Name() string { return "delete-link" }
func (UpdateNode) Name() string { return "update-node" }
func (UpdateLink) Name() string { return "update-link" }

// ResultStatus reports what a command did to the diagram.
type ResultStatus int

const (
	// StatusApplied means the diagram was mutated.
	StatusApplied ResultStatus = iota
	// StatusIgnored means the command targeted an id that is not present.
	StatusIgnored
	// StatusRejected means a precondition failed and nothing changed.
	StatusRejected
)

func (s ResultStatus) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusIgnored:
		return "ignored"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}

// Result is returned for every dispatched command.
type Result struct {
	Status  ResultStatus
	Command Command
	// NodeID is the created, moved, deleted or updated node.
	NodeID string
	// LinkID is the created, deleted or updated link.
	LinkID string
	// RemovedLinks lists links removed by a cascading node delete.
	RemovedLinks []string
	// Err explains a rejection.
	Err error
}

// OK returns true if the command was applied.
func (r Result) OK() bool {
	return r.Status == StatusApplied
}

// Dispatcher applies diagram commands. *Diagram implements it; hosts may
// wrap it to observe or persist changes.
type Dispatcher interface {
	Dispatch(cmd Command) Result
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(cmd Command) Result

// Dispatch calls f(cmd).
func (f DispatcherFunc) Dispatch(cmd Command) Result {
	return f(cmd)
}
