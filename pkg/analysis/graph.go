// Package analysis finds and classifies feedback loops in a causal loop
// diagram and ranks the variables that most of them pass through.
package analysis

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// Analyzer holds a gonum view of one diagram.
type Analyzer struct {
	g        *simple.DirectedGraph
	idToNode map[string]int64
	nodeToID map[int64]string
	nodes    map[string]model.Node
	// links is keyed by directed (source, target) pair.
	links map[[2]string]model.Link
}

// NewAnalyzer builds the directed influence graph. Self-links and links
// with unknown endpoints are skipped.
func NewAnalyzer(nodes []model.Node, links []model.Link) *Analyzer {
	a := &Analyzer{
		g:        simple.NewDirectedGraph(),
		idToNode: make(map[string]int64, len(nodes)),
		nodeToID: make(map[int64]string, len(nodes)),
		nodes:    make(map[string]model.Node, len(nodes)),
		links:    make(map[[2]string]model.Link, len(links)),
	}
	for i, n := range nodes {
		if _, dup := a.idToNode[n.ID]; dup {
			continue
		}
		id := int64(i)
		a.g.AddNode(simple.Node(id))
		a.idToNode[n.ID] = id
		a.nodeToID[id] = n.ID
		a.nodes[n.ID] = n
	}
	for _, l := range links {
		from, ok1 := a.idToNode[l.SourceID]
		to, ok2 := a.idToNode[l.TargetID]
		if !ok1 || !ok2 || from == to {
			continue
		}
		key := [2]string{l.SourceID, l.TargetID}
		if _, dup := a.links[key]; dup {
			continue
		}
		a.links[key] = l
		a.g.SetEdge(a.g.NewEdge(simple.Node(from), simple.Node(to)))
	}
	return a
}

// NodeCount returns the number of variables in the graph.
func (a *Analyzer) NodeCount() int {
	return len(a.nodes)
}

// LinkCount returns the number of influence edges in the graph.
func (a *Analyzer) LinkCount() int {
	return len(a.links)
}

// label resolves a node id to its display label.
func (a *Analyzer) label(id string) string {
	if n, ok := a.nodes[id]; ok {
		return n.DisplayLabel()
	}
	return id
}
