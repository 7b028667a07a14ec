package analysis

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// LoopKind classifies a feedback loop by its overall polarity.
type LoopKind string

const (
	// Reinforcing loops have an even number of negative links.
	Reinforcing LoopKind = "reinforcing"
	// Balancing loops have an odd number of negative links.
	Balancing LoopKind = "balancing"
)

// Symbol returns the conventional loop marker, R or B.
func (k LoopKind) Symbol() string {
	if k == Balancing {
		return "B"
	}
	return "R"
}

// Loop is one elementary feedback loop.
type Loop struct {
	// ID is the conventional loop name, e.g. R1 or B2.
	ID   string   `json:"id"`
	Kind LoopKind `json:"kind"`
	// Nodes lists the loop's variables in link order, starting from the
	// smallest node id. The closing link runs from the last back to the first.
	Nodes []string `json:"nodes"`
	// Links lists the link ids in the same order.
	Links    []string `json:"links"`
	Negative int      `json:"negative_links"`
}

// Len returns the number of links in the loop.
func (l Loop) Len() int {
	return len(l.Nodes)
}

// Contains reports whether the loop passes through nodeID.
func (l Loop) Contains(nodeID string) bool {
	return slices.Contains(l.Nodes, nodeID)
}

// Loops returns every elementary feedback loop, shortest first. Ties are
// broken by node sequence so the output is deterministic. Reinforcing and
// balancing loops are numbered independently in that order.
func (a *Analyzer) Loops() []Loop {
	loops, _ := a.LoopsUpTo(0)
	return loops
}

// LoopsUpTo is Loops with enumeration stopped after limit loops; limit <= 0
// means no cap. The second result is false when loops were left out.
// A capped result keeps the loops found first, ordered as in Loops.
func (a *Analyzer) LoopsUpTo(limit int) ([]Loop, bool) {
	cycles, complete := a.boundedCycles(limit)
	loops := make([]Loop, 0, len(cycles))
	for _, cycle := range cycles {
		if len(cycle) < 2 {
			continue
		}
		ids := make([]string, 0, len(cycle))
		for _, n := range cycle {
			ids = append(ids, a.nodeToID[n])
		}
		loops = append(loops, a.buildLoop(canonical(ids)))
	}

	sort.Slice(loops, func(i, j int) bool {
		if loops[i].Len() != loops[j].Len() {
			return loops[i].Len() < loops[j].Len()
		}
		return strings.Join(loops[i].Nodes, "\x00") < strings.Join(loops[j].Nodes, "\x00")
	})

	counts := map[LoopKind]int{}
	for i := range loops {
		counts[loops[i].Kind]++
		loops[i].ID = fmt.Sprintf("%s%d", loops[i].Kind.Symbol(), counts[loops[i].Kind])
	}
	return loops, complete
}

func (a *Analyzer) buildLoop(ids []string) Loop {
	loop := Loop{Nodes: ids, Links: make([]string, 0, len(ids))}
	for i, from := range ids {
		to := ids[(i+1)%len(ids)]
		l := a.links[[2]string{from, to}]
		loop.Links = append(loop.Links, l.ID)
		if l.Polarity == model.PolarityNegative {
			loop.Negative++
		}
	}
	loop.Kind = Reinforcing
	if loop.Negative%2 == 1 {
		loop.Kind = Balancing
	}
	return loop
}

// canonical rotates a cycle so that its smallest id comes first.
func canonical(ids []string) []string {
	start := 0
	for i, id := range ids {
		if id < ids[start] {
			start = i
		}
	}
	out := make([]string, 0, len(ids))
	out = append(out, ids[start:]...)
	return append(out, ids[:start]...)
}
