package analysis

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// johnson enumerates elementary circuits (Johnson 1975) over node indices,
// stopping once limit circuits have been found. Time between two outputs
// is linear in the graph size, so a limit also bounds the running time.
type johnson struct {
	ids   []int64
	index map[int64]int
	succ  [][]int

	s       int
	inSCC   []bool
	blocked []bool
	b       []map[int]bool
	stack   []int

	limit int
	out   [][]int
}

// boundedCycles returns the elementary cycles of the graph as node id
// sequences without the closing repeat. limit <= 0 means no limit. The
// second result reports whether enumeration ran to completion.
func (a *Analyzer) boundedCycles(limit int) ([][]int64, bool) {
	nodes := graph.NodesOf(a.g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)

	j := &johnson{
		ids:     ids,
		index:   make(map[int64]int, len(ids)),
		succ:    make([][]int, len(ids)),
		inSCC:   make([]bool, len(ids)),
		blocked: make([]bool, len(ids)),
		b:       make([]map[int]bool, len(ids)),
		limit:   limit,
	}
	for i, id := range ids {
		j.index[id] = i
	}
	for i, id := range ids {
		to := graph.NodesOf(a.g.From(id))
		for _, n := range to {
			j.succ[i] = append(j.succ[i], j.index[n.ID()])
		}
		slices.Sort(j.succ[i])
	}

	for j.s = 0; j.s < len(ids) && !j.full(); j.s++ {
		if !j.componentOf(j.s) {
			continue
		}
		for i := range ids {
			j.blocked[i] = false
			j.b[i] = make(map[int]bool)
		}
		j.circuit(j.s)
	}

	cycles := make([][]int64, len(j.out))
	for i, c := range j.out {
		cycle := make([]int64, len(c))
		for k, idx := range c {
			cycle[k] = ids[idx]
		}
		cycles[i] = cycle
	}
	return cycles, !j.full()
}

func (j *johnson) full() bool {
	return j.limit > 0 && len(j.out) >= j.limit
}

// componentOf marks the strongly connected component containing s in the
// subgraph induced by nodes s and above. It reports false when the
// component is a single node.
func (j *johnson) componentOf(s int) bool {
	sub := simple.NewDirectedGraph()
	for i := s; i < len(j.ids); i++ {
		sub.AddNode(simple.Node(i))
	}
	for u := s; u < len(j.ids); u++ {
		for _, v := range j.succ[u] {
			if v >= s {
				sub.SetEdge(sub.NewEdge(simple.Node(u), simple.Node(v)))
			}
		}
	}

	clear(j.inSCC)
	for _, scc := range topo.TarjanSCC(sub) {
		if !slices.ContainsFunc(scc, func(n graph.Node) bool { return n.ID() == int64(s) }) {
			continue
		}
		if len(scc) < 2 {
			return false
		}
		for _, n := range scc {
			j.inSCC[n.ID()] = true
		}
		return true
	}
	return false
}

func (j *johnson) circuit(v int) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true
	for _, w := range j.succ[v] {
		if j.full() {
			break
		}
		if !j.inSCC[w] {
			continue
		}
		if w == j.s {
			j.out = append(j.out, slices.Clone(j.stack))
			found = true
		} else if !j.blocked[w] && j.circuit(w) {
			found = true
		}
	}
	if found {
		j.unblock(v)
	} else {
		for _, w := range j.succ[v] {
			if j.inSCC[w] {
				j.b[w][v] = true
			}
		}
	}
	j.stack = j.stack[:len(j.stack)-1]
	return found
}

func (j *johnson) unblock(u int) {
	j.blocked[u] = false
	for w := range j.b[u] {
		delete(j.b[u], w)
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}
