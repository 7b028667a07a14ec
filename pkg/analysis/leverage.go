package analysis

import (
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
)

// BetweennessMode specifies how betweenness centrality is computed.
type BetweennessMode string

const (
	// BetweennessExact runs Brandes' algorithm from every node.
	BetweennessExact BetweennessMode = "exact"
	// BetweennessApproximate samples pivot nodes and extrapolates.
	BetweennessApproximate BetweennessMode = "approximate"
	// BetweennessSkip ranks by loop membership only.
	BetweennessSkip BetweennessMode = "skip"
)

// LeverageConfig controls leverage point ranking.
type LeverageConfig struct {
	Mode BetweennessMode `json:"mode"`
	// SampleSize is the pivot count for approximate mode.
	SampleSize int   `json:"sample_size"`
	Seed       int64 `json:"seed"`
	// Limit caps the number of ranked points; 0 means no cap.
	Limit int `json:"limit"`
	// MaxLoops stops loop enumeration after this many loops; 0 means no cap.
	MaxLoops int `json:"max_loops"`
}

// DefaultMaxLoops bounds loop enumeration, which grows exponentially on
// densely linked diagrams.
const DefaultMaxLoops = 1000

// DefaultLeverageConfig returns exact betweenness, the top five points and
// at most DefaultMaxLoops loops.
func DefaultLeverageConfig() LeverageConfig {
	return LeverageConfig{Mode: BetweennessExact, Seed: 1, Limit: 5, MaxLoops: DefaultMaxLoops}
}

// LeveragePoint is a variable many loops and influence paths pass through.
type LeveragePoint struct {
	NodeID      string  `json:"node_id"`
	Label       string  `json:"label"`
	Loops       int     `json:"loops"`
	Betweenness float64 `json:"betweenness"`
}

// LeverageResult is the ranked output of LeveragePoints.
type LeverageResult struct {
	Mode       BetweennessMode `json:"mode"`
	SampleSize int             `json:"sample_size,omitempty"`
	Points     []LeveragePoint `json:"points"`
	Capped     bool            `json:"capped,omitempty"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
}

// LeveragePoints ranks loop members by how many loops they sit on, then by
// betweenness. Variables outside every loop are not leverage points.
func (a *Analyzer) LeveragePoints(loops []Loop, cfg LeverageConfig) LeverageResult {
	start := time.Now()
	res := LeverageResult{Mode: cfg.Mode}

	var scores map[int64]float64
	switch cfg.Mode {
	case BetweennessSkip:
	case BetweennessApproximate:
		bc := ApproxBetweenness(a.g, cfg.SampleSize, cfg.Seed)
		scores, res.Mode, res.SampleSize = bc.Scores, bc.Mode, bc.SampleSize
	default:
		res.Mode = BetweennessExact
		scores = network.Betweenness(a.g)
	}

	membership := make(map[string]int)
	for _, l := range loops {
		for _, id := range l.Nodes {
			membership[id]++
		}
	}
	for id, count := range membership {
		res.Points = append(res.Points, LeveragePoint{
			NodeID:      id,
			Label:       a.label(id),
			Loops:       count,
			Betweenness: scores[a.idToNode[id]],
		})
	}
	sort.Slice(res.Points, func(i, j int) bool {
		pi, pj := res.Points[i], res.Points[j]
		if pi.Loops != pj.Loops {
			return pi.Loops > pj.Loops
		}
		if pi.Betweenness != pj.Betweenness {
			return pi.Betweenness > pj.Betweenness
		}
		return pi.NodeID < pj.NodeID
	})
	if cfg.Limit > 0 && len(res.Points) > cfg.Limit {
		res.Points = res.Points[:cfg.Limit]
		res.Capped = true
	}
	res.Elapsed = time.Since(start)
	return res
}

// BetweennessResult contains the result of betweenness computation.
type BetweennessResult struct {
	// Scores maps gonum node ids to betweenness centrality.
	Scores     map[int64]float64
	Mode       BetweennessMode
	SampleSize int
	TotalNodes int
}

// ApproxBetweenness computes approximate betweenness centrality by running
// Brandes' single-source pass from k sampled pivots and scaling by n/k.
// With k >= n it falls back to the exact algorithm.
func ApproxBetweenness(g *simple.DirectedGraph, sampleSize int, seed int64) BetweennessResult {
	nodes := graph.NodesOf(g.Nodes())
	n := len(nodes)
	// gonum's node order is map-backed; sort before sampling.
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })

	if sampleSize < 1 {
		sampleSize = 1
	}
	result := BetweennessResult{
		Scores:     make(map[int64]float64),
		Mode:       BetweennessApproximate,
		SampleSize: sampleSize,
		TotalNodes: n,
	}
	if n == 0 {
		return result
	}
	if sampleSize >= n {
		result.Scores = network.Betweenness(g)
		result.Mode = BetweennessExact
		result.SampleSize = n
		return result
	}

	pivots := sampleNodes(nodes, sampleSize, seed)
	partial := make(map[int64]float64)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())

	for _, pivot := range pivots {
		wg.Add(1)
		go func(p graph.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			local := make(map[int64]float64)
			singleSourceBetweenness(g, p, local)

			mu.Lock()
			for id, v := range local {
				partial[id] += v
			}
			mu.Unlock()
		}(pivot)
	}
	wg.Wait()

	scale := float64(n) / float64(sampleSize)
	for id := range partial {
		partial[id] *= scale
	}
	result.Scores = partial
	return result
}

// sampleNodes returns k nodes chosen by a partial Fisher-Yates shuffle.
func sampleNodes(nodes []graph.Node, k int, seed int64) []graph.Node {
	if k >= len(nodes) {
		return nodes
	}
	shuffled := make([]graph.Node, len(nodes))
	copy(shuffled, nodes)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k]
}

// singleSourceBetweenness adds the dependency contributions of one source
// to bc: a BFS phase counting shortest paths, then accumulation in reverse
// BFS order.
func singleSourceBetweenness(g *simple.DirectedGraph, source graph.Node, bc map[int64]float64) {
	sourceID := source.ID()
	sigma := map[int64]float64{sourceID: 1}
	dist := map[int64]int{sourceID: 0}
	delta := make(map[int64]float64)
	pred := make(map[int64][]int64)

	queue := []int64{sourceID}
	var stack []int64
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		stack = append(stack, v)

		var neighbors []int64
		to := g.From(v)
		for to.Next() {
			neighbors = append(neighbors, to.Node().ID())
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, w := range neighbors {
			if _, seen := dist[w]; !seen {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
				pred[w] = append(pred[w], v)
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		w := stack[i]
		if w == sourceID {
			continue
		}
		for _, v := range pred[w] {
			if sigma[w] > 0 {
				delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
			}
		}
		bc[w] += delta[w]
	}
}
