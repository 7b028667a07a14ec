package analysis

import (
	"sort"
	"time"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// LoopBreak suggests a link whose removal or weakening affects the most
// loops.
type LoopBreak struct {
	LinkID   string         `json:"link_id"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Polarity model.Polarity `json:"polarity"`
	// InLoops lists the ids of loops that use the link.
	InLoops []string `json:"in_loops"`
}

// Impact returns the number of loops the link participates in.
func (b LoopBreak) Impact() int {
	return len(b.InLoops)
}

// LoopBreaks ranks links shared by more than one loop, most shared first.
func (a *Analyzer) LoopBreaks(loops []Loop, limit int) []LoopBreak {
	byLink := make(map[string]*LoopBreak)
	for _, loop := range loops {
		for i, lid := range loop.Links {
			b, ok := byLink[lid]
			if !ok {
				from := loop.Nodes[i]
				to := loop.Nodes[(i+1)%len(loop.Nodes)]
				b = &LoopBreak{LinkID: lid, SourceID: from, TargetID: to, Polarity: a.links[[2]string{from, to}].Polarity}
				byLink[lid] = b
			}
			b.InLoops = append(b.InLoops, loop.ID)
		}
	}

	var ranked []LoopBreak
	for _, b := range byLink {
		if b.Impact() > 1 {
			ranked = append(ranked, *b)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Impact() != ranked[j].Impact() {
			return ranked[i].Impact() > ranked[j].Impact()
		}
		if ranked[i].SourceID != ranked[j].SourceID {
			return ranked[i].SourceID < ranked[j].SourceID
		}
		return ranked[i].TargetID < ranked[j].TargetID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Report is the full loop analysis of one diagram.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Nodes       int            `json:"nodes"`
	Links       int            `json:"links"`
	Reinforcing int            `json:"reinforcing"`
	Balancing   int            `json:"balancing"`
	Loops       []Loop         `json:"loops"`
	// Truncated is set when enumeration stopped at LeverageConfig.MaxLoops.
	Truncated   bool           `json:"truncated,omitempty"`
	Leverage    LeverageResult `json:"leverage"`
	Breaks      []LoopBreak    `json:"loop_breaks"`
}

// Analyze runs loop detection, leverage ranking and loop-break suggestions.
func Analyze(nodes []model.Node, links []model.Link, cfg LeverageConfig) *Report {
	a := NewAnalyzer(nodes, links)
	loops, complete := a.LoopsUpTo(cfg.MaxLoops)
	r := &Report{
		GeneratedAt: time.Now(),
		Nodes:       a.NodeCount(),
		Links:       a.LinkCount(),
		Loops:       loops,
		Truncated:   !complete,
		Leverage:    a.LeveragePoints(loops, cfg),
		Breaks:      a.LoopBreaks(loops, cfg.Limit),
	}
	for _, l := range loops {
		if l.Kind == Balancing {
			r.Balancing++
		} else {
			r.Reinforcing++
		}
	}
	return r
}

// LoopsThrough returns the loops that pass through nodeID.
func (r *Report) LoopsThrough(nodeID string) []Loop {
	var out []Loop
	for _, l := range r.Loops {
		if l.Contains(nodeID) {
			out = append(out, l)
		}
	}
	return out
}
