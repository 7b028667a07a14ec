package canvas

import (
	"math"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/route"
)

// Default node box and affordance sizes in model units.
const (
	DefaultNodeWidth       = 120
	DefaultNodeHeight      = 48
	DefaultPortRadius      = 8
	DefaultDuplicateOffset = 20
	// DefaultLinkTolerance is the link hit distance in screen pixels.
	DefaultLinkTolerance = 6
)

// Layout describes how nodes occupy model space. Node positions are box
// centers. Each node carries two connector ports on its right edge: the
// positive port in the upper quarter and the negative port in the lower.
type Layout struct {
	NodeWidth     float64
	NodeHeight    float64
	PortRadius    float64
	LinkTolerance float64
}

// DefaultLayout returns the standard node geometry.
func DefaultLayout() Layout {
	return Layout{
		NodeWidth:     DefaultNodeWidth,
		NodeHeight:    DefaultNodeHeight,
		PortRadius:    DefaultPortRadius,
		LinkTolerance: DefaultLinkTolerance,
	}
}

// Bounds returns the top-left and bottom-right corners of a node's box.
func (l Layout) Bounds(n model.Node) (lo, hi model.Position) {
	hw, hh := l.NodeWidth/2, l.NodeHeight/2
	return n.Position.Add(-hw, -hh), n.Position.Add(hw, hh)
}

// Port returns the center of a node's connector port for the polarity.
func (l Layout) Port(n model.Node, polarity model.Polarity) model.Position {
	dy := -l.NodeHeight / 4
	if polarity == model.PolarityNegative {
		dy = -dy
	}
	return n.Position.Add(l.NodeWidth/2, dy)
}

// NodeAt returns the topmost node whose box contains p. Later nodes are
// drawn above earlier ones.
func (l Layout) NodeAt(nodes []model.Node, p model.Position) (model.Node, bool) {
	for i := len(nodes) - 1; i >= 0; i-- {
		lo, hi := l.Bounds(nodes[i])
		if p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y {
			return nodes[i], true
		}
	}
	return model.Node{}, false
}

// PortAt returns the node and polarity of the port under p.
func (l Layout) PortAt(nodes []model.Node, p model.Position) (model.Node, model.Polarity, bool) {
	for i := len(nodes) - 1; i >= 0; i-- {
		for _, pol := range []model.Polarity{model.PolarityPositive, model.PolarityNegative} {
			if p.Distance(l.Port(nodes[i], pol)) <= l.PortRadius {
				return nodes[i], pol, true
			}
		}
	}
	return model.Node{}, "", false
}

// LinkAt returns the link whose routed path passes closest to p within
// the tolerance, which is given in screen pixels and scaled by zoom.
func (l Layout) LinkAt(nodes []model.Node, links []model.Link, p model.Position, zoom float64) (model.Link, bool) {
	if zoom <= 0 {
		zoom = 1
	}
	index := make(map[string]model.Position, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n.Position
	}
	tol := l.LinkTolerance / zoom
	best := math.Inf(1)
	var hit model.Link
	for _, link := range links {
		src, ok1 := index[link.SourceID]
		tgt, ok2 := index[link.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		if d := route.Route(src, tgt, link.LineType).Distance(p); d <= tol && d < best {
			best, hit = d, link
		}
	}
	return hit, !math.IsInf(best, 1)
}
