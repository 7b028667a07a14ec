// Package route computes link geometry between two node positions.
//
// Route is the single source of truth for both the rendered path and the
// label anchor, so curvature can never disagree between the two.
package route

import (
	"fmt"
	"math"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

const (
	// CurveOffset is the control point offset as a fraction of segment length.
	CurveOffset = 0.2
	// LabelOffset is the curved label offset as a fraction of segment length.
	LabelOffset = 0.1
)

// Geometry is the routed shape of one link.
type Geometry struct {
	// Path is an SVG path string in model coordinates.
	Path string
	// Points are the polyline vertices: two for straight, four for elbow,
	// and the endpoints around Control for curved.
	Points []model.Position
	// Control is the quadratic control point of a curved link.
	Control *model.Position
	Label   model.Position
}

// Route returns the geometry for a link from source to target. Unknown line
// types route as straight.
func Route(source, target model.Position, lineType model.LineType) Geometry {
	mid := model.Position{X: (source.X + target.X) / 2, Y: (source.Y + target.Y) / 2}

	switch lineType {
	case model.LineCurved:
		dx := target.X - source.X
		dy := target.Y - source.Y
		// Offsets run along the perpendicular (-dy, dx).
		ctrl := model.Position{X: mid.X - dy*CurveOffset, Y: mid.Y + dx*CurveOffset}
		label := model.Position{X: mid.X - dy*LabelOffset, Y: mid.Y + dx*LabelOffset}
		return Geometry{
			Path:    fmt.Sprintf("M %s Q %s %s", pt(source), pt(ctrl), pt(target)),
			Points:  []model.Position{source, target},
			Control: &ctrl,
			Label:   label,
		}
	case model.LineElbow:
		a := model.Position{X: mid.X, Y: source.Y}
		b := model.Position{X: mid.X, Y: target.Y}
		return Geometry{
			Path:   fmt.Sprintf("M %s L %s L %s L %s", pt(source), pt(a), pt(b), pt(target)),
			Points: []model.Position{source, a, b, target},
			Label:  mid,
		}
	default:
		return Geometry{
			Path:   fmt.Sprintf("M %s L %s", pt(source), pt(target)),
			Points: []model.Position{source, target},
			Label:  mid,
		}
	}
}

// Sample returns points along the geometry, n per segment for polylines and
// n+1 along a quadratic curve. The first and last points are the endpoints.
func (g Geometry) Sample(n int) []model.Position {
	if n < 1 {
		n = 1
	}
	if len(g.Points) < 2 {
		return append([]model.Position(nil), g.Points...)
	}
	if g.Control != nil {
		p0, p1, p2 := g.Points[0], *g.Control, g.Points[len(g.Points)-1]
		out := make([]model.Position, 0, n+1)
		for i := 0; i <= n; i++ {
			t := float64(i) / float64(n)
			u := 1 - t
			out = append(out, model.Position{
				X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
				Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
			})
		}
		return out
	}
	out := []model.Position{g.Points[0]}
	for i := 1; i < len(g.Points); i++ {
		a, b := g.Points[i-1], g.Points[i]
		for k := 1; k <= n; k++ {
			t := float64(k) / float64(n)
			out = append(out, model.Position{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
		}
	}
	return out
}

// Distance is the shortest distance from p to the routed path.
func (g Geometry) Distance(p model.Position) float64 {
	pts := g.Points
	if g.Control != nil {
		pts = g.Sample(32)
	}
	if len(pts) == 0 {
		return math.Inf(1)
	}
	if len(pts) == 1 {
		return p.Distance(pts[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		best = math.Min(best, segmentDistance(p, pts[i-1], pts[i]))
	}
	return best
}

// EndDirection returns the unit direction of the path as it arrives at the
// target, used to orient arrowheads. A zero-length path returns (1, 0).
func (g Geometry) EndDirection() (float64, float64) {
	if len(g.Points) < 2 {
		return 1, 0
	}
	end := g.Points[len(g.Points)-1]
	from := end
	// Elbow paths can have a zero-length final leg.
	for i := len(g.Points) - 2; i >= 0 && from == end; i-- {
		from = g.Points[i]
	}
	if g.Control != nil && *g.Control != end {
		from = *g.Control
	}
	dx, dy := end.X-from.X, end.Y-from.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return 1, 0
	}
	return dx / l, dy / l
}

func segmentDistance(p, a, b model.Position) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Distance(model.Position{X: a.X + t*dx, Y: a.Y + t*dy})
}

func pt(p model.Position) string {
	return num(p.X) + " " + num(p.Y)
}

func num(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
