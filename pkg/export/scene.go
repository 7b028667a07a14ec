// Package export renders diagrams to SVG, PNG and Markdown.
package export

import (
	"math"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/route"
)

// Options control static rendering.
type Options struct {
	Title   string
	Padding float64
	Layout  canvas.Layout
	// Scale multiplies PNG output size.
	Scale float64
	// SelectedLink is drawn with the selected stroke.
	SelectedLink string
}

// DefaultOptions returns the standard layout with 40 units of padding.
func DefaultOptions() Options {
	return Options{Padding: 40, Layout: canvas.DefaultLayout(), Scale: 1}
}

// Colors used by both renderers.
const (
	colorPositive = "#2563eb"
	colorNegative = "#dc2626"
	colorText     = "#111827"
	colorBorder   = "#374151"
	arrowLength   = 10.0
	arrowWidth    = 5.0
)

var nodeFill = map[model.NodeType]string{
	model.NodeStock:     "#dbeafe",
	model.NodeFlow:      "#dcfce7",
	model.NodeAuxiliary: "#f3f4f6",
	model.NodeConstant:  "#fef9c3",
}

func fillFor(t model.NodeType) string {
	if c, ok := nodeFill[t]; ok {
		return c
	}
	return nodeFill[model.NodeAuxiliary]
}

// sceneLink is a link with its resolved geometry.
type sceneLink struct {
	link  model.Link
	geom  route.Geometry
	style route.Style
	color string
	// arrow is the triangle at the target box edge: tip, then two base corners.
	arrow [3]model.Position
}

// scene is the shared render model: links with geometry plus bounds.
type scene struct {
	nodes  []model.Node
	links  []sceneLink
	layout canvas.Layout
	min    model.Position
	max    model.Position
}

func newScene(nodes []model.Node, links []model.Link, opts Options) scene {
	if opts.Layout.NodeWidth <= 0 || opts.Layout.NodeHeight <= 0 {
		opts.Layout = canvas.DefaultLayout()
	}
	s := scene{nodes: nodes, layout: opts.Layout}
	index := make(map[string]model.Position, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n.Position
	}

	first := true
	extend := func(p model.Position) {
		if first {
			s.min, s.max, first = p, p, false
			return
		}
		s.min = model.Position{X: math.Min(s.min.X, p.X), Y: math.Min(s.min.Y, p.Y)}
		s.max = model.Position{X: math.Max(s.max.X, p.X), Y: math.Max(s.max.Y, p.Y)}
	}
	for _, n := range nodes {
		lo, hi := opts.Layout.Bounds(n)
		extend(lo)
		extend(hi)
	}

	for _, l := range links {
		src, ok1 := index[l.SourceID]
		tgt, ok2 := index[l.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		g := route.Route(src, tgt, l.LineType)
		sl := sceneLink{
			link:  l,
			geom:  g,
			style: route.Stroke(l.Polarity, l.ID == opts.SelectedLink),
			color: colorPositive,
			arrow: arrowAt(g, tgt, opts.Layout),
		}
		if l.Polarity == model.PolarityNegative {
			sl.color = colorNegative
		}
		if g.Control != nil {
			extend(*g.Control)
		}
		extend(g.Label)
		s.links = append(s.links, sl)
	}

	if first {
		extend(model.Position{})
	}
	s.min = s.min.Add(-opts.Padding, -opts.Padding)
	s.max = s.max.Add(opts.Padding, opts.Padding)
	return s
}

func (s scene) width() float64  { return math.Max(1, s.max.X-s.min.X) }
func (s scene) height() float64 { return math.Max(1, s.max.Y-s.min.Y) }

// arrowAt places an arrowhead where the path enters the target's box.
func arrowAt(g route.Geometry, target model.Position, layout canvas.Layout) [3]model.Position {
	dx, dy := g.EndDirection()
	hw, hh := layout.NodeWidth/2, layout.NodeHeight/2
	t := math.Inf(1)
	if dx != 0 {
		t = hw / math.Abs(dx)
	}
	if dy != 0 {
		t = math.Min(t, hh/math.Abs(dy))
	}
	tip := model.Position{X: target.X - dx*t, Y: target.Y - dy*t}
	base := tip.Add(-dx*arrowLength, -dy*arrowLength)
	// Perpendicular to the arrival direction.
	px, py := -dy*arrowWidth, dx*arrowWidth
	return [3]model.Position{tip, base.Add(px, py), base.Add(-px, -py)}
}
