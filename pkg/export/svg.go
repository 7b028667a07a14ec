package export

import (
	"fmt"
	"html"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// WriteSVG renders the diagram as a standalone SVG document.
func WriteSVG(w io.Writer, nodes []model.Node, links []model.Link, opts Options) error {
	s := newScene(nodes, links, opts)
	cw := &countingWriter{w: w}
	canvas := svg.New(cw)

	canvas.Start(ceil(s.width()), ceil(s.height()))
	if opts.Title != "" {
		canvas.Title(opts.Title)
	}
	canvas.Rect(0, 0, ceil(s.width()), ceil(s.height()), "fill:#ffffff")
	canvas.Gtransform(fmt.Sprintf("translate(%s,%s)", fmtNum(-s.min.X), fmtNum(-s.min.Y)))

	for _, l := range s.links {
		style := fmt.Sprintf("fill:none;stroke:%s;stroke-width:%g", l.color, l.style.Width)
		if l.style.Dashed() {
			style += ";stroke-dasharray:" + l.style.Dash
		}
		canvas.Group(attr("class", "link"), attr("data-link", l.link.ID))
		canvas.Path(l.geom.Path, style)

		xs := make([]int, 3)
		ys := make([]int, 3)
		for i, p := range l.arrow {
			xs[i], ys[i] = round(p.X), round(p.Y)
		}
		canvas.Polygon(xs, ys, "fill:"+l.color)
		canvas.Text(round(l.geom.Label.X), round(l.geom.Label.Y), l.link.Polarity.Symbol(),
			fmt.Sprintf("text-anchor:middle;dominant-baseline:middle;font-family:sans-serif;font-size:14px;font-weight:bold;fill:%s", l.color))
		canvas.Gend()
	}

	for _, n := range s.nodes {
		drawNodeSVG(canvas, n, s)
	}

	canvas.Gend()
	canvas.End()
	return cw.err
}

func drawNodeSVG(canvas *svg.SVG, n model.Node, s scene) {
	lo, _ := s.layout.Bounds(n)
	x, y := round(lo.X), round(lo.Y)
	w, h := round(s.layout.NodeWidth), round(s.layout.NodeHeight)
	style := fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.5", fillFor(n.Type), colorBorder)
	canvas.Group(attr("class", "node"), attr("data-node", n.ID))
	defer canvas.Gend()

	switch n.Type {
	case model.NodeStock:
		canvas.Rect(x, y, w, h, style)
	case model.NodeFlow:
		canvas.Roundrect(x, y, w, h, h/2, h/2, style)
	case model.NodeConstant:
		canvas.Rect(x, y, w, h, style+";stroke-dasharray:4,3")
	default:
		canvas.Roundrect(x, y, w, h, 8, 8, style)
	}

	text := fmt.Sprintf("text-anchor:middle;dominant-baseline:middle;font-family:sans-serif;font-size:13px;fill:%s", colorText)
	cx, cy := round(n.Position.X), round(n.Position.Y)
	if n.Value != nil {
		canvas.Text(cx, cy-8, n.DisplayLabel(), text)
		canvas.Text(cx, cy+10, fmtNum(*n.Value), text+";font-size:11px;fill:#6b7280")
		return
	}
	canvas.Text(cx, cy, n.DisplayLabel(), text)
}

// countingWriter remembers the first write error; svgo discards them.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return len(p), nil
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		c.err = err
	}
	return len(p), nil
}

// attr formats an extra element attribute; svgo passes strings containing
// '=' through verbatim.
func attr(name, value string) string {
	return name + `="` + html.EscapeString(value) + `"`
}

func round(v float64) int { return int(math.Round(v)) }
func ceil(v float64) int  { return int(math.Ceil(v)) }

func fmtNum(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
