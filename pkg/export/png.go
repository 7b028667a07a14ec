package export

import (
	"fmt"
	"io"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

const (
	labelFontSize  = 13
	symbolFontSize = 15
	labelInset     = 8
)

// WritePNG rasterizes the diagram. Options.Scale multiplies the output size.
func WritePNG(w io.Writer, nodes []model.Node, links []model.Link, opts Options) error {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	s := newScene(nodes, links, opts)
	r, err := newPNGRenderer(s, opts.Scale)
	if err != nil {
		return err
	}
	r.draw()
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// pngRenderer maps model coordinates to pixels itself rather than through
// the context matrix, so text is rasterized at the output scale.
type pngRenderer struct {
	dc     *gg.Context
	s      scene
	scale  float64
	label  font.Face
	symbol font.Face
}

func newPNGRenderer(s scene, scale float64) (*pngRenderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	face := func(size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size * scale, DPI: 72, Hinting: font.HintingFull})
	}
	label, err := face(labelFontSize)
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	symbol, err := face(symbolFontSize)
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	dc := gg.NewContext(pngSize(s, scale))
	return &pngRenderer{dc: dc, s: s, scale: scale, label: label, symbol: symbol}, nil
}

func (r *pngRenderer) pt(p model.Position) (float64, float64) {
	return (p.X - r.s.min.X) * r.scale, (p.Y - r.s.min.Y) * r.scale
}

func (r *pngRenderer) draw() {
	dc := r.dc
	dc.SetHexColor("#ffffff")
	dc.Clear()

	for _, l := range r.s.links {
		r.drawLink(l)
	}
	for _, n := range r.s.nodes {
		r.drawNode(n)
	}
}

func (r *pngRenderer) drawLink(l sceneLink) {
	dc := r.dc
	dc.SetHexColor(l.color)
	dc.SetLineWidth(l.style.Width * r.scale)
	if l.style.Dashed() {
		dc.SetDash(5*r.scale, 5*r.scale)
	}

	pts := l.geom.Points
	x, y := r.pt(pts[0])
	dc.MoveTo(x, y)
	if l.geom.Control != nil {
		cx, cy := r.pt(*l.geom.Control)
		ex, ey := r.pt(pts[len(pts)-1])
		dc.QuadraticTo(cx, cy, ex, ey)
	} else {
		for _, p := range pts[1:] {
			dc.LineTo(r.pt(p))
		}
	}
	dc.Stroke()
	dc.SetDash()

	// Arrowhead.
	x, y = r.pt(l.arrow[0])
	dc.MoveTo(x, y)
	dc.LineTo(r.pt(l.arrow[1]))
	dc.LineTo(r.pt(l.arrow[2]))
	dc.ClosePath()
	dc.Fill()

	dc.SetFontFace(r.symbol)
	x, y = r.pt(l.geom.Label)
	dc.DrawStringAnchored(l.link.Polarity.Symbol(), x, y, 0.5, 0.5)
}

func (r *pngRenderer) drawNode(n model.Node) {
	dc := r.dc
	lo, _ := r.s.layout.Bounds(n)
	x, y := r.pt(lo)
	w, h := r.s.layout.NodeWidth*r.scale, r.s.layout.NodeHeight*r.scale

	shape := func() {
		switch n.Type {
		case model.NodeStock, model.NodeConstant:
			dc.DrawRectangle(x, y, w, h)
		case model.NodeFlow:
			dc.DrawRoundedRectangle(x, y, w, h, h/2)
		default:
			dc.DrawRoundedRectangle(x, y, w, h, 8*r.scale)
		}
	}

	shape()
	dc.SetHexColor(fillFor(n.Type))
	dc.Fill()

	shape()
	dc.SetHexColor(colorBorder)
	dc.SetLineWidth(1.5 * r.scale)
	if n.Type == model.NodeConstant {
		dc.SetDash(4*r.scale, 3*r.scale)
	}
	dc.Stroke()
	dc.SetDash()

	dc.SetFontFace(r.label)
	dc.SetHexColor(colorText)
	cx, cy := r.pt(n.Position)
	text := r.fit(n.DisplayLabel(), w-2*labelInset*r.scale)
	if n.Value != nil {
		dc.DrawStringAnchored(text, cx, cy-8*r.scale, 0.5, 0.5)
		dc.SetHexColor("#6b7280")
		dc.DrawStringAnchored(fmtNum(*n.Value), cx, cy+10*r.scale, 0.5, 0.5)
		return
	}
	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
}

// fit truncates s with an ellipsis until it is at most width pixels wide.
func (r *pngRenderer) fit(s string, width float64) string {
	if tw, _ := r.dc.MeasureString(s); tw <= width {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		candidate := string(runes[:n]) + "…"
		if tw, _ := r.dc.MeasureString(candidate); tw <= width {
			return candidate
		}
	}
	return "…"
}

// pngSize returns the pixel dimensions WritePNG produces for a scene.
func pngSize(s scene, scale float64) (int, int) {
	return ceil(s.width() * scale), ceil(s.height() * scale)
}
