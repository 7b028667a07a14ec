package route

import "github.com/vanderheijden86/loopcanvas/pkg/model"

// Stroke widths and the dash pattern used for negative links.
const (
	StrokeWidth         = 2.0
	SelectedStrokeWidth = 3.0
	NegativeDash        = "5,5"
)

// Style is the presentation of one link. It is derived, never stored.
type Style struct {
	Width float64
	// Dash is an SVG dash array; empty means solid.
	Dash string
}

// Dashed reports whether the link is drawn dashed.
func (s Style) Dashed() bool {
	return s.Dash != ""
}

// Stroke maps polarity and selection to a link style: negative links are
// dashed and selected links are thicker.
func Stroke(polarity model.Polarity, selected bool) Style {
	s := Style{Width: StrokeWidth}
	if selected {
		s.Width = SelectedStrokeWidth
	}
	if polarity == model.PolarityNegative {
		s.Dash = NegativeDash
	}
	return s
}
