// Package view maps between screen coordinates and diagram model space.
//
// Zoom is anchored at the canvas origin: neither toolbar nor wheel zoom
// re-centers on the pointer. Toolbar and wheel zoom clamp to different
// ranges.
package view

import (
	"math"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

const (
	// ZoomFactor is the multiplier applied by ZoomIn/ZoomOut.
	ZoomFactor = 1.2
	// ToolbarMinZoom and ToolbarMaxZoom bound toolbar and keyboard zoom.
	ToolbarMinZoom = 0.3
	ToolbarMaxZoom = 3.0
	// WheelMinZoom and WheelMaxZoom bound wheel zoom.
	WheelMinZoom = 0.1
	WheelMaxZoom = 5.0
	// WheelStep is the fraction of the current zoom added or removed per
	// wheel notch.
	WheelStep = 0.1
)

// Transform is the pan/zoom state of one canvas.
type Transform struct {
	Zoom float64        `json:"zoom"`
	Pan  model.Position `json:"pan"`
	// Origin is the canvas element's top-left corner in screen coordinates.
	Origin model.Position `json:"origin"`
}

// NewTransform returns the default view: zoom 1, no pan.
func NewTransform() Transform {
	return Transform{Zoom: 1}
}

// ToModel converts a screen point to model space.
func (t Transform) ToModel(screenX, screenY float64) model.Position {
	z := t.zoom()
	return model.Position{
		X: (screenX - t.Origin.X - t.Pan.X) / z,
		Y: (screenY - t.Origin.Y - t.Pan.Y) / z,
	}
}

// ToScreen converts a model point to screen space. It is used for overlay
// placement only; node positions are never stored in screen space.
func (t Transform) ToScreen(p model.Position) (float64, float64) {
	z := t.zoom()
	return p.X*z + t.Pan.X + t.Origin.X, p.Y*z + t.Pan.Y + t.Origin.Y
}

// ZoomIn multiplies zoom by ZoomFactor within the toolbar range.
func (t *Transform) ZoomIn() {
	t.Zoom = clamp(t.zoom()*ZoomFactor, ToolbarMinZoom, ToolbarMaxZoom)
}

// ZoomOut divides zoom by ZoomFactor within the toolbar range.
func (t *Transform) ZoomOut() {
	t.Zoom = clamp(t.zoom()/ZoomFactor, ToolbarMinZoom, ToolbarMaxZoom)
}

// WheelZoom applies a wheel notch: negative deltaY zooms in, positive
// zooms out, by WheelStep of the current zoom, within the wheel range.
func (t *Transform) WheelZoom(deltaY float64) {
	if deltaY == 0 {
		return
	}
	z := t.zoom()
	step := z * WheelStep
	if deltaY < 0 {
		z += step
	} else {
		z -= step
	}
	t.Zoom = clamp(z, WheelMinZoom, WheelMaxZoom)
}

// PanBy accumulates a pointer delta into the pan offset.
func (t *Transform) PanBy(dx, dy float64) {
	t.Pan.X += dx
	t.Pan.Y += dy
}

// Reset restores zoom 1 and zero pan. The origin is a property of the
// canvas element and is kept.
func (t *Transform) Reset() {
	t.Zoom = 1
	t.Pan = model.Position{}
}

func (t Transform) zoom() float64 {
	if t.Zoom <= 0 {
		return 1
	}
	return t.Zoom
}

// Snap quantizes each axis of p to the nearest multiple of grid. A
// non-positive grid leaves p unchanged.
func Snap(p model.Position, grid float64) model.Position {
	if grid <= 0 {
		return p
	}
	return model.Position{
		X: math.Round(p.X/grid) * grid,
		Y: math.Round(p.Y/grid) * grid,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
