package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/route"
	"github.com/vanderheijden86/loopcanvas/pkg/view"
)

// One terminal cell covers CellWidth x CellHeight screen units. Pointer
// events are reported at cell centers.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

// CellToScreen maps a terminal cell to the screen point at its center.
func CellToScreen(col, row int) (float64, float64) {
	return float64(col)*CellWidth + CellWidth/2, float64(row)*CellHeight + CellHeight/2
}

type cellKind uint8

const (
	cellBlank cellKind = iota
	cellGrid
	cellPositive
	cellNegative
	cellNode
	cellLabel
	cellSelected
	cellMarquee
	cellPending
	cellMenu
	cellLoop
)

// wideTail marks the second column of a double-width rune.
const wideTail rune = -1

type cell struct {
	r    rune
	kind cellKind
}

// raster is a fixed-size character grid.
type raster struct {
	w, h  int
	cells [][]cell
}

func newRaster(w, h int) *raster {
	w, h = max(w, 1), max(h, 1)
	cells := make([][]cell, h)
	for y := range cells {
		cells[y] = make([]cell, w)
		for x := range cells[y] {
			cells[y][x] = cell{r: ' '}
		}
	}
	return &raster{w: w, h: h, cells: cells}
}

func (r *raster) inside(x, y int) bool {
	return x >= 0 && x < r.w && y >= 0 && y < r.h
}

func (r *raster) set(x, y int, ch rune, k cellKind) {
	if r.inside(x, y) {
		r.cells[y][x] = cell{r: ch, kind: k}
	}
}

func (r *raster) at(x, y int) cell {
	if !r.inside(x, y) {
		return cell{}
	}
	return r.cells[y][x]
}

// text writes s starting at x, never past x+maxW. Double-width runes take
// two cells.
func (r *raster) text(x, y int, s string, maxW int, k cellKind) {
	s = runewidth.Truncate(s, maxW, "…")
	for _, ch := range s {
		w := runewidth.RuneWidth(ch)
		if w == 0 {
			continue
		}
		r.set(x, y, ch, k)
		if w == 2 {
			r.set(x+1, y, wideTail, k)
		}
		x += w
	}
}

// line draws a Bresenham segment. Dashed lines skip every other cell.
func (r *raster) line(x1, y1, x2, y2 int, ch rune, k cellKind, dashed bool, step *int) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		if !dashed || *step%2 == 0 {
			r.set(x1, y1, ch, k)
		}
		*step++
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

type borderSet struct {
	tl, tr, bl, br, h, v rune
}

var (
	borderRounded = borderSet{'╭', '╮', '╰', '╯', '─', '│'}
	borderSquare  = borderSet{'┌', '┐', '└', '┘', '─', '│'}
	borderDashed  = borderSet{'┌', '┐', '└', '┘', '┄', '┆'}
	borderThick   = borderSet{'┏', '┓', '┗', '┛', '━', '┃'}
)

// box draws a border and blanks the interior.
func (r *raster) box(x0, y0, x1, y1 int, b borderSet, k cellKind, fill bool) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			switch {
			case y == y0 && x == x0:
				r.set(x, y, b.tl, k)
			case y == y0 && x == x1:
				r.set(x, y, b.tr, k)
			case y == y1 && x == x0:
				r.set(x, y, b.bl, k)
			case y == y1 && x == x1:
				r.set(x, y, b.br, k)
			case y == y0 || y == y1:
				r.set(x, y, b.h, k)
			case x == x0 || x == x1:
				r.set(x, y, b.v, k)
			case fill:
				r.set(x, y, ' ', cellNode)
			}
		}
	}
}

// render styles runs of equal kind and joins the rows.
func (r *raster) render(styles map[cellKind]lipgloss.Style) string {
	var out strings.Builder
	var run strings.Builder
	for y, row := range r.cells {
		if y > 0 {
			out.WriteByte('\n')
		}
		kind := row[0].kind
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if st, ok := styles[kind]; ok {
				out.WriteString(st.Render(run.String()))
			} else {
				out.WriteString(run.String())
			}
			run.Reset()
		}
		for _, c := range row {
			if c.r == wideTail {
				continue
			}
			if c.kind != kind {
				flush()
				kind = c.kind
			}
			run.WriteRune(c.r)
		}
		flush()
	}
	return out.String()
}

// CanvasView is a snapshot of everything drawn on the terminal canvas.
type CanvasView struct {
	Nodes  []model.Node
	Links  []model.Link
	State  canvas.EditorState
	Layout canvas.Layout
	// Pending is the connector preview segment, if any.
	Pending *[2]model.Position
	// Values overlays simulation values on node labels.
	Values map[string]float64
	// Loop highlights one feedback loop's nodes.
	Loop map[string]bool
}

// toCell maps a model position to a raster cell.
func (v CanvasView) toCell(p model.Position) (int, int) {
	sx, sy := v.State.View.ToScreen(p)
	o := v.State.View.Origin
	return int(math.Floor((sx - o.X) / CellWidth)), int(math.Floor((sy - o.Y) / CellHeight))
}

// Render draws the canvas into a width x height block of text.
func (v CanvasView) Render(width, height int, theme Theme) string {
	r := newRaster(width, height)
	if v.State.ShowGrid {
		v.drawGrid(r)
	}

	index := make(map[string]model.Node, len(v.Nodes))
	for _, n := range v.Nodes {
		index[n.ID] = n
	}
	for _, l := range v.Links {
		src, ok1 := index[l.SourceID]
		tgt, ok2 := index[l.TargetID]
		if ok1 && ok2 {
			v.drawLink(r, l, src, tgt)
		}
	}
	if v.Pending != nil {
		x1, y1 := v.toCell(v.Pending[0])
		x2, y2 := v.toCell(v.Pending[1])
		step := 0
		r.line(x1, y1, x2, y2, '·', cellPending, false, &step)
	}
	for _, n := range v.Nodes {
		v.drawNode(r, n)
	}
	if m := v.State.Marquee; m != nil {
		lo, hi := m.Bounds()
		x0, y0 := v.toCell(lo)
		x1, y1 := v.toCell(hi)
		r.box(x0, y0, max(x1, x0+1), max(y1, y0+1), borderDashed, cellMarquee, false)
	}
	if m := v.State.Menu; m != nil {
		v.drawMenu(r, m)
	}
	return r.render(canvasStyles(theme))
}

func canvasStyles(t Theme) map[cellKind]lipgloss.Style {
	s := t.Renderer.NewStyle
	return map[cellKind]lipgloss.Style{
		cellGrid:     s().Foreground(t.Border),
		cellPositive: s().Foreground(t.Positive),
		cellNegative: s().Foreground(t.Negative),
		cellNode:     s().Foreground(t.Subtext),
		cellLabel:    s().Foreground(t.Text),
		cellSelected: s().Foreground(t.Selected).Bold(true),
		cellMarquee:  s().Foreground(t.Secondary),
		cellPending:  s().Foreground(t.Secondary).Bold(true),
		cellMenu:     s().Foreground(t.Primary).Bold(true),
		cellLoop:     s().Foreground(t.Warning).Bold(true),
	}
}

func (v CanvasView) drawGrid(r *raster) {
	grid := v.State.GridSize
	zoom := v.State.View.Zoom
	if grid <= 0 || zoom <= 0 {
		return
	}
	// Skip grids too dense to read.
	if grid*zoom < 2*CellWidth || grid*zoom < CellHeight {
		return
	}
	o := v.State.View.Origin
	lo := v.State.View.ToModel(o.X, o.Y)
	hi := v.State.View.ToModel(o.X+float64(r.w)*CellWidth, o.Y+float64(r.h)*CellHeight)
	for gy := math.Floor(lo.Y/grid) * grid; gy <= hi.Y; gy += grid {
		for gx := math.Floor(lo.X/grid) * grid; gx <= hi.X; gx += grid {
			x, y := v.toCell(model.Position{X: gx, Y: gy})
			r.set(x, y, '·', cellGrid)
		}
	}
}

func (v CanvasView) drawLink(r *raster, l model.Link, src, tgt model.Node) {
	geom := route.Route(src.Position, tgt.Position, l.LineType)
	style := route.Stroke(l.Polarity, v.State.Selection.LinkID == l.ID)

	kind := cellPositive
	if l.Polarity == model.PolarityNegative {
		kind = cellNegative
	}
	if v.State.Selection.LinkID == l.ID {
		kind = cellSelected
	}

	pts := geom.Sample(8)
	step := 0
	for i := 1; i < len(pts); i++ {
		x1, y1 := v.toCell(pts[i-1])
		x2, y2 := v.toCell(pts[i])
		ch := strokeRune(x2-x1, y2-y1, style.Width > route.StrokeWidth)
		r.line(x1, y1, x2, y2, ch, kind, style.Dashed(), &step)
	}

	if ax, ay, ch, ok := v.arrowCell(geom, tgt); ok {
		r.set(ax, ay, ch, kind)
	}
	lx, ly := v.toCell(geom.Label)
	r.text(lx, ly, l.Polarity.Symbol(), 1, kind)
}

// strokeRune picks a line glyph for a segment direction in cell units.
func strokeRune(dx, dy int, heavy bool) rune {
	adx, ady := math.Abs(float64(dx)), math.Abs(float64(dy))
	switch {
	case adx == 0 && ady == 0:
		return '•'
	case ady*2 <= adx:
		if heavy {
			return '━'
		}
		return '─'
	case adx <= ady/2:
		if heavy {
			return '┃'
		}
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

// arrowCell places the arrowhead one cell outside the target box along the
// arrival direction.
func (v CanvasView) arrowCell(g route.Geometry, target model.Node) (int, int, rune, bool) {
	ux, uy := g.EndDirection()
	hw, hh := v.Layout.NodeWidth/2, v.Layout.NodeHeight/2
	t := math.Inf(1)
	if ux != 0 {
		t = hw / math.Abs(ux)
	}
	if uy != 0 {
		t = math.Min(t, hh/math.Abs(uy))
	}
	if math.IsInf(t, 1) {
		return 0, 0, 0, false
	}
	tip := target.Position.Add(-ux*t, -uy*t)
	x, y := v.toCell(tip)

	var ch rune
	if math.Abs(ux)*CellHeight >= math.Abs(uy)*CellWidth {
		if ux > 0 {
			ch, x = '▶', x-1
		} else {
			ch, x = '◀', x+1
		}
	} else {
		if uy > 0 {
			ch, y = '▼', y-1
		} else {
			ch, y = '▲', y+1
		}
	}
	return x, y, ch, true
}

func (v CanvasView) drawNode(r *raster, n model.Node) {
	lo, hi := v.Layout.Bounds(n)
	x0, y0 := v.toCell(lo)
	x1, y1 := v.toCell(hi)
	x1 = max(x1, x0+2)
	y1 = max(y1, y0+2)

	selected := v.State.Selection.HasNode(n.ID)
	border := borderRounded
	switch n.Type {
	case model.NodeStock:
		border = borderSquare
	case model.NodeConstant:
		border = borderDashed
	}
	kind := cellNode
	switch {
	case selected:
		kind, border = cellSelected, borderThick
	case v.Loop[n.ID]:
		kind = cellLoop
	}
	r.box(x0, y0, x1, y1, border, kind, true)

	inner := x1 - x0 - 1
	label := n.DisplayLabel()
	if v.Values != nil {
		label = fmt.Sprintf("%s %s", label, formatValue(v.Values[n.ID]))
	}
	mid := (y0 + y1) / 2
	if w := runewidth.StringWidth(label); w < inner {
		r.text(x0+1+(inner-w)/2, mid, label, inner, cellLabel)
	} else {
		r.text(x0+1, mid, label, inner, cellLabel)
	}
	if v.Values == nil && n.Value != nil && y1-y0 >= 4 {
		val := formatValue(*n.Value)
		r.text(x0+1+max(0, (inner-runewidth.StringWidth(val))/2), mid+1, val, inner, cellNode)
	}

	// Connector ports sit on the right edge.
	for _, pol := range []model.Polarity{model.PolarityPositive, model.PolarityNegative} {
		px, py := v.toCell(v.Layout.Port(n, pol))
		k := cellPositive
		if pol == model.PolarityNegative {
			k = cellNegative
		}
		r.text(px, py, pol.Symbol(), 1, k)
	}
}

func (v CanvasView) drawMenu(r *raster, m *canvas.ContextMenu) {
	o := v.State.View.Origin
	x := int(math.Floor((m.ScreenX - o.X) / CellWidth))
	y := int(math.Floor((m.ScreenY - o.Y) / CellHeight))
	lines := make([]string, 0, len(m.Actions))
	width := 0
	for _, a := range m.Actions {
		line := menuKey(a) + " " + menuLabel(a)
		lines = append(lines, line)
		width = max(width, runewidth.StringWidth(line))
	}
	// Keep the menu on screen.
	x = min(max(x, 0), max(r.w-width-2, 0))
	y = min(max(y, 0), max(r.h-len(lines)-2, 0))
	r.box(x, y, x+width+1, y+len(lines)+1, borderRounded, cellMenu, true)
	for i, line := range lines {
		r.text(x+1, y+1+i, line, width, cellMenu)
	}
}

func menuKey(a canvas.MenuAction) string {
	if a == canvas.ActionDuplicate {
		return "d"
	}
	return "x"
}

func menuLabel(a canvas.MenuAction) string {
	if a == canvas.ActionDuplicate {
		return "Duplicate"
	}
	return "Delete"
}

// FitTransform returns a view that shows every node inside a cols x rows
// cell area, never zooming past 1.
func FitTransform(nodes []model.Node, layout canvas.Layout, cols, rows int) view.Transform {
	t := view.NewTransform()
	if len(nodes) == 0 || cols <= 2 || rows <= 2 {
		return t
	}
	lo, hi := layout.Bounds(nodes[0])
	for _, n := range nodes[1:] {
		a, b := layout.Bounds(n)
		lo = model.Position{X: math.Min(lo.X, a.X), Y: math.Min(lo.Y, a.Y)}
		hi = model.Position{X: math.Max(hi.X, b.X), Y: math.Max(hi.Y, b.Y)}
	}
	// Leave room for ports and arrowheads.
	lo = lo.Add(-CellWidth, -CellHeight)
	hi = hi.Add(2*CellWidth, CellHeight)

	availW, availH := float64(cols)*CellWidth, float64(rows)*CellHeight
	zoom := math.Min(availW/(hi.X-lo.X), availH/(hi.Y-lo.Y))
	t.Zoom = math.Max(math.Min(zoom, 1), view.WheelMinZoom)
	t.Pan = model.Position{X: -lo.X * t.Zoom, Y: -lo.Y * t.Zoom}
	return t
}

// formatValue prints integers without decimals and everything else with two.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// sparkline compresses data into width block characters.
func sparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	span := maxVal - minVal
	if span == 0 {
		span = 1
	}
	step := max(len(data)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / span * 7)
		sb.WriteRune(chars[min(max(idx, 0), 7)])
	}
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
