package canvas

import (
	"testing"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/view"
	"pgregory.net/rapid"
)

// Random event sequences never break selection exclusivity, referential
// integrity or the zoom range.
func TestControllerInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes := []model.Node{node("a", 0, 0), node("b", 200, 0), node("c", 0, 200), node("d", 200, 200)}
		d, err := model.FromGraph(nodes, nil, model.WithIDGenerator(model.NewSequence(100)))
		if err != nil {
			t.Fatal(err)
		}
		c := NewController(d)

		coord := rapid.Float64Range(-100, 300)
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			ev := PointerEvent{
				X: coord.Draw(t, "x"),
				Y: coord.Draw(t, "y"),
				Mods: Modifiers{
					Ctrl:  rapid.Bool().Draw(t, "ctrl"),
					Shift: rapid.Bool().Draw(t, "shift"),
				},
			}
			switch rapid.IntRange(0, 9).Draw(t, "op") {
			case 0:
				c.PointerDown(ev)
			case 1:
				c.PointerMove(ev)
			case 2:
				c.PointerUp(ev)
			case 3:
				c.DoubleClick(ev)
			case 4:
				c.ContextMenu(ev)
				c.ChooseMenu(rapid.SampledFrom([]MenuAction{ActionDuplicate, ActionDelete}).Draw(t, "action"))
			case 5:
				c.HandleKey(KeyEvent{Key: rapid.SampledFrom([]string{"v", "h", "c", "g", "s", "esc", "delete"}).Draw(t, "key")})
			case 6:
				c.Wheel(rapid.Float64Range(-3, 3).Draw(t, "wheel"))
			case 7:
				c.HandleKey(KeyEvent{Key: rapid.SampledFrom([]string{"+", "-", "0"}).Draw(t, "zoomkey"), Mods: Modifiers{Ctrl: true}})
			case 8:
				c.SetTool(rapid.SampledFrom([]Tool{ToolSelect, ToolPan, ToolConnect}).Draw(t, "tool"))
			case 9:
				c.SetLineType(rapid.SampledFrom(model.LineTypes()).Draw(t, "line"))
			}

			s := c.State()
			forms := 0
			if s.Selection.NodeID != "" {
				forms++
			}
			if s.Selection.LinkID != "" {
				forms++
			}
			if len(s.Selection.Nodes) > 0 {
				forms++
			}
			if forms > 1 {
				t.Fatalf("selection has %d forms: %+v", forms, s.Selection)
			}
			if s.View.Zoom < view.WheelMinZoom || s.View.Zoom > view.WheelMaxZoom {
				t.Fatalf("zoom %v out of range", s.View.Zoom)
			}

			ids := make(map[string]bool)
			for _, n := range d.Nodes {
				ids[n.ID] = true
			}
			for _, l := range d.Links {
				if !ids[l.SourceID] || !ids[l.TargetID] {
					t.Fatalf("dangling link %+v", l)
				}
			}
		}
	})
}
