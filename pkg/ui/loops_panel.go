package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// LoopsPanel is the side panel listing a diagram's feedback loops and
// leverage points.
type LoopsPanel struct {
	report *analysis.Report
	labels map[string]string
	cursor int
	// active is the loop highlighted on the canvas, -1 for none.
	active int
	theme  Theme
}

// NewLoopsPanel analyzes the graph and opens the panel on the first loop.
func NewLoopsPanel(nodes []model.Node, links []model.Link, theme Theme) LoopsPanel {
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.DisplayLabel()
	}
	return LoopsPanel{
		report: analysis.Analyze(nodes, links, analysis.DefaultLeverageConfig()),
		labels: labels,
		active: -1,
		theme:  theme,
	}
}

// Report returns the analysis behind the panel.
func (p *LoopsPanel) Report() *analysis.Report {
	return p.report
}

func (p *LoopsPanel) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *LoopsPanel) MoveDown() {
	if p.report != nil && p.cursor < len(p.report.Loops)-1 {
		p.cursor++
	}
}

// ToggleActive highlights the loop under the cursor, or clears the
// highlight if it is already active.
func (p *LoopsPanel) ToggleActive() {
	if p.report == nil || len(p.report.Loops) == 0 {
		return
	}
	if p.active == p.cursor {
		p.active = -1
		return
	}
	p.active = p.cursor
}

// Highlight returns the node set of the active loop, or nil.
func (p *LoopsPanel) Highlight() map[string]bool {
	if p.report == nil || p.active < 0 || p.active >= len(p.report.Loops) {
		return nil
	}
	out := make(map[string]bool)
	for _, id := range p.report.Loops[p.active].Nodes {
		out[id] = true
	}
	return out
}

// View renders the panel into a width x height block.
func (p *LoopsPanel) View(width, height int) string {
	t := p.theme
	title := t.Renderer.NewStyle().Foreground(t.Primary).Bold(true)
	muted := t.Renderer.NewStyle().Foreground(t.Muted)
	inner := max(width-4, 10)

	var lines []string
	r := p.report
	lines = append(lines, title.Render(fmt.Sprintf("Loops  R%d B%d", r.Reinforcing, r.Balancing)))
	if len(r.Loops) == 0 {
		lines = append(lines, muted.Render("no feedback loops"))
	}
	if r.Truncated {
		lines = append(lines, muted.Render(fmt.Sprintf("first %d loops only", len(r.Loops))))
	}
	for i, loop := range r.Loops {
		style := t.Renderer.NewStyle().Foreground(t.Base.GetForeground())
		prefix := "  "
		if i == p.cursor {
			style = t.Renderer.NewStyle().Foreground(t.Primary).Bold(true)
			prefix = "> "
		}
		if i == p.active {
			style = style.Foreground(t.Warning)
		}
		names := make([]string, 0, len(loop.Nodes))
		for _, id := range loop.Nodes {
			names = append(names, p.labels[id])
		}
		line := fmt.Sprintf("%s%-3s %s", prefix, loop.ID, strings.Join(names, " → "))
		lines = append(lines, style.Render(runewidth.Truncate(line, inner, "…")))
	}

	if len(r.Leverage.Points) > 0 {
		lines = append(lines, "", title.Render("Leverage"))
		for _, lp := range r.Leverage.Points {
			line := fmt.Sprintf("  %s  %d loops", lp.Label, lp.Loops)
			lines = append(lines, runewidth.Truncate(line, inner, "…"))
		}
	}
	if len(r.Breaks) > 0 {
		lines = append(lines, "", title.Render("Shared links"))
		for _, b := range r.Breaks {
			line := fmt.Sprintf("  %s %s %s  ×%d", p.labels[b.SourceID], b.Polarity.Symbol(), p.labels[b.TargetID], b.Impact())
			lines = append(lines, runewidth.Truncate(line, inner, "…"))
		}
	}

	if height > 2 && len(lines) > height-2 {
		lines = lines[:height-2]
	}
	return t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1).
		Width(width - 2).
		Height(max(height-2, 1)).
		Render(strings.Join(lines, "\n"))
}
