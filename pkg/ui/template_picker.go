package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// TemplatePickerModel is the palette modal that chooses the node type
// double-click creates.
type TemplatePickerModel struct {
	types         []model.NodeType
	current       model.NodeType
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewTemplatePickerModel opens the picker on the current template's type.
func NewTemplatePickerModel(current model.Template, theme Theme) TemplatePickerModel {
	types := model.NodeTypes()
	selectedIdx := 0
	for i, t := range types {
		if t == current.Type {
			selectedIdx = i
			break
		}
	}
	return TemplatePickerModel{
		types:         types,
		current:       current.Type,
		selectedIndex: selectedIdx,
		theme:         theme,
	}
}

// SetSize updates the picker dimensions
func (m *TemplatePickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *TemplatePickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *TemplatePickerModel) MoveDown() {
	if m.selectedIndex < len(m.types)-1 {
		m.selectedIndex++
	}
}

// Selected returns the template for the highlighted node type.
func (m *TemplatePickerModel) Selected() model.Template {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.types) {
		return model.TemplateFor(m.types[m.selectedIndex])
	}
	return model.DefaultTemplate()
}

// View renders the picker overlay
func (m *TemplatePickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}
	t := m.theme

	boxWidth := 35
	if m.width < 45 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	var lines []string
	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		MarginBottom(1)
	lines = append(lines, titleStyle.Render("New Node Type"))
	lines = append(lines, "")

	for i, typ := range m.types {
		isSelected := i == m.selectedIndex

		itemStyle := t.Renderer.NewStyle()
		if isSelected {
			itemStyle = itemStyle.Foreground(t.Primary).Bold(true)
		} else {
			itemStyle = itemStyle.Foreground(t.Base.GetForeground())
		}
		prefix := "  "
		if isSelected {
			prefix = "> "
		}
		suffix := ""
		if typ == m.current {
			suffix = " " + t.Renderer.NewStyle().Foreground(t.Secondary).Render("✓")
		}
		lines = append(lines, itemStyle.Render(prefix+typeGlyph(typ)+" "+formatTypeName(typ))+suffix)
	}

	lines = append(lines, "")
	footerStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	lines = append(lines, footerStyle.Render("j/k: navigate | enter: apply | esc: cancel"))

	box := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// typeGlyph is the corner glyph the canvas uses for a node type.
func typeGlyph(t model.NodeType) string {
	switch t {
	case model.NodeStock:
		return "┌"
	case model.NodeConstant:
		return "┄"
	}
	return "╭"
}

// formatTypeName capitalizes a node type for display.
func formatTypeName(t model.NodeType) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
