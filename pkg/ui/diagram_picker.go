package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/loopcanvas/pkg/config"
)

// OpenDiagramMsg is sent when the user picks a diagram to open.
type OpenDiagramMsg struct {
	Entry config.DiagramEntry
}

// DiagramPickerModel lists discovered diagram files with a type-to-filter
// input. It runs standalone when lc is started without a diagram path.
type DiagramPickerModel struct {
	entries     []config.DiagramEntry
	filtered    []int // indices into entries
	cursor      int
	width       int
	height      int
	filterInput textinput.Model
	theme       Theme
	chosen      *config.DiagramEntry
}

// NewDiagramPicker creates a picker over entries.
func NewDiagramPicker(entries []config.DiagramEntry, theme Theme) DiagramPickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 50
	ti.Width = 30
	ti.Focus()

	m := DiagramPickerModel{
		entries:     entries,
		filterInput: ti,
		theme:       theme,
	}
	m.applyFilter()
	return m
}

// SetSize updates the picker dimensions.
func (m *DiagramPickerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m DiagramPickerModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles keyboard input for the picker.
func (m DiagramPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.filterInput.Value() == "" {
				return m, tea.Quit
			}
			m.filterInput.SetValue("")
			m.applyFilter()
			return m, nil
		case "enter":
			if e := m.SelectedEntry(); e != nil {
				m.chosen = e
				entry := *e
				return m, tea.Sequence(
					func() tea.Msg { return OpenDiagramMsg{Entry: entry} },
					tea.Quit,
				)
			}
			return m, nil
		case "up", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	return m, nil
}

// applyFilter updates the filtered indices from the filter input.
func (m *DiagramPickerModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))
	if query == "" {
		m.filtered = make([]int, len(m.entries))
		for i := range m.entries {
			m.filtered[i] = i
		}
		m.cursor = min(m.cursor, max(0, len(m.filtered)-1))
		return
	}

	type scored struct {
		index int
		score int
	}
	var matches []scored
	for i, entry := range m.entries {
		best := max(fuzzyScore(strings.ToLower(entry.Name), query), fuzzyScore(strings.ToLower(entry.Rel), query))
		if best > 0 {
			matches = append(matches, scored{i, best})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	m.filtered = make([]int, len(matches))
	for i, match := range matches {
		m.filtered[i] = match.index
	}
	m.cursor = min(m.cursor, max(0, len(m.filtered)-1))
}

// fuzzyScore scores query as a subsequence of s. Zero means no match;
// contiguous runs and a match at the start score higher.
func fuzzyScore(s, query string) int {
	if query == "" {
		return 1
	}
	if strings.Contains(s, query) {
		score := 100 + len(query)
		if strings.HasPrefix(s, query) {
			score += 50
		}
		return score
	}
	score, run := 0, 0
	q := []rune(query)
	qi := 0
	for _, r := range s {
		if qi < len(q) && r == q[qi] {
			qi++
			run++
			score += run
		} else {
			run = 0
		}
	}
	if qi < len(q) {
		return 0
	}
	return score
}

// View renders the picker.
func (m DiagramPickerModel) View() string {
	t := m.theme
	w := m.width
	if w == 0 {
		w = 80
	}

	var sections []string
	sections = append(sections, m.renderTitleBar(w))
	sections = append(sections, t.Renderer.NewStyle().Foreground(t.Primary).Render("  / "+m.filterInput.View()))

	if len(m.filtered) == 0 {
		sections = append(sections, t.Renderer.NewStyle().
			Foreground(t.Secondary).
			Italic(true).
			Render("  No diagrams found. Create one with lc init or pass a path."))
	}

	rows := len(m.filtered)
	if m.height > 4 {
		rows = min(rows, m.height-4)
	}
	start := 0
	if m.cursor >= rows && rows > 0 {
		start = m.cursor - rows + 1
	}
	for i := start; i < start+rows && i < len(m.filtered); i++ {
		entry := m.entries[m.filtered[i]]
		style := t.Renderer.NewStyle().Foreground(t.Base.GetForeground())
		prefix := "  "
		if i == m.cursor {
			style = t.Renderer.NewStyle().Foreground(t.Primary).Bold(true)
			prefix = "> "
		}
		rel := t.Renderer.NewStyle().Foreground(t.Muted).Render(entry.Rel)
		sections = append(sections, style.Render(prefix+entry.Name)+"  "+rel)
	}

	sections = append(sections, t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true).
		Render("  ↑/↓: navigate | enter: open | esc: clear / quit"))
	return strings.Join(sections, "\n")
}

// renderTitleBar renders "diagrams(filter)[count]" between separator lines.
func (m *DiagramPickerModel) renderTitleBar(w int) string {
	t := m.theme
	label := "diagrams"
	if v := m.filterInput.Value(); v != "" {
		label = fmt.Sprintf("diagrams(%s)", v)
	}
	count := fmt.Sprintf("[%d]", len(m.filtered))
	title := t.Renderer.NewStyle().Foreground(t.Primary).Bold(true).Render(label) +
		t.Renderer.NewStyle().Foreground(t.Secondary).Render(count)

	titleLen := lipgloss.Width(label) + len(count)
	leftPad := max((w-titleLen-4)/2, 1)
	rightPad := max(w-titleLen-4-leftPad, 1)
	sep := t.Renderer.NewStyle().Foreground(t.Border)
	return sep.Render(strings.Repeat("─", leftPad)) + " " + title + " " + sep.Render(strings.Repeat("─", rightPad))
}

// Cursor returns the current cursor position.
func (m DiagramPickerModel) Cursor() int {
	return m.cursor
}

// FilteredCount returns the number of entries matching the filter.
func (m DiagramPickerModel) FilteredCount() int {
	return len(m.filtered)
}

// SelectedEntry returns the highlighted entry, or nil if none.
func (m DiagramPickerModel) SelectedEntry() *config.DiagramEntry {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	entry := m.entries[m.filtered[m.cursor]]
	return &entry
}

// Chosen returns the entry confirmed with enter, or nil if the picker was
// dismissed.
func (m DiagramPickerModel) Chosen() *config.DiagramEntry {
	return m.chosen
}
