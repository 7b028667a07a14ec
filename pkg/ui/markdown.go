package ui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// MarkdownRenderer renders help and report markdown for the terminal.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
	useTheme bool
	theme    *Theme
}

// NewMarkdownRenderer creates a renderer using glamour's automatic style.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	mr := &MarkdownRenderer{width: width}
	mr.rebuild()
	return mr
}

// NewMarkdownRendererWithTheme creates a renderer whose colors follow theme.
func NewMarkdownRendererWithTheme(width int, theme Theme) *MarkdownRenderer {
	mr := &MarkdownRenderer{width: width, useTheme: true, theme: &theme}
	mr.rebuild()
	return mr
}

// Render converts markdown to styled terminal text. Without a renderer the
// input is returned unchanged.
func (mr *MarkdownRenderer) Render(md string) (string, error) {
	if mr.renderer == nil {
		return md, nil
	}
	return mr.renderer.Render(md)
}

// SetWidth changes the wrap width, keeping the current style.
func (mr *MarkdownRenderer) SetWidth(width int) {
	if width <= 0 || width == mr.width {
		return
	}
	mr.width = width
	mr.rebuild()
}

// SetWidthWithTheme changes the wrap width and switches to theme colors.
func (mr *MarkdownRenderer) SetWidthWithTheme(width int, theme Theme) {
	if width > 0 {
		mr.width = width
	}
	mr.useTheme = true
	mr.theme = &theme
	mr.rebuild()
}

// IsDarkMode reports whether the terminal background is dark.
func (mr *MarkdownRenderer) IsDarkMode() bool {
	if mr.theme != nil && mr.theme.Renderer != nil {
		return mr.theme.Renderer.HasDarkBackground()
	}
	return lipgloss.HasDarkBackground()
}

func (mr *MarkdownRenderer) rebuild() {
	var (
		r   *glamour.TermRenderer
		err error
	)
	if mr.useTheme && mr.theme != nil {
		r, err = glamour.NewTermRenderer(
			glamour.WithStyles(buildStyleFromTheme(*mr.theme, mr.IsDarkMode())),
			glamour.WithWordWrap(mr.width),
		)
	} else {
		r, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(mr.width),
		)
	}
	if err != nil {
		mr.renderer = nil
		return
	}
	mr.renderer = r
}

// extractHex picks the light or dark variant of an adaptive color.
func extractHex(c lipgloss.AdaptiveColor, dark bool) string {
	if dark {
		return c.Dark
	}
	return c.Light
}

// buildStyleFromTheme starts from glamour's stock style for the background
// and recolors text, headings, and code with the theme palette.
func buildStyleFromTheme(theme Theme, dark bool) ansi.StyleConfig {
	cfg := styles.LightStyleConfig
	if dark {
		cfg = styles.DarkStyleConfig
	}
	text := extractHex(theme.Text, dark)
	primary := extractHex(theme.Primary, dark)
	secondary := extractHex(theme.Secondary, dark)
	muted := extractHex(theme.Muted, dark)

	cfg.Document.Color = &text
	cfg.Heading.Color = &primary
	cfg.H1.Color = &primary
	cfg.H2.Color = &primary
	cfg.Strong.Color = &secondary
	cfg.Code.Color = &secondary
	cfg.BlockQuote.Color = &muted
	cfg.HorizontalRule.Color = &muted
	return cfg
}
