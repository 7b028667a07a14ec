package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

func TestNewTemplatePickerModel(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTemplatePickerModel(model.TemplateFor(model.NodeFlow), theme)

	if len(picker.types) != 4 {
		t.Errorf("Expected 4 node types, got %d", len(picker.types))
	}
	if got := picker.Selected().Type; got != model.NodeFlow {
		t.Errorf("Expected current type flow to be selected, got %q", got)
	}
}

func TestNewTemplatePickerModelUnknownType(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTemplatePickerModel(model.Template{Type: "cloud"}, theme)

	if picker.selectedIndex != 0 {
		t.Errorf("Expected selectedIndex 0 for unknown type, got %d", picker.selectedIndex)
	}
	if got := picker.Selected().Type; got != model.NodeStock {
		t.Errorf("Expected default to stock, got %q", got)
	}
}

func TestTemplatePickerNavigation(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTemplatePickerModel(model.TemplateFor(model.NodeStock), theme)

	picker.MoveDown()
	if got := picker.Selected().Type; got != model.NodeFlow {
		t.Errorf("After MoveDown, expected flow, got %q", got)
	}
	picker.MoveUp()
	picker.MoveUp()
	if picker.selectedIndex != 0 {
		t.Errorf("MoveUp at start should stay at 0, got %d", picker.selectedIndex)
	}
	for i := 0; i < 10; i++ {
		picker.MoveDown()
	}
	if got := picker.Selected().Type; got != model.NodeConstant {
		t.Errorf("MoveDown at end should stay on constant, got %q", got)
	}
}

func TestTemplatePickerSelectedUsesDefaults(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTemplatePickerModel(model.DefaultTemplate(), theme)

	tpl := picker.Selected()
	if tpl.Label != model.DefaultTemplate().Label {
		t.Errorf("Selected label = %q, want default label", tpl.Label)
	}
}

func TestTemplatePickerView(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTemplatePickerModel(model.TemplateFor(model.NodeConstant), theme)
	picker.SetSize(80, 40)

	output := picker.View()
	for _, expected := range []string{"New Node Type", "Stock", "Flow", "Auxiliary", "Constant", "✓", "j/k: navigate", "> "} {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected View() to contain %q", expected)
		}
	}

	found := false
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "Constant") && strings.Contains(line, "✓") {
			found = true
		}
	}
	if !found {
		t.Error("Expected current type to carry a checkmark")
	}
}

func TestFormatTypeName(t *testing.T) {
	tests := []struct {
		input    model.NodeType
		expected string
	}{
		{model.NodeStock, "Stock"},
		{model.NodeAuxiliary, "Auxiliary"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatTypeName(tt.input); got != tt.expected {
			t.Errorf("formatTypeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
