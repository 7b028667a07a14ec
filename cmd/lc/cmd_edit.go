package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/config"
	"github.com/vanderheijden86/loopcanvas/pkg/loader"
	"github.com/vanderheijden86/loopcanvas/pkg/logging"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/ui"
)

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [diagram]",
		Short: "Open a diagram in the canvas editor",
		Long: `Open a diagram in the canvas editor. A path that does not exist yet
starts an empty diagram that is created on the first save. Without a path
a picker lists the diagrams found under the project.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEdit(cmd, args)
		},
	}
}

func (a *app) runEdit(cmd *cobra.Command, args []string) error {
	if err := a.requireTerminal(); err != nil {
		return err
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		chosen, err := a.pickDiagram()
		if err != nil || chosen == "" {
			return err
		}
		path = chosen
	}

	cfg, err := a.editorConfig(path)
	if err != nil {
		return err
	}
	a.logger = cfg.Logger
	a.logger.Info("editor opened", "path", path, "nodes", len(cfg.Diagram.Nodes))

	p := tea.NewProgram(ui.NewModel(cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}

// editorConfig loads the diagram at path, restores its editor state and
// opens the command journal.
func (a *app) editorConfig(path string) (ui.EditorConfig, error) {
	logger := a.screenLogger()

	diagram := model.NewDiagram()
	title := diagramName(path)
	if _, err := os.Stat(path); err == nil {
		d, t, err := loadDiagram(path)
		if err != nil {
			return ui.EditorConfig{}, err
		}
		diagram, title = d, t
	} else if !errors.Is(err, os.ErrNotExist) {
		return ui.EditorConfig{}, fmt.Errorf("stat diagram: %w", err)
	}

	statePath := loader.StatePath(a.projectDir(), path)
	state := a.cfg.EditorState()
	if saved, err := loader.LoadEditorState(statePath); err == nil {
		state = saved
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("ignoring saved editor state", "path", statePath, "error", err)
	}
	state = keepDefaults(state, a.cfg.EditorState())

	if a.root != "" {
		a.journal = logging.NewJournal(filepath.Join(a.root, config.DirName), a.level)
	}

	return ui.EditorConfig{
		Path:            path,
		Title:           title,
		Diagram:         diagram,
		State:           &state,
		StatePath:       statePath,
		Layout:          a.cfg.Layout(),
		DuplicateOffset: a.cfg.Canvas.DuplicateOffset,
		Journal:         a.journal,
		Logger:          logger,
	}, nil
}

// keepDefaults fills fields a saved state left empty.
func keepDefaults(s, defaults canvas.EditorState) canvas.EditorState {
	if s.LineType == "" {
		s.LineType = defaults.LineType
	}
	if s.Template.Type == "" {
		s.Template = defaults.Template
	}
	return s
}

// pickDiagram runs the diagram picker and returns the chosen path, or ""
// when the user backed out.
func (a *app) pickDiagram() (string, error) {
	entries := config.DiscoverDiagrams(a.projectDir(), a.cfg.Discovery)
	if len(entries) == 0 {
		return "", fmt.Errorf("no diagrams found under %s; pass a path to create one", a.projectDir())
	}
	picker := ui.NewDiagramPicker(entries, ui.DefaultTheme(lipgloss.DefaultRenderer()))
	final, err := tea.NewProgram(picker, tea.WithAltScreen()).Run()
	if err != nil {
		return "", fmt.Errorf("diagram picker: %w", err)
	}
	if m, ok := final.(ui.DiagramPickerModel); ok {
		if e := m.Chosen(); e != nil {
			return e.Path, nil
		}
	}
	return "", nil
}
