package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/loopcanvas/pkg/loader"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/ui"
)

// seriesGridColumns is how many variables a row holds when the layout is
// built from the results alone.
const seriesGridColumns = 4

func newPlayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <results>",
		Short: "Play simulation results over a diagram",
		Long: `Play simulation results over a diagram. Without --diagram the
variables named in the results are laid out in a grid.

With --watch (or playback.watch in the config) the results file is
reloaded whenever it changes, so a simulator can rewrite it while the
player is open. R runs the simulator configured as playback.command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlay(cmd, args[0])
		},
	}
	cmd.Flags().String("diagram", "", "Diagram the results belong to")
	cmd.Flags().Float64("speed", 0, "Playback speed: 0.5, 1, 2 or 4 (default from config)")
	cmd.Flags().Bool("autoplay", false, "Start playing immediately")
	cmd.Flags().Bool("watch", false, "Reload the results file when it changes")
	cmd.Flags().StringP("export", "o", "simulation.csv", "File written by the export key")
	return cmd
}

func (a *app) runPlay(cmd *cobra.Command, resultsPath string) error {
	if err := a.requireTerminal(); err != nil {
		return err
	}
	logger := a.screenLogger()

	diagramPath, _ := cmd.Flags().GetString("diagram")
	speed, _ := cmd.Flags().GetFloat64("speed")
	autoplay, _ := cmd.Flags().GetBool("autoplay")
	watch, _ := cmd.Flags().GetBool("watch")
	exportPath, _ := cmd.Flags().GetString("export")
	watch = watch || a.cfg.Playback.Watch
	if speed == 0 {
		speed = a.cfg.Playback.Speed
	}

	result, err := loader.LoadResults(resultsPath)
	if err != nil {
		// A watched file may not exist until the simulator first writes it.
		if !watch || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		result = nil
	}

	diagram, title, err := playDiagram(diagramPath, result)
	if err != nil {
		return err
	}

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	var worker *ui.BackgroundWorker
	if watch {
		worker, err = ui.NewBackgroundWorker(ui.WorkerConfig{
			ResultsPath: resultsPath,
			Send:        send,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("watch results: %w", err)
		}
		defer worker.Stop()
	}

	m := ui.NewPlayerModel(ui.PlayerConfig{
		Title:      title,
		Diagram:    diagram,
		Result:     result,
		Worker:     worker,
		Runner:     ui.NewSimRunner(a.cfg.Playback.Command, diagramPath, resultsPath),
		Speed:      speed,
		Autoplay:   autoplay,
		ExportPath: exportPath,
		Layout:     a.cfg.Layout(),
		Logger:     logger,
	})
	program = tea.NewProgram(m, tea.WithAltScreen())

	if worker != nil {
		if err := worker.Start(); err != nil {
			return fmt.Errorf("watch results: %w", err)
		}
	}
	logger.Info("player opened", "results", resultsPath, "diagram", diagramPath, "watch", watch)
	return runPlayer(program, m)
}

// runPlayer runs program and cancels m's playback timer however it exits.
// Copies of m share the same player.
func runPlayer(program *tea.Program, m ui.PlayerModel) error {
	defer m.Player().Close()
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	return nil
}

// playDiagram loads the diagram for playback, or builds one from the
// series in result when no path is given.
func playDiagram(path string, result *model.SimulationResult) (*model.Diagram, string, error) {
	if path != "" {
		return loadDiagram(path)
	}
	d, err := diagramFromSeries(result)
	return d, "simulation", err
}

// diagramFromSeries lays out one node per series in a grid.
func diagramFromSeries(result *model.SimulationResult) (*model.Diagram, error) {
	if result == nil {
		return model.NewDiagram(), nil
	}
	nodes := make([]model.Node, 0, len(result.Series))
	for i, s := range result.Series {
		col, row := i%seriesGridColumns, i/seriesGridColumns
		nodes = append(nodes, model.Node{
			ID:       s.NodeID,
			Label:    s.NodeID,
			Type:     model.NodeAuxiliary,
			Position: model.Position{X: float64(col) * 200, Y: float64(row) * 100},
		})
	}
	return model.FromGraph(nodes, nil)
}
