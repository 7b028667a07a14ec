package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/drift"
)

// exitError carries a process exit code without printing anything more.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newDriftCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift <diagram> <baseline>",
		Short: "Compare a diagram's loops to a saved baseline",
		Long: `Compare a diagram's feedback loops and leverage points to a baseline
report saved with "lc loops --json".

Exit status is 1 when a loop changed polarity, 2 when loops or leverage
points changed, and 0 otherwise.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDrift(cmd, args[0], args[1])
		},
	}
	cmd.Flags().Bool("json", false, "Print the drift result as JSON")
	return cmd
}

func (a *app) runDrift(cmd *cobra.Command, diagramPath, baselinePath string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	data, err := os.ReadFile(baselinePath)
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}
	var baseline analysis.Report
	if err := json.Unmarshal(data, &baseline); err != nil {
		return fmt.Errorf("decode baseline %s: %w", baselinePath, err)
	}

	d, _, err := loadDiagram(diagramPath)
	if err != nil {
		return err
	}
	nodes, links := d.Graph()
	current := analysis.Analyze(nodes, links, analysis.DefaultLeverageConfig())
	result := drift.NewCalculator(&baseline, current, nil).Calculate()
	a.logger.Debug("drift computed", "alerts", len(result.Alerts), "critical", result.CriticalCount)

	out := cmd.OutOrStdout()
	if asJSON {
		enc, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode drift: %w", err)
		}
		fmt.Fprintln(out, string(enc))
	} else {
		fmt.Fprint(out, result.Summary())
	}
	if code := result.ExitCode(); code != 0 {
		return exitError{code}
	}
	return nil
}
