package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/loopcanvas/pkg/loader"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/playback"
)

func newCSVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv <results>",
		Short: "Convert simulation results to CSV",
		Long: `Convert simulation results to CSV with a Time column and one column
per variable. With --diagram the columns are headed by node labels.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCSV(cmd, args[0])
		},
	}
	cmd.Flags().String("diagram", "", "Diagram supplying column labels")
	cmd.Flags().StringP("output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().Bool("strict", false, "Reject results with missing or short series")
	return cmd
}

func (a *app) runCSV(cmd *cobra.Command, resultsPath string) error {
	diagramPath, _ := cmd.Flags().GetString("diagram")
	outPath, _ := cmd.Flags().GetString("output")
	strict, _ := cmd.Flags().GetBool("strict")

	result, err := loader.LoadResults(resultsPath)
	if err != nil {
		return err
	}
	if strict {
		if err := result.Validate(); err != nil {
			return fmt.Errorf("%s: %w", resultsPath, err)
		}
	}
	var nodes []model.Node
	if diagramPath != "" {
		d, _, err := loadDiagram(diagramPath)
		if err != nil {
			return err
		}
		nodes, _ = d.Graph()
	}

	out, err := outputFile(cmd, outPath)
	if err != nil {
		return err
	}
	err = playback.WriteCSV(out, result, nodes)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	a.logger.Debug("csv written", "results", resultsPath, "steps", result.TimeStepCount, "output", outPath)
	return nil
}
