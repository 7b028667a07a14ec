package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/export"
)

func newLoopsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loops <diagram>",
		Short: "List the feedback loops and leverage points of a diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLoops(cmd, args[0])
		},
	}
	cmd.Flags().Bool("json", false, "Print the analysis as JSON")
	cmd.Flags().Bool("markdown", false, "Print a Markdown report")
	cmd.Flags().String("betweenness", string(analysis.BetweennessExact), "Betweenness mode: exact, approximate or skip")
	cmd.Flags().Int("limit", analysis.DefaultLeverageConfig().Limit, "Number of leverage points and loop breaks to list (0 = all)")
	cmd.Flags().Int("max-loops", analysis.DefaultMaxLoops, "Stop loop detection after this many loops (0 = no cap)")
	return cmd
}

func (a *app) runLoops(cmd *cobra.Command, path string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	asMarkdown, _ := cmd.Flags().GetBool("markdown")
	mode, _ := cmd.Flags().GetString("betweenness")
	limit, _ := cmd.Flags().GetInt("limit")
	maxLoops, _ := cmd.Flags().GetInt("max-loops")
	if asJSON && asMarkdown {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}

	cfg := analysis.DefaultLeverageConfig()
	switch analysis.BetweennessMode(mode) {
	case analysis.BetweennessExact, analysis.BetweennessApproximate, analysis.BetweennessSkip:
		cfg.Mode = analysis.BetweennessMode(mode)
	default:
		return fmt.Errorf("invalid --betweenness %q", mode)
	}
	cfg.Limit = limit
	cfg.MaxLoops = maxLoops

	d, title, err := loadDiagram(path)
	if err != nil {
		return err
	}
	nodes, links := d.Graph()
	report := analysis.Analyze(nodes, links, cfg)
	a.logger.Debug("loops analyzed", "path", path, "loops", len(report.Loops), "truncated", report.Truncated, "elapsed", report.Leverage.Elapsed)

	out := cmd.OutOrStdout()
	switch {
	case asJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case asMarkdown:
		md, err := export.GenerateMarkdown(nodes, links, report, title)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, md)
		return err
	}

	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.DisplayLabel()
	}
	writeLoopsText(out, title, report, labels)
	return nil
}

func writeLoopsText(w io.Writer, title string, r *analysis.Report, labels map[string]string) {
	fmt.Fprintf(w, "%s: %d variables, %d links, %d reinforcing, %d balancing\n",
		title, r.Nodes, r.Links, r.Reinforcing, r.Balancing)
	if len(r.Loops) == 0 {
		fmt.Fprintln(w, "no feedback loops")
		return
	}

	fmt.Fprintln(w, "\nLoops:")
	for _, l := range r.Loops {
		names := make([]string, 0, len(l.Nodes)+1)
		for _, id := range l.Nodes {
			names = append(names, labels[id])
		}
		names = append(names, labels[l.Nodes[0]])
		fmt.Fprintf(w, "  %-4s %s\n", l.ID, strings.Join(names, " → "))
	}
	if r.Truncated {
		fmt.Fprintf(w, "  (stopped after %d loops)\n", len(r.Loops))
	}

	if len(r.Leverage.Points) > 0 {
		fmt.Fprintln(w, "\nLeverage points:")
		for _, p := range r.Leverage.Points {
			fmt.Fprintf(w, "  %-24s loops=%d betweenness=%.3f\n", p.Label, p.Loops, p.Betweenness)
		}
	}
	if len(r.Breaks) > 0 {
		fmt.Fprintln(w, "\nShared links:")
		for _, b := range r.Breaks {
			fmt.Fprintf(w, "  %s → %s (%s) in %s\n",
				labels[b.SourceID], labels[b.TargetID], b.Polarity, strings.Join(b.InLoops, ", "))
		}
	}
}
