package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/export"
	"github.com/vanderheijden86/loopcanvas/pkg/loader"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <diagram>",
		Short: "Render a diagram to SVG, PNG, JSON, Markdown or HTML",
		Long: `Render a diagram to one or more files. Every requested format is
written in parallel.

  lc export model.yaml --svg model.svg --png model.png
  lc export model.yaml --html model.html
  lc export model.yaml --serve :8080   # live preview, reloads on save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args[0])
		},
	}
	cmd.Flags().String("svg", "", "Write an SVG image")
	cmd.Flags().String("png", "", "Write a PNG image")
	cmd.Flags().String("json", "", "Write the diagram as normalized JSON")
	cmd.Flags().String("markdown", "", "Write a Markdown report with a Mermaid graph and loop analysis")
	cmd.Flags().String("html", "", "Write an interactive HTML page")
	cmd.Flags().String("serve", "", "Serve a live preview on this address (e.g. :8080)")
	return cmd
}

// exportJob writes one output file.
type exportJob struct {
	path  string
	write func(w io.Writer) error
}

func (a *app) runExport(cmd *cobra.Command, path string) error {
	d, title, err := loadDiagram(path)
	if err != nil {
		return err
	}
	nodes, links := d.Graph()
	opts := a.renderOptions(title)

	svgPath, _ := cmd.Flags().GetString("svg")
	pngPath, _ := cmd.Flags().GetString("png")
	jsonPath, _ := cmd.Flags().GetString("json")
	mdPath, _ := cmd.Flags().GetString("markdown")
	htmlPath, _ := cmd.Flags().GetString("html")
	serveAddr, _ := cmd.Flags().GetString("serve")

	var jobs []exportJob
	if svgPath != "" {
		jobs = append(jobs, exportJob{svgPath, func(w io.Writer) error {
			return export.WriteSVG(w, nodes, links, opts)
		}})
	}
	if pngPath != "" {
		jobs = append(jobs, exportJob{pngPath, func(w io.Writer) error {
			return export.WritePNG(w, nodes, links, opts)
		}})
	}
	if jsonPath != "" {
		jobs = append(jobs, exportJob{jsonPath, func(w io.Writer) error {
			data, err := loader.EncodeDiagram(d, title, loader.FormatJSON)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}})
	}

	var report *analysis.Report
	if mdPath != "" || htmlPath != "" {
		report = analysis.Analyze(nodes, links, analysis.DefaultLeverageConfig())
	}
	if mdPath != "" {
		jobs = append(jobs, exportJob{mdPath, func(w io.Writer) error {
			md, err := export.GenerateMarkdown(nodes, links, report, title)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, md)
			return err
		}})
	}

	if len(jobs) == 0 && htmlPath == "" && serveAddr == "" {
		return fmt.Errorf("nothing to export: pass --svg, --png, --json, --markdown, --html or --serve")
	}

	if htmlPath != "" {
		jobs = append(jobs, exportJob{path: htmlPath})
	}

	// Each job reports the path it wrote; output is printed in flag order
	// once all of them finish.
	written := make([]string, len(jobs))
	g, _ := errgroup.WithContext(contextOf(cmd))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			var err error
			if job.write == nil {
				written[i], err = export.GenerateInteractiveGraphHTML(export.InteractiveGraphOptions{
					Nodes:  nodes,
					Links:  links,
					Report: report,
					Title:  title,
					Path:   job.path,
					Render: opts,
				})
				if err != nil {
					return fmt.Errorf("export %s: %w", job.path, err)
				}
			} else {
				written[i], err = writeOutput(cmd, job)
			}
			if err != nil {
				return err
			}
			a.logger.Info("exported", "path", written[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, p := range written {
		if p != "" && p != "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
		}
	}

	if serveAddr != "" {
		return a.servePreview(cmd, path, serveAddr)
	}
	return nil
}

// writeOutput runs job against its file and returns the path written.
// The HTML job has no write func and is handled by the caller.
func writeOutput(cmd *cobra.Command, job exportJob) (string, error) {
	f, err := outputFile(cmd, job.path)
	if err != nil {
		return "", err
	}
	err = job.write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", job.path, err)
	}
	return job.path, nil
}

func (a *app) renderOptions(title string) export.Options {
	opts := export.DefaultOptions()
	opts.Title = title
	opts.Layout = a.cfg.Layout()
	opts.Padding = a.cfg.Export.Padding
	opts.Scale = a.cfg.Export.Scale
	return opts
}

// servePreview serves the interactive page for path until interrupted,
// reloading connected browsers whenever the file changes.
func (a *app) servePreview(cmd *cobra.Command, path, addr string) error {
	hub, err := export.NewLiveReloadHub(a.logger, path)
	if err != nil {
		return err
	}
	if err := hub.Start(); err != nil {
		hub.Stop()
		return err
	}

	source := func() (export.InteractiveGraphOptions, error) {
		d, title, err := loadDiagram(path)
		if err != nil {
			return export.InteractiveGraphOptions{}, err
		}
		nodes, links := d.Graph()
		return export.InteractiveGraphOptions{
			Nodes:  nodes,
			Links:  links,
			Title:  title,
			Render: a.renderOptions(title),
		}, nil
	}
	server := export.NewPreviewServer(source, hub, a.logger)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		hub.Stop()
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "previewing %s at http://%s (ctrl+c to stop)\n", path, ln.Addr())

	ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.Serve(ctx, ln)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
