package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/loopcanvas/pkg/config"
	"github.com/vanderheijden86/loopcanvas/pkg/loader"
	"github.com/vanderheijden86/loopcanvas/pkg/logging"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

var version = "0.1.0-dev"

// errNoTTY is returned when a screen command runs without a terminal.
var errNoTTY = errors.New("this command needs an interactive terminal")

// app holds what every subcommand shares: the loaded config, the project
// root it came from, and the loggers.
type app struct {
	cfg        config.Config
	configPath string
	// root is the project directory holding .loopcanvas/, or "" outside a
	// project.
	root    string
	level   string
	logger  *slog.Logger
	logFile *os.File
	journal *logging.Journal

	// isTerminal is replaced in tests.
	isTerminal func() bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&app{isTerminal: stdoutIsTerminal})
}

func buildRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lc [diagram]",
		Short: "Causal loop diagram editor and simulation player",
		Long: `lc edits causal loop diagrams in the terminal and plays back
simulation results over them.

Without a subcommand it opens the editor, on the given diagram or on one
picked from the diagrams found under the project.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEdit(cmd, args)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default: .loopcanvas/config.yaml in the project)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "Append logs to this file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newEditCmd(a),
		newPlayCmd(a),
		newExportCmd(a),
		newCSVCmd(a),
		newLoopsCmd(a),
		newDriftCmd(a),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lc version %s\n", version)
		},
	}
}

// setup loads the config, then opens the log file and journal the flags or
// config ask for. Flags win over the file.
func (a *app) setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		a.cfg, a.configPath = cfg, configPath
		if dir := filepath.Dir(configPath); filepath.Base(dir) == config.DirName {
			a.root = filepath.Dir(dir)
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		cfg, path, err := config.LoadFrom(wd)
		if err != nil {
			return err
		}
		a.cfg, a.configPath = cfg, path
		if path != "" {
			a.root = filepath.Dir(filepath.Dir(path))
		}
	}

	a.level = a.cfg.Log.Level
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		a.level = lvl
	}
	logPath := a.cfg.Log.File
	if p, _ := cmd.Flags().GetString("log-file"); p != "" {
		logPath = p
	}

	var w io.Writer = cmd.ErrOrStderr()
	if logPath != "" {
		f, err := logging.OpenFile(logPath)
		if err != nil {
			return err
		}
		a.logFile = f
		w = f
	}
	a.logger = logging.NewLogger(a.level, w)
	a.logger.Debug("config loaded", "path", a.configPath, "root", a.root)
	return nil
}

func (a *app) close() {
	a.journal.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// screenLogger is the logger for full-screen commands, which must not write
// to the terminal they draw on.
func (a *app) screenLogger() *slog.Logger {
	if a.logFile != nil {
		return a.logger
	}
	return logging.Discard()
}

// projectDir returns the project root, falling back to the working
// directory.
func (a *app) projectDir() string {
	if a.root != "" {
		return a.root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func (a *app) requireTerminal() error {
	if !a.isTerminal() {
		return errNoTTY
	}
	return nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// loadDiagram reads a diagram file and returns it with its title, which
// falls back to the file name.
func loadDiagram(path string) (*model.Diagram, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read diagram: %w", err)
	}
	d, f, err := loader.ParseDiagram(data, loader.FormatFor(path))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	title := f.Title
	if title == "" {
		title = diagramName(path)
	}
	return d, title, nil
}

func diagramName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// outputFile opens path for writing, or returns stdout for "" and "-".
func outputFile(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
