package ui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SimRunResultMsg is returned after the external simulator exits.
type SimRunResultMsg struct {
	Success bool
	Err     error
	Output  string
	Elapsed time.Duration
}

// ErrNoSimulator is reported when no simulator command is configured or
// the executable cannot be found.
var ErrNoSimulator = errors.New("no simulator configured; set playback.command in .loopcanvas/config.yaml")

// SimRunner wraps the external simulation command. The simulator writes
// the results file, which the background worker then picks up.
type SimRunner struct {
	path      string
	args      []string
	available bool
	timeout   time.Duration
}

// NewSimRunner resolves command[0] on PATH. Placeholders {diagram} and
// {results} in the arguments are expanded.
func NewSimRunner(command []string, diagramPath, resultsPath string) *SimRunner {
	if len(command) == 0 {
		return &SimRunner{}
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return &SimRunner{}
	}
	return &SimRunner{
		path:      path,
		args:      expandArgs(command[1:], diagramPath, resultsPath),
		available: true,
		timeout:   5 * time.Minute,
	}
}

// IsAvailable returns whether the simulator executable was found.
func (r *SimRunner) IsAvailable() bool {
	return r != nil && r.available
}

// Run executes the simulator asynchronously.
func (r *SimRunner) Run() tea.Cmd {
	if !r.IsAvailable() {
		return func() tea.Msg {
			return SimRunResultMsg{Err: ErrNoSimulator}
		}
	}
	path, args, timeout := r.path, r.args, r.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		output, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
		outStr := strings.TrimSpace(string(output))
		elapsed := time.Since(start)
		if err != nil {
			return SimRunResultMsg{
				Err:     fmt.Errorf("%s: %w", lastLine(outStr), err),
				Output:  outStr,
				Elapsed: elapsed,
			}
		}
		return SimRunResultMsg{Success: true, Output: outStr, Elapsed: elapsed}
	}
}

func expandArgs(args []string, diagramPath, resultsPath string) []string {
	out := make([]string, len(args))
	repl := strings.NewReplacer("{diagram}", diagramPath, "{results}", resultsPath)
	for i, a := range args {
		out[i] = repl.Replace(a)
	}
	return out
}

// lastLine returns the final non-empty line of simulator output.
func lastLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "simulator failed"
}
