package model

import (
	"fmt"
	"time"
)

// Convergence summarizes the long-run behavior of a simulation run.
type Convergence string

const (
	ConvergenceStable      Convergence = "stable"
	ConvergenceOscillating Convergence = "oscillating"
	ConvergenceDivergent   Convergence = "divergent"
)

// IsValid returns true if the convergence is a recognized value
func (c Convergence) IsValid() bool {
	switch c {
	case ConvergenceStable, ConvergenceOscillating, ConvergenceDivergent:
		return true
	}
	return false
}

// Series is the time-indexed output for one node.
type Series struct {
	NodeID     string      `json:"node_id" yaml:"node_id"`
	Values     []float64   `json:"values" yaml:"values"`
	Timestamps []time.Time `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
}

// SimulationResult is an immutable snapshot produced by the run-simulation
// collaborator and handed to the player.
type SimulationResult struct {
	Duration      float64     `json:"duration" yaml:"duration"`
	TimeStepCount int         `json:"time_step_count" yaml:"time_step_count"`
	Convergence   Convergence `json:"convergence" yaml:"convergence"`
	Series        []Series    `json:"series" yaml:"series"`
}

// SeriesFor returns the series for nodeID.
func (r *SimulationResult) SeriesFor(nodeID string) (Series, bool) {
	if r == nil {
		return Series{}, false
	}
	for _, s := range r.Series {
		if s.NodeID == nodeID {
			return s, true
		}
	}
	return Series{}, false
}

// LongestSeries returns the length of the longest series.
func (r *SimulationResult) LongestSeries() int {
	if r == nil {
		return 0
	}
	longest := 0
	for _, s := range r.Series {
		if len(s.Values) > longest {
			longest = len(s.Values)
		}
	}
	return longest
}

// Validate reports the first completeness problem in the result. Playback
// itself tolerates incomplete series (missing slots read as 0); callers that
// need strict input call Validate first.
func (r *SimulationResult) Validate() error {
	if r == nil {
		return fmt.Errorf("simulation result is nil")
	}
	if r.TimeStepCount < 0 {
		return fmt.Errorf("time_step_count (%d) cannot be negative", r.TimeStepCount)
	}
	if r.Convergence != "" && !r.Convergence.IsValid() {
		return fmt.Errorf("invalid convergence: %s", r.Convergence)
	}
	if longest := r.LongestSeries(); longest != r.TimeStepCount {
		return fmt.Errorf("time_step_count (%d) does not match longest series (%d)", r.TimeStepCount, longest)
	}
	seen := make(map[string]bool, len(r.Series))
	for _, s := range r.Series {
		if s.NodeID == "" {
			return fmt.Errorf("series node_id cannot be empty")
		}
		if seen[s.NodeID] {
			return fmt.Errorf("duplicate series for node %s", s.NodeID)
		}
		seen[s.NodeID] = true
		if len(s.Values) < r.TimeStepCount {
			return fmt.Errorf("series %s has %d values, want %d", s.NodeID, len(s.Values), r.TimeStepCount)
		}
		if len(s.Timestamps) != 0 && len(s.Timestamps) != len(s.Values) {
			return fmt.Errorf("series %s has %d timestamps for %d values", s.NodeID, len(s.Timestamps), len(s.Values))
		}
	}
	return nil
}

// MissingSeries returns the ids of nodes that have no series.
func (r *SimulationResult) MissingSeries(nodes []Node) []string {
	var missing []string
	for _, n := range nodes {
		if _, ok := r.SeriesFor(n.ID); !ok {
			missing = append(missing, n.ID)
		}
	}
	return missing
}
