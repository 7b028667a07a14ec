// Package drift compares a diagram's loop analysis to a saved baseline.
// It reports loops that appeared, vanished or flipped polarity, shifts in
// the leverage ranking, and growth of the diagram itself.
package drift

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
)

// Severity represents the severity level of a drift alert
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AlertType categorizes different kinds of drift alerts
type AlertType string

const (
	AlertLoopFlipped     AlertType = "loop_flipped"
	AlertNewLoop         AlertType = "new_loop"
	AlertLoopRemoved     AlertType = "loop_removed"
	AlertLeverageChange  AlertType = "leverage_change"
	AlertNodeCountChange AlertType = "node_count_change"
	AlertLinkCountChange AlertType = "link_count_change"
)

// Alert represents a single drift detection alert
type Alert struct {
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	BaselineVal float64   `json:"baseline_value,omitempty"`
	CurrentVal  float64   `json:"current_value,omitempty"`
	Delta       float64   `json:"delta,omitempty"`
	Details     []string  `json:"details,omitempty"`
	DetectedAt  time.Time `json:"detected_at,omitempty"`
}

// Result contains the complete drift analysis
type Result struct {
	// HasDrift is true if any alerts were generated
	HasDrift bool `json:"has_drift"`

	Alerts []Alert `json:"alerts"`

	CriticalCount int `json:"critical_count"`
	WarningCount  int `json:"warning_count"`
	InfoCount     int `json:"info_count"`
}

// Config holds the thresholds that turn a change into an alert.
type Config struct {
	// NodeGrowthInfoPct and LinkGrowthInfoPct are the percentage changes
	// in diagram size that raise an info alert.
	NodeGrowthInfoPct float64 `json:"node_growth_info_pct"`
	LinkGrowthInfoPct float64 `json:"link_growth_info_pct"`
	// BetweennessChangeWarningPct is the relative betweenness shift of a
	// leverage point that raises a warning.
	BetweennessChangeWarningPct float64 `json:"betweenness_change_warning_pct"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() *Config {
	return &Config{
		NodeGrowthInfoPct:           20,
		LinkGrowthInfoPct:           20,
		BetweennessChangeWarningPct: 50,
	}
}

// Calculator performs drift detection
type Calculator struct {
	config   *Config
	baseline *analysis.Report
	current  *analysis.Report
	now      func() time.Time
}

// NewCalculator creates a drift calculator for a baseline and a current
// report. A nil cfg uses DefaultConfig.
func NewCalculator(baseline, current *analysis.Report, cfg *Config) *Calculator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Calculator{
		config:   cfg,
		baseline: baseline,
		current:  current,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Calculate performs drift detection and returns results
func (c *Calculator) Calculate() *Result {
	result := &Result{
		Alerts: make([]Alert, 0),
	}

	c.checkLoops(result)
	c.checkSize(result)
	c.checkLeverage(result)

	for _, alert := range result.Alerts {
		switch alert.Severity {
		case SeverityCritical:
			result.CriticalCount++
		case SeverityWarning:
			result.WarningCount++
		case SeverityInfo:
			result.InfoCount++
		}
	}
	result.HasDrift = len(result.Alerts) > 0

	return result
}

// checkLoops matches loops by their node sequence. A loop whose path is
// unchanged but whose kind differs flipped polarity, which inverts its
// behavior and is critical.
func (c *Calculator) checkLoops(result *Result) {
	baseline := make(map[string]analysis.Loop, len(c.baseline.Loops))
	for _, l := range c.baseline.Loops {
		baseline[loopKey(l)] = l
	}
	current := make(map[string]bool, len(c.current.Loops))

	var flipped, added []string
	for _, l := range c.current.Loops {
		key := loopKey(l)
		current[key] = true
		old, ok := baseline[key]
		switch {
		case !ok:
			added = append(added, describe(l))
		case old.Kind != l.Kind:
			flipped = append(flipped, fmt.Sprintf("%s: %s → %s", pathOf(l), old.Kind, l.Kind))
		}
	}
	var removed []string
	for _, l := range c.baseline.Loops {
		if !current[loopKey(l)] {
			removed = append(removed, describe(l))
		}
	}

	if len(flipped) > 0 {
		result.Alerts = append(result.Alerts, Alert{
			Type:       AlertLoopFlipped,
			Severity:   SeverityCritical,
			Message:    fmt.Sprintf("%d loop(s) changed polarity", len(flipped)),
			Delta:      float64(len(flipped)),
			Details:    flipped,
			DetectedAt: c.now(),
		})
	}
	if len(added) > 0 {
		result.Alerts = append(result.Alerts, Alert{
			Type:        AlertNewLoop,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("%d new loop(s) detected", len(added)),
			BaselineVal: float64(len(c.baseline.Loops)),
			CurrentVal:  float64(len(c.current.Loops)),
			Delta:       float64(len(added)),
			Details:     added,
			DetectedAt:  c.now(),
		})
	}
	if len(removed) > 0 {
		result.Alerts = append(result.Alerts, Alert{
			Type:        AlertLoopRemoved,
			Severity:    SeverityInfo,
			Message:     fmt.Sprintf("%d loop(s) no longer present", len(removed)),
			BaselineVal: float64(len(c.baseline.Loops)),
			CurrentVal:  float64(len(c.current.Loops)),
			Delta:       -float64(len(removed)),
			Details:     removed,
			DetectedAt:  c.now(),
		})
	}
}

func (c *Calculator) checkSize(result *Result) {
	if a, ok := c.sizeAlert(AlertNodeCountChange, "Variable", c.baseline.Nodes, c.current.Nodes, c.config.NodeGrowthInfoPct); ok {
		result.Alerts = append(result.Alerts, a)
	}
	if a, ok := c.sizeAlert(AlertLinkCountChange, "Link", c.baseline.Links, c.current.Links, c.config.LinkGrowthInfoPct); ok {
		result.Alerts = append(result.Alerts, a)
	}
}

func (c *Calculator) sizeAlert(typ AlertType, what string, before, after int, thresholdPct float64) (Alert, bool) {
	if before == 0 {
		return Alert{}, false
	}
	delta := after - before
	pct := float64(delta) / float64(before) * 100
	if pct < thresholdPct && pct > -thresholdPct {
		return Alert{}, false
	}
	return Alert{
		Type:        typ,
		Severity:    SeverityInfo,
		Message:     fmt.Sprintf("%s count changed by %+d (%.1f%%)", what, delta, pct),
		BaselineVal: float64(before),
		CurrentVal:  float64(after),
		Delta:       float64(delta),
		DetectedAt:  c.now(),
	}, true
}

// checkLeverage compares the ranked leverage points.
func (c *Calculator) checkLeverage(result *Result) {
	before := make(map[string]analysis.LeveragePoint, len(c.baseline.Leverage.Points))
	for _, p := range c.baseline.Leverage.Points {
		before[p.NodeID] = p
	}
	after := make(map[string]analysis.LeveragePoint, len(c.current.Leverage.Points))
	for _, p := range c.current.Leverage.Points {
		after[p.NodeID] = p
	}

	var changes []string
	for id, old := range before {
		cur, ok := after[id]
		if !ok {
			changes = append(changes, fmt.Sprintf("%s dropped out of the leverage points", old.Label))
			continue
		}
		if old.Betweenness > 0 {
			pct := (cur.Betweenness - old.Betweenness) / old.Betweenness * 100
			if pct >= c.config.BetweennessChangeWarningPct || pct <= -c.config.BetweennessChangeWarningPct {
				changes = append(changes, fmt.Sprintf("%s: betweenness %+.1f%%", cur.Label, pct))
			}
		}
	}
	for id, p := range after {
		if _, ok := before[id]; !ok {
			changes = append(changes, fmt.Sprintf("%s became a leverage point", p.Label))
		}
	}
	if len(changes) == 0 {
		return
	}
	sort.Strings(changes)
	result.Alerts = append(result.Alerts, Alert{
		Type:       AlertLeverageChange,
		Severity:   SeverityWarning,
		Message:    fmt.Sprintf("%d leverage change(s) detected", len(changes)),
		Details:    changes,
		DetectedAt: c.now(),
	})
}

// loopKey identifies a loop by its directed node sequence. Loops are
// reported starting from their smallest node id, so the sequence is
// canonical.
func loopKey(l analysis.Loop) string {
	return strings.Join(l.Nodes, "|")
}

func pathOf(l analysis.Loop) string {
	return strings.Join(append(append([]string{}, l.Nodes...), l.Nodes[0]), " → ")
}

func describe(l analysis.Loop) string {
	return fmt.Sprintf("%s %s", l.Kind.Symbol(), pathOf(l))
}

// Summary returns a human-readable summary of drift results
func (r *Result) Summary() string {
	if !r.HasDrift {
		return "No drift detected. Loop structure matches the baseline.\n"
	}

	var sb strings.Builder
	sb.WriteString("Loop Drift Summary\n")
	sb.WriteString("==================\n\n")

	if r.CriticalCount > 0 {
		fmt.Fprintf(&sb, "CRITICAL: %d issue(s)\n", r.CriticalCount)
	}
	if r.WarningCount > 0 {
		fmt.Fprintf(&sb, "WARNING: %d issue(s)\n", r.WarningCount)
	}
	if r.InfoCount > 0 {
		fmt.Fprintf(&sb, "INFO: %d issue(s)\n", r.InfoCount)
	}

	sb.WriteString("\nDetails:\n")
	for _, alert := range r.Alerts {
		fmt.Fprintf(&sb, "  [%s] %s: %s\n", alert.Severity, alert.Type, alert.Message)
		for _, detail := range alert.Details {
			fmt.Fprintf(&sb, "      - %s\n", detail)
		}
	}
	sb.WriteString("\n")

	return sb.String()
}

// HasCritical returns true if there are any critical alerts
func (r *Result) HasCritical() bool {
	return r.CriticalCount > 0
}

// HasWarnings returns true if there are any warning or critical alerts
func (r *Result) HasWarnings() bool {
	return r.CriticalCount > 0 || r.WarningCount > 0
}

// ExitCode returns suggested exit code for CI use
// 0 = no drift, 1 = critical, 2 = warning, 0 = info only
func (r *Result) ExitCode() int {
	if r.CriticalCount > 0 {
		return 1
	}
	if r.WarningCount > 0 {
		return 2
	}
	return 0
}
