package playback

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// ExportCSV writes the result set as CSV: a "Time" column followed by one
// column per series, headed by the node's label (or its id when the node
// is unknown or unlabeled). Values use two decimals and missing slots
// are written as 0.00.
func (p *Player) ExportCSV(w io.Writer, nodes []model.Node) error {
	p.mu.Lock()
	result := p.result
	p.mu.Unlock()
	if result == nil {
		return ErrNoResults
	}
	return WriteCSV(w, result, nodes)
}

// WriteCSV writes result as CSV. See Player.ExportCSV.
func WriteCSV(w io.Writer, result *model.SimulationResult, nodes []model.Node) error {
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.DisplayLabel()
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(result.Series)+1)
	header = append(header, "Time")
	for _, s := range result.Series {
		label, ok := labels[s.NodeID]
		if !ok {
			label = s.NodeID
		}
		header = append(header, label)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	row := make([]string, len(header))
	for t := 0; t < result.TimeStepCount; t++ {
		row[0] = strconv.Itoa(t)
		for i, s := range result.Series {
			v := 0.0
			if t < len(s.Values) {
				v = s.Values[t]
			}
			row[i+1] = strconv.FormatFloat(v, 'f', 2, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", t, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
