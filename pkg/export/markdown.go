package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// GenerateMarkdown creates a loop report: summary, a mermaid rendering of the
// diagram, the variable table and the loop analysis.
func GenerateMarkdown(nodes []model.Node, links []model.Link, report *analysis.Report, title string) (string, error) {
	if report == nil {
		report = analysis.Analyze(nodes, links, analysis.DefaultLeverageConfig())
	}
	var sb strings.Builder
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.DisplayLabel()
	}
	label := func(id string) string {
		if l, ok := labels[id]; ok {
			return l
		}
		return id
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Variables**: %d\n", len(nodes)))
	sb.WriteString(fmt.Sprintf("- **Links**: %d\n", len(links)))
	sb.WriteString(fmt.Sprintf("- **Reinforcing loops**: %d\n", report.Reinforcing))
	sb.WriteString(fmt.Sprintf("- **Balancing loops**: %d\n\n", report.Balancing))

	sb.WriteString("## Diagram\n\n")
	sb.WriteString("```mermaid\ngraph LR\n")
	ids := make(map[string]string, len(nodes))
	for i, n := range nodes {
		// Mermaid ids must be plain identifiers.
		ids[n.ID] = fmt.Sprintf("n%d", i)
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[n.ID], mermaidLabel(n.DisplayLabel())))
	}
	drawn := 0
	for _, l := range links {
		from, ok1 := ids[l.SourceID]
		to, ok2 := ids[l.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		arrow := "-->"
		if l.Polarity == model.PolarityNegative {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%s| %s\n", from, arrow, l.Polarity.Symbol(), to))
		drawn++
	}
	if len(nodes) == 0 {
		sb.WriteString("    empty[No Variables]\n")
	} else if drawn == 0 {
		sb.WriteString("    %% no links\n")
	}
	sb.WriteString("```\n\n")

	if len(nodes) > 0 {
		sb.WriteString("## Variables\n\n")
		sb.WriteString("| Variable | Type | Value | Category | Loops |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, n := range nodes {
			value := ""
			if n.Value != nil {
				value = fmtNum(*n.Value)
			}
			var in []string
			for _, l := range report.LoopsThrough(n.ID) {
				in = append(in, l.ID)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				cell(n.DisplayLabel()), n.Type, value, cell(n.Category), strings.Join(in, ", ")))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Feedback Loops\n\n")
	if len(report.Loops) == 0 {
		sb.WriteString("No feedback loops.\n\n")
	} else {
		sb.WriteString("| Loop | Kind | Length | Path |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, l := range report.Loops {
			path := make([]string, 0, len(l.Nodes)+1)
			for _, id := range l.Nodes {
				path = append(path, label(id))
			}
			path = append(path, label(l.Nodes[0]))
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", l.ID, l.Kind, l.Len(), cell(strings.Join(path, " → "))))
		}
		sb.WriteString("\n")
	}

	if len(report.Leverage.Points) > 0 {
		sb.WriteString("## Leverage Points\n\n")
		sb.WriteString(fmt.Sprintf("Betweenness: %s\n\n", report.Leverage.Mode))
		sb.WriteString("| Variable | Loops | Betweenness |\n")
		sb.WriteString("|---|---|---|\n")
		for _, p := range report.Leverage.Points {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f |\n", cell(p.Label), p.Loops, p.Betweenness))
		}
		sb.WriteString("\n")
	}

	if len(report.Breaks) > 0 {
		sb.WriteString("## Shared Links\n\n")
		sb.WriteString("Links that sit on more than one loop.\n\n")
		for _, b := range report.Breaks {
			sb.WriteString(fmt.Sprintf("- **%s → %s** (%s): %s\n",
				label(b.SourceID), label(b.TargetID), b.Polarity.Symbol(), strings.Join(b.InLoops, ", ")))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// SaveMarkdownToFile writes the loop report to filename.
func SaveMarkdownToFile(nodes []model.Node, links []model.Link, report *analysis.Report, title, filename string) error {
	content, err := GenerateMarkdown(nodes, links, report, title)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

func mermaidLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.NewReplacer("[", "", "]", "", "(", "", ")", "").Replace(s)
	if r := []rune(s); len(r) > 30 {
		s = string(r[:27]) + "..."
	}
	return s
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}
