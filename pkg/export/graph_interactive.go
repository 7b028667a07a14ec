package export

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// InteractiveGraphOptions configures HTML diagram generation.
type InteractiveGraphOptions struct {
	Nodes  []model.Node
	Links  []model.Link
	Report *analysis.Report
	Title  string
	// Path is the output file; empty auto-generates one from ProjectName.
	Path        string
	ProjectName string
	Render      Options
}

// htmlLoop is the per-loop payload the page script uses for highlighting.
type htmlLoop struct {
	ID    string   `json:"id"`
	Kind  string   `json:"kind"`
	Path  string   `json:"path"`
	Nodes []string `json:"nodes"`
	Links []string `json:"links"`
}

// GenerateInteractiveGraphFilename creates an auto-generated filename.
// Format: {project}_{YYYYMMDD}_{HHMMSS}_{gitshort}.html
func GenerateInteractiveGraphFilename(projectName string) string {
	dateStr := time.Now().Format("20060102_150405")

	gitShort := "nogit"
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	if output, err := cmd.Output(); err == nil {
		gitShort = strings.TrimSpace(string(output))
	}

	safeName := strings.ReplaceAll(projectName, " ", "_")
	safeName = strings.ReplaceAll(safeName, "/", "_")

	return fmt.Sprintf("%s_%s_%s.html", safeName, dateStr, gitShort)
}

// GenerateInteractiveGraphHTML writes a self-contained HTML page with the
// diagram as inline SVG and a loop list that highlights each loop's links.
// It returns the path written.
func GenerateInteractiveGraphHTML(opts InteractiveGraphOptions) (string, error) {
	if len(opts.Nodes) == 0 {
		return "", fmt.Errorf("no variables to export")
	}
	page, err := RenderInteractiveHTML(opts)
	if err != nil {
		return "", err
	}

	outputPath := opts.Path
	if outputPath == "" {
		projectName := opts.ProjectName
		if projectName == "" {
			projectName = "diagram"
		}
		outputPath = GenerateInteractiveGraphFilename(projectName)
	}
	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".html"
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dir: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(page), 0644); err != nil {
		return "", err
	}
	return outputPath, nil
}

// RenderInteractiveHTML returns the page GenerateInteractiveGraphHTML writes.
func RenderInteractiveHTML(opts InteractiveGraphOptions) (string, error) {
	report := opts.Report
	if report == nil {
		report = analysis.Analyze(opts.Nodes, opts.Links, analysis.DefaultLeverageConfig())
	}
	render := opts.Render
	if render.Layout.NodeWidth == 0 {
		render = DefaultOptions()
	}

	var svgBuf bytes.Buffer
	if err := WriteSVG(&svgBuf, opts.Nodes, opts.Links, render); err != nil {
		return "", fmt.Errorf("render svg: %w", err)
	}

	labels := make(map[string]string, len(opts.Nodes))
	for _, n := range opts.Nodes {
		labels[n.ID] = n.DisplayLabel()
	}
	loops := make([]htmlLoop, 0, len(report.Loops))
	for _, l := range report.Loops {
		names := make([]string, 0, len(l.Nodes)+1)
		for _, id := range l.Nodes {
			names = append(names, labels[id])
		}
		names = append(names, labels[l.Nodes[0]])
		loops = append(loops, htmlLoop{
			ID:    l.ID,
			Kind:  string(l.Kind),
			Path:  strings.Join(names, " → "),
			Nodes: l.Nodes,
			Links: l.Links,
		})
	}
	loopJSON, err := json.Marshal(loops)
	if err != nil {
		return "", fmt.Errorf("marshal loops: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = "Causal Loop Diagram"
	}

	var out bytes.Buffer
	err = interactiveTemplate.Execute(&out, map[string]any{
		"Title":       title,
		"Generated":   time.Now().Format("2006-01-02 15:04:05"),
		"SVG":         template.HTML(stripXMLHeader(svgBuf.String())),
		"Loops":       template.JS(loopJSON),
		"NodeCount":   len(opts.Nodes),
		"LinkCount":   len(opts.Links),
		"Reinforcing": report.Reinforcing,
		"Balancing":   report.Balancing,
	})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out.String(), nil
}

// stripXMLHeader drops the prolog and doctype svgo emits, which are invalid
// inside HTML.
func stripXMLHeader(s string) string {
	if i := strings.Index(s, "<svg"); i > 0 {
		return s[i:]
	}
	return s
}

var interactiveTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  body { margin: 0; font-family: sans-serif; display: flex; height: 100vh; color: #111827; }
  #canvas { flex: 1; overflow: auto; background: #f9fafb; }
  #side { width: 320px; border-left: 1px solid #e5e7eb; padding: 16px; overflow-y: auto; }
  .stats { color: #6b7280; font-size: 13px; margin-bottom: 12px; }
  .loop { padding: 6px 8px; border-radius: 6px; cursor: pointer; margin-bottom: 4px; font-size: 13px; }
  .loop:hover, .loop.active { background: #e5e7eb; }
  .tag { font-weight: bold; margin-right: 6px; }
  .reinforcing .tag { color: #2563eb; }
  .balancing .tag { color: #dc2626; }
  svg .dim { opacity: 0.2; }
</style>
</head>
<body>
<div id="canvas">{{.SVG}}</div>
<div id="side">
  <h2>{{.Title}}</h2>
  <div class="stats">{{.NodeCount}} variables, {{.LinkCount}} links, {{.Reinforcing}} R, {{.Balancing}} B<br>Generated {{.Generated}}</div>
  <div id="loops"></div>
</div>
<script>
const loops = {{.Loops}};
const list = document.getElementById('loops');
let active = null;

function highlight(loop) {
  document.querySelectorAll('svg .link, svg .node').forEach(el => {
    if (!loop) { el.classList.remove('dim'); return; }
    const id = el.dataset.link || el.dataset.node;
    const on = el.dataset.link ? loop.links.includes(id) : loop.nodes.includes(id);
    el.classList.toggle('dim', !on);
  });
}

if (loops.length === 0) {
  list.textContent = 'No feedback loops.';
}
loops.forEach(loop => {
  const row = document.createElement('div');
  row.className = 'loop ' + loop.kind;
  const tag = document.createElement('span');
  tag.className = 'tag';
  tag.textContent = loop.id;
  row.appendChild(tag);
  row.appendChild(document.createTextNode(loop.path));
  row.onclick = () => {
    const same = active === row;
    document.querySelectorAll('.loop').forEach(r => r.classList.remove('active'));
    active = same ? null : row;
    if (active) active.classList.add('active');
    highlight(same ? null : loop);
  };
  list.appendChild(row);
});
</script>
</body>
</html>
`))
