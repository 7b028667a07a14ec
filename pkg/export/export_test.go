package export

import (
	"bufio"
	"bytes"
	"errors"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vanderheijden86/loopcanvas/pkg/analysis"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

func ptr(v float64) *float64 { return &v }

func populationDiagram() ([]model.Node, []model.Link) {
	return []model.Node{
			{ID: "births", Label: "Births", Type: model.NodeFlow, Position: model.Position{X: 0, Y: 0}},
			{ID: "population", Label: "Population", Type: model.NodeStock, Position: model.Position{X: 300, Y: 0}, Value: ptr(100)},
			{ID: "deaths", Label: "Deaths", Type: model.NodeFlow, Position: model.Position{X: 600, Y: 0}},
		}, []model.Link{
			{ID: "l1", SourceID: "births", TargetID: "population", Polarity: model.PolarityPositive, LineType: model.LineStraight},
			{ID: "l2", SourceID: "population", TargetID: "births", Polarity: model.PolarityPositive, LineType: model.LineCurved},
			{ID: "l3", SourceID: "population", TargetID: "deaths", Polarity: model.PolarityPositive, LineType: model.LineElbow},
			{ID: "l4", SourceID: "deaths", TargetID: "population", Polarity: model.PolarityNegative, LineType: model.LineCurved},
		}
}

func TestSceneBounds(t *testing.T) {
	s := newScene([]model.Node{{ID: "a"}}, nil, DefaultOptions())
	if s.min != (model.Position{X: -100, Y: -64}) || s.max != (model.Position{X: 100, Y: 64}) {
		t.Errorf("bounds = %v..%v, want (-100,-64)..(100,64)", s.min, s.max)
	}

	empty := newScene(nil, nil, DefaultOptions())
	if empty.width() != 80 || empty.height() != 80 {
		t.Errorf("empty scene = %vx%v, want 80x80", empty.width(), empty.height())
	}

	dangling := newScene([]model.Node{{ID: "a"}}, []model.Link{{ID: "x", SourceID: "a", TargetID: "ghost"}}, DefaultOptions())
	if len(dangling.links) != 0 {
		t.Errorf("links with unknown endpoints should be skipped, got %d", len(dangling.links))
	}
}

func TestArrowAt(t *testing.T) {
	nodes := []model.Node{{ID: "a"}, {ID: "b", Position: model.Position{X: 200}}}
	links := []model.Link{{ID: "l", SourceID: "a", TargetID: "b", Polarity: model.PolarityPositive}}
	s := newScene(nodes, links, DefaultOptions())
	arrow := s.links[0].arrow

	want := [3]model.Position{{X: 140, Y: 0}, {X: 130, Y: 5}, {X: 130, Y: -5}}
	for i := range want {
		if arrow[i].Distance(want[i]) > 1e-9 {
			t.Errorf("arrow[%d] = %v, want %v", i, arrow[i], want[i])
		}
	}

	// Vertical arrival stops at the top edge.
	nodes[1].Position = model.Position{X: 0, Y: 200}
	s = newScene(nodes, links, DefaultOptions())
	if tip := s.links[0].arrow[0]; tip.Distance(model.Position{X: 0, Y: 176}) > 1e-9 {
		t.Errorf("vertical tip = %v, want (0,176)", tip)
	}
}

func TestWriteSVG(t *testing.T) {
	nodes, links := populationDiagram()
	nodes[0].Label = "Births & <Immigration>"
	opts := DefaultOptions()
	opts.Title = "Population"
	opts.SelectedLink = "l1"

	var buf bytes.Buffer
	if err := WriteSVG(&buf, nodes, links, opts); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<svg",
		"<title>Population</title>",
		`data-link="l4"`,
		`data-node="population"`,
		"stroke-dasharray:5,5",
		"stroke-width:3",
		"Births &amp; &lt;Immigration&gt;",
		">−</text>",
		">100</text>",
		"M 300 0 Q",
		"</svg>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if n := strings.Count(out, "<polygon"); n != len(links) {
		t.Errorf("arrowheads = %d, want %d", n, len(links))
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSVG_WriteError(t *testing.T) {
	nodes, links := populationDiagram()
	if err := WriteSVG(failingWriter{}, nodes, links, DefaultOptions()); err == nil {
		t.Error("expected write error")
	}
}

func TestWritePNG(t *testing.T) {
	nodes, links := populationDiagram()

	tests := []struct {
		name  string
		scale float64
	}{
		{"DefaultScale", 0},
		{"Unit", 1},
		{"Double", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Scale = tt.scale
			var buf bytes.Buffer
			if err := WritePNG(&buf, nodes, links, opts); err != nil {
				t.Fatalf("WritePNG: %v", err)
			}
			img, err := png.Decode(&buf)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			scale := math.Max(tt.scale, 1)
			s := newScene(nodes, links, opts)
			wantW, wantH := pngSize(s, scale)
			b := img.Bounds()
			if b.Dx() != wantW || b.Dy() != wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), wantW, wantH)
			}

			r, g, bl, _ := img.At(0, 0).RGBA()
			if r != 0xffff || g != 0xffff || bl != 0xffff {
				t.Errorf("corner pixel should be white background")
			}
		})
	}
}

func TestGenerateMarkdown(t *testing.T) {
	nodes, links := populationDiagram()
	report := analysis.Analyze(nodes, links, analysis.DefaultLeverageConfig())

	out, err := GenerateMarkdown(nodes, links, report, "Population Model")
	if err != nil {
		t.Fatalf("GenerateMarkdown: %v", err)
	}
	for _, want := range []string{
		"# Population Model",
		"- **Reinforcing loops**: 1",
		"- **Balancing loops**: 1",
		"```mermaid\ngraph LR\n",
		`n1["Population"]`,
		"n2 -.->|−| n1",
		"n0 -->|+| n1",
		"| Population | stock | 100 |  | R1, B1 |",
		"| R1 | reinforcing | 2 | Births → Population → Births |",
		"| B1 | balancing | 2 | Deaths → Population → Deaths |",
		"## Leverage Points",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
}

func TestGenerateMarkdown_Empty(t *testing.T) {
	out, err := GenerateMarkdown(nil, nil, nil, "Empty")
	if err != nil {
		t.Fatalf("GenerateMarkdown: %v", err)
	}
	if !strings.Contains(out, "No Variables") || !strings.Contains(out, "No feedback loops.") {
		t.Errorf("empty report:\n%s", out)
	}
	if strings.Contains(out, "## Variables") {
		t.Error("empty report should omit the variable table")
	}
}

func TestSaveMarkdownToFile(t *testing.T) {
	nodes, links := populationDiagram()
	path := filepath.Join(t.TempDir(), "report.md")
	if err := SaveMarkdownToFile(nodes, links, nil, "Report", path); err != nil {
		t.Fatalf("SaveMarkdownToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Report\n") {
		t.Errorf("unexpected file content: %.40q", data)
	}
}

func TestMermaidLabelAndCell(t *testing.T) {
	if got := mermaidLabel(`Say "hi" [now] (ok)`); got != "Say 'hi' now ok" {
		t.Errorf("mermaidLabel = %q", got)
	}
	if got := mermaidLabel(strings.Repeat("é", 40)); got != strings.Repeat("é", 27)+"..." {
		t.Errorf("long label = %q", got)
	}
	if got := cell("a|b\nc"); got != `a\|b c` {
		t.Errorf("cell = %q", got)
	}
}

func TestRenderInteractiveHTML(t *testing.T) {
	nodes, links := populationDiagram()
	page, err := RenderInteractiveHTML(InteractiveGraphOptions{Nodes: nodes, Links: links, Title: "A <b> Title"})
	if err != nil {
		t.Fatalf("RenderInteractiveHTML: %v", err)
	}
	if strings.Contains(page, "<?xml") {
		t.Error("inline svg should not carry an xml prolog")
	}
	for _, want := range []string{"<svg", `"id":"R1"`, `"id":"B1"`, "A &lt;b&gt; Title", "3 variables, 4 links, 1 R, 1 B"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestGenerateInteractiveGraphHTML(t *testing.T) {
	if _, err := GenerateInteractiveGraphHTML(InteractiveGraphOptions{}); err == nil {
		t.Error("expected error for empty diagram")
	}

	nodes, links := populationDiagram()
	path := filepath.Join(t.TempDir(), "out", "diagram.htm")
	got, err := GenerateInteractiveGraphHTML(InteractiveGraphOptions{Nodes: nodes, Links: links, Path: path})
	if err != nil {
		t.Fatalf("GenerateInteractiveGraphHTML: %v", err)
	}
	if filepath.Ext(got) != ".html" {
		t.Errorf("path = %s, want .html extension", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestGenerateInteractiveGraphFilename(t *testing.T) {
	name := GenerateInteractiveGraphFilename("my project/x")
	if !strings.HasPrefix(name, "my_project_x_") || !strings.HasSuffix(name, ".html") {
		t.Errorf("filename = %s", name)
	}
}

func TestPreviewServer(t *testing.T) {
	nodes, links := populationDiagram()
	hub, err := NewLiveReloadHub(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer hub.Stop()

	var fail atomic.Bool
	p := NewPreviewServer(func() (InteractiveGraphOptions, error) {
		if fail.Load() {
			return InteractiveGraphOptions{}, errors.New("bad diagram")
		}
		return InteractiveGraphOptions{Nodes: nodes, Links: links}, nil
	}, hub, nil)
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	body := get(t, srv.URL+"/", http.StatusOK)
	if !strings.Contains(body, EventsPath) || !strings.Contains(body, "<svg") {
		t.Error("page should carry the diagram and the reload script")
	}
	if strings.Index(body, EventsPath) > strings.LastIndex(body, "</body>") {
		t.Error("reload script should be injected before </body>")
	}

	get(t, srv.URL+"/missing", http.StatusNotFound)

	fail.Store(true)
	get(t, srv.URL+"/", http.StatusInternalServerError)
}

func get(t *testing.T, url string, status int) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Errorf("GET %s = %d, want %d", url, resp.StatusCode, status)
	}
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}

func TestLiveReloadHub_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "diagram.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	hub, err := NewLiveReloadHub(nil, file)
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	srv := httptest.NewServer(hub.SSEHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	events := sseEvents(resp.Body)

	waitEvent(t, events, "connected")

	// Unrelated files in the same directory are ignored.
	os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644)
	if err := os.WriteFile(file, []byte(`{"nodes":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, events, "reload")
}

func TestLiveReloadHub_NotifyAndStop(t *testing.T) {
	hub, err := NewLiveReloadHub(nil)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(hub.SSEHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	events := sseEvents(resp.Body)
	waitEvent(t, events, "connected")

	if hub.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", hub.ClientCount())
	}
	hub.Notify()
	waitEvent(t, events, "reload")

	hub.Stop()
	hub.Stop()
	if hub.ClientCount() != 0 {
		t.Errorf("clients after stop = %d", hub.ClientCount())
	}
}

// sseEvents streams event names from an SSE body.
func sseEvents(r io.Reader) <-chan string {
	ch := make(chan string, 8)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				ch <- name
			}
		}
	}()
	return ch
}

func waitEvent(t *testing.T, events <-chan string, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got, ok := <-events:
			if !ok {
				t.Fatalf("stream closed waiting for %q", want)
			}
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}
