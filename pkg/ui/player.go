package ui

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/playback"
)

// playerFooterRows covers the progress bar, sparkline, status and help.
const playerFooterRows = 4

// TickMsg reports an autoplay step.
type TickMsg playback.Status

// PlayerConfig configures the simulation player screen.
type PlayerConfig struct {
	Title   string
	Diagram *model.Diagram
	Result  *model.SimulationResult
	// Worker reloads results in the background; optional.
	Worker *BackgroundWorker
	// Runner starts the external simulator; optional.
	Runner   *SimRunner
	Speed    float64
	Autoplay bool
	// ExportPath is where e writes the CSV.
	ExportPath string
	Clock      playback.Clock
	Layout     canvas.Layout
	Logger     *slog.Logger
	Theme      *Theme
}

// PlayerModel shows a diagram with simulation values and drives playback.
type PlayerModel struct {
	cfg    PlayerConfig
	nodes  []model.Node
	links  []model.Link
	layout canvas.Layout
	player *playback.Player
	ticks  chan playback.Status
	logger *slog.Logger

	theme Theme
	md    *MarkdownRenderer
	help  help.Model
	keys  playerKeyMap

	width, height int
	ready         bool
	showHelp      bool
	series        int
	status        string
	statusErr     bool
}

// NewPlayerModel creates a player over cfg.Result, which may be nil until
// the worker delivers one.
func NewPlayerModel(cfg PlayerConfig) PlayerModel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}
	layout := cfg.Layout
	if layout.NodeWidth <= 0 {
		layout = canvas.DefaultLayout()
	}
	var nodes []model.Node
	var links []model.Link
	if cfg.Diagram != nil {
		nodes, links = cfg.Diagram.Graph()
	}

	ticks := make(chan playback.Status, 1)
	opts := []playback.Option{
		playback.WithLogger(logger),
		playback.WithOnTick(func(s playback.Status) {
			// The UI reads the player directly, so a dropped tick only
			// delays a redraw.
			select {
			case ticks <- s:
			default:
			}
		}),
	}
	if cfg.Clock != nil {
		opts = append(opts, playback.WithClock(cfg.Clock))
	}
	p := playback.New(cfg.Result, opts...)

	m := PlayerModel{
		cfg:    cfg,
		nodes:  nodes,
		links:  links,
		layout: layout,
		player: p,
		ticks:  ticks,
		logger: logger,
		theme:  theme,
		md:     NewMarkdownRendererWithTheme(60, theme),
		help:   help.New(),
		keys:   playerKeys,
	}
	if cfg.Speed != 0 {
		if err := p.SetSpeed(cfg.Speed); err != nil {
			m.setStatus(err.Error(), true)
		}
	}
	if cfg.Result != nil {
		m.reportMissing(cfg.Result)
	}
	if cfg.Autoplay {
		p.Play()
	}
	return m
}

// Player exposes the playback controller.
func (m PlayerModel) Player() *playback.Player {
	return m.player
}

// Status returns the status line text.
func (m PlayerModel) Status() string {
	return m.status
}

func (m PlayerModel) Init() tea.Cmd {
	return waitForTick(m.ticks)
}

func waitForTick(ch <-chan playback.Status) tea.Cmd {
	return func() tea.Msg {
		return TickMsg(<-ch)
	}
}

func (m PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width

	case TickMsg:
		return m, waitForTick(m.ticks)

	case ResultsReadyMsg:
		m.player.Load(msg.Result)
		m.series = 0
		m.setStatus(fmt.Sprintf("loaded %d steps", m.player.Status().Steps), false)
		m.reportMissing(msg.Result)

	case ResultsErrorMsg:
		m.setStatus("results: "+msg.Err.Error(), true)

	case SimRunResultMsg:
		if !msg.Success {
			m.logger.Warn("simulator failed", "error", msg.Err, "elapsed", msg.Elapsed)
			m.setStatus("simulator: "+msg.Err.Error(), true)
			break
		}
		m.logger.Info("simulator finished", "elapsed", msg.Elapsed)
		m.setStatus(fmt.Sprintf("simulation finished in %s", msg.Elapsed.Round(time.Millisecond)), false)
		if m.cfg.Worker != nil {
			m.cfg.Worker.ResetHash()
			m.cfg.Worker.TriggerRefresh()
		}

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *PlayerModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Quit) || msg.String() == "esc" {
			m.showHelp = false
		}
		return nil
	}

	st := m.player.Status()
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.player.Close()
		if m.cfg.Worker != nil {
			m.cfg.Worker.Stop()
		}
		return tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		m.player.Toggle()
	case key.Matches(msg, m.keys.Back):
		m.player.Step(-1)
	case key.Matches(msg, m.keys.Forward):
		m.player.Step(1)
	case key.Matches(msg, m.keys.First):
		m.player.Seek(0)
	case key.Matches(msg, m.keys.Last):
		m.player.Seek(st.Steps - 1)
	case key.Matches(msg, m.keys.Speed):
		speed := playback.Speeds[int(msg.String()[0]-'1')]
		if err := m.player.SetSpeed(speed); err != nil {
			m.setStatus(err.Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("speed %gx", speed), false)
		}
	case key.Matches(msg, m.keys.Series):
		if r := m.player.Result(); r != nil && len(r.Series) > 0 {
			m.series = (m.series + 1) % len(r.Series)
		}
	case key.Matches(msg, m.keys.Copy):
		var sb strings.Builder
		if err := m.player.ExportCSV(&sb, m.nodes); err != nil {
			m.setStatus(err.Error(), true)
			break
		}
		if err := clipboardWrite(sb.String()); err != nil {
			m.setStatus("clipboard: "+err.Error(), true)
			break
		}
		m.setStatus("copied CSV", false)
	case key.Matches(msg, m.keys.Export):
		m.exportCSV()
	case key.Matches(msg, m.keys.Reload):
		if m.cfg.Worker == nil {
			m.setStatus("no results file to reload", true)
			break
		}
		m.cfg.Worker.ResetHash()
		m.cfg.Worker.TriggerRefresh()
		m.setStatus("reloading...", false)
	case key.Matches(msg, m.keys.Run):
		m.setStatus("running simulator...", false)
		return m.cfg.Runner.Run()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	}
	return nil
}

func (m *PlayerModel) exportCSV() {
	path := m.cfg.ExportPath
	if path == "" {
		path = "simulation.csv"
	}
	f, err := os.Create(path)
	if err != nil {
		m.setStatus("export: "+err.Error(), true)
		return
	}
	err = m.player.ExportCSV(f, m.nodes)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.setStatus("export: "+err.Error(), true)
		return
	}
	m.logger.Info("csv exported", "path", path)
	m.setStatus("exported "+path, false)
}

// reportMissing warns about diagram variables without a series.
func (m *PlayerModel) reportMissing(r *model.SimulationResult) {
	if missing := r.MissingSeries(m.nodes); len(missing) > 0 {
		m.setStatus(fmt.Sprintf("no series for %d variables: %s", len(missing), strings.Join(missing, ", ")), true)
	}
}

func (m *PlayerModel) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m PlayerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.showHelp {
		return RenderContextHelp(ContextPlayer, m.theme, m.md, m.width, m.height)
	}

	st := m.player.Status()
	w := max(m.width, 1)
	h := max(m.height-headerRows-playerFooterRows, 1)

	state := canvas.NewEditorState()
	state.ShowGrid = false
	state.View = FitTransform(m.nodes, m.layout, w, h)
	cv := CanvasView{
		Nodes:  m.nodes,
		Links:  m.links,
		State:  state,
		Layout: m.layout,
	}
	if st.Steps > 0 {
		cv.Values = m.player.ValuesAt(st.Cursor)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(st),
		cv.Render(w, h, m.theme),
		m.renderProgress(st, w),
		m.renderSparkline(st, w),
		m.renderStatus(),
		m.help.View(m.keys),
	)
}

func (m PlayerModel) renderHeader(st playback.Status) string {
	t := m.theme
	title := m.cfg.Title
	if title == "" {
		title = "simulation"
	}
	icon := "■"
	switch st.State {
	case playback.StatePlaying:
		icon = "▶"
	case playback.StatePaused:
		icon = "⏸"
	}
	info := fmt.Sprintf("%s step %d/%d │ %gx", icon, st.Cursor+1, st.Steps, st.Speed)
	if st.Steps == 0 {
		info = fmt.Sprintf("%s no results │ %gx", icon, st.Speed)
	}
	if ts, ok := m.player.Timestamp(st.Cursor); ok {
		info += " │ " + ts.Format(time.DateTime)
	}
	return t.Renderer.NewStyle().Foreground(t.Primary).Bold(true).Render(title) + "  " +
		t.Renderer.NewStyle().Foreground(t.Subtext).Render(info)
}

// renderProgress draws the cursor position as a filled bar.
func (m PlayerModel) renderProgress(st playback.Status, width int) string {
	t := m.theme
	barW := max(width-2, 1)
	filled := 0
	if st.Steps > 1 {
		filled = st.Cursor * barW / (st.Steps - 1)
	} else if st.Steps == 1 {
		filled = barW
	}
	return " " + t.Renderer.NewStyle().Foreground(t.Primary).Render(strings.Repeat("━", filled)) +
		t.Renderer.NewStyle().Foreground(t.Border).Render(strings.Repeat("─", barW-filled))
}

// renderSparkline plots the selected series up to the cursor.
func (m PlayerModel) renderSparkline(st playback.Status, width int) string {
	t := m.theme
	r := m.player.Result()
	if r == nil || len(r.Series) == 0 {
		return ""
	}
	s := r.Series[m.series%len(r.Series)]
	label := s.NodeID
	for _, n := range m.nodes {
		if n.ID == s.NodeID {
			label = n.DisplayLabel()
			break
		}
	}
	prefix := fmt.Sprintf(" %s %s ", label, formatValue(m.player.CurrentValue(s.NodeID)))
	end := min(st.Cursor+1, len(s.Values))
	spark := sparkline(s.Values[:end], max(width-lipgloss.Width(prefix)-1, 1))
	return t.Renderer.NewStyle().Foreground(t.Text).Render(prefix) +
		t.Renderer.NewStyle().Foreground(t.Secondary).Render(spark)
}

func (m PlayerModel) renderStatus() string {
	t := m.theme
	style := t.Renderer.NewStyle().Foreground(t.Secondary)
	if m.statusErr {
		style = t.Renderer.NewStyle().Foreground(t.Negative)
	}
	return style.Render(m.status)
}
