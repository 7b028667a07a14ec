package ui

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/loader"
	"github.com/vanderheijden86/loopcanvas/pkg/logging"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// DoubleClickInterval is the longest gap between two releases on the same
// cell that still counts as a double-click.
const DoubleClickInterval = 400 * time.Millisecond

// headerRows and footerRows frame the canvas.
const (
	headerRows = 1
	footerRows = 2
	loopsWidth = 40
)

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

type focus int

const (
	focusCanvas focus = iota
	focusHelp
	focusPicker
)

// journaledDocument routes commands through the journal while reading the
// graph straight from the diagram.
type journaledDocument struct {
	model.Dispatcher
	diagram *model.Diagram
}

func (d journaledDocument) Graph() ([]model.Node, []model.Link) {
	return d.diagram.Graph()
}

// eventQueue collects controller events between updates.
type eventQueue struct {
	events []canvas.Event
}

func (q *eventQueue) push(e canvas.Event) { q.events = append(q.events, e) }

func (q *eventQueue) drain() []canvas.Event {
	out := q.events
	q.events = nil
	return out
}

type clickRecord struct {
	at       time.Time
	col, row int
	valid    bool
}

// EditorConfig configures the diagram editor.
type EditorConfig struct {
	// Path is where ctrl+s writes the diagram.
	Path    string
	Title   string
	Diagram *model.Diagram
	// State restores a saved editor state; nil starts fresh.
	State *canvas.EditorState
	// StatePath is where the editor state is saved on quit; empty disables it.
	StatePath       string
	Layout          canvas.Layout
	DuplicateOffset float64
	Journal         *logging.Journal
	Logger          *slog.Logger
	Theme           *Theme
}

// Model is the interactive diagram editor.
type Model struct {
	cfg     EditorConfig
	diagram *model.Diagram
	ctrl    *canvas.Controller
	events  *eventQueue
	logger  *slog.Logger

	theme Theme
	md    *MarkdownRenderer
	help  help.Model
	keys  editorKeyMap

	width, height int
	ready         bool
	focus         focus
	picker        TemplatePickerModel
	showLoops     bool
	loops         LoopsPanel
	// loopsRev is the diagram revision the loops panel was built from.
	loopsRev      uint64

	status      string
	statusErr   bool
	confirmQuit bool
	pressed     bool
	lastClick   clickRecord
	now         func() time.Time
}

// NewModel creates an editor over cfg.Diagram.
func NewModel(cfg EditorConfig) Model {
	if cfg.Diagram == nil {
		cfg.Diagram = model.NewDiagram()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}

	events := &eventQueue{}
	doc := journaledDocument{Dispatcher: cfg.Journal.Wrap(cfg.Diagram), diagram: cfg.Diagram}
	opts := []canvas.Option{
		canvas.WithLogger(logger),
		canvas.WithObserver(events.push),
	}
	if cfg.Layout.NodeWidth > 0 {
		opts = append(opts, canvas.WithLayout(cfg.Layout))
	}
	if cfg.DuplicateOffset > 0 {
		opts = append(opts, canvas.WithDuplicateOffset(cfg.DuplicateOffset))
	}
	if cfg.State != nil {
		opts = append(opts, canvas.WithState(*cfg.State))
	}
	ctrl := canvas.NewController(doc, opts...)
	ctrl.SetOrigin(0, headerRows*CellHeight)

	return Model{
		cfg:     cfg,
		diagram: cfg.Diagram,
		ctrl:    ctrl,
		events:  events,
		logger:  logger,
		theme:   theme,
		md:      NewMarkdownRendererWithTheme(60, theme),
		help:    help.New(),
		keys:    editorKeys,
		now:     time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Controller exposes the canvas controller.
func (m Model) Controller() *canvas.Controller {
	return m.ctrl
}

// Diagram returns the edited diagram.
func (m Model) Diagram() *model.Diagram {
	return m.diagram
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.picker.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		cmd = m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
	}

	m.drainEvents()
	// Loop analysis waits for the end of a drag.
	if m.showLoops && !isPointerMotion(msg) {
		m.refreshLoops()
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.focus {
	case focusHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Esc, m.keys.Quit) {
			m.focus = focusCanvas
		}
		return nil

	case focusPicker:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.picker.MoveUp()
		case key.Matches(msg, m.keys.Down):
			m.picker.MoveDown()
		case key.Matches(msg, m.keys.Enter):
			tpl := m.picker.Selected()
			m.ctrl.SetTemplate(tpl)
			m.setStatus(fmt.Sprintf("new nodes: %s", tpl.Type), false)
			m.focus = focusCanvas
		case key.Matches(msg, m.keys.Esc):
			m.focus = focusCanvas
		}
		return nil
	}

	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if key.Matches(msg, m.keys.Quit) {
		if m.diagram.Changed() && !m.confirmQuit {
			m.confirmQuit = true
			m.setStatus("unsaved changes: q again to discard, ctrl+s to save", true)
			return nil
		}
		return m.quit()
	}
	m.confirmQuit = false

	// An open context menu takes d and x.
	if st := m.ctrl.State(); st.Menu != nil {
		switch msg.String() {
		case "d":
			m.ctrl.ChooseMenu(canvas.ActionDuplicate)
			return nil
		case "x":
			m.ctrl.ChooseMenu(canvas.ActionDelete)
			return nil
		}
	}

	if m.showLoops {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.loops.MoveUp()
			return nil
		case key.Matches(msg, m.keys.Down):
			m.loops.MoveDown()
			return nil
		case key.Matches(msg, m.keys.Enter):
			m.loops.ToggleActive()
			return nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Save):
		m.save()
	case key.Matches(msg, m.keys.Help):
		m.focus = focusHelp
	case key.Matches(msg, m.keys.Template):
		m.picker = NewTemplatePickerModel(m.ctrl.State().Template, m.theme)
		m.picker.SetSize(m.width, m.height)
		m.focus = focusPicker
	case key.Matches(msg, m.keys.LineType):
		m.cycleLineType()
	case key.Matches(msg, m.keys.Loops):
		m.showLoops = !m.showLoops
		if m.showLoops {
			nodes, links := m.ctrl.Graph()
			m.loops = NewLoopsPanel(nodes, links, m.theme)
			m.loopsRev = m.diagram.Revision()
		}
	case key.Matches(msg, m.keys.Copy):
		m.copySelection()
	case key.Matches(msg, m.keys.ZoomIn), key.Matches(msg, m.keys.ZoomOut), key.Matches(msg, m.keys.ZoomReset):
		// Terminals do not report ctrl with + and -, so the bare keys zoom.
		m.ctrl.HandleKey(canvas.KeyEvent{Key: msg.String(), Mods: canvas.Modifiers{Ctrl: true}})
	default:
		m.ctrl.HandleKey(canvas.KeyEvent{Key: msg.String()})
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	if m.focus != focusCanvas {
		return
	}
	x, y := CellToScreen(msg.X, msg.Y)
	ev := canvas.PointerEvent{X: x, Y: y, Mods: canvas.Modifiers{Ctrl: msg.Ctrl, Shift: msg.Shift}}

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.ctrl.Wheel(-1)
		case tea.MouseButtonWheelDown:
			m.ctrl.Wheel(1)
		case tea.MouseButtonLeft:
			if !m.inCanvas(msg.X, msg.Y) {
				return
			}
			ev.Button = canvas.ButtonPrimary
			m.ctrl.PointerDown(ev)
			m.pressed = true
		case tea.MouseButtonMiddle:
			ev.Button = canvas.ButtonMiddle
			m.ctrl.PointerDown(ev)
		case tea.MouseButtonRight:
			if m.inCanvas(msg.X, msg.Y) {
				m.ctrl.ContextMenu(ev)
			}
		}

	case tea.MouseActionMotion:
		m.ctrl.PointerMove(ev)

	case tea.MouseActionRelease:
		m.ctrl.PointerUp(ev)
		if !m.pressed {
			return
		}
		m.pressed = false
		if m.registerClick(msg.X, msg.Y) {
			ev.Button = canvas.ButtonPrimary
			m.ctrl.DoubleClick(ev)
		}
	}
}

// registerClick records a completed click and reports whether it finishes
// a double-click.
func (m *Model) registerClick(col, row int) bool {
	now := m.now()
	prev := m.lastClick
	if prev.valid && prev.col == col && prev.row == row && now.Sub(prev.at) <= DoubleClickInterval {
		m.lastClick = clickRecord{}
		return true
	}
	m.lastClick = clickRecord{at: now, col: col, row: row, valid: true}
	return false
}

func (m Model) canvasSize() (int, int) {
	w := m.width
	if m.showLoops && w > loopsWidth*2 {
		w -= loopsWidth
	}
	return max(w, 1), max(m.height-headerRows-footerRows, 1)
}

func (m Model) inCanvas(col, row int) bool {
	w, h := m.canvasSize()
	return col >= 0 && col < w && row >= headerRows && row < headerRows+h
}

func (m *Model) drainEvents() {
	for _, e := range m.events.drain() {
		switch e.Kind {
		case canvas.EventRejected:
			msg := "rejected " + e.Result.Command.Name()
			if e.Result.Err != nil {
				msg += ": " + e.Result.Err.Error()
			}
			m.setStatus(msg, true)
		case canvas.EventSelectNode:
			if n, ok := m.diagram.Node(e.NodeID); ok {
				m.setStatus("selected "+n.DisplayLabel(), false)
			}
		case canvas.EventSelectLink:
			if l, ok := m.diagram.Link(e.LinkID); ok {
				m.setStatus(fmt.Sprintf("selected link %s %s %s", l.SourceID, l.Polarity.Symbol(), l.TargetID), false)
			}
		}
	}
}

// refreshLoops rebuilds the loops panel if the diagram changed since it
// was last analyzed.
func (m *Model) refreshLoops() {
	rev := m.diagram.Revision()
	if rev == m.loopsRev {
		return
	}
	m.loopsRev = rev
	cursor, active := m.loops.cursor, m.loops.active
	nodes, links := m.ctrl.Graph()
	m.loops = NewLoopsPanel(nodes, links, m.theme)
	n := len(m.loops.report.Loops)
	m.loops.cursor = min(cursor, max(n-1, 0))
	if active < n {
		m.loops.active = active
	}
}

func isPointerMotion(msg tea.Msg) bool {
	mm, ok := msg.(tea.MouseMsg)
	return ok && mm.Action == tea.MouseActionMotion
}

func (m *Model) cycleLineType() {
	types := model.LineTypes()
	cur := m.ctrl.State().LineType
	next := types[0]
	for i, t := range types {
		if t == cur {
			next = types[(i+1)%len(types)]
			break
		}
	}
	m.ctrl.SetLineType(next)
	m.setStatus(fmt.Sprintf("line type: %s", next), false)
}

func (m *Model) copySelection() {
	sel := m.ctrl.State().Selection
	id := sel.LinkID
	if ids := sel.NodeIDs(); len(ids) > 0 {
		id = ids[0]
	}
	if id == "" {
		m.setStatus("nothing selected", true)
		return
	}
	if err := clipboardWrite(id); err != nil {
		m.setStatus("clipboard: "+err.Error(), true)
		return
	}
	m.setStatus("copied "+id, false)
}

func (m *Model) save() {
	if m.cfg.Path == "" {
		m.setStatus("no file to save to", true)
		return
	}
	if err := loader.SaveDiagram(m.cfg.Path, m.diagram, m.cfg.Title); err != nil {
		m.logger.Error("save failed", "path", m.cfg.Path, "error", err)
		m.setStatus("save failed: "+err.Error(), true)
		return
	}
	m.diagram.MarkSaved()
	m.saveState()
	m.logger.Info("diagram saved", "path", m.cfg.Path)
	m.setStatus("saved "+m.cfg.Path, false)
}

func (m *Model) saveState() {
	if m.cfg.StatePath == "" {
		return
	}
	if err := loader.SaveEditorState(m.cfg.StatePath, m.ctrl.State()); err != nil {
		m.logger.Warn("editor state not saved", "path", m.cfg.StatePath, "error", err)
	}
}

func (m *Model) quit() tea.Cmd {
	m.saveState()
	return tea.Quit
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	switch m.focus {
	case focusHelp:
		return RenderContextHelp(m.helpContext(), m.theme, m.md, m.width, m.height)
	case focusPicker:
		return m.picker.View()
	}

	w, h := m.canvasSize()
	nodes, links := m.ctrl.Graph()
	st := m.ctrl.State()
	view := CanvasView{
		Nodes:  nodes,
		Links:  links,
		State:  st,
		Layout: m.ctrl.Layout(),
	}
	if from, to, ok := m.ctrl.PendingLine(); ok {
		view.Pending = &[2]model.Position{from, to}
	}
	if m.showLoops {
		view.Loop = m.loops.Highlight()
	}
	body := view.Render(w, h, m.theme)
	if m.showLoops && w < m.width {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.loops.View(m.width-w, h))
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(st), body, m.renderStatus(), m.help.View(m.keys))
}

func (m Model) helpContext() Context {
	switch m.ctrl.State().Tool {
	case canvas.ToolConnect:
		return ContextConnect
	case canvas.ToolPan:
		return ContextPan
	}
	if m.showLoops {
		return ContextLoops
	}
	return ContextCanvas
}

func (m Model) renderHeader(st canvas.EditorState) string {
	t := m.theme
	title := m.cfg.Title
	if title == "" {
		title = "untitled"
	}
	if m.diagram.Changed() {
		title += " *"
	}
	flags := ""
	if st.ShowGrid {
		flags += " grid"
	}
	if st.SnapToGrid {
		flags += " snap"
	}
	info := fmt.Sprintf("%s │ %.0f%% │ %s │ new: %s%s", st.Tool, st.View.Zoom*100, st.LineType, st.Template.Type, flags)
	return t.Renderer.NewStyle().Foreground(t.Primary).Bold(true).Render(title) + "  " +
		t.Renderer.NewStyle().Foreground(t.Subtext).Render(info)
}

func (m Model) renderStatus() string {
	t := m.theme
	if m.status == "" {
		return ""
	}
	style := t.Renderer.NewStyle().Foreground(t.Secondary)
	if m.statusErr {
		style = t.Renderer.NewStyle().Foreground(t.Negative)
	}
	return style.Render(m.status)
}
