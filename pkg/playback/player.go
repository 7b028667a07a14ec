// Package playback steps through precomputed simulation results.
//
// A Player owns a time cursor over an immutable SimulationResult and an
// optional autoplay timer. Timers fire on their own goroutine, so every
// method is safe for concurrent use. Hosts observe autoplay progress
// through the OnTick hook.
package playback

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

var (
	// ErrInvalidSpeed is returned by SetSpeed for unsupported multipliers.
	ErrInvalidSpeed = errors.New("invalid playback speed")
	// ErrNoResults is returned when an operation needs a result set and the
	// player has none.
	ErrNoResults = errors.New("no simulation results loaded")
)

// Speeds lists the supported speed multipliers.
var Speeds = []float64{0.5, 1, 2, 4}

// ValidSpeed reports whether m is a supported speed multiplier.
func ValidSpeed(m float64) bool {
	return slices.Contains(Speeds, m)
}

const (
	// BaseInterval is the tick interval at speed 1.
	BaseInterval = 200 * time.Millisecond
	// MinInterval bounds the tick interval at high speeds.
	MinInterval = 50 * time.Millisecond
)

// State is the autoplay state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Status is a point-in-time view of a player.
type Status struct {
	State  State
	Cursor int
	Steps  int
	Speed  float64
}

// AtEnd reports whether the cursor is on the last step.
func (s Status) AtEnd() bool {
	return s.Steps > 0 && s.Cursor == s.Steps-1
}

// Player is a simulation playback controller.
type Player struct {
	mu     sync.Mutex
	result *model.SimulationResult
	cursor int
	state  State
	speed  float64
	timer  Timer
	// gen invalidates callbacks from timers that were stopped too late.
	gen    uint64
	closed bool

	clock  Clock
	onTick func(Status)
	logger *slog.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithClock sets the clock used to schedule ticks.
func WithClock(c Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithOnTick registers a hook called after every autoplay tick. It runs on
// the timer goroutine without the player's lock held.
func WithOnTick(f func(Status)) Option {
	return func(p *Player) { p.onTick = f }
}

// WithLogger sets the player's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns an idle player over result, which may be nil until Load.
func New(result *model.SimulationResult, opts ...Option) *Player {
	p := &Player{
		result: result,
		speed:  1,
		clock:  RealClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load replaces the result set, keeping the cursor when it is still in
// range. Autoplay continues over the new data.
func (p *Player) Load(result *model.SimulationResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = result
	p.cursor = p.clamp(p.cursor)
	p.logger.Debug("results loaded", "steps", p.steps(), "cursor", p.cursor)
}

// Result returns the current result set.
func (p *Player) Result() *model.SimulationResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Status returns the current state, cursor, step count and speed.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status()
}

// Cursor returns the current time step.
func (p *Player) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Play starts autoplay from the cursor, rewinding first if the cursor is on
// the last step. It is a no-op while playing, after Close, or when there
// are fewer than two steps.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.state == StatePlaying {
		return
	}
	steps := p.steps()
	if steps < 2 {
		return
	}
	if p.cursor >= steps-1 {
		p.cursor = 0
	}
	p.state = StatePlaying
	p.arm()
	p.logger.Debug("playback started", "cursor", p.cursor, "speed", p.speed)
}

// Pause stops autoplay and keeps the cursor. Repeated calls are no-ops.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pause()
}

// Toggle plays when stopped and pauses when playing.
func (p *Player) Toggle() {
	if p.Status().State == StatePlaying {
		p.Pause()
		return
	}
	p.Play()
}

// Seek moves the cursor to t, clamped into range. Seeking always
// interrupts autoplay.
func (p *Player) Seek(t int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pause()
	p.cursor = p.clamp(t)
}

// Step moves the cursor by delta steps, pausing autoplay.
func (p *Player) Step(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pause()
	p.cursor = p.clamp(p.cursor + delta)
}

// SetSpeed changes the speed multiplier. The new interval applies from the
// next scheduled tick.
func (p *Player) SetSpeed(m float64) error {
	if !ValidSpeed(m) {
		return ErrInvalidSpeed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = m
	return nil
}

// Speed returns the speed multiplier.
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Interval returns the tick interval for a speed multiplier.
func Interval(speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	return max(MinInterval, time.Duration(float64(BaseInterval)/speed))
}

// Close cancels any pending tick. Play is a no-op afterwards.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pause()
	p.closed = true
}

// ValueAt returns the value of nodeID's series at step t, or 0 when the
// node has no series or the step is outside it.
func (p *Player) ValueAt(nodeID string, t int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return valueAt(p.result, nodeID, t)
}

// CurrentValue returns ValueAt for the cursor.
func (p *Player) CurrentValue(nodeID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return valueAt(p.result, nodeID, p.cursor)
}

// ValuesAt returns every series' value at step t keyed by node id.
func (p *Player) ValuesAt(t int) map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64)
	if p.result == nil {
		return out
	}
	for _, s := range p.result.Series {
		out[s.NodeID] = valueAt(p.result, s.NodeID, t)
	}
	return out
}

// Timestamp returns the wall-clock time recorded for step t, if any series
// carries timestamps.
func (p *Player) Timestamp(t int) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return time.Time{}, false
	}
	for _, s := range p.result.Series {
		if t >= 0 && t < len(s.Timestamps) {
			return s.Timestamps[t], true
		}
	}
	return time.Time{}, false
}

func valueAt(r *model.SimulationResult, nodeID string, t int) float64 {
	s, ok := r.SeriesFor(nodeID)
	if !ok || t < 0 || t >= len(s.Values) {
		return 0
	}
	return s.Values[t]
}

// arm schedules the next tick. Callers hold p.mu.
func (p *Player) arm() {
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(Interval(p.speed), func() { p.tick(gen) })
}

func (p *Player) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	last := p.steps() - 1
	p.cursor++
	if p.cursor >= last {
		p.cursor = max(last, 0)
		p.state = StatePaused
		p.gen++
		p.logger.Debug("playback finished", "cursor", p.cursor)
	} else {
		p.arm()
	}
	status := p.status()
	hook := p.onTick
	p.mu.Unlock()

	if hook != nil {
		hook(status)
	}
}

// pause cancels the timer. Callers hold p.mu.
func (p *Player) pause() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	if p.state == StatePlaying {
		p.state = StatePaused
	}
}

func (p *Player) steps() int {
	if p.result == nil {
		return 0
	}
	return p.result.TimeStepCount
}

func (p *Player) clamp(t int) int {
	last := p.steps() - 1
	if t > last {
		t = last
	}
	if t < 0 {
		t = 0
	}
	return t
}

func (p *Player) status() Status {
	return Status{State: p.state, Cursor: p.cursor, Steps: p.steps(), Speed: p.speed}
}
