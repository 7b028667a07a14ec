// Package ui provides the terminal user interface for loopcanvas.
// This file implements the BackgroundWorker that reloads simulation
// results off the UI thread.
package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/loopcanvas/pkg/loader"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is loading a new result set.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "load" or "validate"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures including this one
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// BackgroundWorker watches a results file and loads each new version.
// It owns the file watcher, coalesces bursts, and skips content it has
// already delivered.
type BackgroundWorker struct {
	resultsPath   string
	debounceDelay time.Duration

	mu       sync.RWMutex
	state    WorkerState
	dirty    bool // a change came in while processing
	result   *model.SimulationResult
	started  bool
	lastHash string

	lastError  *WorkerError
	errorCount int

	watcher *loader.Watcher
	send    func(tea.Msg)
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	ResultsPath   string
	DebounceDelay time.Duration
	// Send delivers messages to the UI, usually tea.Program.Send.
	Send   func(tea.Msg)
	Logger *slog.Logger
}

// NewBackgroundWorker creates a new background worker.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = loader.DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	w := &BackgroundWorker{
		resultsPath:   cfg.ResultsPath,
		debounceDelay: cfg.DebounceDelay,
		send:          cfg.Send,
		logger:        logger,
		state:         WorkerIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if cfg.ResultsPath != "" {
		fw, err := loader.NewWatcher(cfg.ResultsPath,
			loader.WithDebounceDuration(cfg.DebounceDelay),
			loader.WithWatchLogger(logger),
		)
		if err != nil {
			cancel()
			return nil, err
		}
		w.watcher = fw
	}

	return w, nil
}

// Start begins watching for file changes. Start is idempotent.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher != nil {
		if err := w.watcher.Start(); err != nil {
			return err
		}
		go w.processLoop()
	} else {
		// Nothing to watch; let Stop return immediately.
		close(w.done)
	}

	return nil
}

// Stop halts the background worker and cleans up resources. Stop is
// idempotent.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()

	if w.watcher != nil {
		w.watcher.Stop()
	}

	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// TriggerRefresh reloads the results file now. It has no effect once the
// worker is stopped; during a load it schedules one more pass.
func (w *BackgroundWorker) TriggerRefresh() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if w.state == WorkerProcessing {
		w.dirty = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	go w.process()
}

// Result returns the most recently loaded result set (may be nil).
func (w *BackgroundWorker) Result() *model.SimulationResult {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.result
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *BackgroundWorker) processLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.watcher.Changed():
			w.process()
		}
	}
}

func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	w.mu.Unlock()

	// nil means unchanged content or an error
	result := w.loadResults()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if result != nil {
		w.result = result
	}
	wasDirty := w.dirty
	w.state = WorkerIdle
	w.mu.Unlock()

	if result != nil {
		w.notify(ResultsReadyMsg{Result: result, Hash: w.LastHash()})
	}

	if wasDirty {
		go w.process()
	}
}

// safeCompute executes fn and recovers from any panics.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// LastError returns the most recent error (nil if the last load succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// loadResults runs on the worker goroutine. A malformed file is reported
// and the previous result set stays in place.
func (w *BackgroundWorker) loadResults() *model.SimulationResult {
	if w.resultsPath == "" {
		return nil
	}
	start := time.Now()

	var (
		result *model.SimulationResult
		hash   string
	)
	if werr := w.safeCompute("load", func() error {
		var err error
		result, hash, err = loader.LoadResultsWithHash(w.resultsPath)
		return err
	}); werr != nil {
		w.fail(werr)
		return nil
	}

	w.mu.RLock()
	lastHash := w.lastHash
	w.mu.RUnlock()
	if hash == lastHash && lastHash != "" {
		w.logger.Debug("results unchanged, skipping reload", "hash", hashPrefix(hash))
		w.recordError(nil)
		return nil
	}

	if werr := w.safeCompute("validate", result.Validate); werr != nil {
		w.fail(werr)
		return nil
	}

	w.recordError(nil)
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	w.logger.Info("results reloaded",
		"path", w.resultsPath,
		"steps", result.TimeStepCount,
		"series", len(result.Series),
		"duration", time.Since(start),
		"hash", hashPrefix(hash))
	return result
}

func (w *BackgroundWorker) fail(werr *WorkerError) {
	w.logger.Warn("results reload failed", "path", w.resultsPath, "phase", werr.Phase, "error", werr.Cause)
	w.recordError(werr)
	w.notify(ResultsErrorMsg{Err: werr, Recoverable: true})
}

func (w *BackgroundWorker) notify(msg tea.Msg) {
	if w.send != nil {
		w.send(msg)
	}
}

// ResultsReadyMsg is sent to the UI when a new result set is loaded.
type ResultsReadyMsg struct {
	Result *model.SimulationResult
	Hash   string
}

// ResultsErrorMsg is sent to the UI when a reload fails.
type ResultsErrorMsg struct {
	Err         error
	Recoverable bool // True if we expect to recover on next file change
}

// LastHash returns the content hash of the last delivered result set.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// hashPrefix returns up to 16 characters of hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// ResetHash forces the next load to deliver even unchanged content.
func (w *BackgroundWorker) ResetHash() {
	w.mu.Lock()
	w.lastHash = ""
	w.mu.Unlock()
}
