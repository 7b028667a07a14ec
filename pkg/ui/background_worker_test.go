package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const workerResults = `{"time_step_count": 3, "series": [{"node_id": "1", "values": [1, 2, 3]}]}`

// msgRecorder collects messages the worker sends to the UI.
type msgRecorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *msgRecorder) send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *msgRecorder) count() (ready, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		switch m.(type) {
		case ResultsReadyMsg:
			ready++
		case ResultsErrorMsg:
			failed++
		}
	}
	return ready, failed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestWorker(t *testing.T, content string) (*BackgroundWorker, *msgRecorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}
	rec := &msgRecorder{}
	worker, err := NewBackgroundWorker(WorkerConfig{
		ResultsPath:   path,
		DebounceDelay: 50 * time.Millisecond,
		Send:          rec.send,
	})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	t.Cleanup(worker.Stop)
	return worker, rec, path
}

func TestBackgroundWorker_NewWithoutPath(t *testing.T) {
	worker, err := NewBackgroundWorker(WorkerConfig{})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	if worker.State() != WorkerIdle {
		t.Errorf("Expected idle state, got %v", worker.State())
	}
	if worker.Result() != nil {
		t.Error("Expected nil result initially")
	}
	if err := worker.Start(); err != nil {
		t.Fatalf("Start without path should succeed: %v", err)
	}
}

func TestBackgroundWorker_StartStop(t *testing.T) {
	worker, _, _ := newTestWorker(t, workerResults)

	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Second Start is a no-op.
	if err := worker.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	worker.Stop()
	if worker.State() != WorkerStopped {
		t.Errorf("Expected stopped state, got %v", worker.State())
	}
	// Idempotent.
	worker.Stop()

	worker.TriggerRefresh()
	if worker.Result() != nil {
		t.Error("stopped worker should not load")
	}
}

func TestBackgroundWorker_TriggerRefresh(t *testing.T) {
	worker, rec, _ := newTestWorker(t, workerResults)

	worker.TriggerRefresh()
	waitFor(t, "result", func() bool { return worker.Result() != nil })

	if got := worker.Result().TimeStepCount; got != 3 {
		t.Errorf("TimeStepCount = %d, want 3", got)
	}
	waitFor(t, "ready message", func() bool { ready, _ := rec.count(); return ready == 1 })
}

func TestBackgroundWorker_ReloadsOnFileChange(t *testing.T) {
	worker, rec, path := newTestWorker(t, workerResults)
	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	updated := `{"time_step_count": 4, "series": [{"node_id": "1", "values": [1, 2, 3, 4]}]}`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "reload", func() bool {
		r := worker.Result()
		return r != nil && r.TimeStepCount == 4
	})
	if ready, _ := rec.count(); ready < 1 {
		t.Error("expected a ResultsReadyMsg")
	}
}

func TestBackgroundWorker_ContentHashDedup(t *testing.T) {
	worker, rec, _ := newTestWorker(t, workerResults)

	worker.TriggerRefresh()
	waitFor(t, "first result", func() bool { return worker.Result() != nil })
	first := worker.Result()
	hash1 := worker.LastHash()
	if hash1 == "" {
		t.Error("Expected non-empty hash after first refresh")
	}

	worker.TriggerRefresh()
	time.Sleep(150 * time.Millisecond)

	if worker.LastHash() != hash1 {
		t.Error("hash changed for unchanged content")
	}
	if worker.Result() != first {
		t.Error("result pointer changed when content was unchanged - dedup failed")
	}
	if ready, _ := rec.count(); ready != 1 {
		t.Errorf("expected exactly one ready message, got %d", ready)
	}

	worker.ResetHash()
	worker.TriggerRefresh()
	waitFor(t, "forced reload", func() bool { return worker.Result() != first })
}

func TestWorkerError_String(t *testing.T) {
	err := WorkerError{
		Phase:   "load",
		Cause:   os.ErrNotExist,
		Time:    time.Now(),
		Retries: 2,
	}
	msg := err.Error()
	if !strings.Contains(msg, "load failed") || !strings.Contains(msg, "retries: 2") {
		t.Errorf("Error() = %q", msg)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("WorkerError should unwrap to its cause")
	}
}

func TestBackgroundWorker_LoadErrorAndRecovery(t *testing.T) {
	worker, rec, path := newTestWorker(t, "")

	worker.TriggerRefresh()
	waitFor(t, "load error", func() bool { return worker.LastError() != nil })

	lastErr := worker.LastError()
	if lastErr.Phase != "load" || lastErr.Retries != 1 {
		t.Errorf("LastError = %+v", lastErr)
	}
	if worker.Result() != nil {
		t.Error("Expected nil result when file doesn't exist")
	}
	if _, failed := rec.count(); failed != 1 {
		t.Errorf("expected one error message, got %d", failed)
	}

	if err := os.WriteFile(path, []byte(workerResults), 0644); err != nil {
		t.Fatal(err)
	}
	worker.TriggerRefresh()
	waitFor(t, "recovery", func() bool { return worker.Result() != nil })
	if worker.LastError() != nil {
		t.Error("Expected error to be cleared on success")
	}
}

func TestBackgroundWorker_InvalidResultsKeepPrevious(t *testing.T) {
	worker, _, path := newTestWorker(t, workerResults)

	worker.TriggerRefresh()
	waitFor(t, "result", func() bool { return worker.Result() != nil })
	good := worker.Result()

	// Step count disagrees with the series.
	os.WriteFile(path, []byte(`{"time_step_count": 9, "series": [{"node_id": "1", "values": [1]}]}`), 0644)
	worker.TriggerRefresh()
	waitFor(t, "validate error", func() bool { return worker.LastError() != nil })

	if got := worker.LastError().Phase; got != "validate" {
		t.Errorf("phase = %q, want validate", got)
	}
	if worker.Result() != good {
		t.Error("invalid results should not replace the previous set")
	}
}

func TestBackgroundWorker_SafeCompute(t *testing.T) {
	worker, _, _ := newTestWorker(t, workerResults)

	werr := worker.safeCompute("test", func() error {
		panic("intentional panic for testing")
	})
	if werr == nil {
		t.Fatal("safeCompute should catch panics")
	}
	if werr.Phase != "test" || !strings.Contains(werr.Cause.Error(), "intentional panic") {
		t.Errorf("unexpected error: %+v", werr)
	}

	worker.TriggerRefresh()
	waitFor(t, "result after panic", func() bool { return worker.Result() != nil })
}

func TestHashPrefix(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", ""},
		{"short", "short"},
		{"0123456789abcdef", "0123456789abcdef"},
		{"0123456789abcdef0123", "0123456789abcdef"},
	}
	for _, tt := range tests {
		if got := hashPrefix(tt.input); got != tt.want {
			t.Errorf("hashPrefix(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBackgroundWorker_ConcurrentTrigger(t *testing.T) {
	worker, _, _ := newTestWorker(t, workerResults)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.TriggerRefresh()
		}()
	}
	wg.Wait()

	waitFor(t, "result", func() bool { return worker.Result() != nil })
	waitFor(t, "idle", func() bool { return worker.State() == WorkerIdle })
}
