package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtTrace bool
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, false, true},
		{"debug passes debug", "debug", false, true, true},
		{"trace passes everything", "trace", true, true, true},
		{"error filters info", "error", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			Trace(logger, "trace message")
			if got := strings.Contains(buf.String(), "trace message"); got != tt.logAtTrace {
				t.Errorf("trace message visible = %v, want %v (buf: %q)", got, tt.logAtTrace, buf.String())
			}

			buf.Reset()
			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", got, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	Trace(NewLogger("trace", &buf), "tick", "step", 3)
	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", out)
	}
	if !strings.Contains(out, "step=3") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lc.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	NewLogger("info", f).Info("hello")
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
}

func TestNewJournal_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, "info")
	if j != nil {
		t.Error("expected nil Journal at info level")
	}

	// Nil journal is still safe to use.
	j.Record(model.DeleteNode{ID: "x"}, model.Result{Status: model.StatusIgnored})
	j.Close()

	if _, err := os.Stat(filepath.Join(dir, JournalFile)); err == nil {
		t.Error("journal should not exist at info level")
	}
}

func TestJournal_WrapRecordsCommands(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, "debug")
	if j == nil {
		t.Fatal("expected journal at debug level")
	}

	d := model.NewDiagram(model.WithIDGenerator(model.NewSequence(1)))
	dispatch := j.Wrap(d)

	res := dispatch.Dispatch(model.CreateNode{Template: model.DefaultTemplate()})
	if !res.OK() || res.NodeID != "1" {
		t.Fatalf("create = %+v", res)
	}
	dispatch.Dispatch(model.CreateLink{SourceID: "1", TargetID: "1", Polarity: model.PolarityPositive})
	j.Close()

	data, err := os.ReadFile(filepath.Join(dir, JournalFile))
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("parse first entry: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("parse second entry: %v", err)
	}

	if first["command"] != "create-node" || first["status"] != "applied" || first["node_id"] != "1" {
		t.Errorf("first entry = %v", first)
	}
	if _, ok := first["time"]; !ok {
		t.Error("expected 'time' field")
	}
	if second["command"] != "create-link" || second["status"] != "rejected" {
		t.Errorf("second entry = %v", second)
	}
	if msg, _ := second["error"].(string); msg == "" {
		t.Error("rejected command should record its error")
	}
}

func TestJournal_NilWrapPassesThrough(t *testing.T) {
	var j *Journal
	d := model.NewDiagram()
	if got := j.Wrap(d); got != model.Dispatcher(d) {
		t.Error("nil journal should return the dispatcher unchanged")
	}
}
