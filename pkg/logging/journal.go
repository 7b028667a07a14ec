package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// JournalFile is the journal name inside its directory.
const JournalFile = "commands.jsonl"

// Journal writes one JSONL entry per dispatched diagram command. It is safe
// for concurrent use. A nil Journal is safe to use; all methods are no-ops
// on a nil receiver.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// journalEntry is one line of the journal.
type journalEntry struct {
	Time         string        `json:"time"`
	Command      string        `json:"command"`
	Payload      model.Command `json:"payload"`
	Status       string        `json:"status"`
	NodeID       string        `json:"node_id,omitempty"`
	LinkID       string        `json:"link_id,omitempty"`
	RemovedLinks []string      `json:"removed_links,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// NewJournal opens dir/commands.jsonl for append. At info level and above
// it returns nil and no file is created. It also returns nil if the file
// cannot be opened.
func NewJournal(dir string, level string) *Journal {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, JournalFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil
	}
	return &Journal{file: f, now: time.Now}
}

// Record appends the command and its result.
func (j *Journal) Record(cmd model.Command, res model.Result) {
	if j == nil || j.file == nil {
		return
	}
	entry := journalEntry{
		Time:         j.now().UTC().Format(time.RFC3339Nano),
		Command:      cmd.Name(),
		Payload:      cmd,
		Status:       res.Status.String(),
		NodeID:       res.NodeID,
		LinkID:       res.LinkID,
		RemovedLinks: res.RemovedLinks,
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	_, _ = j.file.Write(append(data, '\n'))
}

// Wrap returns a dispatcher that records every command sent to next.
func (j *Journal) Wrap(next model.Dispatcher) model.Dispatcher {
	if j == nil {
		return next
	}
	return model.DispatcherFunc(func(cmd model.Command) model.Result {
		res := next.Dispatch(cmd)
		j.Record(cmd, res)
		return res
	})
}

// Close closes the underlying file. Safe to call on nil receiver.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}
}
