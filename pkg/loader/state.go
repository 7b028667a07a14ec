package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
)

// StateDir holds per-diagram editor state, relative to the project root.
const StateDir = ".loopcanvas/state"

// StatePath returns where the editor state for diagramPath is kept. The
// name carries a hash of the absolute path so same-named diagrams in
// different directories do not collide.
func StatePath(projectRoot, diagramPath string) string {
	abs, err := filepath.Abs(diagramPath)
	if err != nil {
		abs = diagramPath
	}
	sum := sha256.Sum256([]byte(abs))
	base := strings.TrimSuffix(filepath.Base(diagramPath), filepath.Ext(diagramPath))
	return filepath.Join(projectRoot, StateDir, base+"-"+hex.EncodeToString(sum[:4])+".json")
}

// LoadEditorState restores persisted editor state. In-flight gestures and
// menus are never restored.
func LoadEditorState(path string) (canvas.EditorState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return canvas.EditorState{}, fmt.Errorf("read editor state: %w", err)
	}
	s := canvas.NewEditorState()
	if err := json.Unmarshal(data, &s); err != nil {
		return canvas.EditorState{}, fmt.Errorf("decode editor state: %w", err)
	}
	s = persistent(s)
	if err := s.Validate(); err != nil {
		return canvas.EditorState{}, fmt.Errorf("editor state %s: %w", path, err)
	}
	return s, nil
}

// SaveEditorState writes the persistent part of s.
func SaveEditorState(path string, s canvas.EditorState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(persistent(s), "", "  ")
	if err != nil {
		return fmt.Errorf("encode editor state: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

func persistent(s canvas.EditorState) canvas.EditorState {
	s = s.Clone()
	s.Drag, s.Pan, s.Marquee, s.Pending, s.Menu = nil, nil, nil, nil, nil
	return s
}
