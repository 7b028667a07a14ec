// Package loader reads and writes diagram and simulation result files and
// watches them for changes.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// Format is a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// IsValid returns true if the format is a recognized value
func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatYAML
}

// FormatFor picks the format from a file extension; anything that is not
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// FileVersion is the diagram file schema version written by SaveDiagram.
const FileVersion = 1

// DiagramFile is the on-disk diagram layout.
type DiagramFile struct {
	Version     int               `json:"version" yaml:"version"`
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes       []model.Node      `json:"nodes" yaml:"nodes"`
	Links       []model.Link      `json:"links" yaml:"links"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// ParseDiagram decodes a diagram file and builds a validated Diagram.
func ParseDiagram(data []byte, format Format, opts ...model.Option) (*model.Diagram, *DiagramFile, error) {
	var f DiagramFile
	if err := unmarshal(data, format, &f); err != nil {
		return nil, nil, fmt.Errorf("decode diagram: %w", err)
	}
	if f.Version > FileVersion {
		return nil, nil, fmt.Errorf("diagram file version %d is newer than supported version %d", f.Version, FileVersion)
	}

	d, err := model.FromGraph(f.Nodes, f.Links, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid diagram: %w", err)
	}
	for id, note := range f.Annotations {
		if _, ok := d.Link(id); ok {
			d.Annotations[id] = note
		}
	}
	if !f.CreatedAt.IsZero() {
		d.CreatedAt = f.CreatedAt
	}
	if !f.UpdatedAt.IsZero() {
		d.UpdatedAt = f.UpdatedAt
	}
	return d, &f, nil
}

// LoadDiagram reads a diagram file, choosing the format from its extension.
func LoadDiagram(path string, opts ...model.Option) (*model.Diagram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read diagram: %w", err)
	}
	d, _, err := ParseDiagram(data, FormatFor(path), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// EncodeDiagram serializes a diagram in the given format.
func EncodeDiagram(d *model.Diagram, title string, format Format) ([]byte, error) {
	nodes, links := d.Graph()
	f := DiagramFile{
		Version:   FileVersion,
		Title:     title,
		Nodes:     nodes,
		Links:     links,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if len(d.Annotations) > 0 {
		f.Annotations = d.Annotations
	}
	if f.Nodes == nil {
		f.Nodes = []model.Node{}
	}
	if f.Links == nil {
		f.Links = []model.Link{}
	}

	if format == FormatYAML {
		return yaml.Marshal(&f)
	}
	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SaveDiagram writes the diagram atomically and marks it saved.
func SaveDiagram(path string, d *model.Diagram, title string) error {
	data, err := EncodeDiagram(d, title, FormatFor(path))
	if err != nil {
		return fmt.Errorf("encode diagram: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("save diagram: %w", err)
	}
	d.MarkSaved()
	return nil
}

func unmarshal(data []byte, format Format, v any) error {
	if format == FormatYAML {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
