package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/playback"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	s := cfg.EditorState()
	if s.GridSize != canvas.DefaultGridSize || !s.ShowGrid || s.SnapToGrid || s.Tool != canvas.ToolSelect {
		t.Errorf("default editor state = %+v", s)
	}
	if l := cfg.Layout(); l.NodeWidth != canvas.DefaultNodeWidth || l.PortRadius != canvas.DefaultPortRadius {
		t.Errorf("default layout = %+v", l)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"GridSize", func(c *Config) { c.Canvas.GridSize = 0 }, "grid_size"},
		{"NodeSize", func(c *Config) { c.Canvas.NodeHeight = -1 }, "node size"},
		{"Offset", func(c *Config) { c.Canvas.DuplicateOffset = -5 }, "duplicate_offset"},
		{"NodeType", func(c *Config) { c.Canvas.DefaultNodeType = "cloud" }, "default_node_type"},
		{"LineType", func(c *Config) { c.Canvas.LineType = "zigzag" }, "line_type"},
		{"Speed", func(c *Config) { c.Playback.Speed = 3 }, "playback.speed"},
		{"Scale", func(c *Config) { c.Export.Scale = 0 }, "scale"},
		{"LogLevel", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"Depth", func(c *Config) { c.Discovery.MaxDepth = -1 }, "max_depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Playback.Speed = 3
	if err := cfg.Validate(); !errors.Is(err, playback.ErrInvalidSpeed) {
		t.Errorf("speed error should wrap ErrInvalidSpeed, got %v", err)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `canvas:
  grid_size: 20
  snap_to_grid: true
  show_grid: false
  default_node_type: stock
playback:
  speed: 2
log:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Canvas.GridSize != 20 || !cfg.Canvas.SnapToGrid || cfg.Canvas.ShowGrid {
		t.Errorf("canvas = %+v", cfg.Canvas)
	}
	if cfg.Canvas.NodeWidth != canvas.DefaultNodeWidth {
		t.Errorf("unset fields should keep defaults, node width = %v", cfg.Canvas.NodeWidth)
	}
	if cfg.Playback.Speed != 2 || cfg.Export.Scale != 1 {
		t.Errorf("playback/export = %+v / %+v", cfg.Playback, cfg.Export)
	}
	if tpl := cfg.EditorState().Template; tpl.Type != model.NodeStock {
		t.Errorf("template type = %q, want stock", tpl.Type)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults, got %v", err)
	}
	if cfg.Canvas.GridSize != canvas.DefaultGridSize {
		t.Error("missing file should yield defaults")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("canvas: [\n"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("canvas:\n  grid_size: -4\n"), 0o644)
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "grid_size") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSaveAndLoadFrom(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Canvas.SnapToGrid = true
	cfg.Playback.Speed = 4

	if err := Save(Path(root), cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sub := filepath.Join(root, "models")
	os.MkdirAll(sub, 0o755)
	got, path, err := LoadFrom(sub)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if path != Path(root) {
		t.Errorf("config path = %s, want %s", path, Path(root))
	}
	if !got.Canvas.SnapToGrid || got.Playback.Speed != 4 {
		t.Errorf("loaded = %+v", got)
	}

	bad := Default()
	bad.Canvas.GridSize = 0
	if err := Save(filepath.Join(root, "x.yaml"), bad); err == nil {
		t.Error("Save should refuse an invalid config")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/models", filepath.Join(home, "models")},
		{"/abs", "/abs"},
		{"~other", "~other"},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
