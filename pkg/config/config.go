// Package config loads loopcanvas settings from .loopcanvas/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/loopcanvas/pkg/canvas"
	"github.com/vanderheijden86/loopcanvas/pkg/model"
	"github.com/vanderheijden86/loopcanvas/pkg/playback"
)

// DirName is the per-project settings directory.
const DirName = ".loopcanvas"

// FileName is the config file inside DirName.
const FileName = "config.yaml"

// Config is the full settings tree. Fields absent from the file keep their
// Default values.
type Config struct {
	Canvas    CanvasConfig    `yaml:"canvas"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Export    ExportConfig    `yaml:"export"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// CanvasConfig sets editor defaults.
type CanvasConfig struct {
	GridSize        float64        `yaml:"grid_size"`
	SnapToGrid      bool           `yaml:"snap_to_grid"`
	ShowGrid        bool           `yaml:"show_grid"`
	NodeWidth       float64        `yaml:"node_width"`
	NodeHeight      float64        `yaml:"node_height"`
	DuplicateOffset float64        `yaml:"duplicate_offset"`
	DefaultNodeType model.NodeType `yaml:"default_node_type"`
	LineType        model.LineType `yaml:"line_type"`
}

// PlaybackConfig sets player defaults.
type PlaybackConfig struct {
	Speed float64 `yaml:"speed"`
	// Watch reloads the results file when it changes.
	Watch bool `yaml:"watch"`
	// Command runs the external simulator. {diagram} and {results} are
	// replaced with the diagram and results paths.
	Command []string `yaml:"command,omitempty"`
}

// ExportConfig sets static rendering defaults.
type ExportConfig struct {
	Padding float64 `yaml:"padding"`
	Scale   float64 `yaml:"scale"`
}

// LogConfig sets the log level and optional file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// DiscoveryConfig controls how diagram files are found for the picker.
type DiscoveryConfig struct {
	// Extensions lists diagram file extensions, with the dot.
	Extensions []string `yaml:"extensions"`
	// Exclude lists directory names to skip.
	Exclude  []string `yaml:"exclude"`
	MaxDepth int      `yaml:"max_depth"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Canvas: CanvasConfig{
			GridSize:        canvas.DefaultGridSize,
			ShowGrid:        true,
			NodeWidth:       canvas.DefaultNodeWidth,
			NodeHeight:      canvas.DefaultNodeHeight,
			DuplicateOffset: canvas.DefaultDuplicateOffset,
			DefaultNodeType: model.NodeAuxiliary,
			LineType:        model.LineStraight,
		},
		Playback:  PlaybackConfig{Speed: 1},
		Export:    ExportConfig{Padding: 40, Scale: 1},
		Log:       LogConfig{Level: "info"},
		Discovery: DefaultDiscovery(),
	}
}

// DefaultDiscovery returns the standard discovery settings.
func DefaultDiscovery() DiscoveryConfig {
	return DiscoveryConfig{
		Extensions: []string{".json", ".yaml", ".yml"},
		Exclude:    DefaultExcludePatterns(),
		MaxDepth:   3,
	}
}

// DefaultExcludePatterns returns directory names skipped during discovery.
func DefaultExcludePatterns() []string {
	return []string{
		"node_modules",
		"vendor",
		"dist",
		"build",
		"target",
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Canvas.GridSize <= 0 {
		return fmt.Errorf("canvas.grid_size must be positive, got %v", c.Canvas.GridSize)
	}
	if c.Canvas.NodeWidth <= 0 || c.Canvas.NodeHeight <= 0 {
		return fmt.Errorf("canvas node size must be positive, got %vx%v", c.Canvas.NodeWidth, c.Canvas.NodeHeight)
	}
	if c.Canvas.DuplicateOffset < 0 {
		return fmt.Errorf("canvas.duplicate_offset cannot be negative")
	}
	if !c.Canvas.DefaultNodeType.IsValid() {
		return fmt.Errorf("canvas.default_node_type: invalid type %q", c.Canvas.DefaultNodeType)
	}
	if !c.Canvas.LineType.IsValid() {
		return fmt.Errorf("canvas.line_type: invalid line type %q", c.Canvas.LineType)
	}
	if !playback.ValidSpeed(c.Playback.Speed) {
		return fmt.Errorf("playback.speed %v: %w", c.Playback.Speed, playback.ErrInvalidSpeed)
	}
	if c.Export.Padding < 0 || c.Export.Scale <= 0 {
		return fmt.Errorf("export padding must be >= 0 and scale > 0")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Discovery.MaxDepth < 0 {
		return fmt.Errorf("discovery.max_depth cannot be negative")
	}
	return nil
}

// Layout returns the canvas geometry the config describes.
func (c Config) Layout() canvas.Layout {
	l := canvas.DefaultLayout()
	l.NodeWidth = c.Canvas.NodeWidth
	l.NodeHeight = c.Canvas.NodeHeight
	return l
}

// EditorState returns the initial editor state the config describes.
func (c Config) EditorState() canvas.EditorState {
	s := canvas.NewEditorState()
	s.GridSize = c.Canvas.GridSize
	s.SnapToGrid = c.Canvas.SnapToGrid
	s.ShowGrid = c.Canvas.ShowGrid
	s.LineType = c.Canvas.LineType
	s.Template = model.TemplateFor(c.Canvas.DefaultNodeType)
	return s
}

// Load reads path and merges it over Default. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFrom finds the project root above dir and loads its config. It
// returns the config path used, or "" when no project was found.
func LoadFrom(dir string) (Config, string, error) {
	root, ok := findProjectRoot(dir)
	if !ok {
		return Default(), "", nil
	}
	path := Path(root)
	cfg, err := Load(path)
	return cfg, path, err
}

// Path returns the config file location for a project root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Save writes cfg as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
