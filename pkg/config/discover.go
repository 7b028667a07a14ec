package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DiagramEntry is a diagram file found by discovery.
type DiagramEntry struct {
	Name string
	Path string
	// Rel is the path relative to the scanned root.
	Rel string
}

// DiscoverDiagrams scans root for diagram files. Registered paths come
// first, in order; discovered files follow sorted by relative path.
func DiscoverDiagrams(root string, cfg DiscoveryConfig, registered ...string) []DiagramEntry {
	seen := make(map[string]bool)
	var result []DiagramEntry

	for _, p := range registered {
		abs := resolve(p)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		result = append(result, entryFor(root, abs))
	}

	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	for _, f := range scanForDiagrams(root, maxDepth, cfg) {
		if !seen[f] {
			seen[f] = true
			result = append(result, entryFor(root, f))
		}
	}
	return result
}

func entryFor(root, path string) DiagramEntry {
	rel, err := filepath.Rel(resolve(root), path)
	if err != nil {
		rel = path
	}
	return DiagramEntry{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
		Rel:  rel,
	}
}

func resolve(p string) string {
	p = expandHome(p)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// scanForDiagrams walks a directory tree up to maxDepth levels deep,
// collecting files with a diagram extension.
func scanForDiagrams(root string, maxDepth int, cfg DiscoveryConfig) []string {
	root = resolve(root)
	var results []string
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultDiscovery().Extensions
	}

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
			if depth > maxDepth {
				return filepath.SkipDir
			}
			// Hidden directories hold config and editor state, not diagrams.
			if strings.HasPrefix(name, ".") || slices.Contains(cfg.Exclude, name) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(name))) {
			results = append(results, path)
		}
		return nil
	})

	slices.Sort(results)
	return results
}

// DetectCurrentProject finds the project root by walking up from the
// current directory looking for .loopcanvas/.
func DetectCurrentProject() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return findProjectRoot(dir)
}

// findProjectRoot walks up from dir looking for a .loopcanvas/ directory,
// stopping at the home directory.
func findProjectRoot(dir string) (string, bool) {
	home, _ := os.UserHomeDir()
	dir = resolve(dir)

	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}
