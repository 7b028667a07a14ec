package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMatchesStatePattern(t *testing.T) {
	tests := []struct {
		line    string
		matches bool
	}{
		{".loopcanvas", true},
		{".loopcanvas/", true},
		{".loopcanvas/**", true},
		{".loopcanvas/state", true},
		{".loopcanvas/state/", true},
		{".loopcanvas/state/*", true},
		{"/.loopcanvas/state/", true},

		{"", false},
		{"#.loopcanvas/state/", false},
		{".loopcanvas/config.yaml", false},
		{".loopcanvas2/", false},
		{"state/", false},
		{"*.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := matchesStatePattern(tt.line); got != tt.matches {
				t.Errorf("matchesStatePattern(%q) = %v, want %v", tt.line, got, tt.matches)
			}
		})
	}
}

func TestIsStateInGitignore(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{"empty file", "", false},
		{"has state dir", "node_modules/\n.loopcanvas/state/\n", true},
		{"has whole dir", ".loopcanvas\n", true},
		{"commented out", "# .loopcanvas/state/\n", false},
		{"with whitespace", "  .loopcanvas/state/  \n", true},
		{"unrelated", ".bv/\nvendor/\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gitignorePath := filepath.Join(t.TempDir(), ".gitignore")
			if err := os.WriteFile(gitignorePath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			got, err := isStateInGitignore(gitignorePath)
			if err != nil {
				t.Fatalf("isStateInGitignore() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("isStateInGitignore() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsStateInGitignore_FileNotExists(t *testing.T) {
	_, err := isStateInGitignore(filepath.Join(t.TempDir(), ".gitignore"))
	if !os.IsNotExist(err) {
		t.Errorf("expected IsNotExist error, got %v", err)
	}
}

func TestAppendToGitignore(t *testing.T) {
	tests := []struct {
		name            string
		existingContent string
		wantPrefix      string
	}{
		{"new file", "", "#"},
		{"existing file with newline", "node_modules/\n", "node_modules/\n\n#"},
		{"existing file without trailing newline", "node_modules/", "node_modules/\n\n#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gitignorePath := filepath.Join(t.TempDir(), ".gitignore")
			if tt.existingContent != "" {
				if err := os.WriteFile(gitignorePath, []byte(tt.existingContent), 0644); err != nil {
					t.Fatalf("failed to write existing file: %v", err)
				}
			}

			if err := appendToGitignore(gitignorePath, StateIgnorePattern); err != nil {
				t.Fatalf("appendToGitignore() error = %v", err)
			}

			content, err := os.ReadFile(gitignorePath)
			if err != nil {
				t.Fatalf("failed to read result: %v", err)
			}
			if !strings.HasPrefix(string(content), tt.wantPrefix) {
				t.Errorf("expected file to start with %q, got:\n%s", tt.wantPrefix, content)
			}
			if !strings.HasSuffix(string(content), StateIgnorePattern+"\n") {
				t.Errorf("pattern not appended, got:\n%s", content)
			}
		})
	}
}

func TestEnsureStateInGitignore(t *testing.T) {
	t.Run("creates gitignore if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		if err := EnsureStateInGitignore(tmpDir); err != nil {
			t.Fatalf("EnsureStateInGitignore() error = %v", err)
		}
		content, err := os.ReadFile(filepath.Join(tmpDir, ".gitignore"))
		if err != nil {
			t.Fatalf("failed to read .gitignore: %v", err)
		}
		if !strings.Contains(string(content), StateIgnorePattern) {
			t.Errorf("expected %s in .gitignore, got:\n%s", StateIgnorePattern, content)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		for i := 0; i < 3; i++ {
			if err := EnsureStateInGitignore(tmpDir); err != nil {
				t.Fatalf("EnsureStateInGitignore() error = %v", err)
			}
		}
		content, _ := os.ReadFile(filepath.Join(tmpDir, ".gitignore"))
		if n := strings.Count(string(content), StateIgnorePattern); n != 1 {
			t.Errorf("expected exactly 1 occurrence, got %d:\n%s", n, content)
		}
	})

	t.Run("respects broader pattern", func(t *testing.T) {
		tmpDir := t.TempDir()
		gitignorePath := filepath.Join(tmpDir, ".gitignore")
		if err := os.WriteFile(gitignorePath, []byte(".loopcanvas/\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := EnsureStateInGitignore(tmpDir); err != nil {
			t.Fatalf("EnsureStateInGitignore() error = %v", err)
		}
		content, _ := os.ReadFile(gitignorePath)
		if string(content) != ".loopcanvas/\n" {
			t.Errorf("file should be untouched, got:\n%s", content)
		}
	})
}

func TestEnsureStateInGitignore_UsesCurrentDir(t *testing.T) {
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	if err := EnsureStateInGitignore(""); err != nil {
		t.Fatalf("EnsureStateInGitignore() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".gitignore")); err != nil {
		t.Errorf("expected .gitignore in current dir: %v", err)
	}
}
