package loader

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// StateIgnorePattern is the .gitignore entry covering per-user editor state.
const StateIgnorePattern = ".loopcanvas/state/"

// EnsureStateInGitignore ensures the editor state directory is listed in
// the project's .gitignore. It creates the file if needed, preserves
// existing content, and is a no-op when an equivalent pattern is present.
func EnsureStateInGitignore(projectDir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")
	alreadyPresent, err := isStateInGitignore(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if alreadyPresent {
		return nil
	}
	return appendToGitignore(gitignorePath, StateIgnorePattern)
}

// isStateInGitignore checks whether the state directory, or the whole
// .loopcanvas directory, is already ignored.
func isStateInGitignore(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if matchesStatePattern(line) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// matchesStatePattern checks if a gitignore line covers the state directory.
func matchesStatePattern(line string) bool {
	normalized := strings.TrimPrefix(line, "/")
	for _, base := range []string{".loopcanvas", ".loopcanvas/state"} {
		for _, suffix := range []string{"", "/", "/*", "/**", "/**/*"} {
			if normalized == base+suffix {
				return true
			}
		}
	}
	return false
}

// appendToGitignore appends a pattern, adding a separating newline when the
// file does not end with one.
func appendToGitignore(path string, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var toWrite string
	if len(content) == 0 {
		toWrite = "# loopcanvas editor state\n" + pattern + "\n"
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n# loopcanvas editor state\n" + pattern + "\n"
	}

	_, err = file.WriteString(toWrite)
	return err
}
