// Package agents keeps a short lc usage section in a project's agent
// instruction file (AGENTS.md and friends), so coding agents know to use
// the non-interactive commands instead of the editor.
package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// BlurbVersion is the current version of the agent instructions blurb.
// Increment this when making breaking changes to the blurb format.
const BlurbVersion = 1

// BlurbStartMarker marks the beginning of injected agent instructions.
const BlurbStartMarker = "<!-- lc-agent-instructions-v1 -->"

// BlurbEndMarker marks the end of injected agent instructions.
const BlurbEndMarker = "<!-- end-lc-agent-instructions -->"

// AgentBlurb contains the instructions appended to agent files.
const AgentBlurb = BlurbStartMarker + `

---

## Causal Loop Diagrams

This project keeps causal loop diagrams under version control and edits
them with ` + "`lc`" + `. The editor and player are full-screen; agents should use
the batch commands instead.

` + "```" + `bash
lc loops model.yaml --json        # feedback loops, leverage points, shared links
lc drift model.yaml baseline.json # compare loops to a saved baseline (exit 1 on polarity flips)
lc export model.yaml --svg model.svg --markdown model.md
lc csv results.json --diagram model.yaml -o results.csv
` + "```" + `

- Diagrams are JSON or YAML with ` + "`nodes`" + ` and ` + "`links`" + `; each link has a
  ` + "`polarity`" + ` of positive or negative.
- A loop with an odd number of negative links is balancing (B), otherwise
  reinforcing (R).
- ` + "`.loopcanvas/state/`" + ` holds per-user editor state and is git-ignored.

` + BlurbEndMarker

// SupportedAgentFiles lists the filenames that can contain agent
// instructions, in lookup order.
var SupportedAgentFiles = []string{
	"AGENTS.md",
	"CLAUDE.md",
	"agents.md",
	"claude.md",
}

var blurbVersionRegex = regexp.MustCompile(`<!-- lc-agent-instructions-v(\d+) -->`)

// ContainsBlurb checks if the content already contains an lc blurb of any
// version.
func ContainsBlurb(content string) bool {
	return strings.Contains(content, "<!-- lc-agent-instructions-v")
}

// GetBlurbVersion extracts the version number from existing blurb content,
// or 0 when there is none.
func GetBlurbVersion(content string) int {
	matches := blurbVersionRegex.FindStringSubmatch(content)
	if len(matches) < 2 {
		return 0
	}
	v, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return v
}

// NeedsUpdate checks if the content has an older version of the blurb.
func NeedsUpdate(content string) bool {
	return ContainsBlurb(content) && GetBlurbVersion(content) < BlurbVersion
}

// AppendBlurb appends the agent blurb to the given content.
func AppendBlurb(content string) string {
	if content != "" {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n"
	}
	return content + AgentBlurb + "\n"
}

// RemoveBlurb removes an existing blurb from the content.
func RemoveBlurb(content string) string {
	startIdx := strings.Index(content, "<!-- lc-agent-instructions-v")
	if startIdx == -1 {
		return content
	}
	endIdx := strings.Index(content, BlurbEndMarker)
	if endIdx == -1 {
		return content
	}
	endIdx += len(BlurbEndMarker)
	for endIdx < len(content) && (content[endIdx] == '\n' || content[endIdx] == '\r') {
		endIdx++
	}
	for startIdx > 0 && (content[startIdx-1] == '\n' || content[startIdx-1] == '\r') {
		startIdx--
	}
	rest := content[:startIdx]
	if rest != "" && endIdx < len(content) {
		rest += "\n\n"
	}
	return rest + content[endIdx:]
}

// UpdateBlurb replaces an existing blurb with the current version.
func UpdateBlurb(content string) string {
	return AppendBlurb(RemoveBlurb(content))
}

// FindAgentFile returns the first supported agent file in dir, or "" when
// there is none.
func FindAgentFile(dir string) string {
	for _, name := range SupportedAgentFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Ensure adds or refreshes the blurb in dir's agent file, creating
// AGENTS.md when the project has none. It returns the file path and
// whether the file changed.
func Ensure(dir string) (string, bool, error) {
	path := FindAgentFile(dir)
	if path == "" {
		path = filepath.Join(dir, SupportedAgentFiles[0])
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return path, false, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	var updated string
	switch {
	case !ContainsBlurb(content):
		updated = AppendBlurb(content)
	case NeedsUpdate(content):
		updated = UpdateBlurb(content)
	default:
		return path, false, nil
	}
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return path, false, fmt.Errorf("write %s: %w", path, err)
	}
	return path, true, nil
}
