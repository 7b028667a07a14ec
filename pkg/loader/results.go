package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/vanderheijden86/loopcanvas/pkg/model"
)

// ParseResults decodes a simulation result. It does not validate: playback
// tolerates incomplete series, and strict callers run Validate themselves.
func ParseResults(data []byte, format Format) (*model.SimulationResult, error) {
	var r model.SimulationResult
	if err := unmarshal(data, format, &r); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &r, nil
}

// LoadResults reads a simulation result file.
func LoadResults(path string) (*model.SimulationResult, error) {
	r, _, err := LoadResultsWithHash(path)
	return r, err
}

// LoadResultsWithHash reads a simulation result file and also returns a
// content hash of the raw bytes, used to skip reloads of unchanged files.
func LoadResultsWithHash(path string) (*model.SimulationResult, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read results: %w", err)
	}
	r, err := ParseResults(data, FormatFor(path))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return r, hex.EncodeToString(sum[:]), nil
}
