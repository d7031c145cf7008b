// Package guidance loads operator-written prompt guidance, such as regional
// rules or house style, that is appended to the generation prompt.
package guidance

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const FileName = "LIFEFLOW_GUIDANCE.md"

// Load reads path when set, otherwise the nearest FileName found walking up
// from startDir. A missing file yields an empty string and no error.
func Load(path, startDir string) (string, error) {
	if strings.TrimSpace(path) == "" {
		found, err := findInParents(startDir, FileName)
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func findInParents(startDir string, filename string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
