package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when an upload id has no file behind it.
var ErrNotFound = errors.New("upload not found")

// Dir resolves opaque upload ids to files inside a single directory. The
// upload transport itself lives elsewhere; this side only needs id-to-path.
type Dir struct {
	root string
}

// NewDir creates a resolver rooted at the given directory.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Resolve returns the file path for an upload id. Ids that would escape the
// root directory are rejected outright.
func (d *Dir) Resolve(uploadID string) (string, error) {
	if uploadID == "" {
		return "", fmt.Errorf("empty upload id: %w", ErrNotFound)
	}
	if strings.Contains(uploadID, "..") || strings.ContainsAny(uploadID, `/\`) {
		return "", fmt.Errorf("upload id %q is not a bare file name: %w", uploadID, ErrNotFound)
	}

	path := filepath.Join(d.root, uploadID)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("upload %q: %w", uploadID, ErrNotFound)
		}
		return "", fmt.Errorf("stat upload %q: %w", uploadID, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("upload %q is a directory: %w", uploadID, ErrNotFound)
	}

	return path, nil
}
