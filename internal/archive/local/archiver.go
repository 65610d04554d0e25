// Package local archives raw page snapshots on the local filesystem,
// mainly for development runs without a cloud bucket.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Archiver writes snapshots under a base directory.
type Archiver struct {
	baseDir string
}

// New creates a filesystem-backed snapshot archiver rooted at baseDir.
func New(baseDir string) (*Archiver, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &Archiver{baseDir: baseDir}, nil
}

// Archive writes the snapshot under name and returns its file:// URI.
func (a *Archiver) Archive(_ context.Context, name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("object name is required")
	}
	full := filepath.Join(a.baseDir, name)
	cleanBase := filepath.Clean(a.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return fmt.Sprintf("file://%s", full), nil
}
