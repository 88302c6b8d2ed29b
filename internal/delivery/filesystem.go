package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Filesystem writes files below a base directory.
type Filesystem struct {
	baseDir string
	logger  *slog.Logger
}

// NewFilesystem creates baseDir if needed.
func NewFilesystem(baseDir string, logger *slog.Logger) (*Filesystem, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("delivery: creating %s: %w", baseDir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filesystem{baseDir: baseDir, logger: logger}, nil
}

// Put writes data atomically: a temp file is renamed into place.
func (f *Filesystem) Put(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(f.baseDir, name)
	tmp, err := os.CreateTemp(f.baseDir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("delivery: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("delivery: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("delivery: closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("delivery: renaming into %s: %w", dst, err)
	}

	f.logger.Info("export archived", slog.String("path", dst), slog.Int("bytes", len(data)))
	return dst, nil
}
