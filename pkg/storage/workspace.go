package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Workspace owns the output and upload directories: it creates them on
// demand and sweeps their contents between processing runs.
type Workspace struct {
	OutputDir string
	UploadDir string
	logger    *slog.Logger
}

func NewWorkspace(outputDir, uploadDir string, logger *slog.Logger) *Workspace {
	return &Workspace{OutputDir: outputDir, UploadDir: uploadDir, logger: logger}
}

// EnsureDirs creates both directories if missing.
func (w *Workspace) EnsureDirs() error {
	for _, dir := range []string{w.OutputDir, w.UploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OutputPath joins name onto the output directory, creating it if needed.
func (w *Workspace) OutputPath(name string) (string, error) {
	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return filepath.Join(w.OutputDir, name), nil
}

// Clear removes everything inside the output and upload directories but
// keeps the directories themselves.
func (w *Workspace) Clear() error {
	for _, dir := range []string{w.OutputDir, w.UploadDir} {
		if err := clearDir(dir); err != nil {
			return err
		}
		w.logger.Info("cleared directory", slog.String("dir", dir))
	}
	return nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
