// Package workspace manages the temporary directories promotions run in.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Prefix is the name prefix of every workspace directory. Cleanup only ever
// touches entries carrying it.
const Prefix = "granny-"

// Workspace is an exclusively owned scratch directory.
type Workspace struct {
	Dir string
}

// Path joins elem onto the workspace directory.
func (w Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}

// Touch marks the workspace as in use, resetting the idle time Cleanup sees.
func (w Workspace) Touch() error {
	now := time.Now()
	return os.Chtimes(w.Dir, now, now)
}

// CleanupReport summarizes a Cleanup sweep.
type CleanupReport struct {
	DeletedDirs int
	Kept        int
}

// Manager creates workspaces under a base directory.
type Manager struct {
	baseDir string
	now     func() time.Time
}

// NewManager returns a Manager rooted at baseDir, or at the system temp
// directory when baseDir is empty.
func NewManager(baseDir string) *Manager {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: filepath.Clean(baseDir), now: time.Now}
}

// BaseDir returns the directory workspaces are created in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Scope creates a fresh workspace, runs fn in it and removes it afterwards,
// whatever fn returns. A removal failure is reported only if fn succeeded.
func (m *Manager) Scope(ctx context.Context, fn func(Workspace) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create workspace base directory: %w", err)
	}
	dir, err := os.MkdirTemp(m.baseDir, Prefix+"*")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	slog.Debug("workspace created", "dir", dir)

	defer func() {
		rmErr := os.RemoveAll(dir)
		if rmErr != nil {
			slog.Warn("failed to remove workspace", "dir", dir, "error", rmErr)
			if err == nil {
				err = fmt.Errorf("remove workspace %s: %w", dir, rmErr)
			}
			return
		}
		slog.Debug("workspace removed", "dir", dir)
	}()

	return fn(Workspace{Dir: dir})
}

// Cleanup removes workspaces whose modification time is older than olderThan.
// Workspaces left behind by killed runs are the only expected candidates.
func (m *Manager) Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return CleanupReport{}, err
	}
	if olderThan < 0 {
		return CleanupReport{}, fmt.Errorf("olderThan must not be negative")
	}

	entries, err := os.ReadDir(m.baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return CleanupReport{}, nil
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("read workspace base directory: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	report := CleanupReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return report, fmt.Errorf("read workspace entry info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			report.Kept++
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return report, fmt.Errorf("remove workspace %q: %w", entry.Name(), err)
		}
		slog.Info("removed stale workspace", "dir", path, "modified", info.ModTime())
		report.DeletedDirs++
	}

	return report, nil
}
