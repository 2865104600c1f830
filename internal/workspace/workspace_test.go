package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeRemovesWorkspaceOnSuccess(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m := NewManager(base)

	var seen string
	err := m.Scope(context.Background(), func(ws Workspace) error {
		seen = ws.Dir
		assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir), Prefix))
		return os.WriteFile(ws.Path("foo-1.0.tar.gz"), []byte("data"), 0o644)
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)

	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr), "workspace should be removed")
}

func TestScopeRemovesWorkspaceOnFailure(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	boom := errors.New("boom")

	var seen string
	err := m.Scope(context.Background(), func(ws Workspace) error {
		seen = ws.Dir
		require.NoError(t, os.MkdirAll(ws.Path("foo-1.0", "dist"), 0o755))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr), "workspace should be removed")
}

func TestScopeFreshWorkspacePerCall(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	var dirs []string
	for range 2 {
		require.NoError(t, m.Scope(context.Background(), func(ws Workspace) error {
			entries, err := os.ReadDir(ws.Dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
			dirs = append(dirs, ws.Dir)
			return nil
		}))
	}
	assert.NotEqual(t, dirs[0], dirs[1])
}

func TestScopeCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewManager(t.TempDir()).Scope(ctx, func(Workspace) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCleanupRemovesOnlyStaleWorkspaces(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m := NewManager(base)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale := filepath.Join(base, Prefix+"old")
	fresh := filepath.Join(base, Prefix+"new")
	foreign := filepath.Join(base, "other-old")
	for _, dir := range []string{stale, fresh, foreign} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	require.NoError(t, os.Chtimes(stale, now.Add(-3*time.Hour), now.Add(-3*time.Hour)))
	require.NoError(t, os.Chtimes(foreign, now.Add(-3*time.Hour), now.Add(-3*time.Hour)))
	require.NoError(t, os.Chtimes(fresh, now.Add(-10*time.Minute), now.Add(-10*time.Minute)))

	report, err := m.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedDirs)
	assert.Equal(t, 1, report.Kept)

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, foreign)
}

func TestCleanupMissingBaseDir(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "absent"))
	report, err := m.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.DeletedDirs)
}

func TestNewManagerDefaultsToTempDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Clean(os.TempDir()), NewManager("  ").BaseDir())
}

func TestTouchKeepsWorkspaceFromCleanup(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	ws := Workspace{Dir: filepath.Join(base, Prefix+"busy")}
	require.NoError(t, os.Mkdir(ws.Dir, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(ws.Dir, old, old))

	require.NoError(t, ws.Touch())

	report, err := NewManager(base).Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, report.DeletedDirs)
	assert.Equal(t, 1, report.Kept)
	assert.DirExists(t, ws.Dir)
}
