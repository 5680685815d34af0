package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/syncindex"
)

func newSnapshotDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	coordinator, err := syncindex.NewCoordinator(t.TempDir(), nil)
	require.NoError(t, err)
	return &Dispatcher{
		snapshots: coordinator,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

func TestSnapshotWorkspaceFirstSaveReportsEverythingAdded(t *testing.T) {
	d := newSnapshotDispatcher(t)
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "main.go"), []byte("package main\n"), 0o644))

	changes, ok := d.snapshotWorkspace(context.Background(), workspace)
	require.True(t, ok)
	assert.Equal(t, []string{"main.go"}, changes.Added)
	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Removed)
}

func TestSnapshotWorkspaceDetectsEditsBetweenSaves(t *testing.T) {
	d := newSnapshotDispatcher(t)
	workspace := t.TempDir()
	file := filepath.Join(workspace, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	_, ok := d.snapshotWorkspace(context.Background(), workspace)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0o644))
	changes, ok := d.snapshotWorkspace(context.Background(), workspace)
	require.True(t, ok)
	assert.Empty(t, changes.Added)
	assert.Equal(t, []string{"main.go"}, changes.Modified)
}

func TestPendingWorkspaceChangesDoesNotCommit(t *testing.T) {
	d := newSnapshotDispatcher(t)
	workspace := t.TempDir()
	file := filepath.Join(workspace, "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("draft\n"), 0o644))

	_, ok := d.snapshotWorkspace(context.Background(), workspace)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(file, []byte("draft v2\n"), 0o644))

	// Two consecutive loads see the same pending edit because neither
	// replaces the stored snapshot.
	for i := 0; i < 2; i++ {
		changes, ok := d.pendingWorkspaceChanges(context.Background(), workspace)
		require.True(t, ok)
		assert.Equal(t, []string{"notes.md"}, changes.Modified)
	}
}

func TestPendingWorkspaceChangesWithoutStoredSnapshot(t *testing.T) {
	d := newSnapshotDispatcher(t)
	_, ok := d.pendingWorkspaceChanges(context.Background(), t.TempDir())
	assert.False(t, ok, "no baseline, nothing to report")
}

func TestSnapshotHelpersTolerateMissingCoordinator(t *testing.T) {
	d := &Dispatcher{now: time.Now, logger: slog.Default()}

	_, ok := d.snapshotWorkspace(context.Background(), t.TempDir())
	assert.False(t, ok)
	_, ok = d.pendingWorkspaceChanges(context.Background(), t.TempDir())
	assert.False(t, ok)
}

func TestSnapshotWorkspaceSkipsUnreadableWorkspace(t *testing.T) {
	d := newSnapshotDispatcher(t)
	_, ok := d.snapshotWorkspace(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	assert.False(t, ok, "a workspace id that is not a directory disables change detection")
}
