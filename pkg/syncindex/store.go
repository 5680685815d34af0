package syncindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// latestSnapshotFile is the filename of the most recent snapshot inside a
// workspace's snapshot directory.
const latestSnapshotFile = "latest.json"

// ErrNoSnapshot is returned when a workspace has no stored snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot stored for workspace")

// Save writes the snapshot atomically: temp file in the target directory,
// fsync, then rename over the previous one. A crash mid-save leaves the old
// snapshot intact.
func (c *Coordinator) Save(snap *Snapshot) error {
	dir := filepath.Join(c.rootDir, workspaceHash(snap.WorkspacePath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".latest-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, latestSnapshotFile)); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot for a workspace path.
func (c *Coordinator) Load(workspacePath string) (*Snapshot, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}
	path := filepath.Join(c.rootDir, workspaceHash(abs), latestSnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}
