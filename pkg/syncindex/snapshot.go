// Package syncindex keeps content snapshots of workspaces: what files
// exist and what they hash to. Snapshots are the ground truth for change
// detection between sessions; two workspaces never share snapshot state.
package syncindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultExcludes are directory subtrees never worth indexing.
var defaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.dope-context/**",
}

// Snapshot is one workspace's content state at a point in time.
type Snapshot struct {
	WorkspacePath string            `json:"workspace_path"`
	TakenAt       time.Time         `json:"taken_at"`
	Files         map[string]string `json:"files"` // slash-relative path → sha256 hex
}

// Digest returns a single hash over the whole snapshot: file paths and
// hashes in sorted order. Equal digests mean equal content.
func (s *Snapshot) Digest() string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s %s\n", p, s.Files[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Coordinator takes, stores, and compares workspace snapshots.
type Coordinator struct {
	rootDir  string
	includes []string
	excludes []string
}

// NewCoordinator creates a coordinator storing snapshots under rootDir.
// "~" expands to the user home directory. Empty includes means everything.
func NewCoordinator(rootDir string, includes []string) (*Coordinator, error) {
	expanded, err := expandHome(rootDir)
	if err != nil {
		return nil, err
	}
	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	return &Coordinator{
		rootDir:  expanded,
		includes: includes,
		excludes: defaultExcludes,
	}, nil
}

// Take walks the workspace and hashes every included regular file. Paths in
// the result are slash-separated and relative to the workspace root, so
// snapshots compare across machines.
func (c *Coordinator) Take(ctx context.Context, workspacePath string) (*Snapshot, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}

	snap := &Snapshot{
		WorkspacePath: abs,
		TakenAt:       time.Now().UTC(),
		Files:         make(map[string]string),
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if c.excluded(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !c.included(rel) {
			return nil
		}
		sum, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		snap.Files[rel] = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Coordinator) excluded(rel string, isDir bool) bool {
	probe := rel
	if isDir {
		// Make "**/dir/**" patterns match the directory itself so the walk
		// can skip the whole subtree.
		probe = rel + "/"
	}
	for _, pattern := range c.excludes {
		if ok, _ := doublestar.Match(pattern, probe); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (c *Coordinator) included(rel string) bool {
	if len(c.includes) == 0 {
		return true
	}
	for _, pattern := range c.includes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// workspaceHash isolates one workspace's snapshot directory from another's.
// The full path feeds the hash, so renaming a workspace starts fresh state.
func workspaceHash(workspacePath string) string {
	sum := sha256.Sum256([]byte(workspacePath))
	return hex.EncodeToString(sum[:])[:16]
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
