package services

import "sync"

// workspaceLocks serializes writes per workspace. Operations on different
// workspaces proceed in parallel; within one workspace, write transactions
// run one at a time so monotonic ids and patch merges never race.
type workspaceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newWorkspaceLocks() *workspaceLocks {
	return &workspaceLocks{locks: make(map[string]*sync.Mutex)}
}

// forWorkspace returns the mutex for a workspace, creating it on first use.
// Lock entries are never removed; the set of workspaces a process touches
// is small and bounded by the projects the user works on.
func (w *workspaceLocks) forWorkspace(workspaceID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.locks[workspaceID]; ok {
		return l
	}
	l := &sync.Mutex{}
	w.locks[workspaceID] = l
	return l
}
