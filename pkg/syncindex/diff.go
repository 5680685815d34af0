package syncindex

import "sort"

// Changes is the difference between two snapshots. All slices are sorted,
// so equal inputs produce byte-identical output.
type Changes struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Diff compares an older snapshot against a newer one. A nil old snapshot
// reports everything as added: the first snapshot of a workspace.
func Diff(old, current *Snapshot) Changes {
	var changes Changes
	for path, hash := range current.Files {
		if old == nil {
			changes.Added = append(changes.Added, path)
			continue
		}
		prev, existed := old.Files[path]
		switch {
		case !existed:
			changes.Added = append(changes.Added, path)
		case prev != hash:
			changes.Modified = append(changes.Modified, path)
		}
	}
	if old != nil {
		for path := range old.Files {
			if _, exists := current.Files[path]; !exists {
				changes.Removed = append(changes.Removed, path)
			}
		}
	}
	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Removed)
	return changes
}
