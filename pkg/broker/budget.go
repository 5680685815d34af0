package broker

import (
	"sync"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// budgetWindow is the rolling accounting window for role budgets.
const budgetWindow = 24 * time.Hour

// resultReserve is the cost headroom assumed for an upcoming call's result
// when only the arguments are known at admission time.
const resultReserve = 256

type ledgerEntry struct {
	at   time.Time
	cost int
}

// budgetLedger accumulates invocation cost per (workspace, role) over a
// rolling window. Entries older than the window fall out of the sum; within
// the window accumulation is monotone.
type budgetLedger struct {
	mu      sync.Mutex
	entries map[string][]ledgerEntry

	now func() time.Time // swapped in tests
}

func newBudgetLedger() *budgetLedger {
	return &budgetLedger{
		entries: make(map[string][]ledgerEntry),
		now:     time.Now,
	}
}

func ledgerKey(workspaceID string, role models.Role) string {
	return workspaceID + "|" + string(role)
}

// Spent returns the cost accumulated in the current window.
func (l *budgetLedger) Spent(workspaceID string, role models.Role) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spentLocked(ledgerKey(workspaceID, role), l.now())
}

// Admit reports whether an upcoming call with the given estimate fits the
// remaining budget. Admission does not reserve: the actual cost is committed
// after the call completes.
func (l *budgetLedger) Admit(workspaceID string, role models.Role, budget, estimate int) bool {
	if budget <= 0 {
		return true // unbudgeted role
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	spent := l.spentLocked(ledgerKey(workspaceID, role), l.now())
	return budget-spent >= estimate
}

// Commit records the actual cost of a completed call.
func (l *budgetLedger) Commit(workspaceID string, role models.Role, cost int) {
	if cost <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(workspaceID, role)
	l.entries[key] = append(l.entries[key], ledgerEntry{at: l.now(), cost: cost})
}

// spentLocked prunes expired entries and sums the remainder.
func (l *budgetLedger) spentLocked(key string, now time.Time) int {
	cutoff := now.Add(-budgetWindow)
	entries := l.entries[key]
	kept := entries[:0]
	total := 0
	for _, e := range entries {
		if e.at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
		total += e.cost
	}
	if len(kept) == 0 {
		delete(l.entries, key)
	} else {
		l.entries[key] = kept
	}
	return total
}
