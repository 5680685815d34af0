package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dope-context/dope/pkg/models"
)

func TestBudgetLedgerRollingWindow(t *testing.T) {
	now := time.Now()
	l := newBudgetLedger()
	l.now = func() time.Time { return now }

	l.Commit("ws", models.RoleResearch, 400)
	assert.Equal(t, 400, l.Spent("ws", models.RoleResearch))

	// Admission compares remaining budget against the estimate.
	assert.True(t, l.Admit("ws", models.RoleResearch, 1000, 600))
	assert.False(t, l.Admit("ws", models.RoleResearch, 1000, 601))

	// A second commit accumulates monotonically within the window.
	l.Commit("ws", models.RoleResearch, 300)
	assert.Equal(t, 700, l.Spent("ws", models.RoleResearch))

	// Once the window slides past the first entry, it falls out of the sum.
	now = now.Add(budgetWindow + time.Minute)
	assert.Equal(t, 0, l.Spent("ws", models.RoleResearch))
	assert.True(t, l.Admit("ws", models.RoleResearch, 1000, 1000))
}

func TestBudgetLedgerIsolation(t *testing.T) {
	l := newBudgetLedger()

	l.Commit("ws-a", models.RoleResearch, 500)
	assert.Equal(t, 0, l.Spent("ws-b", models.RoleResearch), "workspaces never share a ledger")
	assert.Equal(t, 0, l.Spent("ws-a", models.RoleQuality), "roles never share a ledger")
}

func TestBudgetLedgerUnbudgetedRole(t *testing.T) {
	l := newBudgetLedger()
	l.Commit("ws", models.RoleResearch, 1_000_000)
	assert.True(t, l.Admit("ws", models.RoleResearch, 0, 500), "zero budget means unbudgeted")
}
