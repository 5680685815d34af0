package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ProgressStatus
		to      ProgressStatus
		allowed bool
	}{
		{"todo to in_progress", StatusTodo, StatusInProgress, true},
		{"todo to blocked", StatusTodo, StatusBlocked, true},
		{"todo to cancelled", StatusTodo, StatusCancelled, true},
		{"todo straight to done", StatusTodo, StatusDone, false},
		{"in_progress to done", StatusInProgress, StatusDone, true},
		{"in_progress back to todo", StatusInProgress, StatusTodo, true},
		{"in_progress to blocked", StatusInProgress, StatusBlocked, true},
		{"blocked to in_progress", StatusBlocked, StatusInProgress, true},
		{"blocked to todo", StatusBlocked, StatusTodo, true},
		{"blocked to done", StatusBlocked, StatusDone, false},
		{"done is terminal", StatusDone, StatusTodo, false},
		{"done to cancelled", StatusDone, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusInProgress, false},
		{"same status is allowed", StatusInProgress, StatusInProgress, true},
		{"same terminal status is allowed", StatusDone, StatusDone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestProgressStatusTerminal(t *testing.T) {
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusTodo.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, StatusBlocked.Terminal())
}
