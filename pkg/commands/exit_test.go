package commands

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/services"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, ExitOK},
		{"validation tool error", &models.ToolError{Kind: models.ErrKindValidationError}, ExitValidationError},
		{"budget exceeded", &models.ToolError{Kind: models.ErrKindBudgetExceeded}, ExitBudgetExceeded},
		{"illegal transition tool error", &models.ToolError{Kind: models.ErrKindIllegalTransition}, ExitIllegalTransition},
		{"break required", &models.ToolError{Kind: models.ErrKindBreakRequired}, ExitBreakRequired},
		{"no backend", &models.ToolError{Kind: models.ErrKindNoBackend}, ExitBackendUnavailable},
		{"backend unavailable", &models.ToolError{Kind: models.ErrKindUnavailable}, ExitBackendUnavailable},
		{"cancelled", &models.ToolError{Kind: models.ErrKindCancelled}, ExitBackendUnavailable},
		{"wrapped tool error", fmt.Errorf("command failed: %w", &models.ToolError{Kind: models.ErrKindBreakRequired}), ExitBreakRequired},
		{"service invalid input", services.NewValidationError("field", "bad"), ExitValidationError},
		{"service not found", fmt.Errorf("lookup: %w", services.ErrNotFound), ExitValidationError},
		{"service illegal transition", fmt.Errorf("update: %w", services.ErrIllegalTransition), ExitIllegalTransition},
		{"service storage down", fmt.Errorf("save: %w", services.ErrStorageUnavailable), ExitBackendUnavailable},
		{"unclassified error", errors.New("boom"), ExitBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCodeFor(tt.err))
		})
	}
}
