package commands

import (
	"errors"

	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/services"
)

// CLI exit codes for the command surface.
const (
	ExitOK                 = 0
	ExitValidationError    = 1
	ExitBackendUnavailable = 2
	ExitBudgetExceeded     = 3
	ExitIllegalTransition  = 4
	ExitBreakRequired      = 5
)

// ExitCodeFor maps an error to its CLI exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var toolErr *models.ToolError
	if errors.As(err, &toolErr) {
		return exitForKind(toolErr.Kind)
	}

	switch {
	case errors.Is(err, services.ErrIllegalTransition):
		return ExitIllegalTransition
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrNotFound):
		return ExitValidationError
	case errors.Is(err, services.ErrStorageUnavailable):
		return ExitBackendUnavailable
	default:
		return ExitBackendUnavailable
	}
}

func exitForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindValidationError:
		return ExitValidationError
	case models.ErrKindBudgetExceeded:
		return ExitBudgetExceeded
	case models.ErrKindIllegalTransition:
		return ExitIllegalTransition
	case models.ErrKindBreakRequired:
		return ExitBreakRequired
	case models.ErrKindNoBackend, models.ErrKindUnavailable,
		models.ErrKindStorageUnavailable, models.ErrKindCancelled,
		models.ErrKindInternal:
		return ExitBackendUnavailable
	default:
		return ExitBackendUnavailable
	}
}
