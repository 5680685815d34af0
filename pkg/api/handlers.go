package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dope-context/dope/pkg/commands"
	"github.com/dope-context/dope/pkg/database"
	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/services"
)

// handleInvoke routes a tool invocation through the broker.
func (s *Server) handleInvoke(c *gin.Context) {
	var req models.InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.InvokeResponse{
			OK: false,
			Error: &models.ToolError{
				Kind:    models.ErrKindValidationError,
				Message: err.Error(),
			},
		})
		return
	}

	result, terr := s.broker.Invoke(c.Request.Context(), &req)
	if terr != nil {
		c.JSON(statusForKind(terr.Kind), models.InvokeResponse{
			OK:       false,
			Error:    terr,
			Friendly: terr.Friendly(),
		})
		return
	}

	c.JSON(http.StatusOK, models.InvokeResponse{
		OK:          true,
		Payload:     result.Payload,
		Cost:        result.Cost,
		BackendName: result.BackendName,
		LatencyMS:   result.LatencyMS,
	})
}

// commandResponse is the command surface envelope. ExitCode mirrors the
// CLI contract so dopectl can exit without re-deriving the mapping.
type commandResponse struct {
	OK       bool   `json:"ok"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// handleCommand dispatches a named command.
func (s *Server) handleCommand(c *gin.Context) {
	var req commands.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, commandResponse{
			OK: false, Error: err.Error(), ExitCode: commands.ExitValidationError,
		})
		return
	}

	result, err := s.dispatcher.Run(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		code := commands.ExitCodeFor(err)
		status := statusForExit(code)
		if nf, ok := notFoundStatus(err); ok {
			status = nf
		}
		c.JSON(status, commandResponse{
			OK: false, Error: err.Error(), ExitCode: code,
		})
		return
	}
	c.JSON(http.StatusOK, commandResponse{OK: true, Result: result, ExitCode: commands.ExitOK})
}

// handleStats is the read-only stats view; it reuses the stats command.
func (s *Server) handleStats(c *gin.Context) {
	req := commands.Request{
		WorkspaceID: c.Query("workspace_id"),
		UserID:      c.Query("user_id"),
	}
	result, err := s.dispatcher.Run(c.Request.Context(), "stats", req)
	if err != nil {
		code := commands.ExitCodeFor(err)
		c.JSON(statusForExit(code), commandResponse{
			OK: false, Error: err.Error(), ExitCode: code,
		})
		return
	}
	c.JSON(http.StatusOK, commandResponse{OK: true, Result: result, ExitCode: commands.ExitOK})
}

// handleHealth reports process and storage liveness.
func (s *Server) handleHealth(c *gin.Context) {
	response := gin.H{"status": "ok"}
	status := http.StatusOK

	if s.dbClient != nil {
		dbHealth, err := database.Health(c.Request.Context(), s.dbClient.DB())
		if err != nil {
			response["status"] = "degraded"
			response["database"] = gin.H{"healthy": false, "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			response["database"] = dbHealth
		}
	}
	c.JSON(status, response)
}

// statusForKind maps broker error kinds to HTTP status codes.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindValidationError:
		return http.StatusBadRequest
	case models.ErrKindBudgetExceeded:
		return http.StatusTooManyRequests
	case models.ErrKindBreakRequired:
		return http.StatusLocked
	case models.ErrKindIllegalTransition:
		return http.StatusConflict
	case models.ErrKindCancelled:
		return http.StatusGatewayTimeout
	case models.ErrKindNoBackend, models.ErrKindUnavailable, models.ErrKindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusForExit maps command exit codes to HTTP status codes.
func statusForExit(code int) int {
	switch code {
	case commands.ExitValidationError:
		return http.StatusBadRequest
	case commands.ExitBudgetExceeded:
		return http.StatusTooManyRequests
	case commands.ExitIllegalTransition:
		return http.StatusConflict
	case commands.ExitBreakRequired:
		return http.StatusLocked
	case commands.ExitBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// notFoundStatus keeps 404 semantics for missing records without a
// dedicated exit code.
func notFoundStatus(err error) (int, bool) {
	if errors.Is(err, services.ErrNotFound) {
		return http.StatusNotFound, true
	}
	return 0, false
}
