package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/commands"
	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/services"
)

func newTestServer() *Server {
	dispatcher := commands.NewDispatcher(nil, nil, nil, nil, nil, nil, nil)
	return NewServer(":0", nil, dispatcher, nil)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthWithoutDatabase(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleInvokeRejectsBadJSON(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodPost, "/api/v1/invoke", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.InvokeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrKindValidationError, resp.Error.Kind)
}

func TestHandleCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing workspace", "/api/v1/commands/session.start", `{"user_id":"u"}`},
		{"missing user", "/api/v1/commands/session.start", `{"workspace_id":"ws"}`},
		{"unknown command", "/api/v1/commands/session.nap", `{"workspace_id":"ws","user_id":"u"}`},
		{"malformed body", "/api/v1/commands/session.start", `{broken`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(newTestServer(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp commandResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.OK)
			assert.Equal(t, commands.ExitValidationError, resp.ExitCode)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestStatsRequiresIdentity(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind     models.ErrorKind
		expected int
	}{
		{models.ErrKindValidationError, http.StatusBadRequest},
		{models.ErrKindBudgetExceeded, http.StatusTooManyRequests},
		{models.ErrKindBreakRequired, http.StatusLocked},
		{models.ErrKindIllegalTransition, http.StatusConflict},
		{models.ErrKindCancelled, http.StatusGatewayTimeout},
		{models.ErrKindNoBackend, http.StatusServiceUnavailable},
		{models.ErrKindUnavailable, http.StatusServiceUnavailable},
		{models.ErrKindStorageUnavailable, http.StatusServiceUnavailable},
		{models.ErrKindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusForKind(tt.kind), "kind %s", tt.kind)
	}
}

func TestStatusForExit(t *testing.T) {
	tests := []struct {
		code     int
		expected int
	}{
		{commands.ExitValidationError, http.StatusBadRequest},
		{commands.ExitBackendUnavailable, http.StatusServiceUnavailable},
		{commands.ExitBudgetExceeded, http.StatusTooManyRequests},
		{commands.ExitIllegalTransition, http.StatusConflict},
		{commands.ExitBreakRequired, http.StatusLocked},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusForExit(tt.code), "exit code %d", tt.code)
	}
}

func TestNotFoundStatus(t *testing.T) {
	status, ok := notFoundStatus(fmt.Errorf("progress entry 9: %w", services.ErrNotFound))
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)

	_, ok = notFoundStatus(errors.New("boom"))
	assert.False(t, ok)
}
