package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected RecoveryAction
	}{
		{"nil error", nil, NoRetry},
		{"context cancelled", context.Canceled, NoRetry},
		{"deadline exceeded", context.DeadlineExceeded, NoRetry},
		{"wrapped deadline", fmt.Errorf("call failed: %w", context.DeadlineExceeded), NoRetry},
		{"EOF is a connection failure", io.EOF, RetryNewSession},
		{"unexpected EOF", io.ErrUnexpectedEOF, RetryNewSession},
		{"connection refused", errors.New("dial tcp: connection refused"), RetryNewSession},
		{"connection reset", errors.New("read: connection reset by peer"), RetryNewSession},
		{"broken pipe", errors.New("write: broken pipe"), RetryNewSession},
		{"method not found is protocol", errors.New("jsonrpc: method not found"), NoRetry},
		{"invalid params is protocol", errors.New("invalid params"), NoRetry},
		{"internal server error retries same session", errors.New("internal server error"), RetrySameSession},
		{"service unavailable retries same session", errors.New("service unavailable"), RetrySameSession},
		{"bad gateway retries same session", errors.New("bad gateway"), RetrySameSession},
		{"unknown error is not retried", errors.New("something odd"), NoRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyError(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(errors.New("symbol not found")))
	assert.True(t, IsNotFound(errors.New("Not Found: no documentation entry")))
	assert.False(t, IsNotFound(errors.New("method not found")), "protocol error is not a missing result")
	assert.False(t, IsNotFound(errors.New("internal error")))
	assert.False(t, IsNotFound(nil))
}
