package mcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// RecoveryAction determines how to handle a backend operation failure.
type RecoveryAction int

const (
	// NoRetry — the error is not recoverable (bad request, auth failure, timeout).
	NoRetry RecoveryAction = iota
	// RetrySameSession — transient error, retry with the existing session.
	RetrySameSession
	// RetryNewSession — transport failure, recreate the session and retry.
	RetryNewSession
)

// Timeouts for session management.
const (
	// InitTimeout is the per-backend initialization deadline (transport + handshake).
	InitTimeout = 30 * time.Second

	// ReinitTimeout is the deadline for recreating a session during recovery.
	ReinitTimeout = 10 * time.Second
)

// ClassifyError determines the recovery action for a backend call error.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}

	// Context errors — the caller's deadline governs, never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry // could be a legitimately slow backend
		}
		return RetryNewSession
	}

	if isConnectionError(err) {
		return RetryNewSession
	}

	if isProtocolError(err) {
		return NoRetry
	}

	// Server-side failures (5xx-equivalent) are retryable on the same session.
	if isServerError(err) {
		return RetrySameSession
	}

	// Unknown errors are not safe to retry.
	return NoRetry
}

// IsNotFound detects a backend's "no result" reply, which triggers the
// documentation → web-research fallback.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") && !strings.Contains(msg, "method not found")
}

// isConnectionError detects connection-level transport failures.
func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	connectionErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
	}
	for _, e := range connectionErrors {
		if strings.Contains(msg, e) {
			return true
		}
	}
	return false
}

// isProtocolError detects JSON-RPC protocol errors from the SDK. These are
// client-side errors like bad request or method not found.
func isProtocolError(err error) bool {
	msg := strings.ToLower(err.Error())
	protocolIndicators := []string{
		"method not found",
		"invalid params",
		"invalid request",
		"parse error",
	}
	for _, indicator := range protocolIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// isServerError detects 5xx-equivalent backend failures.
func isServerError(err error) bool {
	msg := strings.ToLower(err.Error())
	serverIndicators := []string{
		"internal server error",
		"internal error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
		"status 5",
	}
	for _, indicator := range serverIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
