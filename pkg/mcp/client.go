// Package mcp provides MCP (Model Context Protocol) client infrastructure
// for connecting to and calling tools on backend servers over stdio, HTTP,
// and SSE transports.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/version"
)

// Client manages MCP SDK sessions for the configured backends.
// Thread-safe: sessions may be used from many concurrent invocations.
type Client struct {
	backends *config.BackendRegistryConfig

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession // backend name → session

	// Per-backend mutex for session creation to prevent thundering herd.
	initMu sync.Map // backend name → *sync.Mutex

	logger *slog.Logger
}

// NewClient creates a Client over the configured backend set. Sessions are
// established lazily on first use and on demand via Connect.
func NewClient(backends *config.BackendRegistryConfig) *Client {
	return &Client{
		backends: backends,
		sessions: make(map[string]*mcpsdk.ClientSession),
		logger:   slog.Default(),
	}
}

// Connect establishes a session to a backend. Returns nil if already
// connected. Serialized per backend.
func (c *Client) Connect(ctx context.Context, name string) error {
	mu := c.lockFor(name)
	mu.Lock()
	defer mu.Unlock()
	return c.connectLocked(ctx, name)
}

// connectLocked performs the actual connection. Caller holds the
// per-backend initMu lock.
func (c *Client) connectLocked(ctx context.Context, name string) error {
	c.mu.RLock()
	if _, exists := c.sessions[name]; exists {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	descriptor, ok := c.backends.Get(name)
	if !ok {
		return fmt.Errorf("backend %q not configured", name)
	}

	transport, err := createTransport(descriptor)
	if err != nil {
		return fmt.Errorf("failed to create transport for %q: %w", name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		// Close the transport if it holds resources (stdio child processes);
		// the SDK closes the connection on most failure paths but not all.
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("failed to connect to %q: %w", name, err)
	}

	c.mu.Lock()
	c.sessions[name] = session
	c.mu.Unlock()

	c.logger.Info("Backend connected", "backend", name)
	return nil
}

// CallTool executes a single tool call on the named backend. No retries
// here: retry, backoff, and failover policy belong to the broker.
func (c *Client) CallTool(ctx context.Context, name, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	c.mu.RLock()
	session, exists := c.sessions[name]
	c.mu.RUnlock()
	if !exists {
		if err := c.Connect(ctx, name); err != nil {
			return nil, err
		}
		c.mu.RLock()
		session = c.sessions[name]
		c.mu.RUnlock()
	}

	return session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
}

// ListTools returns the tools a backend advertises. Used by health probing.
func (c *Client) ListTools(ctx context.Context, name string) ([]*mcpsdk.Tool, error) {
	c.mu.RLock()
	session, exists := c.sessions[name]
	c.mu.RUnlock()
	if !exists {
		if err := c.Connect(ctx, name); err != nil {
			return nil, err
		}
		c.mu.RLock()
		session = c.sessions[name]
		c.mu.RUnlock()
	}

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools from %q: %w", name, err)
	}
	return result.Tools, nil
}

// Reconnect tears down and recreates the session for a backend. Called by
// the broker when ClassifyError demands a new session.
func (c *Client) Reconnect(ctx context.Context, name string) error {
	mu := c.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, exists := c.sessions[name]; exists {
		_ = session.Close()
		delete(c.sessions, name)
	}
	c.mu.Unlock()

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()
	return c.connectLocked(reinitCtx, name)
}

// HasSession checks if a backend has an active session.
func (c *Client) HasSession(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.sessions[name]
	return exists
}

// Close shuts down all sessions gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", name, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	return firstErr
}

func (c *Client) lockFor(name string) *sync.Mutex {
	muI, _ := c.initMu.LoadOrStore(name, &sync.Mutex{})
	return muI.(*sync.Mutex)
}
