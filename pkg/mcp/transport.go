package mcp

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dope-context/dope/pkg/models"
)

// createTransport creates an MCP SDK transport from a backend descriptor.
func createTransport(b *models.BackendDescriptor) (mcpsdk.Transport, error) {
	switch b.Transport {
	case models.TransportTypeStdio:
		return createStdioTransport(b)
	case models.TransportTypeHTTP:
		return createHTTPTransport(b)
	case models.TransportTypeSSE:
		return createSSETransport(b)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", b.Transport)
	}
}

func createStdioTransport(b *models.BackendDescriptor) (*mcpsdk.CommandTransport, error) {
	if b.Command == "" {
		return nil, fmt.Errorf("stdio transport requires command")
	}
	cmd := exec.Command(b.Command, b.Args...)
	cmd.Env = os.Environ()
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

func createHTTPTransport(b *models.BackendDescriptor) (*mcpsdk.StreamableClientTransport, error) {
	if b.Endpoint == "" {
		return nil, fmt.Errorf("HTTP transport requires endpoint")
	}
	transport := &mcpsdk.StreamableClientTransport{Endpoint: b.Endpoint}
	if b.DefaultTimeoutMS > 0 {
		transport.HTTPClient = &http.Client{
			Timeout: time.Duration(b.DefaultTimeoutMS) * time.Millisecond,
		}
	}
	return transport, nil
}

func createSSETransport(b *models.BackendDescriptor) (*mcpsdk.SSEClientTransport, error) {
	if b.Endpoint == "" {
		return nil, fmt.Errorf("SSE transport requires endpoint")
	}
	transport := &mcpsdk.SSEClientTransport{Endpoint: b.Endpoint}
	if b.DefaultTimeoutMS > 0 {
		transport.HTTPClient = &http.Client{
			Timeout: time.Duration(b.DefaultTimeoutMS) * time.Millisecond,
		}
	}
	return transport, nil
}
