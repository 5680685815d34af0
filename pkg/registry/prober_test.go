package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/models"
)

func TestProbeHTTP(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		probePath string
		healthy   bool
	}{
		{"200 is healthy", http.StatusOK, "/health", true},
		{"204 is healthy", http.StatusNoContent, "/health", true},
		{"500 is unhealthy", http.StatusInternalServerError, "/health", false},
		{"404 on wrong path", http.StatusOK, "/other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			r := New(0)
			require.NoError(t, r.Register(models.BackendDescriptor{
				Name:      "b",
				Transport: models.TransportTypeHTTP,
				Endpoint:  server.URL,
				RoleTags:  []models.RoleTag{models.RoleTagDocumentation},
				ProbePath: tt.probePath,
			}))

			p := NewProber(r)
			p.ProbeOne(context.Background(), "b")

			status, err := r.Get("b")
			require.NoError(t, err)
			if tt.healthy {
				assert.Equal(t, models.HealthUp, status.Health)
			} else {
				assert.NotEqual(t, models.HealthUp, status.Health)
				assert.NotEmpty(t, status.LastError)
			}
		})
	}
}

func TestProbeCommand(t *testing.T) {
	origLookPath, origLookStat := lookPath, lookStat
	defer func() { lookPath, lookStat = origLookPath, origLookStat }()

	t.Run("command on PATH is alive", func(t *testing.T) {
		lookPath = func(string) (string, error) { return "/usr/bin/tool", nil }
		assert.NoError(t, probeCommand("tool"))
	})

	t.Run("command missing from PATH fails", func(t *testing.T) {
		lookPath = func(string) (string, error) { return "", errors.New("not in PATH") }
		assert.Error(t, probeCommand("tool"))
	})

	t.Run("absolute path is stat-checked", func(t *testing.T) {
		lookStat = func(string) (os.FileInfo, error) { return nil, nil }
		assert.NoError(t, probeCommand("/opt/tool"))

		lookStat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }
		assert.Error(t, probeCommand("/opt/tool"))
	})

	t.Run("empty command fails", func(t *testing.T) {
		assert.Error(t, probeCommand(""))
	})
}

func TestProbeAllMarksFailures(t *testing.T) {
	r := New(2)
	// Endpoint points nowhere; the probe must fail fast.
	require.NoError(t, r.Register(models.BackendDescriptor{
		Name:      "dead",
		Transport: models.TransportTypeHTTP,
		Endpoint:  "http://127.0.0.1:1",
		RoleTags:  []models.RoleTag{models.RoleTagMemory},
		ProbePath: "/health",
	}))

	p := NewProber(r)
	p.ProbeAll(context.Background())
	p.ProbeAll(context.Background())

	status, err := r.Get("dead")
	require.NoError(t, err)
	assert.Equal(t, models.HealthDown, status.Health)
}
