package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/models"
)

func httpBackend(name string, priority models.BackendPriority, tags ...models.RoleTag) models.BackendDescriptor {
	return models.BackendDescriptor{
		Name:      name,
		Transport: models.TransportTypeHTTP,
		Endpoint:  "http://localhost:9000",
		RoleTags:  tags,
		Priority:  priority,
		ProbePath: "/health",
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(httpBackend("docs", models.PriorityCriticalPath, models.RoleTagDocumentation)))

	status, err := r.Get("docs")
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnknown, status.Health, "fresh registration starts unknown")

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestReRegisterResetsHealth(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(httpBackend("docs", models.PriorityCriticalPath, models.RoleTagDocumentation)))
	r.ReportSuccess("docs", 10*time.Millisecond)

	require.NoError(t, r.Register(httpBackend("docs", models.PriorityWorkflow, models.RoleTagDocumentation)))
	status, err := r.Get("docs")
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnknown, status.Health)
}

func TestHealthStateMachine(t *testing.T) {
	r := New(3)
	require.NoError(t, r.Register(httpBackend("b", models.PriorityUtility, models.RoleTagMemory)))

	get := func() models.HealthState {
		s, err := r.Get("b")
		require.NoError(t, err)
		return s.Health
	}

	// unknown stays unknown on failure until threshold
	r.ReportFailure("b", "boom")
	assert.Equal(t, models.HealthUnknown, get())

	// first success brings it up
	r.ReportSuccess("b", 5*time.Millisecond)
	assert.Equal(t, models.HealthUp, get())

	// failure while up degrades
	r.ReportFailure("b", "boom")
	assert.Equal(t, models.HealthDegraded, get())
	r.ReportFailure("b", "boom")
	assert.Equal(t, models.HealthDegraded, get())

	// threshold reached marks down
	r.ReportFailure("b", "boom")
	assert.Equal(t, models.HealthDown, get())

	// success recovers straight to up and resets the failure streak
	r.ReportSuccess("b", 5*time.Millisecond)
	assert.Equal(t, models.HealthUp, get())
	status, err := r.Get("b")
	require.NoError(t, err)
	assert.Zero(t, status.ConsecutiveFailures)
}

func TestListFilters(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(httpBackend("docs", models.PriorityCriticalPath, models.RoleTagDocumentation)))
	require.NoError(t, r.Register(httpBackend("web", models.PriorityResearch, models.RoleTagWebResearch)))
	require.NoError(t, r.Register(httpBackend("editor", models.PriorityWorkflow, models.RoleTagCodeEditing)))

	r.ReportSuccess("docs", time.Millisecond)
	r.MarkDown("web")

	all := r.List(Filter{})
	assert.Len(t, all, 3)
	assert.Equal(t, "docs", all[0].Descriptor.Name, "sorted by name")

	docOnly := r.List(Filter{RoleTag: models.RoleTagDocumentation})
	require.Len(t, docOnly, 1)
	assert.Equal(t, "docs", docOnly[0].Descriptor.Name)

	routable := r.List(Filter{RoutableOnly: true})
	require.Len(t, routable, 1, "unknown and down are not routable")
	assert.Equal(t, "docs", routable[0].Descriptor.Name)

	workflow := r.List(Filter{Priority: models.PriorityWorkflow})
	require.Len(t, workflow, 1)
	assert.Equal(t, "editor", workflow[0].Descriptor.Name)
}

func TestUnregister(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(httpBackend("docs", models.PriorityUtility, models.RoleTagDocumentation)))
	r.Unregister("docs")
	_, err := r.Get("docs")
	assert.Error(t, err)
	assert.Empty(t, r.Names())
}
