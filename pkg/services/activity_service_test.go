package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/models"
)

func TestRecentActivitySummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Decisions.LogDecision(ctx, "ws-act", "a decision", "", "", nil)
	require.NoError(t, err)
	_, err = store.Progress.LogProgress(ctx, "ws-act", models.StatusTodo, "a task", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Patterns.LogSystemPattern(ctx, "ws-act", "a-pattern", "", nil))

	summary, err := store.Activity.GetRecentActivitySummary(ctx, "ws-act", 24, 10)
	require.NoError(t, err)
	assert.Len(t, summary.Decisions, 1)
	assert.Len(t, summary.Progress, 1)
	assert.Len(t, summary.Patterns, 1)
}

func TestRecentActivitySummaryCaches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Activity.GetRecentActivitySummary(ctx, "ws-act", 24, 10)
	require.NoError(t, err)

	// A write inside the TTL is invisible until the cache is invalidated.
	_, err = store.Decisions.LogDecision(ctx, "ws-act", "fresh decision", "", "", nil)
	require.NoError(t, err)

	summary, err := store.Activity.GetRecentActivitySummary(ctx, "ws-act", 24, 10)
	require.NoError(t, err)
	assert.Empty(t, summary.Decisions)

	store.Activity.Invalidate("ws-act")
	summary, err = store.Activity.GetRecentActivitySummary(ctx, "ws-act", 24, 10)
	require.NoError(t, err)
	assert.Len(t, summary.Decisions, 1)
}

func TestRecentActivitySummaryEmptyWorkspace(t *testing.T) {
	store := newTestStore(t)

	summary, err := store.Activity.GetRecentActivitySummary(context.Background(), "ws-empty", 24, 10)
	require.NoError(t, err)
	assert.NotNil(t, summary.Decisions, "empty slices, not nils, for JSON consumers")
	assert.Empty(t, summary.Decisions)
	assert.Empty(t, summary.Progress)
	assert.Empty(t, summary.Patterns)
}

func TestAttentionSampleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Attention.RecordSample(ctx, models.AttentionSample{
		UserID:         "u",
		TypingCadence:  220,
		TaskSwitchRate: 3,
		AttentionState: models.AttentionFocused,
		EnergyLevel:    models.EnergyMedium,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	samples, err := store.Attention.RecentSamples(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, models.AttentionFocused, samples[0].AttentionState)
	assert.Equal(t, 220.0, samples[0].TypingCadence)

	_, err = store.Attention.RecordSample(ctx, models.AttentionSample{})
	assert.Error(t, err, "anonymous samples are rejected")
}
