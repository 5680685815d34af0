package services_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/models"
)

func TestLinkItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	decisionID, err := store.Decisions.LogDecision(ctx, "ws-link", "split the parser", "", "", nil)
	require.NoError(t, err)
	progressID, err := store.Progress.LogProgress(ctx, "ws-link", models.StatusTodo, "do the split", nil, nil)
	require.NoError(t, err)

	linkID, err := store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, strconv.FormatInt(progressID, 10),
		models.ItemTypeDecision, strconv.FormatInt(decisionID, 10),
		models.RelImplements, "tracks the decision")
	require.NoError(t, err)
	assert.Positive(t, linkID)

	links, err := store.Links.ListLinks(ctx, "ws-link", models.ItemTypeDecision, strconv.FormatInt(decisionID, 10))
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, models.RelImplements, links[0].Relationship)
	assert.Equal(t, strconv.FormatInt(progressID, 10), links[0].SourceID)
}

func TestLinkItemsIsIdempotentPerTriple(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Progress.LogProgress(ctx, "ws-link", models.StatusTodo, "a", nil, nil)
	require.NoError(t, err)
	b, err := store.Progress.LogProgress(ctx, "ws-link", models.StatusTodo, "b", nil, nil)
	require.NoError(t, err)

	first, err := store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, strconv.FormatInt(a, 10),
		models.ItemTypeProgress, strconv.FormatInt(b, 10),
		models.RelBlocks, "")
	require.NoError(t, err)
	second, err := store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, strconv.FormatInt(a, 10),
		models.ItemTypeProgress, strconv.FormatInt(b, 10),
		models.RelBlocks, "")
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-linking the same triple returns the existing edge")

	links, err := store.Links.ListLinks(ctx, "ws-link", models.ItemTypeProgress, strconv.FormatInt(a, 10))
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestLinkItemsRejectsDanglingEndpoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	progressID, err := store.Progress.LogProgress(ctx, "ws-link", models.StatusTodo, "real", nil, nil)
	require.NoError(t, err)

	_, err = store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, strconv.FormatInt(progressID, 10),
		models.ItemTypeDecision, "424242",
		models.RelImplements, "")
	assert.Error(t, err, "target must exist")

	_, err = store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeDecision, "424242",
		models.ItemTypeProgress, strconv.FormatInt(progressID, 10),
		models.RelImplements, "")
	assert.Error(t, err, "source must exist")
}

func TestLinkItemsEndpointsAreWorkspaceScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Item exists, but in a different workspace.
	foreignID, err := store.Progress.LogProgress(ctx, "ws-other", models.StatusTodo, "foreign", nil, nil)
	require.NoError(t, err)
	localID, err := store.Progress.LogProgress(ctx, "ws-link", models.StatusTodo, "local", nil, nil)
	require.NoError(t, err)

	_, err = store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, strconv.FormatInt(localID, 10),
		models.ItemTypeProgress, strconv.FormatInt(foreignID, 10),
		models.RelRelatedTo, "")
	assert.Error(t, err)
}

func TestLinkItemsCustomDataEndpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CustomData.LogCustomData(ctx, "ws-link", "env", "staging-url", "https://staging.example"))
	progressID, err := store.Progress.LogProgress(ctx, "ws-link", models.StatusTodo, "deploy", nil, nil)
	require.NoError(t, err)

	_, err = store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, strconv.FormatInt(progressID, 10),
		models.ItemTypeCustomData, "env/staging-url",
		models.RelConsumes, "")
	assert.NoError(t, err, "custom data endpoints address as category/key")
}

func TestLinkItemsValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Links.LinkItems(ctx, "ws-link",
		models.ItemType("sticker"), "1",
		models.ItemTypeProgress, "1",
		models.RelBlocks, "")
	assert.Error(t, err)

	_, err = store.Links.LinkItems(ctx, "ws-link",
		models.ItemTypeProgress, "1",
		models.ItemTypeProgress, "2",
		models.Relationship("VIBES_WITH"), "")
	assert.Error(t, err)
}
