package mcp

import (
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestEstimateCallCost(t *testing.T) {
	t.Run("empty call still costs one unit", func(t *testing.T) {
		assert.Equal(t, 1, EstimateCallCost(nil, nil))
	})

	t.Run("args and result both count", func(t *testing.T) {
		args := map[string]any{"query": strings.Repeat("q", 40)}
		result := &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: strings.Repeat("r", 80)}},
		}
		withResult := EstimateCallCost(args, result)
		argsOnly := EstimateCallCost(args, nil)
		assert.Greater(t, withResult, argsOnly)
		assert.GreaterOrEqual(t, withResult-argsOnly, 20)
	})
}

func TestFlattenResult(t *testing.T) {
	assert.Equal(t, "", FlattenResult(nil))

	result := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: "first "},
			&mcpsdk.TextContent{Text: "second"},
		},
	}
	assert.Equal(t, "first second", FlattenResult(result))
}
