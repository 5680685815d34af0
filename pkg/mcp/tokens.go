package mcp

import (
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// charsPerToken is the approximate number of characters per token for
// English text. Cost accounting needs monotone accumulation, not exact
// token counts, so the common ~4 chars/token heuristic is enough.
const charsPerToken = 4

// EstimateTokens returns an approximate token count for the given text.
// len() counts bytes; multi-byte content overestimates slightly, which errs
// in the safe direction for budget enforcement.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// EstimateCallCost estimates the abstract cost units of one tool call:
// the serialized request arguments plus the result content.
func EstimateCallCost(args map[string]any, result *mcpsdk.CallToolResult) int {
	cost := 0
	if len(args) > 0 {
		if raw, err := json.Marshal(args); err == nil {
			cost += EstimateTokens(string(raw))
		}
	}
	if result != nil {
		for _, content := range result.Content {
			if text, ok := content.(*mcpsdk.TextContent); ok {
				cost += EstimateTokens(text.Text)
			}
		}
	}
	if cost == 0 {
		cost = 1 // every call costs something
	}
	return cost
}

// FlattenResult renders a tool result's content blocks as one string.
// Non-text blocks are ignored; the broker treats payloads as opaque.
func FlattenResult(result *mcpsdk.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			out += text.Text
		}
	}
	return out
}
