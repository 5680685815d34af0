package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePatch(t *testing.T) {
	t.Run("overwrites named fields and preserves the rest", func(t *testing.T) {
		doc := ActiveContext{
			"current_focus": "old focus",
			"custom_field":  "untouched",
			"mode":          "PLAN",
		}
		merged := doc.MergePatch(map[string]any{
			"current_focus": "new focus",
			"mode":          "ACT",
		})

		assert.Equal(t, "new focus", merged.String("current_focus"))
		assert.Equal(t, "ACT", merged.String("mode"))
		assert.Equal(t, "untouched", merged.String("custom_field"))
	})

	t.Run("does not mutate the receiver", func(t *testing.T) {
		doc := ActiveContext{"current_focus": "original"}
		_ = doc.MergePatch(map[string]any{"current_focus": "changed"})
		assert.Equal(t, "original", doc.String("current_focus"))
	})

	t.Run("deep-merges nested maps one level", func(t *testing.T) {
		doc := ActiveContext{
			"adhd_metrics": map[string]any{"breaks_taken": 2, "sessions": 5},
		}
		merged := doc.MergePatch(map[string]any{
			"adhd_metrics": map[string]any{"breaks_taken": 3},
		})

		metrics := merged["adhd_metrics"].(map[string]any)
		assert.Equal(t, 3, metrics["breaks_taken"])
		assert.Equal(t, 5, metrics["sessions"], "sibling keys survive the patch")
	})

	t.Run("non-map value replaces a map wholesale", func(t *testing.T) {
		doc := ActiveContext{"git_state": map[string]any{"branch": "main"}}
		merged := doc.MergePatch(map[string]any{"git_state": "dirty"})
		assert.Equal(t, "dirty", merged.String("git_state"))
	})

	t.Run("identical patch is idempotent", func(t *testing.T) {
		doc := ActiveContext{"a": "1"}
		patch := map[string]any{"b": "2"}
		once := doc.MergePatch(patch)
		twice := once.MergePatch(patch)
		assert.Equal(t, once, twice)
	})
}
