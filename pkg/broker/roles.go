package broker

import (
	"strings"

	"github.com/dope-context/dope/pkg/models"
)

// roleTagsFor maps an invocation role to the backend capabilities that may
// serve it. Resolution intersects this set with each backend's role_tags.
func roleTagsFor(role models.Role) []models.RoleTag {
	switch role {
	case models.RoleResearch:
		return []models.RoleTag{models.RoleTagDocumentation, models.RoleTagWebResearch}
	case models.RoleImplementation:
		return []models.RoleTag{models.RoleTagCodeEditing, models.RoleTagCodeSearch}
	case models.RoleQuality:
		return []models.RoleTag{models.RoleTagReasoning, models.RoleTagRerank}
	case models.RoleCoordination:
		return []models.RoleTag{models.RoleTagMemory, models.RoleTagTaskPlanning, models.RoleTagDesktopAutomation}
	default:
		return nil
	}
}

// toolCategory extracts the capability family from a namespaced tool name:
// "lookup.symbol" → "lookup". A bare name is its own category.
func toolCategory(tool string) string {
	if i := strings.IndexByte(tool, '.'); i > 0 {
		return tool[:i]
	}
	return tool
}
