package broker

import (
	"sort"

	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/registry"
)

// resolve returns the routable backends that can serve a role, in trial
// order: priority rank, then last observed latency, then name. For research
// calls in a documentation-preferred category, documentation backends are
// tried before web research so authoritative sources win when they answer.
func (b *Broker) resolve(role models.Role, tool string) []models.BackendStatus {
	tags := roleTagsFor(role)
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []models.BackendStatus
	for _, tag := range tags {
		for _, s := range b.registry.List(registry.Filter{RoleTag: tag, RoutableOnly: true}) {
			if seen[s.Descriptor.Name] {
				continue
			}
			seen[s.Descriptor.Name] = true
			candidates = append(candidates, s)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].Descriptor.Priority.Rank(), candidates[j].Descriptor.Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		li, lj := candidates[i].LastLatencyMS, candidates[j].LastLatencyMS
		if li != lj {
			return li < lj
		}
		return candidates[i].Descriptor.Name < candidates[j].Descriptor.Name
	})

	if role == models.RoleResearch && b.cfg.DocumentationPreferred[toolCategory(tool)] {
		candidates = docsFirst(candidates)
	}
	return candidates
}

// docsFirst stably partitions candidates so documentation-tagged backends
// precede everything else. Relative order within each partition is kept, so
// a NotFound or Unavailable answer from the docs tier falls through to web
// research in the normal trial loop.
func docsFirst(candidates []models.BackendStatus) []models.BackendStatus {
	ordered := make([]models.BackendStatus, 0, len(candidates))
	var rest []models.BackendStatus
	for _, c := range candidates {
		if c.Descriptor.HasRoleTag(models.RoleTagDocumentation) {
			ordered = append(ordered, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(ordered, rest...)
}
