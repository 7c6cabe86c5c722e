package validation

import (
	"sort"
	"strings"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// analyzeGraph performs graph analysis over the static playlist reference
// graph: cycle detection (Kahn's algorithm) and reachability from the
// top-level sequence. Cycles are errors; orphaned playlists only warn.
func analyzeGraph(doc *schema.Document) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	// edges[id] = playlists referenced by playlist id.
	edges := make(map[string][]string, len(doc.Playlists))
	for id, pl := range doc.Playlists {
		if pl == nil {
			continue
		}
		edges[id] = uniqueRefs(collectRefs(pl.Steps, nil), doc)
	}

	// Kahn's algorithm: repeatedly remove playlists that reference nothing
	// unresolved. Whatever survives participates in a cycle.
	inDegree := make(map[string]int, len(doc.Playlists))
	reverse := make(map[string][]string, len(doc.Playlists))
	for id, refs := range edges {
		inDegree[id] = len(refs)
		for _, ref := range refs {
			reverse[ref] = append(reverse[ref], id)
		}
	}

	queue := make([]string, 0, len(inDegree))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, dependent := range reverse[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if visited != len(edges) {
		var members []string
		for id, deg := range inDegree {
			if deg > 0 {
				members = append(members, id)
			}
		}
		sort.Strings(members)
		result.AddError("playlists", schema.ErrCodeCycleDetected,
			"playlist reference cycle involving: "+strings.Join(members, ", "))
		return result // reachability is meaningless with a cycle
	}

	reachable := Reachable(doc)
	for id := range doc.Playlists {
		if !reachable[id] {
			result.AddWarning("playlists."+id, schema.ErrCodeValidation,
				"playlist is not reachable from the top-level sequence")
		}
	}

	return result
}

// Reachable computes the dependency closure: the set of playlist IDs
// reachable from the top-level sequence.
func Reachable(doc *schema.Document) map[string]bool {
	reachable := make(map[string]bool, len(doc.Playlists))

	queue := uniqueRefs(collectRefs(doc.Sequence, nil), doc)
	for _, id := range queue {
		reachable[id] = true
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		pl := doc.Playlists[id]
		if pl == nil {
			continue
		}
		for _, ref := range uniqueRefs(collectRefs(pl.Steps, nil), doc) {
			if !reachable[ref] {
				reachable[ref] = true
				queue = append(queue, ref)
			}
		}
	}

	return reachable
}

// collectRefs gathers every playlist ID referenced by the steps,
// descending into rule items and options.
func collectRefs(steps []schema.Step, refs []string) []string {
	for i := range steps {
		refs = collectStepRefs(&steps[i], refs)
	}
	return refs
}

func collectStepRefs(step *schema.Step, refs []string) []string {
	if step.Playlist != "" {
		refs = append(refs, step.Playlist)
	}
	if step.Rule != nil {
		refs = collectRefs(step.Rule.Items, refs)
		refs = collectRefs(step.Rule.Options, refs)
		if step.Rule.Item != nil {
			refs = collectStepRefs(step.Rule.Item, refs)
		}
	}
	return refs
}

// uniqueRefs deduplicates and drops references to undefined playlists
// (those are reported by the semantic stage, not here).
func uniqueRefs(refs []string, doc *schema.Document) []string {
	seen := make(map[string]bool, len(refs))
	var out []string
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if _, ok := doc.Playlists[ref]; ok {
			out = append(out, ref)
		}
	}
	return out
}
