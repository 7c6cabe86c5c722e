package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// SummarizeDiff generates a human-readable summary of configuration
// changes for the version ledger.
func SummarizeDiff(old, new *schema.Document) string {
	if old == nil {
		return "Initial configuration"
	}

	var added, removed, changed []string
	names := make(map[string]bool, len(old.Playlists)+len(new.Playlists))
	for id := range old.Playlists {
		names[id] = true
	}
	for id := range new.Playlists {
		names[id] = true
	}

	for id := range names {
		oldPl, inOld := old.Playlists[id]
		newPl, inNew := new.Playlists[id]
		switch {
		case !inOld:
			added = append(added, id)
		case !inNew:
			removed = append(removed, id)
		case !equalJSON(oldPl, newPl):
			changed = append(changed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(changed)
	sort.Strings(removed)

	var parts []string
	if len(added) > 0 {
		parts = append(parts, "Added playlists: "+strings.Join(added, ", "))
	}
	if len(changed) > 0 {
		parts = append(parts, "Updated playlists: "+strings.Join(changed, ", "))
	}
	if len(removed) > 0 {
		parts = append(parts, "Removed playlists: "+strings.Join(removed, ", "))
	}
	if !equalJSON(old.Sequence, new.Sequence) {
		parts = append(parts, fmt.Sprintf("Sequence changed (%d -> %d steps)",
			len(old.Sequence), len(new.Sequence)))
	}

	if len(parts) == 0 {
		return "Configuration saved"
	}
	return strings.Join(parts, "; ")
}

func equalJSON(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
