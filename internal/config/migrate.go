package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// Two legacy shapes exist in the field. The oldest is the flat screen map
// from screens_config.json ({"date": 1, "weather1": 3, "nhl logo": false}),
// where the integer is a 1-based slot in the display loop's overall cycle.
// An intermediate v1 shape carried a bare "sequence" array with inline
// cycle/every/variants descriptors. Both migrate to v2 here; the input is
// never modified.

// migrateFlatScreens converts a flat {screen: false|N} map into a v2
// Document. Key order of the input object is preserved so the migrated
// playlist keeps the original relative ordering. pathPrefix names the
// object in error paths ("screens" or "" for a bare top-level map).
func migrateFlatScreens(data []byte, pathPrefix string) (*schema.Document, error) {
	keys, err := orderedObjectKeys(data)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeMigration,
			"legacy screen map is not a JSON object").WithCause(err)
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, schema.NewError(schema.ErrCodeMigration,
			"legacy screen map is not a JSON object").WithCause(err)
	}

	slots := make(map[string]int, len(keys))
	cycleLength := 1
	for _, id := range keys {
		slot, include, err := parsePhaseValue(values[id])
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeMigration, err.Error()).
				WithPath(legacyPath(pathPrefix, id))
		}
		if !include {
			continue
		}
		slots[id] = slot
		if slot > cycleLength {
			cycleLength = slot
		}
	}

	var steps []schema.Step
	for _, id := range keys {
		slot, ok := slots[id]
		if !ok {
			continue // excluded by false/0
		}
		if slot == 1 {
			steps = append(steps, schema.Step{Screen: id})
			continue
		}
		// Slot N is 1-based; the loop showed it when
		// ((loop-1) mod cycle)+1 == N, i.e. pass mod cycle == N-1.
		steps = append(steps, schema.Step{Rule: &schema.Rule{
			Type:      schema.RuleEvery,
			Frequency: cycleLength,
			Phase:     slot - 1,
			Item:      &schema.Step{Screen: id},
		}})
	}

	return newMigratedDocument(steps), nil
}

// parsePhaseValue interprets a legacy phase value: false/0 exclude the
// screen, true counts as every pass, positive integers are cycle slots.
func parsePhaseValue(raw json.RawMessage) (slot int, include bool, err error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if !b {
			return 0, false, nil
		}
		return 1, true, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false, fmt.Errorf("phase value must be false or a positive integer, got %s", string(raw))
	}
	if n != float64(int(n)) || n < 0 {
		return 0, false, fmt.Errorf("phase value must be false or a positive integer, got %s", string(raw))
	}
	if int(n) == 0 {
		return 0, false, nil
	}
	return int(n), true, nil
}

// migrateSequence converts the intermediate v1 sequence-array shape.
func migrateSequence(sequence []json.RawMessage) (*schema.Document, error) {
	if len(sequence) == 0 {
		return nil, schema.NewError(schema.ErrCodeMigration,
			"legacy sequence must be a non-empty array").WithPath("sequence")
	}

	steps := make([]schema.Step, 0, len(sequence))
	for i, entry := range sequence {
		step, err := legacyEntryToStep(entry, fmt.Sprintf("sequence[%d]", i))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return newMigratedDocument(steps), nil
}

// legacyEntryToStep converts one legacy sequence entry into a v2 step.
func legacyEntryToStep(entry json.RawMessage, path string) (schema.Step, error) {
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil || id == "" {
			return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
				"screen id must be a non-empty string").WithPath(path)
		}
		return schema.Step{Screen: id}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
			"unsupported legacy entry").WithPath(path).WithCause(err)
	}

	if raw, ok := obj["screen"]; ok && len(obj) == 1 {
		return legacyEntryToStep(raw, path+".screen")
	}

	if raw, ok := obj["variants"]; ok {
		var options []string
		if err := json.Unmarshal(raw, &options); err != nil || len(options) == 0 {
			return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
				"variants entries must be a non-empty list of screen ids").WithPath(path + ".variants")
		}
		optionSteps := make([]schema.Step, len(options))
		for i, id := range options {
			optionSteps[i] = schema.Step{Screen: id}
		}
		return schema.Step{Rule: &schema.Rule{
			Type:    schema.RuleVariants,
			Options: optionSteps,
		}}, nil
	}

	if raw, ok := obj["cycle"]; ok {
		var children []json.RawMessage
		if err := json.Unmarshal(raw, &children); err != nil || len(children) == 0 {
			return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
				"cycle entries must be a non-empty list").WithPath(path + ".cycle")
		}
		items := make([]schema.Step, 0, len(children))
		for i, child := range children {
			item, err := legacyEntryToStep(child, fmt.Sprintf("%s.cycle[%d]", path, i))
			if err != nil {
				return schema.Step{}, err
			}
			items = append(items, item)
		}
		return schema.Step{Rule: &schema.Rule{
			Type:  schema.RuleCycle,
			Items: items,
		}}, nil
	}

	if raw, ok := obj["every"]; ok {
		var frequency int
		if err := json.Unmarshal(raw, &frequency); err != nil || frequency <= 0 {
			return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
				"every rule requires a positive integer frequency").WithPath(path + ".every")
		}
		childRaw, ok := obj["screen"]
		if !ok {
			childRaw, ok = obj["item"]
		}
		if !ok {
			return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
				"every rule requires a screen or item").WithPath(path)
		}
		item, err := legacyEntryToStep(childRaw, path+".item")
		if err != nil {
			return schema.Step{}, err
		}
		return schema.Step{Rule: &schema.Rule{
			Type:      schema.RuleEvery,
			Frequency: frequency,
			Item:      &item,
		}}, nil
	}

	return schema.Step{}, schema.NewError(schema.ErrCodeMigration,
		"unsupported legacy entry").WithPath(path)
}

// newMigratedDocument wraps migrated steps in the implicit "main" playlist.
func newMigratedDocument(steps []schema.Step) *schema.Document {
	return &schema.Document{
		Version: schema.CurrentVersion,
		Catalog: json.RawMessage(`{"presets":{}}`),
		Playlists: map[string]*schema.Playlist{
			"main": {Label: "Migrated sequence", Steps: steps},
		},
		Sequence: []schema.Step{{Playlist: "main"}},
		Metadata: map[string]any{"migrated_from": 1},
	}
}

func legacyPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// orderedObjectKeys returns the keys of a JSON object in document order,
// which encoding/json maps discard. Duplicates are preserved.
func orderedObjectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
