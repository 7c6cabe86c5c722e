package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

func mustDoc(t *testing.T, payload string) *schema.Document {
	t.Helper()
	var doc schema.Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))
	return &doc
}

func newTestResolver(t *testing.T, doc *schema.Document, maxDepth int) *Resolver {
	t.Helper()
	conditions, err := NewConditionEvaluator()
	require.NoError(t, err)
	return NewResolver(doc, conditions, NewRuleExpander(), maxDepth)
}

func resolveIDs(t *testing.T, r *Resolver, pass int, now time.Time, states StateMap) []string {
	t.Helper()
	resolved, err := r.Resolve(context.Background(), pass, now, states)
	require.NoError(t, err)
	ids := make([]string, len(resolved))
	for i, s := range resolved {
		ids[i] = s.ScreenID
	}
	return ids
}

func TestResolve_FlattensNestedPlaylists(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": ["date", {"playlist": "inner"}, "clock"]},
			"inner": {"steps": ["moon", "sun"]}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)

	ids := resolveIDs(t, r, 0, time.Now(), StateMap{})
	assert.Equal(t, []string{"date", "moon", "sun", "clock"}, ids)
}

func TestResolve_ReportsStructuralPaths(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {"main": {"steps": ["date"]}},
		"sequence": ["splash", {"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)

	resolved, err := r.Resolve(context.Background(), 0, time.Now(), StateMap{})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "sequence[0]", resolved[0].Path)
	assert.Equal(t, "playlists.main.steps[0]", resolved[1].Path)
}

func TestResolve_FailedConditionSkipsWithoutReordering(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": [
				"a",
				{"screen": "gated", "conditions": {"time_of_day": [{"start": "02:00", "end": "03:00"}]}},
				"b"
			]}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)

	noon := time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"a", "b"}, resolveIDs(t, r, 0, noon, StateMap{}))

	night := time.Date(2026, 8, 24, 2, 30, 0, 0, time.Local)
	assert.Equal(t, []string{"a", "gated", "b"}, resolveIDs(t, r, 0, night, StateMap{}))
}

func TestResolve_PlaylistConditionGatesWholeBlock(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": ["date", {"playlist": "weekend"}]},
			"weekend": {
				"steps": ["sports1", "sports2"],
				"conditions": {"days_of_week": ["sat", "sun"]}
			}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)

	monday := time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"date"}, resolveIDs(t, r, 0, monday, StateMap{}))

	saturday := monday.AddDate(0, 0, 5)
	assert.Equal(t, []string{"date", "sports1", "sports2"}, resolveIDs(t, r, 0, saturday, StateMap{}))
}

func TestResolve_RulesEmitIntoTheSequence(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": [
				"date",
				{"rule": {"type": "cycle", "items": ["nhl", "mlb"]}},
				{"rule": {"type": "every", "frequency": 2, "item": "scores"}}
			]}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)
	states := StateMap{}
	now := time.Now()

	assert.Equal(t, []string{"date", "nhl", "scores"}, resolveIDs(t, r, 0, now, states))
	assert.Equal(t, []string{"date", "mlb"}, resolveIDs(t, r, 1, now, states))
	assert.Equal(t, []string{"date", "nhl", "scores"}, resolveIDs(t, r, 2, now, states))
}

func TestResolve_RuleEmittingPlaylistRecurses(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": [{"rule": {"type": "cycle", "items": [{"playlist": "a"}, {"playlist": "b"}]}}]},
			"a": {"steps": ["a1", "a2"]},
			"b": {"steps": ["b1"]}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)
	states := StateMap{}
	now := time.Now()

	assert.Equal(t, []string{"a1", "a2"}, resolveIDs(t, r, 0, now, states))
	assert.Equal(t, []string{"b1"}, resolveIDs(t, r, 1, now, states))
}

func TestResolve_NestedRuleStateIsIndependent(t *testing.T) {
	// A cycle inside an every rule: the inner cycle only advances on
	// passes where the outer rule fires.
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": [{"rule": {
				"type": "every", "frequency": 2,
				"item": {"rule": {"type": "cycle", "items": ["x", "y"]}}
			}}]}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)
	states := StateMap{}
	now := time.Now()

	assert.Equal(t, []string{"x"}, resolveIDs(t, r, 0, now, states))
	assert.Empty(t, resolveIDs(t, r, 1, now, states))
	assert.Equal(t, []string{"y"}, resolveIDs(t, r, 2, now, states))
	assert.Empty(t, resolveIDs(t, r, 3, now, states))
	assert.Equal(t, []string{"x"}, resolveIDs(t, r, 4, now, states))
}

func TestResolve_DepthGuard(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"a": {"steps": [{"playlist": "b"}]},
			"b": {"steps": [{"playlist": "a"}]}
		},
		"sequence": [{"playlist": "a"}]
	}`)
	r := newTestResolver(t, doc, 8)

	_, err := r.Resolve(context.Background(), 0, time.Now(), StateMap{})
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, schema.ErrCodeResolution, engErr.Code)
	assert.NotEmpty(t, engErr.Path)
}

func TestResolve_UnknownPlaylistErrorNamesPath(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {},
		"sequence": [{"playlist": "ghost"}]
	}`)
	r := newTestResolver(t, doc, 0)

	_, err := r.Resolve(context.Background(), 0, time.Now(), StateMap{})
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "sequence[0]", engErr.Path)
}

func TestResolve_ParamsPassThrough(t *testing.T) {
	doc := mustDoc(t, `{
		"version": 2,
		"playlists": {
			"main": {"steps": [{"screen": "weather1", "params": {"units": "metric"}}]}
		},
		"sequence": [{"playlist": "main"}]
	}`)
	r := newTestResolver(t, doc, 0)

	resolved, err := r.Resolve(context.Background(), 0, time.Now(), StateMap{})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "metric", resolved[0].Params["units"])
}
