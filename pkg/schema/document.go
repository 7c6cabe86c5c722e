package schema

import (
	"encoding/json"
	"fmt"
)

// CurrentVersion is the schema version every Document carries after load.
// Version 1 inputs (flat screen maps, bare sequence arrays) are migrated
// on the way in and never observed by the resolver.
const CurrentVersion = 2

// Document is the JSON-serializable playlist configuration (schema v2).
// It is immutable once loaded; the scheduler swaps whole Documents on
// reload and keeps all mutable counters outside of it.
type Document struct {
	Version   int                  `json:"version"`
	Catalog   json.RawMessage      `json:"catalog,omitempty"`
	Playlists map[string]*Playlist `json:"playlists"`
	Sequence  []Step               `json:"sequence"`
	Metadata  map[string]any       `json:"metadata,omitempty"`

	// Extra holds unknown top-level keys so documents written by newer
	// tooling survive a load/save round trip untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

// Playlist is a named, reusable, ordered sequence of steps.
type Playlist struct {
	Label      string     `json:"label,omitempty"`
	Steps      []Step     `json:"steps"`
	Conditions *Condition `json:"conditions,omitempty"`
}

// StepKind identifies which variant a Step carries.
type StepKind string

const (
	StepScreen   StepKind = "screen"
	StepPlaylist StepKind = "playlist"
	StepRule     StepKind = "rule"
	StepInvalid  StepKind = "invalid"
)

// Step is the polymorphic unit of a playlist: exactly one of Screen,
// Playlist, or Rule is set. In JSON a step is either a bare string
// (screen shorthand) or an object with one of the "screen", "playlist",
// or "rule" keys, optionally guarded by "conditions".
type Step struct {
	Screen     string         `json:"screen,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Playlist   string         `json:"playlist,omitempty"`
	Rule       *Rule          `json:"rule,omitempty"`
	Conditions *Condition     `json:"conditions,omitempty"`
}

// Kind reports which variant the step carries, or StepInvalid when zero
// or more than one variant field is populated.
func (s *Step) Kind() StepKind {
	set := 0
	kind := StepInvalid
	if s.Screen != "" {
		set++
		kind = StepScreen
	}
	if s.Playlist != "" {
		set++
		kind = StepPlaylist
	}
	if s.Rule != nil {
		set++
		kind = StepRule
	}
	if set != 1 {
		return StepInvalid
	}
	return kind
}

// stepObject mirrors Step for object-form JSON decoding, avoiding the
// custom UnmarshalJSON recursing into itself.
type stepObject struct {
	Screen     string         `json:"screen,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Playlist   string         `json:"playlist,omitempty"`
	Rule       *Rule          `json:"rule,omitempty"`
	Conditions *Condition     `json:"conditions,omitempty"`
}

// UnmarshalJSON accepts both the bare-string screen shorthand and the
// object form.
func (s *Step) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*s = Step{Screen: id}
		return nil
	}
	var obj stepObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Step(obj)
	return nil
}

// RuleType enumerates the rule descriptors.
type RuleType string

const (
	RuleCycle    RuleType = "cycle"
	RuleEvery    RuleType = "every"
	RuleVariants RuleType = "variants"
)

// Selection modes for variants rules.
const (
	SelectionSequential = "sequential"
	SelectionRandom     = "random"
	SelectionExpr       = "expr"
)

// Rule computes zero-or-one step per pass from ambient scheduling state.
//
//   - cycle:    emits items in order, one per activation, wrapping.
//   - every:    emits item only on passes where (pass-phase) mod frequency == 0.
//   - variants: chooses one option per activation; sequential by default,
//     "random" draws reproducibly from (pass, rule path), "expr" evaluates
//     the select expression over {pass, count}.
type Rule struct {
	Type RuleType `json:"type"`

	// cycle
	Items []Step `json:"items,omitempty"`

	// every
	Frequency int   `json:"frequency,omitempty"`
	Phase     int   `json:"phase,omitempty"`
	Item      *Step `json:"item,omitempty"`

	// variants
	Options   []Step `json:"options,omitempty"`
	Selection string `json:"selection,omitempty"`
	Select    string `json:"select,omitempty"`
}

// documentAlias breaks the UnmarshalJSON recursion for Document.
type documentAlias Document

var knownDocumentKeys = map[string]bool{
	"version":   true,
	"catalog":   true,
	"playlists": true,
	"sequence":  true,
	"metadata":  true,
}

// UnmarshalJSON decodes the known fields and stashes every unknown
// top-level key in Extra for forward compatibility.
func (d *Document) UnmarshalJSON(data []byte) error {
	var alias documentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownDocumentKeys[key] {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]json.RawMessage)
		}
		alias.Extra[key] = raw[key]
	}

	*d = Document(alias)
	return nil
}

// MarshalJSON re-emits preserved unknown keys alongside the known fields.
func (d *Document) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(documentAlias(*d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, val := range d.Extra {
		if knownDocumentKeys[key] {
			return nil, fmt.Errorf("extra key %q collides with a schema field", key)
		}
		merged[key] = val
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy of the document via a JSON round trip.
// Used by the ledger and by reloads so callers can never alias the
// scheduler's active document.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
