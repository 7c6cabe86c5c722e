package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/validation"
	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// Loader parses, migrates, and validates playlist configuration documents.
type Loader struct {
	validator *validation.DocumentValidator
}

// NewLoader creates a Loader with the validation pipeline pre-compiled.
func NewLoader() (*Loader, error) {
	dv, err := validation.NewDocumentValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{validator: dv}, nil
}

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	Document *schema.Document
	// Migrated is true when the input was a legacy (v1) shape and was
	// normalized on the way in; the input itself is never rewritten.
	Migrated bool
	// Warnings are the non-fatal validation issues (orphaned playlists,
	// ignored fields).
	Warnings []schema.ValidationIssue
	// Reachable is the set of playlist IDs reachable from the sequence.
	Reachable map[string]bool
}

// Load reads and loads a configuration file.
func (l *Loader) Load(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig,
			"read config %q: %s", path, err.Error()).WithCause(err)
	}
	return l.LoadBytes(data)
}

// LoadBytes parses raw JSON, migrating legacy shapes to v2 first, then
// runs the full validation pipeline. Validation failures abort the load
// with a ConfigError naming the offending path; callers keep serving
// whatever document they had before.
func (l *Loader) LoadBytes(data []byte) (*LoadResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig,
			"configuration must be a JSON object").WithCause(err)
	}

	doc, migrated, err := l.normalize(data, raw)
	if err != nil {
		return nil, err
	}

	result := l.validator.Validate(doc)
	if err := result.ToError(); err != nil {
		return nil, err
	}

	return &LoadResult{
		Document:  doc,
		Migrated:  migrated,
		Warnings:  result.Warnings,
		Reachable: validation.Reachable(doc),
	}, nil
}

// Check parses and migrates the payload like LoadBytes but returns the
// full validation result instead of aborting on the first failure. The
// CLI uses it to report every issue in one run.
func (l *Loader) Check(data []byte) (*schema.ValidationResult, bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, schema.NewError(schema.ErrCodeConfig,
			"configuration must be a JSON object").WithCause(err)
	}
	doc, migrated, err := l.normalize(data, raw)
	if err != nil {
		return nil, migrated, err
	}
	return l.validator.Validate(doc), migrated, nil
}

// normalize routes the raw payload to the right parser: v2 documents
// decode directly, everything else goes through migration.
func (l *Loader) normalize(data []byte, raw map[string]json.RawMessage) (*schema.Document, bool, error) {
	version := 0
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return nil, false, schema.NewError(schema.ErrCodeConfig,
				"version must be an integer").WithPath("version").WithCause(err)
		}
	}

	_, hasPlaylists := raw["playlists"]
	_, hasSequence := raw["sequence"]

	switch {
	case version == schema.CurrentVersion:
		doc, err := l.decodeV2(data, raw)
		return doc, false, err

	case version > schema.CurrentVersion:
		return nil, false, schema.NewErrorf(schema.ErrCodeConfig,
			"unsupported schema version %d", version).WithPath("version")

	case hasPlaylists && hasSequence:
		// v2-shaped document missing its version stamp.
		doc, err := l.decodeV2(data, raw)
		if err != nil {
			return nil, false, err
		}
		doc.Version = schema.CurrentVersion
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		if _, ok := doc.Metadata["migrated_from"]; !ok {
			doc.Metadata["migrated_from"] = 1
		}
		return doc, true, nil

	case hasScreenMap(raw):
		doc, err := migrateFlatScreens(raw["screens"], "screens")
		return doc, true, err

	case isFlatScreenMap(raw):
		doc, err := migrateFlatScreens(data, "")
		return doc, true, err

	case hasSequence:
		var sequence []json.RawMessage
		if err := json.Unmarshal(raw["sequence"], &sequence); err != nil {
			return nil, false, schema.NewError(schema.ErrCodeMigration,
				"legacy sequence must be an array").WithPath("sequence").WithCause(err)
		}
		doc, err := migrateSequence(sequence)
		return doc, true, err

	default:
		return nil, false, schema.NewError(schema.ErrCodeMigration,
			"unrecognized configuration shape: expected a v2 document, a screens map, or a legacy sequence")
	}
}

// decodeV2 decodes a v2 document, rejecting duplicate playlist keys
// up front -- encoding/json would silently keep only the last one.
func (l *Loader) decodeV2(data []byte, raw map[string]json.RawMessage) (*schema.Document, error) {
	if playlistsRaw, ok := raw["playlists"]; ok {
		keys, err := orderedObjectKeys(playlistsRaw)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConfig,
				"playlists must be a JSON object").WithPath("playlists").WithCause(err)
		}
		seen := make(map[string]bool, len(keys))
		for _, key := range keys {
			if seen[key] {
				return nil, schema.NewErrorf(schema.ErrCodeConfig,
					"duplicate playlist id %q", key).WithPath("playlists." + key)
			}
			seen[key] = true
		}
	}

	var doc schema.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig,
			"malformed document: "+err.Error()).WithCause(err)
	}
	return &doc, nil
}

// hasScreenMap reports whether the payload carries the original
// screens_config.json shape: a "screens" object of phase values.
func hasScreenMap(raw map[string]json.RawMessage) bool {
	screens, ok := raw["screens"]
	if !ok {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(screens, &obj); err != nil {
		return false
	}
	for _, v := range obj {
		if !isScalarPhase(v) {
			return false
		}
	}
	return len(obj) > 0
}

// isFlatScreenMap reports whether the whole payload is a bare
// {screen: phase} map.
func isFlatScreenMap(raw map[string]json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	for _, v := range raw {
		if !isScalarPhase(v) {
			return false
		}
	}
	return true
}

func isScalarPhase(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case 't', 'f':
		return true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

// FormatIssues renders validation issues for CLI output.
func FormatIssues(issues []schema.ValidationIssue) string {
	var buf bytes.Buffer
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Fprintf(&buf, "%s: %s: %s\n", issue.Severity, issue.Path, issue.Message)
		} else {
			fmt.Fprintf(&buf, "%s: %s\n", issue.Severity, issue.Message)
		}
	}
	return buf.String()
}
