package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// documentSchemaJSON is the JSON Schema for v2 playlist documents.
// Embedded as a constant to avoid filesystem dependencies. Unknown
// top-level keys are deliberately allowed (forward compatibility); step,
// rule, and condition objects are strict.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://oled-display.dev/schemas/playlist-document.json",
  "type": "object",
  "required": ["version", "playlists", "sequence"],
  "properties": {
    "version": { "const": 2 },
    "catalog": {},
    "playlists": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/playlist" }
    },
    "sequence": {
      "type": "array",
      "items": { "$ref": "#/$defs/step" }
    },
    "metadata": { "type": "object" }
  },
  "$defs": {
    "playlist": {
      "type": "object",
      "required": ["steps"],
      "properties": {
        "label": { "type": "string" },
        "steps": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/step" }
        },
        "conditions": { "$ref": "#/$defs/condition" }
      },
      "additionalProperties": false
    },
    "step": {
      "oneOf": [
        { "type": "string", "minLength": 1 },
        {
          "type": "object",
          "minProperties": 1,
          "properties": {
            "screen": { "type": "string", "minLength": 1 },
            "params": { "type": "object" },
            "playlist": { "type": "string", "minLength": 1 },
            "rule": { "$ref": "#/$defs/rule" },
            "conditions": { "$ref": "#/$defs/condition" }
          },
          "additionalProperties": false
        }
      ]
    },
    "rule": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "enum": ["cycle", "every", "variants"] },
        "items": {
          "type": "array",
          "items": { "$ref": "#/$defs/step" }
        },
        "frequency": { "type": "integer", "minimum": 1 },
        "phase": { "type": "integer", "minimum": 0 },
        "item": { "$ref": "#/$defs/step" },
        "options": {
          "type": "array",
          "items": { "$ref": "#/$defs/step" }
        },
        "selection": { "enum": ["sequential", "random", "expr"] },
        "select": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "condition": {
      "type": "object",
      "properties": {
        "days_of_week": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        },
        "time_of_day": {
          "type": "array",
          "items": { "$ref": "#/$defs/window" }
        },
        "cron": { "type": "string", "minLength": 1 },
        "when": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "window": {
      "type": "object",
      "required": ["start", "end"],
      "properties": {
        "start": { "type": "string", "pattern": "^[0-9]{1,2}:[0-9]{2}$" },
        "end": { "type": "string", "pattern": "^[0-9]{1,2}:[0-9]{2}$" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator performs structural validation of Documents against
// the embedded JSON Schema (Draft 2020-12). Safe for concurrent use.
type JSONSchemaValidator struct {
	documentSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the embedded document schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document schema: %w", err)
	}
	if err := c.AddResource("https://oled-display.dev/schemas/playlist-document.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add document schema resource: %w", err)
	}

	compiled, err := c.Compile("https://oled-display.dev/schemas/playlist-document.json")
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	return &JSONSchemaValidator{documentSchema: compiled}, nil
}

// ValidateDocument checks the document's shape and returns one issue per
// leaf violation, with the offending path in dotted form.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.Document) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if doc == nil {
		result.AddError("", schema.ErrCodeValidation, "document is nil")
		return result
	}

	val, err := toJSONValue(doc)
	if err != nil {
		result.AddError("", schema.ErrCodeValidation, "failed to serialize document: "+err.Error())
		return result
	}

	if err := v.documentSchema.Validate(val); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError("", schema.ErrCodeValidation, err.Error())
			return result
		}
		collectViolations(verr, result)
	}
	return result
}

// toJSONValue round-trips a Go value through JSON encoding so numeric
// values become json.Number as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations walks a ValidationError tree and records each leaf
// with its instance location converted to dotted path form.
func collectViolations(verr *jsonschema.ValidationError, result *schema.ValidationResult) {
	if len(verr.Causes) == 0 {
		result.AddError(dottedPath(verr.InstanceLocation), schema.ErrCodeValidation, verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collectViolations(cause, result)
	}
}

// dottedPath converts an instance location like ["playlists","main","steps","2"]
// into "playlists.main.steps[2]".
func dottedPath(location []string) string {
	var b strings.Builder
	for _, seg := range location {
		if isIndex(seg) {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(seg)
	}
	return b.String()
}

func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
