package validation

import "github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"

// DocumentValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (step variants, playlist refs, rule fields, conditions)
// 3. Graph (reference cycles, reachability from the sequence)
type DocumentValidator struct {
	jsonSchema *JSONSchemaValidator
	checks     *checkers
}

// NewDocumentValidator creates a DocumentValidator with the embedded
// schema pre-compiled.
func NewDocumentValidator() (*DocumentValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	checks, err := newCheckers()
	if err != nil {
		return nil, err
	}
	return &DocumentValidator{jsonSchema: jsv, checks: checks}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and graph stages are skipped.
func (dv *DocumentValidator) Validate(doc *schema.Document) *schema.ValidationResult {
	if doc == nil {
		r := &schema.ValidationResult{}
		r.AddError("", schema.ErrCodeValidation, "document is nil")
		return r
	}

	result := dv.jsonSchema.ValidateDocument(doc)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(doc, dv.checks))

	// Graph stage only runs on a semantically sound document; unknown
	// references would otherwise produce misleading cycle reports.
	if result.Valid() {
		result.Merge(analyzeGraph(doc))
	}

	return result
}

// ValidateDocument runs Validate and converts failures into a ConfigError.
func (dv *DocumentValidator) ValidateDocument(doc *schema.Document) error {
	return dv.Validate(doc).ToError()
}
