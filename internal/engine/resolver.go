package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// DefaultMaxDepth bounds nesting during resolution. Load-time validation
// rejects reference cycles, so the guard only exists to turn a latent bug
// into a ResolutionError instead of a stack overflow.
const DefaultMaxDepth = 64

// ResolvedScreen is one concrete screen emitted by a pass.
type ResolvedScreen struct {
	ScreenID string
	// Params are passed through to the renderer untouched.
	Params map[string]any
	// Path is the structural document path that produced the screen.
	Path string
}

// Resolver flattens the document's nested steps, rules, and conditions
// into the concrete screen sequence for one pass.
type Resolver struct {
	doc        *schema.Document
	conditions *ConditionEvaluator
	rules      *RuleExpander
	maxDepth   int
}

// NewResolver creates a Resolver over an immutable document.
func NewResolver(doc *schema.Document, conditions *ConditionEvaluator, rules *RuleExpander, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{doc: doc, conditions: conditions, rules: rules, maxDepth: maxDepth}
}

// Resolve walks the top-level sequence depth-first and returns the
// ordered screens for the given pass. Nodes whose conditions fail
// contribute nothing and do not perturb sibling ordering. Cycle and
// sequential-variants counters in states advance as rules activate.
func (r *Resolver) Resolve(ctx context.Context, pass int, now time.Time, states StateMap) ([]ResolvedScreen, error) {
	var out []ResolvedScreen
	if err := r.resolveSteps(ctx, r.doc.Sequence, "sequence", pass, now, states, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveSteps(ctx context.Context, steps []schema.Step, basePath string, pass int, now time.Time, states StateMap, depth int, out *[]ResolvedScreen) error {
	for i := range steps {
		path := fmt.Sprintf("%s[%d]", basePath, i)
		if err := r.resolveStep(ctx, &steps[i], path, pass, now, states, depth, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveStep(ctx context.Context, step *schema.Step, path string, pass int, now time.Time, states StateMap, depth int, out *[]ResolvedScreen) error {
	if depth > r.maxDepth {
		return schema.NewErrorf(schema.ErrCodeResolution,
			"nesting exceeds max depth %d", r.maxDepth).WithPath(path)
	}

	ok, err := r.conditions.Evaluate(ctx, step.Conditions, now, pass)
	if err != nil {
		return wrapResolution(err, path)
	}
	if !ok {
		return nil
	}

	switch step.Kind() {
	case schema.StepScreen:
		*out = append(*out, ResolvedScreen{
			ScreenID: step.Screen,
			Params:   step.Params,
			Path:     path,
		})
		return nil

	case schema.StepPlaylist:
		pl, found := r.doc.Playlists[step.Playlist]
		if !found {
			return schema.NewErrorf(schema.ErrCodeResolution,
				"unknown playlist %q", step.Playlist).WithPath(path)
		}
		ok, err := r.conditions.Evaluate(ctx, pl.Conditions, now, pass)
		if err != nil {
			return wrapResolution(err, path)
		}
		if !ok {
			return nil
		}
		return r.resolveSteps(ctx, pl.Steps,
			fmt.Sprintf("playlists.%s.steps", step.Playlist),
			pass, now, states, depth+1, out)

	case schema.StepRule:
		emitted, childPath, err := r.rules.Expand(ctx, step.Rule, path, pass, states)
		if err != nil {
			return err
		}
		if emitted == nil {
			return nil
		}
		return r.resolveStep(ctx, emitted, childPath, pass, now, states, depth+1, out)

	default:
		return schema.NewError(schema.ErrCodeResolution,
			"step sets none or several of screen, playlist, rule").WithPath(path)
	}
}

func wrapResolution(err error, path string) error {
	if engErr, ok := err.(*schema.EngineError); ok {
		if engErr.Path == "" {
			engErr.Path = path
		}
		return engErr
	}
	return schema.NewError(schema.ErrCodeResolution, err.Error()).WithPath(path).WithCause(err)
}
