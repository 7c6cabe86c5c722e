package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/expressions"
	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// RuleState is the mutable state of one rule instance, keyed by its
// structural path in the document. Only cycle and sequential-variants
// rules carry state; every-rules key off the ambient pass counter alone.
type RuleState struct {
	Index int
}

// StateMap keys rule state by structural path (e.g.
// "playlists.main.steps[2]") so editing unrelated parts of the config
// does not disturb an in-progress cycle, while replacing the rule at that
// path starts fresh.
type StateMap map[string]*RuleState

// Clone deep-copies the map. Previews resolve on clones so they never
// mutate live counters.
func (m StateMap) Clone() StateMap {
	out := make(StateMap, len(m))
	for path, st := range m {
		copied := *st
		out[path] = &copied
	}
	return out
}

// Checkpoint flattens the map for persistence.
func (m StateMap) Checkpoint() map[string]int {
	out := make(map[string]int, len(m))
	for path, st := range m {
		out[path] = st.Index
	}
	return out
}

// RestoreStateMap rebuilds a StateMap from a checkpoint.
func RestoreStateMap(indices map[string]int) StateMap {
	out := make(StateMap, len(indices))
	for path, idx := range indices {
		out[path] = &RuleState{Index: idx}
	}
	return out
}

func (m StateMap) at(path string) *RuleState {
	st, ok := m[path]
	if !ok {
		st = &RuleState{}
		m[path] = st
	}
	return st
}

// RuleExpander turns a rule descriptor plus current pass state into
// zero-or-one concrete steps.
type RuleExpander struct {
	expr *expressions.ExprEngine
}

// NewRuleExpander creates a RuleExpander.
func NewRuleExpander() *RuleExpander {
	return &RuleExpander{expr: expressions.NewExprEngine()}
}

// Expand evaluates the rule at path for the given pass. It returns the
// emitted step and its structural child path (which keys any nested rule
// state), or a nil step when the rule stays silent this pass.
func (x *RuleExpander) Expand(ctx context.Context, rule *schema.Rule, path string, pass int, states StateMap) (*schema.Step, string, error) {
	switch rule.Type {
	case schema.RuleCycle:
		if len(rule.Items) == 0 {
			return nil, "", schema.NewError(schema.ErrCodeResolution,
				"cycle rule has no items").WithPath(path)
		}
		st := states.at(path)
		if st.Index < 0 || st.Index >= len(rule.Items) {
			// The rule shrank since the state was recorded; wrap back in.
			st.Index = st.Index % len(rule.Items)
			if st.Index < 0 {
				st.Index += len(rule.Items)
			}
		}
		idx := st.Index
		st.Index = (st.Index + 1) % len(rule.Items)
		return &rule.Items[idx], fmt.Sprintf("%s.rule.items[%d]", path, idx), nil

	case schema.RuleEvery:
		if rule.Frequency < 1 {
			return nil, "", schema.NewError(schema.ErrCodeResolution,
				"every rule has a non-positive frequency").WithPath(path)
		}
		if mod(pass-rule.Phase, rule.Frequency) != 0 {
			return nil, "", nil
		}
		if rule.Item == nil {
			return nil, "", schema.NewError(schema.ErrCodeResolution,
				"every rule has no item").WithPath(path)
		}
		return rule.Item, path + ".rule.item", nil

	case schema.RuleVariants:
		if len(rule.Options) == 0 {
			return nil, "", schema.NewError(schema.ErrCodeResolution,
				"variants rule has no options").WithPath(path)
		}
		idx, err := x.selectVariant(ctx, rule, path, pass, states)
		if err != nil {
			return nil, "", err
		}
		return &rule.Options[idx], fmt.Sprintf("%s.rule.options[%d]", path, idx), nil

	default:
		return nil, "", schema.NewErrorf(schema.ErrCodeResolution,
			"unknown rule type %q", rule.Type).WithPath(path)
	}
}

func (x *RuleExpander) selectVariant(ctx context.Context, rule *schema.Rule, path string, pass int, states StateMap) (int, error) {
	count := len(rule.Options)

	switch rule.Selection {
	case "", schema.SelectionSequential:
		st := states.at(path)
		idx := mod(st.Index, count)
		st.Index = (idx + 1) % count
		return idx, nil

	case schema.SelectionRandom:
		// Seeded from (rule path, pass): repeated previews of the same
		// pass reproduce, successive real passes differ.
		rng := rand.New(rand.NewSource(int64(pathSeed(path) ^ uint64(uint(pass)))))
		return rng.Intn(count), nil

	case schema.SelectionExpr:
		out, err := x.expr.Evaluate(ctx, rule.Select, map[string]any{
			"pass":  pass,
			"count": count,
		})
		if err != nil {
			return 0, schema.NewErrorf(schema.ErrCodeResolution,
				"select expression failed: %s", err.Error()).WithPath(path).WithCause(err)
		}
		idx, ok := toInt(out)
		if !ok {
			return 0, schema.NewErrorf(schema.ErrCodeResolution,
				"select expression must yield an integer, got %T", out).WithPath(path)
		}
		return mod(idx, count), nil

	default:
		return 0, schema.NewErrorf(schema.ErrCodeResolution,
			"unknown selection mode %q", rule.Selection).WithPath(path)
	}
}

// mod is the non-negative modulo: every{phase} must keep firing on
// schedule even when the pass counter sits below the phase.
func mod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}

func pathSeed(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
