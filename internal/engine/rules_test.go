package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

func screens(ids ...string) []schema.Step {
	steps := make([]schema.Step, len(ids))
	for i, id := range ids {
		steps[i] = schema.Step{Screen: id}
	}
	return steps
}

// --- cycle ---

func TestExpand_CycleAdvancesAndWraps(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{Type: schema.RuleCycle, Items: screens("a", "b", "c")}
	states := StateMap{}

	var got []string
	for pass := 0; pass < 7; pass++ {
		step, _, err := x.Expand(context.Background(), rule, "sequence[0]", pass, states)
		require.NoError(t, err)
		require.NotNil(t, step)
		got = append(got, step.Screen)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a"}, got)
}

func TestExpand_CycleChildPathNamesTheItem(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{Type: schema.RuleCycle, Items: screens("a", "b")}
	states := StateMap{}

	_, childPath, err := x.Expand(context.Background(), rule, "playlists.main.steps[2]", 0, states)
	require.NoError(t, err)
	assert.Equal(t, "playlists.main.steps[2].rule.items[0]", childPath)

	_, childPath, err = x.Expand(context.Background(), rule, "playlists.main.steps[2]", 1, states)
	require.NoError(t, err)
	assert.Equal(t, "playlists.main.steps[2].rule.items[1]", childPath)
}

func TestExpand_CycleSurvivesShrinkingItems(t *testing.T) {
	x := NewRuleExpander()
	states := StateMap{"p": &RuleState{Index: 5}}
	rule := &schema.Rule{Type: schema.RuleCycle, Items: screens("a", "b")}

	step, _, err := x.Expand(context.Background(), rule, "p", 0, states)
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, step.Screen)
}

func TestExpand_CycleWithoutItemsErrors(t *testing.T) {
	x := NewRuleExpander()
	_, _, err := x.Expand(context.Background(), &schema.Rule{Type: schema.RuleCycle}, "p", 0, StateMap{})
	require.Error(t, err)
}

// --- every ---

func TestExpand_EveryFiresOnMatchingPasses(t *testing.T) {
	x := NewRuleExpander()
	item := schema.Step{Screen: "scores"}
	rule := &schema.Rule{Type: schema.RuleEvery, Frequency: 3, Phase: 1, Item: &item}

	for pass := 0; pass < 9; pass++ {
		step, _, err := x.Expand(context.Background(), rule, "p", pass, StateMap{})
		require.NoError(t, err)
		if pass%3 == 1 {
			require.NotNil(t, step, "pass %d should fire", pass)
			assert.Equal(t, "scores", step.Screen)
		} else {
			assert.Nil(t, step, "pass %d should be silent", pass)
		}
	}
}

func TestExpand_EveryHoldsScheduleBelowPhase(t *testing.T) {
	x := NewRuleExpander()
	item := schema.Step{Screen: "scores"}
	rule := &schema.Rule{Type: schema.RuleEvery, Frequency: 4, Phase: 6, Item: &item}

	// Effective phase is 6 mod 4 = 2.
	step, _, err := x.Expand(context.Background(), rule, "p", 2, StateMap{})
	require.NoError(t, err)
	assert.NotNil(t, step)

	step, _, err = x.Expand(context.Background(), rule, "p", 3, StateMap{})
	require.NoError(t, err)
	assert.Nil(t, step)
}

func TestExpand_EveryStateless(t *testing.T) {
	x := NewRuleExpander()
	item := schema.Step{Screen: "scores"}
	rule := &schema.Rule{Type: schema.RuleEvery, Frequency: 2, Item: &item}
	states := StateMap{}

	_, _, err := x.Expand(context.Background(), rule, "p", 0, states)
	require.NoError(t, err)
	assert.Empty(t, states, "every rules carry no state")
}

// --- variants ---

func TestExpand_VariantsSequentialByDefault(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{Type: schema.RuleVariants, Options: screens("x", "y")}
	states := StateMap{}

	var got []string
	for pass := 0; pass < 4; pass++ {
		step, _, err := x.Expand(context.Background(), rule, "p", pass, states)
		require.NoError(t, err)
		got = append(got, step.Screen)
	}
	assert.Equal(t, []string{"x", "y", "x", "y"}, got)
}

func TestExpand_VariantsRandomIsReproduciblePerPass(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{
		Type:      schema.RuleVariants,
		Options:   screens("x", "y", "z"),
		Selection: schema.SelectionRandom,
	}

	first, _, err := x.Expand(context.Background(), rule, "p", 7, StateMap{})
	require.NoError(t, err)
	second, _, err := x.Expand(context.Background(), rule, "p", 7, StateMap{})
	require.NoError(t, err)
	assert.Equal(t, first.Screen, second.Screen, "same pass draws the same option")
}

func TestExpand_VariantsRandomDiffersByPath(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{
		Type:      schema.RuleVariants,
		Options:   screens("a", "b", "c", "d", "e", "f", "g", "h"),
		Selection: schema.SelectionRandom,
	}

	// Two rule instances at different paths must not mirror each other on
	// every pass.
	differs := false
	for pass := 0; pass < 16; pass++ {
		one, _, err := x.Expand(context.Background(), rule, "sequence[0]", pass, StateMap{})
		require.NoError(t, err)
		two, _, err := x.Expand(context.Background(), rule, "sequence[1]", pass, StateMap{})
		require.NoError(t, err)
		if one.Screen != two.Screen {
			differs = true
			break
		}
	}
	assert.True(t, differs)
}

func TestExpand_VariantsExprSelection(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{
		Type:      schema.RuleVariants,
		Options:   screens("x", "y", "z"),
		Selection: schema.SelectionExpr,
		Select:    "pass * 2",
	}

	step, _, err := x.Expand(context.Background(), rule, "p", 2, StateMap{})
	require.NoError(t, err)
	assert.Equal(t, "y", step.Screen, "index 4 mod 3 = 1")
}

func TestExpand_VariantsExprMustYieldInteger(t *testing.T) {
	x := NewRuleExpander()
	rule := &schema.Rule{
		Type:      schema.RuleVariants,
		Options:   screens("x", "y"),
		Selection: schema.SelectionExpr,
		Select:    `"nope"`,
	}

	_, _, err := x.Expand(context.Background(), rule, "p", 0, StateMap{})
	require.Error(t, err)
}

// --- state maps ---

func TestStateMap_CloneIsIndependent(t *testing.T) {
	states := StateMap{"p": &RuleState{Index: 1}}
	clone := states.Clone()
	clone["p"].Index = 9
	assert.Equal(t, 1, states["p"].Index)
}

func TestStateMap_CheckpointRoundTrip(t *testing.T) {
	states := StateMap{"a": &RuleState{Index: 2}, "b": &RuleState{Index: 0}}
	restored := RestoreStateMap(states.Checkpoint())
	assert.Equal(t, 2, restored["a"].Index)
	assert.Equal(t, 0, restored["b"].Index)
}
