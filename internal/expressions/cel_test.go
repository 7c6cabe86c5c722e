package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.NotNil(t, e)
	assert.Equal(t, "cel", e.Name())
}

func TestCELEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*CELEngine)(nil)
}

// --- Guard evaluation ---

func TestCEL_SchedulingContext(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{
		"pass":    6,
		"weekday": "saturday",
		"hour":    21,
		"minute":  15,
		"date":    "2026-08-29",
	}

	out, err := e.Evaluate(context.Background(), `pass % 3 == 0 && weekday in ["saturday", "sunday"]`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), `hour >= 22 || hour < 6`, data)
	require.NoError(t, err)
	assert.Equal(t, false, out)

	out, err = e.Evaluate(context.Background(), `date.startsWith("2026-08")`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_EmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", map[string]any{})
	assert.Error(t, err)
}

// --- Check ---

func TestCEL_CheckCatchesSyntaxErrors(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	assert.NoError(t, e.Check("pass > 0"))
	assert.Error(t, e.Check("pass >"))
}

func TestCEL_CheckRejectsUndeclaredVariables(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	assert.Error(t, e.Check("brightness == 1"))
}

// --- Caching ---

func TestCEL_CacheReusesPrograms(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := e.Evaluate(context.Background(), "pass >= 0", map[string]any{"pass": i})
		require.NoError(t, err)
		assert.Equal(t, true, out)
	}
	assert.Len(t, e.cache, 1)
}
