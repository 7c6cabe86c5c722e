package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_CarriesPathAndCode(t *testing.T) {
	err := NewError(ErrCodeConfig, "bad frequency").WithPath("playlists.main.steps[2]")
	assert.Equal(t, ErrCodeConfig, err.Code)
	assert.Equal(t, "playlists.main.steps[2]", err.Path)
	assert.Contains(t, err.Error(), "bad frequency")
	assert.Contains(t, err.Error(), "playlists.main.steps[2]")
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrCodeStore, "save failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	require.NoError(t, r.ToError())

	r.AddWarning("playlists.orphan", ErrCodeValidation, "unreachable")
	require.NoError(t, r.ToError(), "warnings alone do not fail")

	r.AddError("sequence[0]", ErrCodeValidation, "unknown playlist")
	err := r.ToError()
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrCodeConfig, engErr.Code)
	assert.Equal(t, "sequence[0]", engErr.Path)
}
