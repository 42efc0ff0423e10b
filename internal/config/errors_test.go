package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewUserError(ErrCodeConfigInvalid, "bad value").
		WithContext("concurrency").
		WithSuggestion("use a number").
		WithUnderlying(cause)

	assert.Equal(t, "bad value (at concurrency)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, NewUserError(ErrCodeConfigInvalid, ""))
	assert.NotErrorIs(t, err, NewUserError(ErrCodeConfigParse, ""))
	assert.Equal(t, "[CONFIG_INVALID] bad value\n  Location: concurrency\n  Suggestion: use a number", err.Format())
}

func TestUserError_CopiesOnWith(t *testing.T) {
	t.Parallel()

	base := NewUserError(ErrCodeConfigParse, "parse")
	derived := base.WithContext("file.yaml")

	assert.Empty(t, base.Context)
	assert.Equal(t, "file.yaml", derived.Context)
}

func TestNewYAMLParseError(t *testing.T) {
	t.Parallel()

	err := NewYAMLParseError("kostore.yaml", errors.New("yaml: line 3: mapping values are not allowed in this context"))

	assert.Equal(t, "invalid YAML structure", err.Message)
	assert.Equal(t, "kostore.yaml (line 3)", err.Context)
	assert.Equal(t, ErrCodeConfigParse, err.Code)
}

func TestGetUserError(t *testing.T) {
	t.Parallel()

	ue := NewInvalidPackageError("nope", nil)
	wrapped := errors.Join(errors.New("outer"), ue)

	assert.Same(t, ue, GetUserError(wrapped))
	assert.Nil(t, GetUserError(errors.New("plain")))
}
