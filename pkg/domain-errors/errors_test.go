package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches the outer code", func(t *testing.T) {
		err := New(CodeConflict, "email already registered")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches a wrapped code", func(t *testing.T) {
		inner := New(CodeNotFound, "user not found")
		outer := Wrap(inner, CodeInternal, "lookup failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeNotFound))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrapPreservesChain(t *testing.T) {
	sentinel := errors.New("connection refused")
	err := Wrap(fmt.Errorf("dial store: %w", sentinel), CodeUnavailable, "store unreachable")

	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Equal(t, "store unreachable", MessageOf(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(errors.New("boom")))
}
