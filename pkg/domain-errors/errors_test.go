package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeWalksChain(t *testing.T) {
	root := errors.New("connection reset")
	inner := Wrap(root, CodeUnavailable, "vendor unavailable")
	outer := Wrap(inner, CodeInternal, "screening failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeUnavailable))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.True(t, errors.Is(outer, root))
}

func TestIsChecksOutermostOnly(t *testing.T) {
	inner := New(CodeNotFound, "subject not found")
	outer := Wrap(inner, CodeInternal, "lookup failed")

	assert.True(t, Is(outer, CodeInternal))
	assert.False(t, Is(outer, CodeNotFound))
	assert.True(t, Is(fmt.Errorf("context: %w", inner), CodeNotFound))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "duplicate")))
	assert.Equal(t, "duplicate", MessageOf(New(CodeConflict, "duplicate")))
}
