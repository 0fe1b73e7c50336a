package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrNotFound, KindOf(NewError(ErrNotFound, "gone")))
	assert.Equal(t, ErrIllegalTransition, KindOf(NewErrorf(ErrIllegalTransition, "from %s", "draft")))
	assert.Equal(t, ErrIntegrity, KindOf(errors.New("driver: bad connection")), "plain errors are store failures")
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := NewError(ErrPermissionDenied, "not yours")
	wrapped := fmt.Errorf("transition failed: %w", inner)

	assert.Equal(t, ErrPermissionDenied, KindOf(wrapped))
}

func TestGuardError(t *testing.T) {
	err := GuardError(map[string]string{
		"signed_by_unicef_date": "required to sign",
		"attached_agreement":    "signed agreement document required",
	})

	assert.Equal(t, ErrGuardFailed, err.Kind)
	assert.Len(t, err.Fields, 2)
	assert.Contains(t, err.Error(), "required to sign")
}

func TestErrorIs_MatchesOnKind(t *testing.T) {
	err := NewError(ErrConcurrencyConflict, "entity busy: intervention--42")

	assert.True(t, errors.Is(err, &Error{Kind: ErrConcurrencyConflict}))
	assert.False(t, errors.Is(err, &Error{Kind: ErrNotFound}))
}
