package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := NewError(ErrNotFound, "participant p1 not found")
	assert.Equal(t, "[NOT_FOUND] participant p1 not found", err.Error())

	wrapped := NewError(ErrStoreUnavailable, "save failed").
		WithCause(errors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrStoreUnavailable, "write failed").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestGetErrorCode(t *testing.T) {
	err := NewErrorf(ErrInvalidRequest, "priority %d out of range", 999)
	assert.Equal(t, ErrInvalidRequest, GetErrorCode(err))

	// Codes survive fmt wrapping.
	assert.Equal(t, ErrInvalidRequest, GetErrorCode(fmt.Errorf("submit: %w", err)))

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
}

func TestHasCode(t *testing.T) {
	err := NewError(ErrCircuitOpen, "breaker open")
	assert.True(t, HasCode(err, ErrCircuitOpen))
	assert.False(t, HasCode(err, ErrNotFound))
	assert.False(t, HasCode(nil, ErrCircuitOpen))
}

func TestIsRetryable(t *testing.T) {
	retryable := NewError(ErrStoreUnavailable, "redis down").WithRetryable(true)
	assert.True(t, IsRetryable(retryable))
	assert.True(t, IsRetryable(fmt.Errorf("persist: %w", retryable)))

	assert.False(t, IsRetryable(NewError(ErrInvalidRequest, "bad priority")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestBuilderChaining(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewError(ErrStoreUnavailable, "snapshot save failed").
		WithCause(cause).
		WithRetryable(true)

	require.True(t, IsRetryable(err))
	assert.Equal(t, ErrStoreUnavailable, GetErrorCode(err))
	assert.ErrorIs(t, err, cause)
}
