package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrSyncOffline, "backend unreachable, sync skipped")
	assert.Equal(t, "[SYNC_OFFLINE] backend unreachable, sync skipped", plain.Error())

	cause := errors.New("connection refused")
	wrapped := Wrap(ErrNetwork, "health probe failed", cause)
	assert.Equal(t, "[NETWORK_ERROR] health probe failed: connection refused", wrapped.Error())
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestIsUnwrapsChains(t *testing.T) {
	err := Wrap(ErrDatabase, "failed to enqueue sync entry", errors.New("disk full"))
	assert.True(t, Is(err, ErrDatabase))
	assert.False(t, Is(err, ErrValidation))

	// The code is still found behind further fmt wrapping.
	outer := fmt.Errorf("sync: %w", err)
	assert.True(t, Is(outer, ErrDatabase))

	assert.False(t, Is(nil, ErrDatabase))
	assert.False(t, Is(errors.New("plain"), ErrDatabase))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrSyncOffline, CodeOf(New(ErrSyncOffline, "skipped")))
	require.Equal(t, ErrTimeout, CodeOf(fmt.Errorf("wrapped: %w", New(ErrTimeout, "probe timed out"))))
	require.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
}
