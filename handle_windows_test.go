package npipe

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

// testObjectName returns a session-local kernel object name unique to this test.
func testObjectName(t *testing.T) string {
	t.Helper()
	return `Local\npipe-test-` + uuid.NewString()
}

func TestHandleEmpty(t *testing.T) {
	for _, h := range []*Handle{{}, NewHandle(0, false), NewHandle(windows.InvalidHandle, false)} {
		assert.True(t, h.IsEmpty())
		assert.NoError(t, h.Close())

		dup, err := h.Duplicate()
		assert.Nil(t, dup)
		assert.ErrorIs(t, err, ErrEmptyHandle)
	}
}

func TestHandleDuplicateOutlivesSource(t *testing.T) {
	event, err := NewEvent("", true, false, true)
	require.NoError(t, err)

	dup, err := event.Handle().Duplicate()
	require.NoError(t, err)
	defer dup.Close()
	assert.NotEqual(t, event.Handle().Raw(), dup.Raw())
	assert.True(t, dup.Inheritable())

	require.NoError(t, event.Close())
	assert.True(t, event.Handle().IsEmpty())

	// The duplicate still refers to the event.
	require.NoError(t, windows.SetEvent(dup.Raw()))
	res, err := waitObject(dup.Raw(), 0)
	require.NoError(t, err)
	assert.Equal(t, WaitSignaled, res)
}

func TestHandleCloseTwice(t *testing.T) {
	event, err := NewEvent("", false, false, false)
	require.NoError(t, err)

	h := event.Handle()
	require.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.NoError(t, event.Close())
}

func TestHandleMove(t *testing.T) {
	event, err := NewEvent("", true, true, false)
	require.NoError(t, err)
	raw := event.Handle().Raw()

	moved := event.Handle().Move()
	assert.True(t, event.Handle().IsEmpty())
	assert.Equal(t, raw, moved.Raw())

	// Closing the source no longer affects the moved handle.
	require.NoError(t, event.Close())
	res, err := waitObject(moved.Raw(), 0)
	require.NoError(t, err)
	assert.Equal(t, WaitSignaled, res)

	require.NoError(t, moved.Close())
	assert.True(t, moved.IsEmpty())
}

func TestHandleRelease(t *testing.T) {
	event, err := NewEvent("", true, false, false)
	require.NoError(t, err)

	raw := event.Handle().Release()
	assert.NotZero(t, raw)
	assert.True(t, event.Handle().IsEmpty())
	assert.NoError(t, event.Close())
	assert.NoError(t, windows.CloseHandle(raw))
}
