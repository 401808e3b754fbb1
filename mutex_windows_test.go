package npipe

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

// onThread runs fn on a separate OS thread and returns its result.
func onThread[T any](fn func() T) T {
	ch := make(chan T)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		ch <- fn()
	}()
	return <-ch
}

func TestMutexExclusive(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m, err := NewMutex(testObjectName(t), true, false)
	require.NoError(t, err)
	defer m.Close()
	assert.True(t, m.Created())

	dup, err := m.Duplicate()
	require.NoError(t, err)
	defer dup.Close()

	acquired := onThread(func() bool {
		ok, err := dup.Lock(10 * time.Millisecond)
		assert.NoError(t, err)
		return ok
	})
	assert.False(t, acquired)

	require.NoError(t, m.Unlock())

	acquired = onThread(func() bool {
		ok, err := dup.Lock(time.Second)
		assert.NoError(t, err)
		if ok {
			assert.NoError(t, dup.Unlock())
		}
		return ok
	})
	assert.True(t, acquired)
}

func TestMutexNamedExisting(t *testing.T) {
	name := testObjectName(t)
	first, err := NewMutex(name, false, false)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewMutex(name, true, false)
	require.NoError(t, err)
	defer second.Close()
	assert.False(t, second.Created())

	opened, err := OpenMutex(name, false)
	require.NoError(t, err)
	assert.NoError(t, opened.Close())
}

func TestMutexUnlockNotOwner(t *testing.T) {
	m, err := NewMutex("", false, false)
	require.NoError(t, err)
	defer m.Close()

	assert.ErrorIs(t, m.Unlock(), windows.ERROR_NOT_OWNER)
}

func TestMutexAbandoned(t *testing.T) {
	m, err := NewMutex("", false, false)
	require.NoError(t, err)
	defer m.Close()

	locked := make(chan struct{})
	go func() {
		// Exiting without UnlockOSThread terminates the thread,
		// which abandons the mutex it owns.
		runtime.LockOSThread()
		ok, err := m.Lock(Infinite)
		assert.True(t, ok)
		assert.NoError(t, err)
		close(locked)
	}()
	<-locked

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	ok, err := m.Lock(5 * time.Second)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.NoError(t, m.Unlock())
}
