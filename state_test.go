package npipe

import (
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
)

func TestDurationToMillis(t *testing.T) {
	for _, c := range []struct {
		d    time.Duration
		want uint32
	}{
		{0, 0},
		{time.Nanosecond, 1},
		{time.Millisecond, 1},
		{time.Millisecond + 1, 2},
		{1500 * time.Microsecond, 2},
		{time.Second, 1000},
		{Infinite, infiniteMillis},
		{-time.Hour, infiniteMillis},
		{time.Duration(infiniteMillis) * time.Millisecond, infiniteMillis - 1},
	} {
		assert.Equal(t, c.want, durationToMillis(c.d), "durationToMillis(%v)", c.d)
	}
}

func TestStateCanConnect(t *testing.T) {
	for s, want := range map[State]bool{
		StateUnopened:     false,
		StateCreated:      true,
		StateConnecting:   false,
		StateConnected:    false,
		StateDisconnected: true,
		StateClosed:       false,
	} {
		assert.Equal(t, want, s.canConnect(), s.String())
	}
}

func TestStateError(t *testing.T) {
	err := stateError("read", StateDisconnected)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, errdefs.IsFailedPrecondition(err))
	assert.Contains(t, err.Error(), "read in state disconnected")
}

func TestErrPendingIsUnavailable(t *testing.T) {
	assert.True(t, errdefs.IsUnavailable(ErrPending))
	assert.True(t, errdefs.IsFailedPrecondition(ErrBusy))
	assert.True(t, errdefs.IsFailedPrecondition(ErrEmptyHandle))
}
