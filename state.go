package npipe

import (
	"math"
	"time"
)

// State is the lifecycle state of a pipe server instance.
type State uint8

const (
	StateUnopened State = iota
	StateCreated
	StateConnecting
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// canConnect reports whether a connect may be issued from s.
func (s State) canConnect() bool {
	return s == StateCreated || s == StateDisconnected
}

// WaitResult is the non-error outcome of a wait.
type WaitResult uint8

const (
	WaitSignaled WaitResult = iota
	WaitTimedOut
)

func (r WaitResult) String() string {
	switch r {
	case WaitSignaled:
		return "signaled"
	case WaitTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Infinite makes a wait block until the object is signaled.
// Any negative duration has the same effect.
const Infinite time.Duration = -1

// infiniteMillis is the Win32 INFINITE timeout.
const infiniteMillis = math.MaxUint32

// durationToMillis converts a wait budget to Win32 milliseconds.
// Sub-millisecond remainders round up so that a positive timeout never becomes a poll.
func durationToMillis(d time.Duration) uint32 {
	if d < 0 {
		return infiniteMillis
	}
	ms := roundDurationUp(d, time.Millisecond)
	if ms >= infiniteMillis {
		return infiniteMillis - 1
	}
	return uint32(ms)
}

// roundDurationUp returns d divided by to, rounded up.
func roundDurationUp(d time.Duration, to time.Duration) time.Duration {
	return (d + to - 1) / to
}
