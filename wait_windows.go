package npipe

import (
	"time"

	"golang.org/x/sys/windows"
)

// waitObject blocks on a waitable handle for at most timeout.
//
// When the object was a mutex abandoned by its owner, the caller now owns
// it: the result is WaitSignaled together with ErrAbandoned.
func waitObject(h windows.Handle, timeout time.Duration) (WaitResult, error) {
	if h == 0 {
		return WaitTimedOut, ErrEmptyHandle
	}
	event, err := windows.WaitForSingleObject(h, durationToMillis(timeout))
	switch event {
	case windows.WAIT_OBJECT_0:
		return WaitSignaled, nil
	case uint32(windows.WAIT_TIMEOUT):
		return WaitTimedOut, nil
	case windows.WAIT_ABANDONED:
		return WaitSignaled, ErrAbandoned
	default:
		if err == nil {
			err = windows.ERROR_INVALID_HANDLE
		}
		return WaitTimedOut, wrapSyscallError("WaitForSingleObject", err)
	}
}
