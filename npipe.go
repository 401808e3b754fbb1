// Package npipe provides Windows named pipe servers with both blocking and
// overlapped I/O, along with the kernel object wrappers they are built on:
// owned handles, events, mutexes and file mappings.
//
// Every kernel object reference is owned by exactly one [Handle]. Handles are
// never shared implicitly. Call [Handle.Duplicate] to obtain a second,
// independently closable reference, or [Handle.Move] to transfer ownership.
//
// [Server] performs blocking connect, read and write calls. [OverlappedServer]
// submits the same calls without blocking and returns an [Operation] that the
// caller waits on. Overlapped reads transparently grow their buffer when a
// message does not fit, so a single read always yields a whole message.
//
// This package starts no goroutines. On platforms other than Windows,
// constructors return ErrPlatformUnsupported.
package npipe

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/containerd/errdefs"
)

var ErrPlatformUnsupported = errors.New("npipe-go does not support named pipes on this platform")

// Configuration errors.
var (
	ErrEmptyName           = fmt.Errorf("pipe name is empty: %w", errdefs.ErrInvalidArgument)
	ErrZeroBufferSize      = fmt.Errorf("pipe buffer size is zero: %w", errdefs.ErrInvalidArgument)
	ErrInvalidMaxInstances = fmt.Errorf("max instances must be between 1 and %d: %w", UnlimitedInstances, errdefs.ErrInvalidArgument)
)

// State errors.
var (
	ErrEmptyHandle  = fmt.Errorf("handle is empty: %w", errdefs.ErrFailedPrecondition)
	ErrInvalidState = fmt.Errorf("operation not allowed in current pipe state: %w", errdefs.ErrFailedPrecondition)
	ErrBusy         = fmt.Errorf("another operation is in flight on this pipe instance: %w", errdefs.ErrFailedPrecondition)
)

var (
	// ErrPending is returned when polling an operation that has not completed yet.
	// It is not a failure: wait on the operation again, or close the pipe to abort it.
	ErrPending = fmt.Errorf("operation is still pending: %w", errdefs.ErrUnavailable)

	// ErrAbandoned is returned when a wait is satisfied by an abandoned mutex.
	ErrAbandoned = errors.New("the wait was abandoned")

	// ErrSecurityDescriptor wraps failures to parse an SDDL string.
	ErrSecurityDescriptor = fmt.Errorf("failed to convert security descriptor: %w", errdefs.ErrInvalidArgument)
)

// stateError attaches the offending state to ErrInvalidState.
func stateError(op string, s State) error {
	return fmt.Errorf("%s in state %s: %w", op, s, ErrInvalidState)
}

// wrapSyscallError takes an error and a syscall name. If the error is
// a syscall.Errno, it wraps it in a os.SyscallError using the syscall name.
func wrapSyscallError(name string, err error) error {
	if _, ok := err.(syscall.Errno); ok {
		err = os.NewSyscallError(name, err)
	}
	return err
}

// Errno returns the OS error code carried by err, if any.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
