package npipe

import (
	"time"

	"golang.org/x/sys/windows"
)

// Event is a named or anonymous Win32 event object.
type Event struct {
	handle          *Handle
	name            string
	manualReset     bool
	initialSignaled bool
	existed         bool
}

// NewEvent creates an event, or opens it if an event with the same name
// already exists. In the latter case manualReset and initialSignaled are
// ignored by the OS and Existed reports true.
// An empty name creates an anonymous event.
func NewEvent(name string, manualReset, initialSignaled, inheritable bool) (*Event, error) {
	namep, err := objectName(name)
	if err != nil {
		return nil, err
	}
	var manual, initial uint32
	if manualReset {
		manual = 1
	}
	if initialSignaled {
		initial = 1
	}
	h, err := windows.CreateEvent(securityAttributes(inheritable, nil), manual, initial, namep)
	existed := err == windows.ERROR_ALREADY_EXISTS
	if h == 0 || (err != nil && !existed) {
		return nil, wrapSyscallError("CreateEvent", err)
	}
	return &Event{
		handle:          NewHandle(h, inheritable),
		name:            name,
		manualReset:     manualReset,
		initialSignaled: initialSignaled,
		existed:         existed,
	}, nil
}

// OpenEvent opens an existing named event with full access.
//
// The reset mode of an opened event is not known to this process.
// ManualReset reports true, so Reset is never skipped for it.
func OpenEvent(name string, inheritable bool) (*Event, error) {
	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenEvent(windows.EVENT_ALL_ACCESS, inheritable, namep)
	if err != nil {
		return nil, wrapSyscallError("OpenEvent", err)
	}
	return &Event{
		handle:      NewHandle(h, inheritable),
		name:        name,
		manualReset: true,
		existed:     true,
	}, nil
}

// Name returns the event name, or an empty string for anonymous events.
func (e *Event) Name() string {
	return e.name
}

// ManualReset reports whether the event stays signaled until Reset.
func (e *Event) ManualReset() bool {
	return e.manualReset
}

// InitialSignaled reports the initial state requested at creation.
func (e *Event) InitialSignaled() bool {
	return e.initialSignaled
}

// Existed reports whether the event was opened rather than created.
func (e *Event) Existed() bool {
	return e.existed
}

// Handle returns the owned handle. The event keeps ownership.
func (e *Event) Handle() *Handle {
	return e.handle
}

// Signal sets the event to the signaled state.
func (e *Event) Signal() error {
	raw := e.handle.Raw()
	if raw == 0 {
		return ErrEmptyHandle
	}
	return wrapSyscallError("SetEvent", windows.SetEvent(raw))
}

// Reset clears the signaled state of a manual-reset event.
// Auto-reset events clear themselves when a wait is satisfied, so Reset
// does nothing for them. It also does nothing once the event is closed.
func (e *Event) Reset() error {
	raw := e.handle.Raw()
	if !e.manualReset || raw == 0 {
		return nil
	}
	return wrapSyscallError("ResetEvent", windows.ResetEvent(raw))
}

// Wait blocks until the event is signaled or timeout elapses.
// Pass Infinite to wait without a deadline.
// Timing out is reported as WaitTimedOut, not as an error.
func (e *Event) Wait(timeout time.Duration) (WaitResult, error) {
	return waitObject(e.handle.Raw(), timeout)
}

// Duplicate returns a second Event referring to the same kernel object.
func (e *Event) Duplicate() (*Event, error) {
	h, err := e.handle.Duplicate()
	if err != nil {
		return nil, err
	}
	dup := *e
	dup.handle = h
	return &dup, nil
}

// Close releases the event handle. It is safe to call more than once.
func (e *Event) Close() error {
	return e.handle.Close()
}
