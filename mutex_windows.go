package npipe

import (
	"errors"
	"time"

	"golang.org/x/sys/windows"
)

// Mutex is a named or anonymous Win32 mutex for interprocess synchronization.
//
// Win32 mutexes are owned by OS threads, not goroutines. Call
// runtime.LockOSThread before Lock and keep the goroutine locked until
// Unlock returns.
type Mutex struct {
	handle  *Handle
	name    string
	created bool
}

// NewMutex creates a mutex, or opens it if a mutex with the same name
// already exists. If acquire is true and the mutex was created by this
// call, the calling thread owns it on return.
func NewMutex(name string, acquire, inheritable bool) (*Mutex, error) {
	namep, err := objectName(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateMutex(securityAttributes(inheritable, nil), acquire, namep)
	existed := err == windows.ERROR_ALREADY_EXISTS
	if h == 0 || (err != nil && !existed) {
		return nil, wrapSyscallError("CreateMutex", err)
	}
	return &Mutex{
		handle:  NewHandle(h, inheritable),
		name:    name,
		created: !existed,
	}, nil
}

// OpenMutex opens an existing named mutex with full access.
func OpenMutex(name string, inheritable bool) (*Mutex, error) {
	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenMutex(windows.MUTEX_ALL_ACCESS, inheritable, namep)
	if err != nil {
		return nil, wrapSyscallError("OpenMutex", err)
	}
	return &Mutex{handle: NewHandle(h, inheritable), name: name}, nil
}

// Name returns the mutex name, or an empty string for anonymous mutexes.
func (m *Mutex) Name() string {
	return m.name
}

// Created reports whether this process created the mutex.
func (m *Mutex) Created() bool {
	return m.created
}

// Handle returns the owned handle. The mutex keeps ownership.
func (m *Mutex) Handle() *Handle {
	return m.handle
}

// Lock waits up to timeout to acquire the mutex and reports whether it was acquired.
//
// If the previous owner exited without releasing it, the mutex is acquired
// anyway and Lock returns true with ErrAbandoned: the protected state may be
// inconsistent.
func (m *Mutex) Lock(timeout time.Duration) (bool, error) {
	res, err := waitObject(m.handle.Raw(), timeout)
	if errors.Is(err, ErrAbandoned) {
		return true, err
	}
	if err != nil {
		return false, err
	}
	return res == WaitSignaled, nil
}

// Unlock releases ownership. It fails with ERROR_NOT_OWNER when the
// calling thread does not own the mutex.
func (m *Mutex) Unlock() error {
	raw := m.handle.Raw()
	if raw == 0 {
		return ErrEmptyHandle
	}
	return wrapSyscallError("ReleaseMutex", windows.ReleaseMutex(raw))
}

// Duplicate returns a second Mutex referring to the same kernel object.
// Ownership is per thread, so both values share the lock state.
func (m *Mutex) Duplicate() (*Mutex, error) {
	h, err := m.handle.Duplicate()
	if err != nil {
		return nil, err
	}
	return &Mutex{handle: h, name: m.name, created: m.created}, nil
}

// Close releases the mutex handle. It does not unlock the mutex.
func (m *Mutex) Close() error {
	return m.handle.Close()
}
