package npipe

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Handle owns one kernel object reference and closes it at most once.
//
// The zero value is an empty handle. Handles must not be copied:
// use Duplicate for a second reference to the same object, or Move
// to transfer ownership.
type Handle struct {
	mu          sync.Mutex
	raw         windows.Handle
	inheritable bool
}

// NewHandle takes exclusive ownership of raw.
// INVALID_HANDLE_VALUE is treated as the empty handle.
func NewHandle(raw windows.Handle, inheritable bool) *Handle {
	if raw == windows.InvalidHandle {
		raw = 0
	}
	return &Handle{raw: raw, inheritable: inheritable}
}

// Raw returns the underlying handle value without transferring ownership.
func (h *Handle) Raw() windows.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.raw
}

// IsEmpty reports whether h owns no reference.
func (h *Handle) IsEmpty() bool {
	return h.Raw() == 0
}

// Inheritable reports whether the handle was acquired as inheritable.
func (h *Handle) Inheritable() bool {
	return h.inheritable
}

// Duplicate asks the OS for a second, independent reference to the same
// object. The duplicate keeps the source's inheritability.
func (h *Handle) Duplicate() (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.raw == 0 {
		return nil, ErrEmptyHandle
	}
	return duplicateRaw(h.raw, h.inheritable)
}

func duplicateRaw(raw windows.Handle, inheritable bool) (*Handle, error) {
	process := windows.CurrentProcess()
	var dup windows.Handle
	if err := windows.DuplicateHandle(process, raw, process, &dup, 0, inheritable, windows.DUPLICATE_SAME_ACCESS); err != nil {
		return nil, wrapSyscallError("DuplicateHandle", err)
	}
	return &Handle{raw: dup, inheritable: inheritable}, nil
}

// Move transfers ownership to a new Handle and leaves h empty.
func (h *Handle) Move() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	moved := &Handle{raw: h.raw, inheritable: h.inheritable}
	h.raw = 0
	return moved
}

// Release gives up ownership without closing.
// The caller becomes responsible for closing the returned value.
func (h *Handle) Release() windows.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw := h.raw
	h.raw = 0
	return raw
}

// Close releases the reference if h owns one. Closing an empty handle is a no-op.
// The handle is empty after Close returns, even if CloseHandle failed.
func (h *Handle) Close() error {
	h.mu.Lock()
	raw := h.raw
	h.raw = 0
	h.mu.Unlock()
	if raw == 0 {
		return nil
	}
	return wrapSyscallError("CloseHandle", windows.CloseHandle(raw))
}

// securityAttributes returns nil when the defaults suffice.
func securityAttributes(inheritable bool, sd *windows.SECURITY_DESCRIPTOR) *windows.SecurityAttributes {
	if !inheritable && sd == nil {
		return nil
	}
	sa := &windows.SecurityAttributes{SecurityDescriptor: sd}
	sa.Length = uint32(unsafe.Sizeof(*sa))
	if inheritable {
		sa.InheritHandle = 1
	}
	return sa
}

// objectName converts a kernel object name. Anonymous objects use a nil name.
func objectName(name string) (*uint16, error) {
	if name == "" {
		return nil, nil
	}
	return windows.UTF16PtrFromString(name)
}
