// Package kernel32 declares the kernel32.dll entry points that
// golang.org/x/sys/windows does not wrap.
package kernel32

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Do the interface allocations only once for common
// Errno values.
const (
	errnoERROR_IO_PENDING = 997
	errnoERROR_MORE_DATA  = 234
)

var (
	errERROR_IO_PENDING error = syscall.Errno(errnoERROR_IO_PENDING)
	errERROR_MORE_DATA  error = syscall.Errno(errnoERROR_MORE_DATA)
	errERROR_EINVAL     error = syscall.EINVAL

	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procPeekNamedPipe    = modkernel32.NewProc("PeekNamedPipe")
	procOpenFileMappingW = modkernel32.NewProc("OpenFileMappingW")
)

// errnoErr returns common boxed Errno values, to prevent
// allocations at runtime.
func errnoErr(e syscall.Errno) error {
	switch e {
	case 0:
		return errERROR_EINVAL
	case errnoERROR_IO_PENDING:
		return errERROR_IO_PENDING
	case errnoERROR_MORE_DATA:
		return errERROR_MORE_DATA
	}
	return e
}

// PeekNamedPipe copies data from a pipe into buf without removing it,
// and reports how much data is available.
// buf may be empty to only query the counts.
func PeekNamedPipe(pipe windows.Handle, buf []byte, bytesRead *uint32, totalBytesAvail *uint32, bytesLeftThisMessage *uint32) (err error) {
	var p *byte
	if len(buf) > 0 {
		p = &buf[0]
	}
	r1, _, e1 := syscall.SyscallN(procPeekNamedPipe.Addr(), uintptr(pipe), uintptr(unsafe.Pointer(p)), uintptr(len(buf)), uintptr(unsafe.Pointer(bytesRead)), uintptr(unsafe.Pointer(totalBytesAvail)), uintptr(unsafe.Pointer(bytesLeftThisMessage)))
	if r1 == 0 {
		err = errnoErr(e1)
	}
	return
}

// OpenFileMapping opens an existing named file mapping object.
func OpenFileMapping(desiredAccess uint32, inheritHandle bool, name *uint16) (handle windows.Handle, err error) {
	var inherit uintptr
	if inheritHandle {
		inherit = 1
	}
	r0, _, e1 := syscall.SyscallN(procOpenFileMappingW.Addr(), uintptr(desiredAccess), inherit, uintptr(unsafe.Pointer(name)))
	handle = windows.Handle(r0)
	if handle == 0 {
		err = errnoErr(e1)
	}
	return
}
