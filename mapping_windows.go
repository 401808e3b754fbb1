package npipe

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/containerd/errdefs"
	"golang.org/x/sys/windows"

	"github.com/database64128/npipe-go/kernel32"
)

var errZeroMappingSize = fmt.Errorf("file mapping size is zero: %w", errdefs.ErrInvalidArgument)

// FileMapping is a named shared memory section backed by the paging file,
// with a read/write view mapped into this process.
type FileMapping struct {
	handle *Handle
	name   string
	size   uint32

	mu   sync.Mutex
	view uintptr
}

// NewFileMapping creates (create == true) or opens a named file mapping of
// size bytes and maps a view of it.
func NewFileMapping(name string, size uint32, create, inheritable bool) (*FileMapping, error) {
	if size == 0 {
		return nil, errZeroMappingSize
	}
	namep, err := objectName(name)
	if err != nil {
		return nil, err
	}

	var h windows.Handle
	if create {
		h, err = windows.CreateFileMapping(windows.InvalidHandle, securityAttributes(inheritable, nil), windows.PAGE_READWRITE, 0, size, namep)
		if h == 0 || (err != nil && err != windows.ERROR_ALREADY_EXISTS) {
			return nil, wrapSyscallError("CreateFileMapping", err)
		}
	} else {
		if namep == nil {
			return nil, ErrEmptyName
		}
		h, err = kernel32.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, inheritable, namep)
		if err != nil {
			return nil, wrapSyscallError("OpenFileMapping", err)
		}
	}

	m := &FileMapping{
		handle: NewHandle(h, inheritable),
		name:   name,
		size:   size,
	}
	if err = m.mapView(); err != nil {
		m.handle.Close()
		return nil, err
	}
	return m, nil
}

func (m *FileMapping) mapView() error {
	addr, err := windows.MapViewOfFile(m.handle.Raw(), windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(m.size))
	if err != nil {
		return wrapSyscallError("MapViewOfFile", err)
	}
	m.view = addr
	return nil
}

// Name returns the mapping name.
func (m *FileMapping) Name() string {
	return m.name
}

// Size returns the size of the mapped view in bytes.
func (m *FileMapping) Size() uint32 {
	return m.size
}

// Handle returns the owned section handle.
func (m *FileMapping) Handle() *Handle {
	return m.handle
}

// Bytes returns the mapped view. The slice is invalid after Close.
func (m *FileMapping) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view == 0 {
		return nil
	}
	// MapViewOfFile returns the view address as a uintptr. The view is not Go
	// memory and stays put until UnmapViewOfFile, so vet's unsafeptr warning
	// on this conversion is expected.
	return unsafe.Slice((*byte)(unsafe.Pointer(m.view)), m.size)
}

// Duplicate duplicates the section handle and maps a second view of it.
func (m *FileMapping) Duplicate() (*FileMapping, error) {
	h, err := m.handle.Duplicate()
	if err != nil {
		return nil, err
	}
	dup := &FileMapping{handle: h, name: m.name, size: m.size}
	if err = dup.mapView(); err != nil {
		h.Close()
		return nil, err
	}
	return dup, nil
}

// Close unmaps the view and then closes the handle. It is safe to call more than once.
func (m *FileMapping) Close() error {
	m.mu.Lock()
	view := m.view
	m.view = 0
	m.mu.Unlock()

	var err error
	if view != 0 {
		err = wrapSyscallError("UnmapViewOfFile", windows.UnmapViewOfFile(view))
	}
	if cerr := m.handle.Close(); err == nil {
		err = cerr
	}
	return err
}
