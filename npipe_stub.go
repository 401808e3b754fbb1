//go:build !windows

package npipe

// Server is a named pipe instance that performs blocking I/O.
// It is only available on Windows.
type Server struct{}

// OverlappedServer is a named pipe instance that performs overlapped I/O.
// It is only available on Windows.
type OverlappedServer struct{}

// Operation is one overlapped connect, read or write on a pipe instance.
// It is only available on Windows.
type Operation struct{}

// Event is a named or anonymous Win32 event object.
// It is only available on Windows.
type Event struct{}

// Mutex is a named or anonymous Win32 mutex.
// It is only available on Windows.
type Mutex struct{}

// FileMapping is a named shared memory section.
// It is only available on Windows.
type FileMapping struct{}

func NewServer(cfg PipeConfig) (*Server, error) {
	return nil, ErrPlatformUnsupported
}

func NewOverlappedServer(cfg PipeConfig) (*OverlappedServer, error) {
	return nil, ErrPlatformUnsupported
}

func NewEvent(name string, manualReset, initialSignaled, inheritable bool) (*Event, error) {
	return nil, ErrPlatformUnsupported
}

func OpenEvent(name string, inheritable bool) (*Event, error) {
	return nil, ErrPlatformUnsupported
}

func NewMutex(name string, acquire, inheritable bool) (*Mutex, error) {
	return nil, ErrPlatformUnsupported
}

func OpenMutex(name string, inheritable bool) (*Mutex, error) {
	return nil, ErrPlatformUnsupported
}

func NewFileMapping(name string, size uint32, create, inheritable bool) (*FileMapping, error) {
	return nil, ErrPlatformUnsupported
}
