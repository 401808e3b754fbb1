package npipe

import "time"

// OpenMode holds the dwOpenMode flags passed to CreateNamedPipe.
type OpenMode uint32

const (
	AccessInbound     OpenMode = 0x00000001 // PIPE_ACCESS_INBOUND
	AccessOutbound    OpenMode = 0x00000002 // PIPE_ACCESS_OUTBOUND
	AccessDuplex      OpenMode = 0x00000003 // PIPE_ACCESS_DUPLEX
	FirstPipeInstance OpenMode = 0x00080000 // FILE_FLAG_FIRST_PIPE_INSTANCE
	Overlapped        OpenMode = 0x40000000 // FILE_FLAG_OVERLAPPED
	WriteThrough      OpenMode = 0x80000000 // FILE_FLAG_WRITE_THROUGH
)

// PipeMode holds the dwPipeMode flags passed to CreateNamedPipe.
type PipeMode uint32

const (
	TypeByte            PipeMode = 0x00000000 // PIPE_TYPE_BYTE
	TypeMessage         PipeMode = 0x00000004 // PIPE_TYPE_MESSAGE
	ReadModeByte        PipeMode = 0x00000000 // PIPE_READMODE_BYTE
	ReadModeMessage     PipeMode = 0x00000002 // PIPE_READMODE_MESSAGE
	Wait                PipeMode = 0x00000000 // PIPE_WAIT
	NoWait              PipeMode = 0x00000001 // PIPE_NOWAIT
	AcceptRemoteClients PipeMode = 0x00000000 // PIPE_ACCEPT_REMOTE_CLIENTS
	RejectRemoteClients PipeMode = 0x00000008 // PIPE_REJECT_REMOTE_CLIENTS
)

// UnlimitedInstances lets the OS create as many pipe instances as resources allow.
const UnlimitedInstances = 255

// PipeConfig describes a named pipe server endpoint.
//
// It is a plain value. Creating a server from it freezes the modes:
// later changes to the config do not affect existing instances.
type PipeConfig struct {
	// Name is the full pipe path, e.g. `\\.\pipe\example`.
	Name string

	// BufferSize is used for both the input and output buffer sizes.
	BufferSize uint32

	// MaxInstances is 1 through 254, or UnlimitedInstances.
	MaxInstances uint32

	// SecurityDescriptor is an optional SDDL string applied to the pipe.
	// An empty string uses the default security descriptor.
	SecurityDescriptor string

	// Inheritable controls whether child processes inherit the pipe handle.
	Inheritable bool

	OpenMode OpenMode
	PipeMode PipeMode

	// DefaultTimeout is the default client wait time reported by the pipe.
	// Zero selects the system default of 50 milliseconds.
	DefaultTimeout time.Duration
}

// NewPipeConfig returns a duplex, message-mode, blocking-wait configuration.
// If localOnly is true, connections from remote machines are rejected.
func NewPipeConfig(name string, bufferSize, maxInstances uint32, sddl string, inheritable, localOnly bool) PipeConfig {
	pipeMode := TypeMessage | ReadModeMessage | Wait
	if localOnly {
		pipeMode |= RejectRemoteClients
	} else {
		pipeMode |= AcceptRemoteClients
	}
	return PipeConfig{
		Name:               name,
		BufferSize:         bufferSize,
		MaxInstances:       maxInstances,
		SecurityDescriptor: sddl,
		Inheritable:        inheritable,
		OpenMode:           AccessDuplex,
		PipeMode:           pipeMode,
	}
}

// Validate checks the config without touching the OS.
func (c PipeConfig) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.BufferSize == 0 {
		return ErrZeroBufferSize
	}
	if c.MaxInstances == 0 || c.MaxInstances > UnlimitedInstances {
		return ErrInvalidMaxInstances
	}
	return nil
}

// IsMessageMode reports whether writes are delivered as discrete messages.
func (c PipeConfig) IsMessageMode() bool {
	return c.PipeMode&TypeMessage != 0
}

// IsLocalOnly reports whether remote clients are rejected.
func (c PipeConfig) IsLocalOnly() bool {
	return c.PipeMode&RejectRemoteClients != 0
}

// IsOverlapped reports whether the open mode requests overlapped I/O.
func (c PipeConfig) IsOverlapped() bool {
	return c.OpenMode&Overlapped != 0
}

// withOverlapped returns a copy of c with FILE_FLAG_OVERLAPPED set.
func (c PipeConfig) withOverlapped() PipeConfig {
	c.OpenMode |= Overlapped
	return c
}
