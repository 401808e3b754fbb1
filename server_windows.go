package npipe

import (
	"io"

	"golang.org/x/sys/windows"
)

// Server is a named pipe instance that performs blocking I/O.
//
// Connect, Read and Write block the calling goroutine's OS thread until the
// kernel call returns. Closing the server from another goroutine does not
// interrupt a blocked call: use [OverlappedServer] when I/O must be cancelable.
type Server struct {
	*pipe
}

// NewServer validates cfg and creates a pipe instance.
// FILE_FLAG_OVERLAPPED is cleared from the open mode if set.
func NewServer(cfg PipeConfig) (*Server, error) {
	cfg.OpenMode &^= Overlapped
	p, err := newPipe(cfg)
	if err != nil {
		return nil, err
	}
	return &Server{pipe: p}, nil
}

// Connect waits for a client to open the pipe.
// A client that opened the pipe before Connect was called counts as connected.
// A client that opened and closed it again fails with ERROR_NO_DATA and leaves
// the server connected: Disconnect it before connecting again.
func (s *Server) Connect() error {
	s.mu.Lock()
	raw, err := s.rawForLocked("connect", State.canConnect)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	prev := s.state
	s.state = StateConnecting
	s.mu.Unlock()

	err = windows.ConnectNamedPipe(raw, nil)
	switch err {
	case nil, windows.ERROR_PIPE_CONNECTED:
		s.markConnected()
		return nil
	case windows.ERROR_NO_DATA:
		s.markConnected()
	default:
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = prev
		}
		s.mu.Unlock()
	}
	return wrapSyscallError("ConnectNamedPipe", err)
}

// Read reads one message, or up to the buffer size in byte mode.
//
// Read issues a single ReadFile call into a buffer of the configured size.
// If the message is larger, Read returns the part that fit together with
// an error wrapping ERROR_MORE_DATA; the rest is returned by the next Read.
func (s *Server) Read() ([]byte, error) {
	raw, err := s.rawFor("read", isConnected)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, s.config.BufferSize)
	var n uint32
	if err = windows.ReadFile(raw, buf, &n, nil); err != nil {
		return buf[:n], wrapSyscallError("ReadFile", err)
	}
	return buf[:n], nil
}

// Write writes b as one message. A write that the kernel accepts only in
// part returns io.ErrShortWrite.
func (s *Server) Write(b []byte) (int, error) {
	raw, err := s.rawFor("write", isConnected)
	if err != nil {
		return 0, err
	}
	var n uint32
	if err = windows.WriteFile(raw, b, &n, nil); err != nil {
		return int(n), wrapSyscallError("WriteFile", err)
	}
	if int(n) != len(b) {
		return int(n), io.ErrShortWrite
	}
	return int(n), nil
}

// WriteString writes str as one message encoded as UTF-16LE.
func (s *Server) WriteString(str string) (int, error) {
	b, err := EncodeWide(str)
	if err != nil {
		return 0, err
	}
	return s.Write(b)
}

func isConnected(s State) bool {
	return s == StateConnected
}
