package npipe

import (
	"errors"
	"slices"

	"github.com/containerd/log"
	"golang.org/x/sys/windows"
)

// OverlappedServer is a named pipe instance that performs overlapped I/O.
//
// Connect, Read and Write submit the kernel call and return at once with an
// [Operation] to wait on. At most one operation may be in flight per
// instance: submitting another before it finishes fails with ErrBusy.
//
// Closing the server cancels the in-flight operation and waits for it to
// finish before the pipe handle is closed.
type OverlappedServer struct {
	*pipe

	inflight    *Operation
	connectFrom State
}

// NewOverlappedServer validates cfg and creates a pipe instance.
// FILE_FLAG_OVERLAPPED is always set, whatever the open mode in cfg.
func NewOverlappedServer(cfg PipeConfig) (*OverlappedServer, error) {
	p, err := newPipe(cfg.withOverlapped())
	if err != nil {
		return nil, err
	}
	return &OverlappedServer{pipe: p}, nil
}

// Connect starts waiting for a client. The server is connected once the
// returned operation succeeds.
//
// If a client opened and closed the pipe before it was accepted, the
// operation fails with ERROR_NO_DATA and the server is left connected to
// the dead client: Disconnect it before connecting again.
func (s *OverlappedServer) Connect() (*Operation, error) {
	return s.submit(OpConnect, nil)
}

// Read starts reading one whole message. The buffer starts at
// [ReadChunkSize] bytes and grows until the message fits.
func (s *OverlappedServer) Read() (*Operation, error) {
	return s.submit(OpRead, make([]byte, ReadChunkSize))
}

// Write starts writing b as one message.
// The operation writes from its own copy of b.
func (s *OverlappedServer) Write(b []byte) (*Operation, error) {
	return s.submit(OpWrite, slices.Clone(b))
}

// WriteString starts writing str as one message encoded as UTF-16LE.
func (s *OverlappedServer) WriteString(str string) (*Operation, error) {
	b, err := EncodeWide(str)
	if err != nil {
		return nil, err
	}
	return s.Write(b)
}

// Close cancels the in-flight operation, if any, then closes the pipe instance.
// The cancelled operation is finished with ERROR_OPERATION_ABORTED unless it
// completed first, and its event and buffer are released.
// It is safe to call more than once and from any goroutine.
func (s *OverlappedServer) Close() error {
	if !s.markClosed() {
		return nil
	}

	s.mu.Lock()
	op := s.inflight
	s.mu.Unlock()

	if op != nil {
		if err := op.abort(); err != nil {
			log.L.WithError(err).WithField("pipe", s.config.Name).Debug("Failed to cancel in-flight operation")
		}
	}
	return s.closeHandle()
}

func (s *OverlappedServer) submit(kind OpKind, buf []byte) (*Operation, error) {
	allowed := isConnected
	if kind == OpConnect {
		allowed = State.canConnect
	}

	s.mu.Lock()
	raw, err := s.rawForLocked(kind.String(), allowed)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inflight != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	op, err := newOperation(kind, raw, s.done)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.inflight = op
	if kind == OpConnect {
		s.connectFrom = s.state
		s.state = StateConnecting
	}
	s.mu.Unlock()

	// May complete synchronously, in which case done has already run.
	op.start(buf)
	return op, nil
}

// done runs once per operation when it leaves the pending state.
func (s *OverlappedServer) done(op *Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == op {
		s.inflight = nil
	}
	if op.kind != OpConnect || s.state != StateConnecting {
		return
	}
	if op.err != nil && !errors.Is(op.err, windows.ERROR_NO_DATA) {
		s.state = s.connectFrom
		log.L.WithError(op.err).WithField("pipe", s.config.Name).Debug("Overlapped connect failed")
		return
	}
	s.state = StateConnected
}
