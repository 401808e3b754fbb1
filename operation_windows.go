package npipe

import (
	"io"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// ReadChunkSize is the initial size of an overlapped read buffer,
// and the amount it grows by each time the kernel reports more data.
const ReadChunkSize = 1024

// OpKind identifies the I/O call behind an [Operation].
type OpKind uint8

const (
	OpConnect OpKind = iota
	OpRead
	OpWrite
)

func (k OpKind) String() string {
	switch k {
	case OpConnect:
		return "connect"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

func (k OpKind) syscallName() string {
	switch k {
	case OpConnect:
		return "ConnectNamedPipe"
	case OpRead:
		return "ReadFile"
	default:
		return "WriteFile"
	}
}

type opState uint8

const (
	opPending opState = iota
	opSucceeded
	opFailed
)

// Operation is one overlapped connect, read or write on a pipe instance.
//
// While pending, the kernel holds pointers into the Operation and its buffer.
// Both are pinned until the operation completes, fails or is cancelled.
// Once it is no longer pending, its event is released and Wait returns immediately.
//
// One goroutine drives an Operation with Wait, Result or Cancel. Closing
// the server from another goroutine is safe: it cancels the operation and
// finishes it before the borrowed pipe handle goes away.
type Operation struct {
	// o is handed to the kernel and must not move while the operation is pending.
	o windows.Overlapped

	kind   OpKind
	handle windows.Handle
	event  *Event
	pinner runtime.Pinner

	// mu guards everything below. It is held across kernel calls that
	// submit or harvest a sub-operation, never across a wait started by Wait.
	mu       sync.Mutex
	buf      []byte
	total    uint32
	subOps   int
	state    opState
	err      error
	aborting bool
	// waiters counts Wait calls blocked on event. The last one out closes
	// the event if the operation finished meanwhile.
	waiters int

	onDone func(*Operation)
}

func newOperation(kind OpKind, handle windows.Handle, onDone func(*Operation)) (*Operation, error) {
	event, err := NewEvent("", true, false, false)
	if err != nil {
		return nil, err
	}
	op := &Operation{
		kind:   kind,
		handle: handle,
		event:  event,
		onDone: onDone,
	}
	op.o.HEvent = event.Handle().Raw()
	return op, nil
}

// start pins the operation and issues its first sub-operation,
// unless the operation was aborted before it got there.
func (op *Operation) start(buf []byte) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != opPending {
		return
	}
	op.buf = buf
	op.pin()
	op.settle(op.issue())
}

func (op *Operation) pin() {
	op.pinner.Pin(op)
	if len(op.buf) > 0 {
		op.pinner.Pin(&op.buf[0])
	}
}

// issue submits one kernel call. Reads always land at the end of the
// bytes received so far.
func (op *Operation) issue() error {
	op.o = windows.Overlapped{HEvent: op.o.HEvent}
	op.subOps++

	var n uint32
	switch op.kind {
	case OpConnect:
		return windows.ConnectNamedPipe(op.handle, &op.o)
	case OpRead:
		return windows.ReadFile(op.handle, op.buf[op.total:], &n, &op.o)
	default:
		return windows.WriteFile(op.handle, op.buf, &n, &op.o)
	}
}

// settle advances the operation after a sub-operation was issued or its
// event was signaled. On return the operation is either pending or done.
//
// A read that completes with ERROR_MORE_DATA keeps what it received, grows
// the buffer by one chunk and reads the rest of the message into the new space.
func (op *Operation) settle(err error) {
	for {
		switch {
		case err == windows.ERROR_IO_PENDING:
			return
		case op.kind == OpConnect && err == windows.ERROR_PIPE_CONNECTED:
			// The client connected between CreateNamedPipe and ConnectNamedPipe.
			op.finish(nil)
			return
		case err != nil && err != windows.ERROR_MORE_DATA:
			op.finish(wrapSyscallError(op.kind.syscallName(), err))
			return
		}

		// The sub-operation completed. The count is taken from the overlapped
		// structure rather than the call's out parameter.
		var n uint32
		err = windows.GetOverlappedResult(op.handle, &op.o, &n, false)
		switch {
		case err == windows.ERROR_IO_INCOMPLETE:
			return
		case err == nil:
			op.total += n
			op.finish(nil)
			return
		case err == windows.ERROR_MORE_DATA && op.kind == OpRead:
			op.total += n
			if op.aborting {
				op.finish(wrapSyscallError("ReadFile", windows.ERROR_OPERATION_ABORTED))
				return
			}
			op.grow()
			err = op.issue()
		default:
			op.finish(wrapSyscallError("GetOverlappedResult", err))
			return
		}
	}
}

// grow extends the read buffer by one chunk. It is only called between
// sub-operations, when the kernel holds no pointer into the buffer.
func (op *Operation) grow() {
	op.pinner.Unpin()
	op.buf = append(op.buf[:op.total], make([]byte, ReadChunkSize)...)
	op.pin()
}

func (op *Operation) finish(err error) {
	switch op.kind {
	case OpRead:
		op.buf = op.buf[:op.total]
	case OpWrite:
		if err == nil && int(op.total) != len(op.buf) {
			err = io.ErrShortWrite
		}
	}
	op.err = err
	if err != nil {
		op.state = opFailed
	} else {
		op.state = opSucceeded
	}
	op.pinner.Unpin()
	if op.waiters == 0 {
		op.event.Close()
	}
	if onDone := op.onDone; onDone != nil {
		op.onDone = nil
		onDone(op)
	}
}

// Wait blocks until the operation is no longer pending or timeout elapses.
//
// A read may need several sub-operations. They are all issued within the
// same budget. Timing out returns WaitTimedOut and leaves the operation
// pending: wait again, or cancel it.
func (op *Operation) Wait(timeout time.Duration) (WaitResult, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	for op.state == opPending {
		remaining := Infinite
		if !deadline.IsZero() {
			remaining = max(time.Until(deadline), 0)
		}

		event := op.event.Handle().Raw()
		op.waiters++
		op.mu.Unlock()
		res, err := waitObject(event, remaining)
		op.mu.Lock()
		op.waiters--

		if op.state != opPending {
			if op.waiters == 0 {
				op.event.Close()
			}
			break
		}
		if err != nil {
			return res, err
		}
		if res == WaitTimedOut {
			return WaitTimedOut, nil
		}
		op.settle(nil)
	}
	return WaitSignaled, nil
}

// Result returns the number of bytes transferred.
//
// If wait is true, Result blocks until the operation finishes. Otherwise
// it polls once and returns ErrPending if the operation is still running.
// A failed operation returns its error along with the bytes transferred
// before the failure.
func (op *Operation) Result(wait bool) (uint32, error) {
	if wait {
		if _, err := op.Wait(Infinite); err != nil {
			return uint32(op.Len()), err
		}
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state == opPending {
		op.settle(nil)
	}
	switch op.state {
	case opPending:
		return op.total, ErrPending
	case opFailed:
		return op.total, op.err
	default:
		return op.total, nil
	}
}

// Cancel aborts a pending operation and waits for the kernel to release
// its buffers. The operation then fails with ERROR_OPERATION_ABORTED,
// unless it completed first.
func (op *Operation) Cancel() error {
	return op.abort()
}

// Close cancels the operation if it is still pending.
// It is safe to call more than once.
func (op *Operation) Close() error {
	return op.abort()
}

// abort cancels the operation and drives it to its final state without
// issuing further sub-operations. It returns once the kernel no longer
// references the operation.
func (op *Operation) abort() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != opPending {
		return nil
	}
	if op.subOps == 0 {
		// Never submitted.
		op.finish(wrapSyscallError(op.kind.syscallName(), windows.ERROR_OPERATION_ABORTED))
		return nil
	}

	err := windows.CancelIoEx(op.handle, &op.o)
	switch err {
	case nil, windows.ERROR_NOT_FOUND, windows.ERROR_INVALID_HANDLE:
		// Cancelled, already completed, or aborted by closing the pipe.
	default:
		return wrapSyscallError("CancelIoEx", err)
	}

	op.aborting = true
	for op.state == opPending {
		if _, err := waitObject(op.event.Handle().Raw(), Infinite); err != nil {
			op.finish(err)
			return err
		}
		op.settle(nil)
	}
	return nil
}

// Kind returns the kind of I/O call.
func (op *Operation) Kind() OpKind {
	return op.kind
}

// Pending reports whether the kernel has not yet reported a final outcome.
func (op *Operation) Pending() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state == opPending
}

// Err returns the terminal error, or nil if the operation succeeded or is pending.
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// Len returns the number of bytes transferred so far.
func (op *Operation) Len() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return int(op.total)
}

// Chars returns the number of UTF-16 elements transferred so far.
func (op *Operation) Chars() int {
	return WideLen(int(op.total))
}

// SubOperations returns how many kernel calls the operation has issued.
// A read grows its buffer once per extra call.
func (op *Operation) SubOperations() int {
	return op.subOps
}

// Bytes returns the data received by a finished read.
// It returns nil for pending reads and for connects and writes.
func (op *Operation) Bytes() []byte {
	if op.kind != OpRead || op.state == opPending {
		return nil
	}
	return op.buf
}

// String decodes the data received by a finished read as UTF-16LE.
func (op *Operation) String() (string, error) {
	return DecodeWide(op.Bytes())
}
