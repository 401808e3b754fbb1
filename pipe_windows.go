package npipe

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/containerd/log"
	"golang.org/x/sys/windows"

	"github.com/database64128/npipe-go/kernel32"
)

// pipe is the state shared by both server flavors: one pipe instance,
// the config it was created from, and the connection state.
type pipe struct {
	config PipeConfig
	handle *Handle

	mu    sync.Mutex
	state State
}

func newPipe(cfg PipeConfig) (*pipe, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := createNamedPipe(cfg)
	if err != nil {
		return nil, err
	}
	log.L.WithFields(log.Fields{
		"pipe":       cfg.Name,
		"overlapped": cfg.IsOverlapped(),
		"bufferSize": cfg.BufferSize,
	}).Debug("Created named pipe instance")
	return &pipe{config: cfg, handle: h, state: StateCreated}, nil
}

func createNamedPipe(cfg PipeConfig) (*Handle, error) {
	var sd *windows.SECURITY_DESCRIPTOR
	if cfg.SecurityDescriptor != "" {
		var err error
		sd, err = windows.SecurityDescriptorFromString(cfg.SecurityDescriptor)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSecurityDescriptor, wrapSyscallError("ConvertStringSecurityDescriptorToSecurityDescriptor", err))
		}
	}
	sa := securityAttributes(cfg.Inheritable, sd)

	name, err := windows.UTF16PtrFromString(cfg.Name)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateNamedPipe(
		name,
		uint32(cfg.OpenMode),
		uint32(cfg.PipeMode),
		cfg.MaxInstances,
		cfg.BufferSize,
		cfg.BufferSize,
		durationToMillis(cfg.DefaultTimeout),
		sa,
	)
	runtime.KeepAlive(sa)
	if err != nil {
		return nil, wrapSyscallError("CreateNamedPipe", err)
	}
	return NewHandle(h, cfg.Inheritable), nil
}

// Name returns the pipe path.
func (p *pipe) Name() string {
	return p.config.Name
}

// Config returns the configuration the instance was created with.
func (p *pipe) Config() PipeConfig {
	return p.config
}

// Handle returns the owned pipe handle. The server keeps ownership.
func (p *pipe) Handle() *Handle {
	return p.handle
}

// State returns the current lifecycle state.
func (p *pipe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connected reports whether a client is connected.
func (p *pipe) Connected() bool {
	return p.State() == StateConnected
}

// rawFor checks that op may run in the current state and returns the pipe handle.
// Callers that need to update state atomically with the check hold p.mu themselves
// and call rawForLocked.
func (p *pipe) rawFor(op string, allowed func(State) bool) (windows.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rawForLocked(op, allowed)
}

func (p *pipe) rawForLocked(op string, allowed func(State) bool) (windows.Handle, error) {
	raw := p.handle.Raw()
	if raw == 0 {
		return 0, ErrEmptyHandle
	}
	if !allowed(p.state) {
		return 0, stateError(op, p.state)
	}
	return raw, nil
}

// markConnected moves an instance that is still waiting for a client to StateConnected.
func (p *pipe) markConnected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateClosed {
		p.state = StateConnected
	}
}

// Disconnect drops the connected client so the instance can accept another one.
// It does nothing unless a client is connected.
func (p *pipe) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw := p.handle.Raw()
	if raw == 0 {
		return ErrEmptyHandle
	}
	if p.state != StateConnected {
		return nil
	}
	p.state = StateDisconnected
	if err := windows.DisconnectNamedPipe(raw); err != nil {
		return wrapSyscallError("DisconnectNamedPipe", err)
	}
	log.L.WithField("pipe", p.config.Name).Debug("Disconnected client")
	return nil
}

// UnreadBytes returns the number of bytes waiting in the pipe without consuming them.
func (p *pipe) UnreadBytes() (uint32, error) {
	raw := p.handle.Raw()
	if raw == 0 {
		return 0, ErrEmptyHandle
	}
	var avail uint32
	if err := kernel32.PeekNamedPipe(raw, nil, nil, &avail, nil); err != nil {
		return 0, wrapSyscallError("PeekNamedPipe", err)
	}
	return avail, nil
}

// Close closes the pipe instance. It is safe to call more than once.
func (p *pipe) Close() error {
	if !p.markClosed() {
		return nil
	}
	return p.closeHandle()
}

// markClosed moves the pipe to StateClosed and reports whether this call did it.
func (p *pipe) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed {
		return false
	}
	p.state = StateClosed
	return true
}

func (p *pipe) closeHandle() error {
	log.L.WithField("pipe", p.config.Name).Debug("Closing named pipe instance")
	return p.handle.Close()
}
