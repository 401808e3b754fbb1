package npipe

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validateCases = []struct {
	name string
	cfg  PipeConfig
	err  error
}{
	{"Valid", NewPipeConfig(`\\.\pipe\valid`, 4096, 1, "", false, true), nil},
	{"Unlimited", NewPipeConfig(`\\.\pipe\valid`, 4096, UnlimitedInstances, "", false, true), nil},
	{"EmptyName", NewPipeConfig("", 4096, 1, "", false, true), ErrEmptyName},
	{"ZeroBufferSize", NewPipeConfig(`\\.\pipe\valid`, 0, 1, "", false, true), ErrZeroBufferSize},
	{"ZeroMaxInstances", NewPipeConfig(`\\.\pipe\valid`, 4096, 0, "", false, true), ErrInvalidMaxInstances},
	{"TooManyInstances", NewPipeConfig(`\\.\pipe\valid`, 4096, 256, "", false, true), ErrInvalidMaxInstances},
}

func TestPipeConfigValidate(t *testing.T) {
	for _, c := range validateCases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, c.err)
			assert.True(t, errdefs.IsInvalidArgument(err))
		})
	}
}

func TestNewPipeConfigModes(t *testing.T) {
	local := NewPipeConfig(`\\.\pipe\modes`, 512, 2, "", true, true)
	assert.Equal(t, AccessDuplex, local.OpenMode)
	assert.Equal(t, TypeMessage|ReadModeMessage|Wait|RejectRemoteClients, local.PipeMode)
	assert.True(t, local.IsMessageMode())
	assert.True(t, local.IsLocalOnly())
	assert.False(t, local.IsOverlapped())
	assert.True(t, local.Inheritable)

	remote := NewPipeConfig(`\\.\pipe\modes`, 512, 2, "", false, false)
	assert.False(t, remote.IsLocalOnly())
	assert.Equal(t, TypeMessage|ReadModeMessage|Wait|AcceptRemoteClients, remote.PipeMode)
}

func TestWithOverlappedCopies(t *testing.T) {
	cfg := NewPipeConfig(`\\.\pipe\copy`, 512, 1, "", false, true)
	ov := cfg.withOverlapped()
	assert.True(t, ov.IsOverlapped())
	assert.False(t, cfg.IsOverlapped())
	assert.Equal(t, AccessDuplex|Overlapped, ov.OpenMode)
}
