//go:build !windows

package echo

import (
	"context"

	"github.com/database64128/npipe-go"
)

// Service serves a fixed set of overlapped pipe instances.
// It is only available on Windows.
type Service struct{}

func Listen(cfg npipe.PipeConfig, instances int, metrics *Metrics) (*Service, error) {
	return nil, npipe.ErrPlatformUnsupported
}

func (s *Service) Name() string {
	return ""
}

func (s *Service) Serve(ctx context.Context) error {
	return npipe.ErrPlatformUnsupported
}

func (s *Service) Close() error {
	return nil
}
