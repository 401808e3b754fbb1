//go:build !windows

package main

import (
	"context"
	"io"

	"github.com/database64128/npipe-go"
)

func runSend(ctx context.Context, opts *sendOptions, args []string, out io.Writer) error {
	return npipe.ErrPlatformUnsupported
}
