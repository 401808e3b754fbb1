package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/cenkalti/backoff/v4"
	"github.com/containerd/log"
	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"github.com/database64128/npipe-go"
)

var errProbeMismatch = errors.New("probe reply does not match")

func runSend(ctx context.Context, opts *sendOptions, args []string, out io.Writer) error {
	conn, err := dialPipe(ctx, opts.pipe, opts.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if opts.probe {
		probe := uuid.NewString()
		reply, err := roundTrip(conn, probe, opts)
		if err != nil {
			return err
		}
		if reply != probe {
			return fmt.Errorf("%w: sent %q, got %q", errProbeMismatch, probe, reply)
		}
		fmt.Fprintln(out, "ok")
		return nil
	}

	for _, msg := range args {
		reply, err := roundTrip(conn, msg, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	}
	return nil
}

// dialPipe opens the pipe, retrying while the server has not created it yet.
// go-winio waits out ERROR_PIPE_BUSY by itself until ctx is done, so the
// whole dial is bounded by timeout.
func dialPipe(ctx context.Context, name string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxElapsedTime = timeout

	var conn net.Conn
	err := backoff.RetryNotify(func() error {
		c, err := winio.DialPipeContext(ctx, name)
		switch {
		case err == nil:
			conn = c
			return nil
		case errors.Is(err, windows.ERROR_FILE_NOT_FOUND):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(eb, ctx), func(err error, next time.Duration) {
		log.G(ctx).WithError(err).WithField("retryIn", next).Debug("Pipe not ready")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return conn, nil
}

// roundTrip writes msg as one message and reads back a reply of the same length.
func roundTrip(conn net.Conn, msg string, opts *sendOptions) (string, error) {
	payload := []byte(msg)
	if opts.wide {
		var err error
		if payload, err = npipe.EncodeWide(msg); err != nil {
			return "", err
		}
	}
	if len(payload) == 0 {
		return "", nil
	}

	if err := conn.SetDeadline(time.Now().Add(opts.timeout)); err != nil {
		return "", err
	}
	if _, err := conn.Write(payload); err != nil {
		return "", err
	}
	reply := make([]byte, len(payload))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return "", err
	}
	if !bytes.Equal(reply, payload) {
		log.L.WithField("sent", len(payload)).Warn("Reply differs from the message sent")
	}
	if opts.wide {
		return npipe.DecodeWide(reply)
	}
	return string(reply), nil
}
