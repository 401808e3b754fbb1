package echo

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/windows"

	"github.com/database64128/npipe-go"
)

// Service serves a fixed set of overlapped pipe instances.
type Service struct {
	config  npipe.PipeConfig
	servers []*npipe.OverlappedServer
	metrics *Metrics
}

// Listen creates instances pipe instances from cfg. Clients can open the
// pipe as soon as Listen returns, even before Serve is called.
func Listen(cfg npipe.PipeConfig, instances int, metrics *Metrics) (*Service, error) {
	if instances <= 0 {
		return nil, fmt.Errorf("invalid instance count %d", instances)
	}
	s := &Service{
		config:  cfg,
		servers: make([]*npipe.OverlappedServer, 0, instances),
		metrics: metrics,
	}
	for range instances {
		srv, err := npipe.NewOverlappedServer(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.servers = append(s.servers, srv)
	}
	return s, nil
}

// Name returns the pipe path.
func (s *Service) Name() string {
	return s.config.Name
}

// Serve echoes messages on every instance until ctx is canceled or an
// instance fails. It closes all instances before returning.
// Cancellation is not reported as an error.
func (s *Service) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range s.servers {
		stop := context.AfterFunc(gctx, func() {
			srv.Close()
		})
		g.Go(func() error {
			defer stop()
			defer srv.Close()
			return s.serveInstance(gctx, i, srv)
		})
	}
	log.G(ctx).WithFields(log.Fields{
		"pipe":      s.config.Name,
		"instances": len(s.servers),
	}).Info("Echo service started")

	err := g.Wait()
	log.G(ctx).WithField("pipe", s.config.Name).Info("Echo service stopped")
	return err
}

// Close closes all instances. Serve closes them itself on return.
func (s *Service) Close() error {
	var errs []error
	for _, srv := range s.servers {
		errs = append(errs, srv.Close())
	}
	return errors.Join(errs...)
}

func (s *Service) serveInstance(ctx context.Context, id int, srv *npipe.OverlappedServer) error {
	logger := log.G(ctx).WithField("instance", id)
	for {
		_, err := await(srv.Connect())
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, windows.ERROR_NO_DATA):
			logger.Debug("Client left before the connection was accepted")
		case err != nil:
			s.metrics.Errors.WithLabelValues("connect").Inc()
			return fmt.Errorf("instance %d: %w", id, err)
		default:
			s.metrics.Connections.Inc()
			s.metrics.ActiveConnections.Inc()
			logger.Debug("Client connected")

			err = s.echo(srv)
			s.metrics.ActiveConnections.Dec()
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				logger.WithError(err).Warn("Echo session failed")
			}
		}

		if err := srv.Disconnect(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.Errors.WithLabelValues("disconnect").Inc()
			return fmt.Errorf("instance %d: %w", id, err)
		}
	}
}

// echo reads messages and writes them back until the client goes away.
func (s *Service) echo(srv *npipe.OverlappedServer) error {
	for {
		op, err := await(srv.Read())
		if err != nil {
			if clientGone(err) {
				return nil
			}
			s.metrics.Errors.WithLabelValues("read").Inc()
			return err
		}
		msg := op.Bytes()
		s.metrics.received(len(msg), op.SubOperations())

		if _, err = await(srv.Write(msg)); err != nil {
			if clientGone(err) {
				return nil
			}
			s.metrics.Errors.WithLabelValues("write").Inc()
			return err
		}
		s.metrics.sent(len(msg))
	}
}

// await blocks until op finishes.
func await(op *npipe.Operation, err error) (*npipe.Operation, error) {
	if err != nil {
		return nil, err
	}
	if _, err = op.Result(true); err != nil {
		return op, err
	}
	return op, nil
}

func clientGone(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
		errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED) ||
		errors.Is(err, windows.ERROR_NO_DATA)
}
