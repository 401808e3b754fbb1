package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/containerd/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/database64128/npipe-go/internal/config"
	"github.com/database64128/npipe-go/internal/echo"
)

const (
	flagConfigFile  = "config"
	flagPipe        = "pipe"
	flagBufferSize  = "buffer-size"
	flagMaxInstance = "max-instances"
	flagInstances   = "instances"
	flagSDDL        = "sddl"
	flagRemote      = "allow-remote"
	flagMetricsAddr = "metrics-addr"
)

type serveOptions struct {
	root       *rootOptions
	configFile string

	pipe         string
	bufferSize   uint32
	maxInstances uint32
	instances    int
	sddl         string
	allowRemote  bool
	metricsAddr  string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := serveOptions{root: root}

	cmd := &cobra.Command{
		Use:   "serve [OPTIONS]",
		Short: "Serve the echo pipe until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), &opts, cmd.Flags())
		},
	}

	def := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, flagConfigFile, "c", "", "TOML configuration file")
	flags.StringVar(&opts.pipe, flagPipe, def.Pipe.Name, "Pipe path")
	flags.Uint32Var(&opts.bufferSize, flagBufferSize, def.Pipe.BufferSize, "Pipe input and output buffer size in bytes")
	flags.Uint32Var(&opts.maxInstances, flagMaxInstance, def.Pipe.MaxInstances, "Maximum pipe instances (255 for unlimited)")
	flags.IntVar(&opts.instances, flagInstances, 0, "Pipe instances to serve (0 derives it from --max-instances)")
	flags.StringVar(&opts.sddl, flagSDDL, "", "SDDL security descriptor for the pipe")
	flags.BoolVar(&opts.allowRemote, flagRemote, false, "Accept clients from remote machines")
	flags.StringVar(&opts.metricsAddr, flagMetricsAddr, def.Metrics.Address, "Prometheus listen address (empty disables)")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (opts *serveOptions) apply(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed(flagPipe) {
		cfg.Pipe.Name = opts.pipe
	}
	if flags.Changed(flagBufferSize) {
		cfg.Pipe.BufferSize = opts.bufferSize
	}
	if flags.Changed(flagMaxInstance) {
		cfg.Pipe.MaxInstances = opts.maxInstances
	}
	if flags.Changed(flagInstances) {
		cfg.Service.Instances = opts.instances
	}
	if flags.Changed(flagSDDL) {
		cfg.Pipe.SecurityDescriptor = opts.sddl
	}
	if flags.Changed(flagRemote) {
		cfg.Pipe.LocalOnly = !opts.allowRemote
	}
	if flags.Changed(flagMetricsAddr) {
		cfg.Metrics.Address = opts.metricsAddr
	}
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = opts.root.logLevel
	}
	if f := flags.Lookup("log-format"); f != nil && f.Changed {
		cfg.Log.Format = opts.root.logFormat
	}
}

func runServe(ctx context.Context, opts *serveOptions, flags *pflag.FlagSet) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	opts.apply(cfg, flags)
	if err = cfg.Validate(); err != nil {
		return err
	}
	if err = setupLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := echo.NewMetrics(reg)

	svc, err := echo.Listen(cfg.PipeConfig(), cfg.Instances(), metrics)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Serve(ctx)
	})

	if cfg.Metrics.Address != "" {
		srv := echo.NewMetricsServer(cfg.Metrics.Address, reg)
		g.Go(func() error {
			log.G(ctx).WithField("address", srv.Addr).Info("Serving metrics")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
