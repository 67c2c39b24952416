package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/bootstrap"
	"github.com/systmms/dsenc/internal/config"
	"github.com/systmms/dsenc/internal/metrics"
	"github.com/systmms/dsenc/internal/unit"
)

func NewServeCommand(opts *Options) *cobra.Command {
	var metricsAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the configured units loaded and export their metrics",
		Long: `Run the configured encryptors and digesters as a long lived process.

Password files are watched and rotations are logged. SIGHUP reloads the
configuration file; a configuration that fails to build is rejected and
the running units stay in place. When 'metrics.enabled' is set, operation
counters are served for Prometheus.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := opts.loadSystem()
			if err != nil {
				return err
			}
			defer sys.Close()

			logger := opts.logger()
			def := opts.Config.Definition
			mc := def.Metrics.WithDefaults()
			if cmd.Flags().Changed("metrics-address") {
				mc.Enabled = true
				mc.Address = metricsAddress
			}

			var events *metrics.Events
			if mc.Enabled {
				reg := prometheus.NewRegistry()
				reg.MustRegister(metrics.NewCollector(mc.Namespace,
					metrics.RegistrySource(sys.Encryptors()),
					metrics.RegistrySource(sys.Digesters()),
				))
				events = metrics.NewEvents(reg, mc.Namespace)

				srv := metrics.NewServer(metrics.ServerConfig{
					Address:      mc.Address,
					Path:         mc.Path,
					ReadTimeout:  metrics.DefaultServerConfig().ReadTimeout,
					WriteTimeout: metrics.DefaultServerConfig().WriteTimeout,
				}, reg, logger)
				if err := srv.Start(); err != nil {
					return err
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(ctx)
				}()
				logger.Info("Metrics available at http://%s%s", srv.Addr(), mc.Path)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			reload := make(chan struct{}, 1)
			go forwardSignals(ctx, hup, reload)

			logger.Info("Serving %d encryptor(s) and %d digester(s)", sys.Encryptors().Len(), sys.Digesters().Len())
			runServer(ctx, opts, sys, events, reload)
			logger.Info("Shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "Serve metrics on this address, overriding the configuration")

	return cmd
}

// forwardSignals turns each signal into a pending reload request until ctx
// ends. Requests arriving while one is pending are merged.
func forwardSignals(ctx context.Context, signals <-chan os.Signal, reload chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			select {
			case reload <- struct{}{}:
			default:
			}
		}
	}
}

// runServer logs password rotations and applies a fresh configuration on
// every reload signal until ctx ends.
func runServer(ctx context.Context, opts *Options, sys *bootstrap.System, events *metrics.Events, reload <-chan struct{}) {
	logger := opts.logger()

	sys.Subscribe(func(c unit.Change) {
		logger.Info("Password of '%s' %s", c.Alias, c.Event.Kind)
		if events != nil {
			events.Rotations.WithLabelValues(c.Alias, c.Event.Kind.String()).Inc()
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-reload:
			cfg := &config.Config{Path: opts.Config.Path, Logger: logger}
			err := cfg.Load()
			if err == nil {
				err = sys.Apply(cfg.Definition)
			}
			if err != nil {
				logger.Error("Reload of %s rejected: %v", cfg.Path, err)
				if events != nil {
					events.ReloadFailures.Inc()
				}
				continue
			}
			logger.Info("Reloaded %s", cfg.Path)
			if events != nil {
				events.Reloads.Inc()
			}
		}
	}
}
