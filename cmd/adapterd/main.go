// Command adapterd hosts the adapter binding layer as a standalone daemon:
// it loads configuration, registers the configured adapters, runs the
// health monitor, and exposes the layer over a small ops HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshworks/adapterkit/adapters/httpcall"
	"github.com/meshworks/adapterkit/binding"
	"github.com/meshworks/adapterkit/core"
	"github.com/meshworks/adapterkit/health"
	"github.com/meshworks/adapterkit/registry"
	"github.com/meshworks/adapterkit/resilience"
	"github.com/meshworks/adapterkit/transform"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile  string
		adapterFile string
		port        int
		logLevel    string
		redisURL    string
	)

	cmd := &cobra.Command{
		Use:     "adapterd",
		Short:   "Adapter binding and resilience daemon",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []core.Option{}
			if configFile != "" {
				opts = append(opts, core.WithConfigFile(configFile))
			}
			if port > 0 {
				opts = append(opts, core.WithPort(port))
			}
			if logLevel != "" {
				opts = append(opts, core.WithLogLevel(logLevel))
			}
			if redisURL != "" {
				opts = append(opts, core.WithRedisURL(redisURL))
			}

			cfg, err := core.NewConfig(opts...)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, adapterFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&adapterFile, "adapter-config", "", "path to per-adapter YAML config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "ops HTTP port (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL for the alert sink")

	return cmd
}

func run(ctx context.Context, cfg *core.Config, adapterFile string) error {
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)

	var configs core.ConfigSource
	if adapterFile != "" {
		src, err := core.NewYAMLConfigSource(adapterFile)
		if err != nil {
			return err
		}
		configs = src
	} else {
		configs = core.NewStaticConfigSource(cfg.Adapters)
	}

	reg := registry.New(configs, logger)

	metrics, err := resilience.NewOTelMetricsCollector()
	if err != nil {
		return fmt.Errorf("creating metrics collector: %w", err)
	}

	breakers := resilience.NewService(cfg.Resilience.CircuitBreaker,
		resilience.WithLogger(logger),
		resilience.WithMetrics(metrics),
	)

	monitorOpts := []health.MonitorOption{
		health.WithInterval(cfg.Health.Interval),
		health.WithCheckTimeout(cfg.Health.CheckTimeout),
	}
	if cfg.Redis.URL != "" {
		sink, err := health.NewRedisAlertSink(cfg.Redis.URL, cfg.Redis.AlertChannel, logger)
		if err != nil {
			return fmt.Errorf("creating Redis alert sink: %w", err)
		}
		defer func() { _ = sink.Close() }()
		monitorOpts = append(monitorOpts, health.WithAlertSink(sink))
	}
	monitor := health.NewMonitor(reg, logger, monitorOpts...)

	manager := binding.NewManager(reg, breakers, transform.New(nil), logger,
		binding.WithTimeouts(cfg.Resilience.Timeout.DefaultTimeout, cfg.Resilience.Timeout.MaxTimeout),
	)

	// Compile-time adapter registration: every adapter this build ships is
	// listed here and configured through the config source.
	for _, adapter := range builtinAdapters() {
		if err := reg.Register(ctx, adapter); err != nil {
			return err
		}
	}

	monitor.Start(ctx)
	defer monitor.Stop()

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: newRouter(&server{
			registry: reg,
			monitor:  monitor,
			breakers: breakers,
			manager:  manager,
			logger:   logger,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Ops HTTP server listening", map[string]interface{}{
			"operation": "server_start",
			"addr":      srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", map[string]interface{}{
			"operation": "shutdown",
			"signal":    sig.String(),
		})
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", map[string]interface{}{
			"operation": "shutdown",
			"error":     err.Error(),
		})
	}

	monitor.Stop()
	reg.Shutdown(shutdownCtx)
	return nil
}

// builtinAdapters lists the adapters compiled into this daemon.
func builtinAdapters() []core.Adapter {
	return []core.Adapter{
		httpcall.New("httpcall"),
	}
}
