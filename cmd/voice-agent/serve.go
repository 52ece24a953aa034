package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/voice-agent/app"
	"github.com/upb/voice-agent/config"
	"github.com/upb/voice-agent/routes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the metrics listener when enabled)",
		Long: `Start the voice agent HTTP API.

Configuration is validated first; when a required variable is missing the
command lists it and exits 1 without opening any port. SIGINT and SIGTERM
trigger a graceful shutdown bounded by SERVER_SHUTDOWN_TIMEOUT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr(), o)
			if err != nil {
				return err
			}

			logger, err := initLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
			if err != nil {
				return &ConfigError{Err: fmt.Errorf("failed to initialize logger: %w", err)}
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&o.host, "host", "", "Address to bind (overrides SERVER_HOST)")
	cmd.Flags().IntVar(&o.port, "port", 0, "Port to listen on (overrides PORT)")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	return cmd
}

// run wires the dependencies and serves until ctx is cancelled
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting voice agent",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.Bool("production", cfg.IsProduction()))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	servers := []*listener{{
		name: "api",
		server: &http.Server{
			Addr:              cfg.Server.Address(),
			Handler:           routes.SetupRoutes(deps),
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}}

	if cfg.Observability.MetricsEnabled {
		servers = append(servers, &listener{
			name: "metrics",
			server: &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
				Handler:           routes.SetupMetricsRoutes(),
				ReadHeaderTimeout: 10 * time.Second,
			},
		})
	}

	for _, l := range servers {
		ln, err := net.Listen("tcp", l.server.Addr)
		if err != nil {
			closeListeners(servers)
			return fmt.Errorf("failed to listen on %s: %w", l.server.Addr, err)
		}
		l.ln = ln
	}

	return serveAll(ctx, cfg.Server.ShutdownTimeout, logger, servers...)
}

// listener pairs a server with its bound socket
type listener struct {
	name   string
	server *http.Server
	ln     net.Listener
}

func closeListeners(servers []*listener) {
	for _, l := range servers {
		if l.ln != nil {
			_ = l.ln.Close()
		}
	}
}

// serveAll runs every server until ctx is cancelled or one of them fails,
// then shuts all of them down within shutdownTimeout.
func serveAll(ctx context.Context, shutdownTimeout time.Duration, logger *zap.Logger, servers ...*listener) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range servers {
		l := l
		g.Go(func() error {
			logger.Info("server listening",
				zap.String("server", l.name),
				zap.String("address", l.ln.Addr().String()))
			if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server failed: %w", l.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, l := range servers {
			if err := l.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s server shutdown: %w", l.name, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("servers stopped")
	return nil
}
