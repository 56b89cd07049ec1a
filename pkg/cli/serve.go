package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/api"
	"github.com/platinummonkey/somcheck/pkg/observability"
)

// dbStatsInterval is how often pool statistics are copied into the gauges.
const dbStatsInterval = 15 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the issue API and run control over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addRunFlags(cmd)
	cmd.Flags().String("addr", "", "listen address host:port (SOMCHECK_HOST, SOMCHECK_PORT)")
	cmd.Flags().String("model-root", "", "directory model files of POST /api/v1/checks are resolved in")
	cmd.Flags().Bool("read-only", false, "serve issue queries only")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := newEnvironment(ctx, cmd)
	if err != nil {
		return err
	}
	cfg := env.cfg
	logger := env.logger

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Register("store", func(context.Context) error { return env.Close() })

	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		env.Close()
		return err
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	opts := []api.Option{
		api.WithLogger(logger.Entry()),
		api.WithHealth(observability.NewHealthChecker(env.store.DB(), env.redis, cmd.Root().Version)),
	}
	if env.metrics != nil {
		opts = append(opts, api.WithMetrics(env.metrics, env.registry))
		stop := observeDBStats(ctx, env)
		shutdown.Register("db-stats", func(context.Context) error { stop(); return nil })
	}
	if root, _ := cmd.Flags().GetString("model-root"); root != "" {
		opts = append(opts, api.WithModelRoot(root))
	}

	var runner api.Runner
	if readOnly, _ := cmd.Flags().GetBool("read-only"); !readOnly {
		sched, err := env.scheduler(ctx)
		if err != nil {
			shutdown.Shutdown()
			return err
		}
		runner = sched
		shutdown.Register("scheduler", sched.Close)
	}

	addr := cfg.Server.Addr()
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewServer(env.issues(), runner, opts...).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.Register("http", server.Shutdown)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("somcheck API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	err = shutdown.Wait(waitCtx)
	select {
	case listenErr := <-serveErr:
		return fmt.Errorf("server failed: %w", listenErr)
	default:
	}
	return err
}

// observeDBStats feeds the connection pool gauges until stopped.
func observeDBStats(ctx context.Context, env *environment) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			env.metrics.ObserveDBStats(env.store.DB().Stats())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
