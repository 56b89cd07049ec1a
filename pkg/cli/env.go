package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/checker"
	"github.com/platinummonkey/somcheck/pkg/config"
	"github.com/platinummonkey/somcheck/pkg/export"
	"github.com/platinummonkey/somcheck/pkg/instances"
	"github.com/platinummonkey/somcheck/pkg/observability"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/schema"
	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

// environment is everything a checking command needs.
type environment struct {
	cfg    *config.Config
	logger *observability.Logger
	model  *schema.Model
	store  *storage.Store
	cached *storage.CachedStore
	redis  *redis.Client

	registry *prometheus.Registry
	metrics  *observability.Metrics
}

func newEnvironment(ctx context.Context, cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Check.SchemaPath == "" {
		return nil, errors.New("a schema file is required (--schema or SOMCHECK_SCHEMA)")
	}
	logger := newLogger(cmd, cfg)

	model, err := schema.LoadFile(cfg.Check.SchemaPath, schema.WithLogger(logger.Entry()))
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, logger: logger, model: model, store: store}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		env.redis = redis.NewClient(opts)
		if env.cached, err = storage.NewCachedStore(store, env.redis, cfg.Redis.CountCacheTTL); err != nil {
			env.Close()
			return nil, err
		}
	}

	if cfg.Observability.MetricsEnabled {
		env.registry = prometheus.NewRegistry()
		env.metrics = observability.NewMetrics(env.registry)
	}
	return env, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg.Storage, storage.WithLogger(logger.Entry()))
	if err != nil {
		return nil, fmt.Errorf("failed to open issue store: %w", err)
	}
	logger.WithField("driver", store.Driver()).WithField("path", store.Path()).Debug("issue store opened")
	return store, nil
}

// issues is the store used for reads and writes, fronted by the redis
// count cache when one is configured.
func (e *environment) issues() storage.IssueStore {
	if e.cached != nil {
		return e.cached
	}
	return e.store
}

func (e *environment) scheduler(ctx context.Context) (*checker.Scheduler, error) {
	entry := e.logger.Entry()
	v, err := validation.NewValidator(e.cfg.ValidatorConfig(), entry)
	if err != nil {
		return nil, err
	}

	opts := []checker.Option{
		checker.WithLogger(entry),
		checker.WithSinks(progress.NewLogSink(entry)),
	}
	if e.metrics != nil {
		opts = append(opts, checker.WithMetrics(e.metrics))
	}
	if e.redis != nil {
		opts = append(opts, checker.WithSinks(progress.NewRedisSink(e.redis, e.cfg.Redis.Channel)))
	}
	if e.cfg.Export.Path != "" {
		exp, err := export.New(ctx, e.cfg.Export, entry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, checker.WithExporter(exp, e.store.Path()))
	}

	snap := e.model.Snapshot(schema.WithExcluded(e.cfg.Check.Excluded...))
	return checker.NewScheduler(
		snap,
		v,
		instances.NewFileReader(entry),
		e.issues(),
		checker.Config{MaxImports: e.cfg.Check.MaxImports, Project: e.cfg.Check.Project},
		opts...,
	)
}

// Close releases the store and the redis client. A temporary database is
// kept so its issues can still be inspected.
func (e *environment) Close() error {
	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}
