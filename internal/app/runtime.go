package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/httpkit/internal/config"
	"github.com/samvad-hq/httpkit/internal/logger"
	"github.com/samvad-hq/httpkit/internal/runner"
	"github.com/samvad-hq/httpkit/internal/storage"
	"github.com/samvad-hq/httpkit/pkg/httpclient"
	"github.com/samvad-hq/httpkit/pkg/plan"
	"github.com/samvad-hq/httpkit/pkg/reporters"
)

// Runtime executes the configured request plan once or on an interval. It
// owns the history store and reporter connections and closes them on exit.
type Runtime struct {
	cfg         *config.Config
	plan        *plan.Plan
	fanout      *reporters.Fanout
	runService  *runner.Service
	runInterval time.Duration
	log         logger.Logger
	store       storage.Store
}

// NewHelper builds the request helper from config.
func NewHelper(cfg *config.Config, log logger.Logger) *httpclient.Helper {
	opts := []httpclient.Option{httpclient.WithLogger(log)}
	if cfg != nil {
		opts = append(opts,
			httpclient.WithTimeout(cfg.HTTPTimeout),
			httpclient.WithUserAgent(cfg.HTTPUserAgent),
		)
	}
	return httpclient.New(opts...)
}

// OpenStore opens the configured history store.
func OpenStore(cfg *config.Config) (storage.Store, error) {
	return storage.NewStore(cfg.HistoryType, cfg.HistoryPath, storage.Options{
		TTL:             cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanupInterval,
	})
}

// NewRuntime builds a runtime from config files.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := plan.Load(cfg.PlanFile)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	requests := p.All()
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
	}
	log.InfoObj("request plan loaded", "plan_meta", map[string]any{
		"count": len(ids),
		"ids":   ids,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.HistoryType,
		"path":                     cfg.HistoryPath,
		"ttl_seconds":              int(cfg.HistoryTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.HistoryCleanupInterval.Seconds()),
	})

	svc := runner.NewService(NewHelper(cfg, log), store, fanout, log)

	return &Runtime{
		cfg:         cfg,
		plan:        p,
		fanout:      fanout,
		runService:  svc,
		runInterval: cfg.RunInterval,
		log:         log,
		store:       store,
	}, nil
}

// buildFanout loads reporters when a reporters file is configured.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*reporters.Fanout, error) {
	if strings.TrimSpace(cfg.ReportersFile) == "" {
		log.InfoObj("no reporters configured", "reporters_file", cfg.ReportersFile)
		return reporters.NewFanout(nil), nil
	}

	reg, err := reporters.LoadRegistry(cfg.ReportersFile)
	if err != nil {
		return nil, fmt.Errorf("load reporters registry: %w", err)
	}
	enabled := reg.Enabled()
	reps, err := reporters.BuildAll(ctx, reporters.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build reporters: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, rc := range enabled {
		summaries = append(summaries, map[string]string{"id": rc.ID, "type": rc.Type})
	}
	log.InfoObj("reporters registry loaded", "reporters_meta", map[string]any{
		"count":     len(summaries),
		"reporters": summaries,
	})
	return reporters.NewFanout(reps), nil
}

// Run executes the plan once, or repeatedly on the configured interval until
// the context is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil || r.runService == nil {
		return fmt.Errorf("runtime is not initialized")
	}
	defer r.close()

	requests := r.plan.All()
	r.log.InfoObj("runtime starting", "runtime_state", map[string]any{
		"requests_count":  len(requests),
		"reporters_count": r.fanout.Size(),
		"run_interval":    r.runInterval.String(),
	})

	err := r.runOnce(ctx, requests)
	if r.runInterval <= 0 {
		return err
	}
	if err != nil {
		r.log.ErrorObj("initial run failed", "error", err)
	}

	ticker := time.NewTicker(r.runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("runtime loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, requests); err != nil {
				r.log.ErrorObj("scheduled run failed", "error", err)
			}
		}
	}
}

// runOnce performs a single pass over the plan.
func (r *Runtime) runOnce(ctx context.Context, requests []plan.Request) error {
	start := time.Now()
	r.log.InfoObj("run started", "run_meta", map[string]any{
		"requests_count": len(requests),
		"started_at":     start.UTC(),
	})
	sum, err := r.runService.Run(ctx, requests)
	r.log.InfoObj("run completed", "run_meta", map[string]any{
		"total":      sum.Total,
		"succeeded":  sum.Succeeded,
		"absent":     sum.Absent,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return err
}

// close releases the storage backend and reporters, logging any errors encountered.
func (r *Runtime) close() {
	if r == nil {
		return
	}
	var errs []error
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	errs = append(errs, r.fanout.Close())
	if err := errors.Join(errs...); err != nil {
		r.log.ErrorObj("runtime close failed", "error", err)
	}
}
