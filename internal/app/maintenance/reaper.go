package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/openvolume/volcached/internal/imagecache"
	"github.com/openvolume/volcached/internal/notify"
	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/pkg/logger"
)

const (
	defaultReconcileSpec = "@hourly"
	defaultEventHistory  = 500

	runTimeout = 5 * time.Minute
)

// Reaper periodically pulls every cache scope back under its configured
// ceilings and prunes old persisted events. Concurrent EnsureSpace calls can
// leave a scope briefly over limit; the reaper restores compliance.
type Reaper struct {
	cache    *imagecache.Cache
	entries  *store.EntryStore
	recorder *notify.Recorder
	cron     *cron.Cron
	log      *zap.Logger

	reconcileSpec string
	eventHistory  int
}

// Option customises the Reaper.
type Option func(*Reaper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reaper) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithReconcileSchedule overrides the cron specification for capacity runs.
func WithReconcileSchedule(spec string) Option {
	return func(r *Reaper) {
		if spec != "" {
			r.reconcileSpec = spec
		}
	}
}

// WithEventHistory adjusts how many persisted events are retained. The
// recorder prune is skipped entirely when no recorder is wired.
func WithEventHistory(keep int) Option {
	return func(r *Reaper) {
		if keep > 0 {
			r.eventHistory = keep
		}
	}
}

// WithRecorder wires the persisted-event recorder for pruning.
func WithRecorder(recorder *notify.Recorder) Option {
	return func(r *Reaper) {
		r.recorder = recorder
	}
}

// NewReaper constructs a Reaper with sensible defaults.
func NewReaper(cache *imagecache.Cache, entries *store.EntryStore, opts ...Option) (*Reaper, error) {
	if cache == nil {
		return nil, errors.New("maintenance: cache is required")
	}
	if entries == nil {
		return nil, errors.New("maintenance: entry store is required")
	}

	r := &Reaper{
		cache:         cache,
		entries:       entries,
		reconcileSpec: defaultReconcileSpec,
		eventHistory:  defaultEventHistory,
		log:           logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New()
	}
	return r, nil
}

// Start registers the scheduled jobs and launches the cron scheduler.
func (r *Reaper) Start() error {
	if r == nil {
		return errors.New("maintenance: reaper not initialised")
	}

	if _, err := r.cron.AddFunc(r.reconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule reconcile: %w", err)
	}

	r.cron.Start()
	return nil
}

// Stop halts the scheduler and returns a context that completes once
// running jobs finish.
func (r *Reaper) Stop() context.Context {
	if r == nil || r.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return r.cron.Stop()
}

// RunOnce reconciles every scope immediately and prunes event history.
// Per-scope failures are aggregated so one unhealthy backend does not stop
// the others from being reconciled.
func (r *Reaper) RunOnce(ctx context.Context) error {
	if r == nil {
		return errors.New("maintenance: reaper not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scopes, err := r.entries.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("maintenance: list scopes: %w", err)
	}

	var errs error
	for _, scope := range scopes {
		evicted, err := r.cache.Reconcile(ctx, scope)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", scope, err))
			continue
		}
		if evicted > 0 {
			r.log.Info("reconciled cache scope",
				zap.String("scope", scope.String()),
				zap.Int("evicted", evicted),
			)
		}
	}

	if r.recorder != nil {
		if err := r.recorder.Prune(ctx, r.eventHistory); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune events: %w", err))
		}
	}

	return errs
}
