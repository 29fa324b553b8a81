package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/infrastructure/buffer"
	"github.com/fastygo/taskpilot/internal/temporal"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
	taskUC "github.com/fastygo/taskpilot/usecase/task"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how often buffered stamps are replayed and how
// long stale data is kept.
type ProcessorConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	BufferMaxAge  time.Duration
	Retention     time.Duration
	CleanupPeriod time.Duration
}

// BufferProcessor replays "last suggested" stamps that could not be written
// during a recommendation, and expires old idempotency records.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	tasks    repository.TaskRepository
	purger   repository.IdempotencyPurger
	settings usecase.SettingsProvider
	clock    usecase.Clock
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	tasks repository.TaskRepository,
	purger repository.IdempotencyPurger,
	settings usecase.SettingsProvider,
	logger *zap.Logger,
	cfg ProcessorConfig,
) (*BufferProcessor, error) {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BufferMaxAge <= 0 {
		cfg.BufferMaxAge = 24 * time.Hour
	}
	if cfg.CleanupPeriod < time.Second {
		cfg.CleanupPeriod = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		tasks:    tasks,
		purger:   purger,
		settings: settings,
		clock:    usecase.SystemClock{},
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	if _, err := bp.cron.AddFunc(every(cfg.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("stamp buffer drain failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule buffer drain: %w", err)
	}
	if _, err := bp.cron.AddFunc(every(cfg.CleanupPeriod), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		bp.Cleanup(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}
	return bp, nil
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %ds", int(d.Seconds()))
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for running jobs to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Enqueue stores a stamp for a later drain.
func (bp *BufferProcessor) Enqueue(item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}
	return bp.store.Put(item)
}

// Drain applies buffered stamps once. It does nothing while the task store
// is reported offline.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.Batch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		log := bp.logger.With(zap.String("task_id", item.TaskID), zap.String("item_id", item.ID))
		err := bp.apply(ctx, item)
		switch {
		case err == nil, errors.Is(err, domain.ErrTaskNotFound):
			if err != nil {
				log.Info("dropping stamp for missing task")
			}
			if err := bp.store.Remove(item); err != nil {
				log.Warn("failed to purge processed stamp", zap.Error(err))
			}
		default:
			item.Attempts++
			if item.Attempts >= bp.cfg.MaxRetries {
				log.Warn("dropping stamp (max retries reached)", zap.Error(err))
				_ = bp.store.Remove(item)
				continue
			}
			log.Warn("stamp replay failed", zap.Int("attempts", item.Attempts), zap.Error(err))
			if err := bp.store.Put(item); err != nil {
				log.Error("failed to requeue stamp", zap.Error(err))
			}
		}
	}
	return nil
}

// apply writes the stamp unless the task already carries a newer one.
func (bp *BufferProcessor) apply(ctx context.Context, item buffer.Item) error {
	s := temporal.DefaultSettings()
	if bp.settings != nil {
		s = bp.settings.Scheduling()
	}
	_, current, err := bp.tasks.FindByID(ctx, item.TaskID)
	if err != nil {
		return err
	}
	if last, ok := domain.ParseTimestamp(current.LastSuggestedAt, s.Location); ok && !last.Before(item.SuggestedAt.Truncate(time.Second)) {
		return nil
	}
	_, err = taskUC.ApplyStamp(ctx, bp.tasks, item.Intent(), s.Location, bp.clock.Now())
	return err
}

// Cleanup prunes old buffered stamps and expired idempotency records.
func (bp *BufferProcessor) Cleanup(ctx context.Context) {
	now := bp.clock.Now()
	if bp.store != nil {
		if n, err := bp.store.Prune(now.Add(-bp.cfg.BufferMaxAge)); err != nil {
			bp.logger.Warn("failed to prune stamp buffer", zap.Error(err))
		} else if n > 0 {
			bp.logger.Info("pruned stamp buffer", zap.Int("removed", n))
		}
	}
	if bp.purger != nil && bp.cfg.Retention > 0 {
		if n, err := bp.purger.Purge(ctx, now.Add(-bp.cfg.Retention)); err != nil {
			bp.logger.Warn("failed to purge idempotency records", zap.Error(err))
		} else if n > 0 {
			bp.logger.Info("purged idempotency records", zap.Int("removed", n))
		}
	}
}

// Size returns the number of buffered stamps.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}
