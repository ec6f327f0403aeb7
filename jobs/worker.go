package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// SyncConfig configures the in-process lead sync worker.
type SyncConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Job       *LeadsRefreshJob
	// Queue is this process's queue, see SyncQueue. Defaults to QueueDefault.
	Queue string
	// CronSpec schedules periodic refreshes, e.g. "@every 5m". Empty
	// disables the scheduler; enqueued tasks are still processed.
	CronSpec string
}

// SyncWorker processes leads:refresh tasks and, when configured, schedules
// them on a cron spec.
type SyncWorker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
	queue     string
}

// NewSyncWorker validates cfg and prepares the worker without starting it.
func NewSyncWorker(cfg SyncConfig) (*SyncWorker, error) {
	if cfg.Job == nil {
		return nil, errors.New("lead sync: refresh job required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = QueueDefault
	}
	logger = logger.With(slog.String("component", "lead-sync"), slog.String("queue", queue))

	server := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		// One refresh at a time; the Store coalesces anyway.
		Concurrency: 1,
		Queues:      map[string]int{queue: 1},
		Logger:      slogAdapter{logger},
		LogLevel:    asynq.WarnLevel,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskLeadsRefresh, cfg.Job.Handle)

	w := &SyncWorker{server: server, mux: mux, logger: logger, queue: queue}
	if cfg.CronSpec == "" {
		return w, nil
	}

	task, err := NewLeadsRefreshTask(queue, "cron")
	if err != nil {
		return nil, err
	}
	w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   slogAdapter{logger},
		LogLevel: asynq.WarnLevel,
	})
	if _, err := w.scheduler.Register(cfg.CronSpec, task, asynq.MaxRetry(1), asynq.Unique(time.Minute)); err != nil {
		return nil, fmt.Errorf("lead sync: schedule %q: %w", cfg.CronSpec, err)
	}
	return w, nil
}

// Queue reports the queue the worker consumes.
func (w *SyncWorker) Queue() string {
	return w.queue
}

// Run processes tasks until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("lead sync: worker not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("lead sync: start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	w.logger.Info("lead sync worker started", slog.Bool("scheduled", w.scheduler != nil))

	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(args ...interface{}) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...interface{})  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...interface{})  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }
