package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/leadboard/leadboard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Refresher reloads the lead list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// LeadsRefreshJob keeps the in-memory lead list in sync with the API.
type LeadsRefreshJob struct {
	Store   Refresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewLeadsRefreshJob wires dependencies for the refresh handler.
func NewLeadsRefreshJob(store Refresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *LeadsRefreshJob {
	return &LeadsRefreshJob{Store: store, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes leads:refresh tasks.
func (j *LeadsRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("leads refresh: handler not configured")
	}
	var payload LeadsRefreshPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	run := j.metrics().Start(payload.Reason)
	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	if err := j.Store.Refresh(ctx); err != nil {
		logger.Error("scheduled lead refresh", slog.Any("error", err))
		return run.Finish(err)
	}
	logger.Info("completed lead refresh", slog.Duration("duration", time.Since(start)))
	return run.Finish(nil)
}

func (j *LeadsRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLeadsRefresh))
	}
	return slog.Default().With(slog.String("job", TaskLeadsRefresh))
}

func (j *LeadsRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
