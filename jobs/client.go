package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Client queues lead sync tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient connects to the task broker. Tasks go to queue, which should be
// the one the local SyncWorker consumes.
func NewClient(redisOpts asynq.RedisClientOpt, queue string) *Client {
	if queue == "" {
		queue = QueueDefault
	}
	return &Client{client: asynq.NewClient(redisOpts), queue: queue}
}

// EnqueueLeadsRefresh queues an immediate refresh. Duplicate requests within
// a minute are rejected by the broker with asynq.ErrDuplicateTask.
func (c *Client) EnqueueLeadsRefresh(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	task, err := NewLeadsRefreshTask(c.queue, reason)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(1), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("enqueue lead refresh: %w", err)
	}
	return info, nil
}

// Close releases the broker connection.
func (c *Client) Close() error {
	return c.client.Close()
}
