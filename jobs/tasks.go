package jobs

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is used when no instance queue is configured.
	QueueDefault = "default"
	// TaskLeadsRefresh reloads the dashboard's lead list from the upstream API.
	TaskLeadsRefresh = "leads:refresh"
)

// LeadsRefreshPayload describes a scheduled lead sync.
type LeadsRefreshPayload struct {
	Reason string `json:"reason"`
}

// SyncQueue names the queue owned by one server process. The Store lives in
// process memory, so each replica schedules and consumes its own refreshes.
func SyncQueue(instance string) string {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return QueueDefault
	}
	return "leads:" + instance
}

// NewLeadsRefreshTask constructs an Asynq task bound to queue.
func NewLeadsRefreshTask(queue, reason string) (*asynq.Task, error) {
	if queue == "" {
		queue = QueueDefault
	}
	data, err := json.Marshal(LeadsRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadsRefresh, data, asynq.Queue(queue)), nil
}
