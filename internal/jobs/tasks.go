package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeBackupSweep = "backup:sweep"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues are the queue priorities the worker serves.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// BackupSweepPayload describes why a sweep was requested.
type BackupSweepPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewBackupSweepTask(reason string, requestedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(BackupSweepPayload{Reason: reason, RequestedAt: requestedAt})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeBackupSweep, payload, asynq.Queue(QueueLow), asynq.MaxRetry(3)), nil
}
