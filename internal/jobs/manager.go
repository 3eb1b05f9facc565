package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueBackupSweep(ctx context.Context, reason string) error
	Close() error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client enqueuer
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return newManager(asynq.NewClient(redisOpt), log)
}

func newManager(client enqueuer, log *slog.Logger) *manager {
	if log == nil {
		log = slog.Default()
	}
	return &manager{client: client, log: log}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueBackupSweep requests a sweep outside the schedule, e.g. at process start.
func (m *manager) EnqueueBackupSweep(ctx context.Context, reason string) error {
	task, err := NewBackupSweepTask(reason, time.Now())
	if err != nil {
		return fmt.Errorf("build backup task: %w", err)
	}

	info, err := m.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue backup sweep: %w", err)
	}

	m.log.InfoContext(ctx, "backup sweep enqueued", slog.String("reason", reason), slog.String("task_id", info.ID))
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
