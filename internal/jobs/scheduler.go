package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Start() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	spec           string
	log            *slog.Logger
}

// NewScheduler registers periodic tasks with asynq. spec is a cron expression or "@every <duration>".
func NewScheduler(redisOpt asynq.RedisConnOpt, spec string, loc *time.Location, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: loc}),
		spec:           spec,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewBackupSweepTask("schedule", time.Time{})
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.spec, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered backup sweep", slog.String("spec", s.spec))
	return nil
}

// Start begins enqueueing on the registered schedule without blocking.
func (s *scheduler) Start() error {
	s.log.InfoContext(context.Background(), "scheduler: starting")
	return s.asynqScheduler.Start()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
