package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Start() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server. Backups write through the
// single-writer store, so one task at a time is enough.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if len(queues) == 0 {
		queues = DefaultQueues
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:         queues,
		Concurrency:    1,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		Logger:         newAsynqLogger(log),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.ErrorContext(ctx, "jobs worker: task failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		}),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Start launches the processing loop in the background. Stop it with Shutdown.
func (w *worker) Start() error {
	w.log.InfoContext(context.Background(), "jobs worker: starting processing loop")
	return w.server.Start(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *worker) Shutdown() {
	w.log.InfoContext(context.Background(), "jobs worker: shutting down")
	w.server.Shutdown()
}
