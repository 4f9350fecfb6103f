package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const workerConcurrency = 10

// Worker registers task handlers and drives the background processing loop.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker builds a Worker over an asynq server consuming the given queues.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      queues,
		Concurrency: workerConcurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed",
				slog.String("type", task.Type()), slog.Any("error", err))
		}),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks processing tasks until Shutdown is called.
func (w *worker) Run() error {
	w.log.Info("jobs worker: starting processing loop")

	return w.server.Run(w.mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *worker) Shutdown() {
	w.log.Info("jobs worker: shutting down")

	w.server.Shutdown()
}
