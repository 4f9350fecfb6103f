package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager is the enqueue-side queue surface handed to producers.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager over an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, err
	}

	m.log.Debug("task enqueued",
		slog.String("type", task.Type()), slog.String("queue", info.Queue))

	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
