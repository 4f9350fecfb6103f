package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeGiftSweep          = "gift:sweep"
	TaskTypeLeaderboardRefresh = "leaderboard:refresh"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// LeaderboardRefreshPayload marks what triggered the refresh, for tracing.
type LeaderboardRefreshPayload struct {
	Trigger string `json:"trigger"`
}

// NewGiftSweepTask builds the periodic gift code expiry sweep.
func NewGiftSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeGiftSweep, nil, asynq.Queue(QueueLow))
}

// NewLeaderboardRefreshTask builds a leaderboard recompute request.
func NewLeaderboardRefreshTask(trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(LeaderboardRefreshPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeLeaderboardRefresh, payload, asynq.Queue(QueueDefault)), nil
}
