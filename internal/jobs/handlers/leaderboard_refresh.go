package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/jobs"
	"github.com/cyberearn/reward-wallet/internal/leaderboard"
)

// LeaderboardRefreshHandler recomputes the cached leaderboard snapshot.
type LeaderboardRefreshHandler struct {
	board *leaderboard.Cache
	log   *slog.Logger
}

func NewLeaderboardRefreshHandler(board *leaderboard.Cache, log *slog.Logger) *LeaderboardRefreshHandler {
	return &LeaderboardRefreshHandler{board: board, log: log}
}

func (h *LeaderboardRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.LeaderboardRefreshPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			if h.log != nil {
				h.log.ErrorContext(ctx, "leaderboard refresh: failed to decode payload",
					slog.String("task_type", t.Type()), slog.Any("error", err))
			}
			return err
		}
	}

	var snapshot *leaderboard.Snapshot
	err := apperrors.WithRetry(ctx, func() error {
		var refreshErr error
		snapshot, refreshErr = h.board.Refresh(ctx)
		return refreshErr
	})
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "leaderboard refresh failed", slog.Any("error", err))
		}
		return err
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "leaderboard refreshed",
			slog.String("trigger", payload.Trigger),
			slog.Int("entries", len(snapshot.Entries)),
		)
	}

	return nil
}
