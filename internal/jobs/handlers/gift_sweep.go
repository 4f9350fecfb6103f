package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/giftcode"
)

// GiftSweepHandler flags expired gift codes from the background queue.
type GiftSweepHandler struct {
	registry *giftcode.Registry
	log      *slog.Logger
}

func NewGiftSweepHandler(registry *giftcode.Registry, log *slog.Logger) *GiftSweepHandler {
	return &GiftSweepHandler{registry: registry, log: log}
}

func (h *GiftSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var flagged int
	err := apperrors.WithRetry(ctx, func() error {
		var sweepErr error
		flagged, sweepErr = h.registry.SweepExpired(ctx)
		return sweepErr
	})
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "gift sweep failed", slog.String("task_type", t.Type()), slog.Any("error", err))
		}
		return err
	}

	if h.log != nil && flagged > 0 {
		h.log.InfoContext(ctx, "gift sweep completed", slog.Int("flagged", flagged))
	}

	return nil
}
