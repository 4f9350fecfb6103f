// Package identity resolves whether an acting user holds admin rights.
package identity

import (
	"context"
	"log/slog"

	"github.com/cyberearn/reward-wallet/internal/settings"
)

// Gateway answers admin-set membership questions against the settings store.
// The root admin from deployment config is always an admin.
type Gateway struct {
	settings  *settings.Service
	rootAdmin string
	log       *slog.Logger
}

// NewGateway constructs an identity gateway.
func NewGateway(settingsSvc *settings.Service, rootAdmin string, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}

	return &Gateway{
		settings:  settingsSvc,
		rootAdmin: rootAdmin,
		log:       log,
	}
}

// IsAdmin reports whether userID may perform admin actions. A settings load
// failure denies access (fail closed).
func (g *Gateway) IsAdmin(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	if g.rootAdmin != "" && userID == g.rootAdmin {
		return true
	}

	snapshot, err := g.settings.Snapshot(ctx)
	if err != nil {
		g.log.Error("admin check failed to load settings", slog.Any("error", err))
		return false
	}

	return snapshot.IsAdmin(userID)
}
