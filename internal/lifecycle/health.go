package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cyberearn/reward-wallet/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness trivially and delegates readiness to the component
// health checker.
type Probes struct {
	checker *health.Checker
	log     *slog.Logger
}

// NewProbes creates a new Probes instance. checker may be nil, in which case
// readiness always succeeds.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness reports success while the process can respond at all.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails when any registered component check fails.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.checker == nil {
		return nil
	}

	for component, result := range p.checker.Check(ctx) {
		if result != "OK" {
			return fmt.Errorf("component %s not ready: %s", component, result)
		}
	}

	return nil
}
