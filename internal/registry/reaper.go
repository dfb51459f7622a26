// ABOUTME: Background sweep that disconnects idle connections
// ABOUTME: Emits an aggregate stats snapshot after every sweep

package registry

import (
	"context"
	"log/slog"
	"time"
)

// Default reaper timing, matching the production cleanup policy.
const (
	DefaultSweepInterval = time.Minute
	DefaultMaxIdle       = time.Hour
)

// StatsRecorder receives the aggregate snapshot after each sweep.
// Implementations must be safe for concurrent use.
type StatsRecorder interface {
	RecordConnectionStats(stats Stats)
	RecordReaped(count int)
}

// Reaper periodically removes idle entries from a registry.
type Reaper struct {
	registry *Registry
	interval time.Duration
	maxIdle  time.Duration
	recorder StatsRecorder
	logger   *slog.Logger
}

// NewReaper creates a reaper for the registry. Zero durations use defaults;
// recorder may be nil.
func NewReaper(reg *Registry, interval, maxIdle time.Duration, recorder StatsRecorder, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		registry: reg,
		interval: interval,
		maxIdle:  maxIdle,
		recorder: recorder,
		logger:   logger.With("component", "reaper"),
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (p *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep removes idle entries once and emits the stats snapshot.
// The snapshot is observability only; nothing consumes it for control flow.
func (p *Reaper) Sweep() {
	reaped := p.registry.reapIdle(p.maxIdle)

	for _, e := range reaped {
		p.logger.Info("reaped idle connection",
			"connection_id", e.ID,
			"identity_id", e.IdentityID,
			"idle_since", e.LastActivityAt,
		)
	}

	stats := p.registry.Stats()
	p.logger.Info("connection stats",
		"total", stats.Total,
		"authenticated", stats.Authenticated,
		"by_role", stats.ByRole,
		"reaped", len(reaped),
	)

	if p.recorder != nil {
		p.recorder.RecordConnectionStats(stats)
		if len(reaped) > 0 {
			p.recorder.RecordReaped(len(reaped))
		}
	}
}
