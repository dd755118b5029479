// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package registry

import (
	"context"
	"time"

	"github.com/rapidaai/clipcast/internal/domain"
)

// TimeoutPolicy carries the configured windows the reaper enforces. It is
// a narrow copy of config.SessionConfig so this package does not import
// config directly.
type TimeoutPolicy struct {
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	TransportGrace time.Duration
	SweepInterval  time.Duration
}

// CleanupRequester is implemented by whatever owns session teardown
// (internal/orchestrator's Manager; internal/pipeline also calls it on stall
// or repeated LLM failure); the reaper calls it when a timeout fires instead of
// tearing resources down itself, so session-owned cleanup stays in one
// place.
type CleanupRequester interface {
	RequestCleanup(ctx context.Context, identifier string)
}

// RunReaper advances timeouts at policy.SweepInterval until ctx is
// cancelled. It never holds the registry lock while invoking cleanup.
func (r *Registry) RunReaper(ctx context.Context, policy TimeoutPolicy, cleanup CleanupRequester) {
	if policy.SweepInterval <= 0 {
		policy.SweepInterval = 10 * time.Second
	}
	ticker := time.NewTicker(policy.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx, policy, cleanup)
		}
	}
}

func (r *Registry) sweep(ctx context.Context, policy TimeoutPolicy, cleanup CleanupRequester) {
	start := time.Now()
	snapshots := r.timingSnapshots()
	counts := make(map[string]int, 6)

	for _, snap := range snapshots {
		counts[snap.state]++
		switch snap.state {
		case domain.StateConnecting:
			if start.Sub(snap.createdAt) > policy.ConnectTimeout {
				if _, err := r.Transition(snap.identifier, EventConnectTimeout); err == nil {
					cleanup.RequestCleanup(ctx, snap.identifier)
				}
			}
		case domain.StateActive:
			if start.Sub(snap.lastActivityAt) > policy.IdleTimeout {
				if _, err := r.Transition(snap.identifier, EventIdleTimeout); err == nil {
					cleanup.RequestCleanup(ctx, snap.identifier)
				}
			}
		case domain.StateDegraded:
			if start.Sub(snap.transportLostAt) > policy.TransportGrace {
				if _, err := r.Transition(snap.identifier, EventGraceExceeded); err == nil {
					cleanup.RequestCleanup(ctx, snap.identifier)
				}
			}
		}
	}

	r.log.Infow("reaper sweep session counts", "counts", counts, "total", len(snapshots))
	r.log.Benchmark("registry.sweep", time.Since(start))
}
