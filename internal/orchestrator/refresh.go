package orchestrator

import (
	"time"

	"pumpsentinel/internal/journal"
	"pumpsentinel/internal/metrics"
)

// runLeaderboardRefresh periodically reruns the Reputation Analyzer and
// publishes the result, refusing to run while any session holds a position.
// New session starts are rejected for the duration of a refresh via the
// refreshing flag, so a session never enters against a snapshot that is
// about to be replaced.
func (o *Orchestrator) runLeaderboardRefresh() {
	o.refreshOnce()

	ticker := time.NewTicker(o.cfg.Reputation.LeaderboardUpdateEvery)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.refreshOnce()
		}
	}
}

func (o *Orchestrator) refreshOnce() {
	if o.wallet.AnyActive() {
		o.logger.Debug("leaderboard refresh deferred, session holding a position")
		return
	}

	o.refreshing.Store(true)
	defer o.refreshing.Store(false)

	lb, err := o.analyzer.Run(o.ctx)
	if err != nil {
		o.logger.Error("leaderboard refresh failed", "error", err)
		return
	}

	o.leaderboard.Store(lb)
	metrics.LeaderboardSize.Set(float64(len(lb.Creators)))
	o.logger.Info("leaderboard refreshed", "creators", len(lb.Creators))

	snapshot := journal.LeaderboardSnapshot{
		ComputedAt: lb.ComputedAt,
		Creators:   make(map[string]any, len(lb.Creators)),
	}
	for creator, agg := range lb.Creators {
		snapshot.Creators[creator] = agg
	}
	if err := o.lbWriter.Append(snapshot); err != nil {
		o.logger.Error("leaderboard journal write failed", "error", err)
	}
}
