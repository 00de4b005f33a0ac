package api

import (
	"time"

	"pumpsentinel/internal/config"
	"pumpsentinel/pkg/types"
)

// Provider is the Orchestrator's read-only surface for the dashboard.
// Implemented by *orchestrator.Orchestrator.
type Provider interface {
	LiveMints() []*types.MintState
	Leaderboard() *types.Leaderboard
	ActiveSessionMints() []string
	WalletBalanceLamports() uint64
	BlacklistSize() int
	RefreshInFlight() bool
}

// BuildSnapshot aggregates state from the Orchestrator into a dashboard
// snapshot.
func BuildSnapshot(p Provider, cfg config.Config) DashboardSnapshot {
	active := make(map[string]bool, len(p.ActiveSessionMints()))
	for _, mint := range p.ActiveSessionMints() {
		active[mint] = true
	}

	live := p.LiveMints()
	mints := make([]MintStatus, 0, len(live))
	for _, m := range live {
		mints = append(mints, MintStatus{
			MintID:       m.MintID,
			Name:         m.Name,
			Symbol:       m.Symbol,
			Creator:      m.Creator,
			Created:      m.Created,
			OpenPrice:    m.OpenPrice.String(),
			HighPrice:    m.HighPrice.String(),
			LowPrice:     m.LowPrice.String(),
			CurrentPrice: m.CurrentPrice.String(),
			MarketCapUSD: m.MarketCap.String(),
			LiquidityUSD: m.Liquidity.String(),
			Swaps:        m.TxCounts.Swaps,
			Buys:         m.TxCounts.Buys,
			Sells:        m.TxCounts.Sells,
			Holders:      len(m.Holders),
			HasSession:   active[m.MintID],
		})
	}

	lb := p.Leaderboard()
	leaderboard := make([]CreatorStatus, 0, len(lb.Creators))
	for creator, agg := range lb.Creators {
		leaderboard = append(leaderboard, CreatorStatus{
			Creator:             creator,
			MintCount:           agg.MintCount,
			TrustFactor:         agg.TrustFactor,
			PerformanceScore:    agg.PerformanceScore.String(),
			MedianPeakMarketCap: agg.MedianPeakMarketCap.String(),
			MedianSuccessRatio:  agg.MedianSuccessRatio,
			TotalSwaps:          agg.TotalSwaps,
		})
	}

	return DashboardSnapshot{
		Timestamp:   time.Now(),
		Mints:       mints,
		Leaderboard: leaderboard,
		Sessions:    p.ActiveSessionMints(),
		Wallet:      WalletStatus{BalanceLamports: p.WalletBalanceLamports()},
		Blacklist:   p.BlacklistSize(),
		Refreshing:  p.RefreshInFlight(),
		Config:      newConfigSummary(cfg),
	}
}

func newConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		DryRun:                 cfg.DryRun,
		AmountBuyTL1:           cfg.Session.AmountBuyTL1,
		AmountBuyTL2:           cfg.Session.AmountBuyTL2,
		ProfitMargin:           cfg.Session.ProfitMargin,
		PriceStepUnits:         cfg.Session.PriceStepUnits,
		TrustFactorRatio:       cfg.Reputation.TrustFactorRatio,
		LeaderboardUpdateEvery: cfg.Reputation.LeaderboardUpdateEvery.String(),
		SingleLock:             cfg.Session.SingleLock,
	}
}
