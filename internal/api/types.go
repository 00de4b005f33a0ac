package api

import (
	"time"
)

// DashboardSnapshot is the complete state the dashboard renders: the current
// Leaderboard, every live mint, and the sessions currently trading against
// them.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Mints       []MintStatus       `json:"mints"`
	Leaderboard []CreatorStatus    `json:"leaderboard"`
	Sessions    []string           `json:"active_sessions"` // mint ids with a running Session Controller
	Wallet      WalletStatus       `json:"wallet"`
	Blacklist   int                `json:"blacklist_size"`
	Refreshing  bool               `json:"leaderboard_refreshing"`
	Config      ConfigSummary      `json:"config"`
}

// MintStatus is one live mint's dashboard projection.
type MintStatus struct {
	MintID       string    `json:"mint_id"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	Creator      string    `json:"creator"`
	Created      time.Time `json:"created"`
	OpenPrice    string    `json:"open_price"`
	HighPrice    string    `json:"high_price"`
	LowPrice     string    `json:"low_price"`
	CurrentPrice string    `json:"current_price"`
	MarketCapUSD string    `json:"market_cap_usd"`
	LiquidityUSD string    `json:"liquidity_usd"`
	Swaps        int       `json:"swaps"`
	Buys         int       `json:"buys"`
	Sells        int       `json:"sells"`
	Holders      int       `json:"holders"`
	HasSession   bool      `json:"has_session"`
}

// CreatorStatus is one creator's Leaderboard row.
type CreatorStatus struct {
	Creator             string  `json:"creator"`
	MintCount           int     `json:"mint_count"`
	TrustFactor         float64 `json:"trust_factor"`
	PerformanceScore    string  `json:"performance_score"`
	MedianPeakMarketCap string  `json:"median_peak_market_cap"`
	MedianSuccessRatio  float64 `json:"median_success_ratio"`
	TotalSwaps          int     `json:"total_swaps"`
}

// WalletStatus summarizes the process-wide wallet.
type WalletStatus struct {
	BalanceLamports uint64 `json:"balance_lamports"`
}

// ConfigSummary surfaces the session/reputation tuning parameters an
// operator watching the dashboard would want visible.
type ConfigSummary struct {
	DryRun                 bool    `json:"dry_run"`
	AmountBuyTL1           float64 `json:"amount_buy_tl_1"`
	AmountBuyTL2           float64 `json:"amount_buy_tl_2"`
	ProfitMargin           float64 `json:"profit_margin"`
	PriceStepUnits         float64 `json:"price_step_units"`
	TrustFactorRatio       float64 `json:"trust_factor_ratio"`
	LeaderboardUpdateEvery string  `json:"leaderboard_update_interval"`
	SingleLock             bool    `json:"single_lock"`
}
