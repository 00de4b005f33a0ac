// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the sentinel — decoded program events,
// per-mint market state, retired mint records, and creator aggregates. It has
// no dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Decoded events
// ————————————————————————————————————————————————————————————————————————

// CreationEvent is the decoded payload of a mint-creation instruction.
type CreationEvent struct {
	Signature    string
	Slot         uint64
	Name         string
	Symbol       string
	URI          string
	Mint         string // base58
	BondingCurve string // base58
	User         string // base58, the creator
	Timestamp    time.Time
}

// SwapEvent is the decoded payload of a buy/sell instruction against a
// mint's bonding curve.
type SwapEvent struct {
	Signature            string
	Slot                 uint64
	Mint                 string // base58
	User                 string // base58
	IsBuy                bool
	SolAmount            uint64 // lamports
	TokenAmount          uint64 // 6-decimal fixed
	Timestamp            int64  // unix seconds, as carried in the wire payload
	VirtualSolReserves   uint64 // 9-decimal fixed
	VirtualTokenReserves uint64 // 6-decimal fixed
}

// ————————————————————————————————————————————————————————————————————————
// Market state (live mints)
// ————————————————————————————————————————————————————————————————————————

// HistoryEntry is one (key, price) sample in a mint's price history,
// in insertion order. Key is "{unix_seconds}.{3-digit counter}".
type HistoryEntry struct {
	Key   string
	Price decimal.Decimal
}

// BalanceChange records one ledger event for a holder: a buy or sell that
// changed their token balance.
type BalanceChange struct {
	Type      string // "buy" or "sell"
	PriceWas  decimal.Decimal
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Holder tracks one account's current balance and the history of changes
// to it, within a single mint's ledger.
type Holder struct {
	Balance        decimal.Decimal
	BalanceChanges []BalanceChange
}

// TxCounts tracks swap counts for a mint.
type TxCounts struct {
	Swaps int
	Buys  int
	Sells int
}

// VolumeBucket is a snapshot of tx counters, overwritten on every swap that
// lands while the mint's age is inside the bucket's window (up to 30s, 60s,
// 120s, 300s).
type VolumeBucket struct {
	Swaps int
	Buys  int
	Sells int
}

// MintState is the live, in-memory record for a single mint.
type MintState struct {
	MintID        string
	Name          string
	Symbol        string
	Creator       string
	MintSig       string
	BondingCurve  string
	Created       time.Time
	CreatedSlot   uint64
	FirstSwapSlot uint64

	OpenPrice    decimal.Decimal
	HighPrice    decimal.Decimal
	LowPrice     decimal.Decimal // decimal.Decimal zero-value sentinel; Infinity tracked via HasSwap
	CurrentPrice decimal.Decimal
	HasSwap      bool // false until the first swap; LowPrice is +Infinity until then

	MarketCap     decimal.Decimal
	PeakMarketCap decimal.Decimal
	PriceUSD      decimal.Decimal
	Liquidity     decimal.Decimal

	PriceHistory    []HistoryEntry
	priceHistoryIdx map[string]int // key -> index into PriceHistory, not exported/serialized

	TxCounts TxCounts
	Volume   map[string]VolumeBucket // "30s", "60s", "120s", "300s"
	Holders  map[string]*Holder
}

// NewMintState creates a freshly zeroed live record for a newly created mint.
func NewMintState(ev CreationEvent) *MintState {
	return &MintState{
		MintID:          ev.Mint,
		Name:            ev.Name,
		Symbol:          ev.Symbol,
		Creator:         ev.User,
		MintSig:         ev.Signature,
		BondingCurve:    ev.BondingCurve,
		Created:         ev.Timestamp,
		CreatedSlot:     ev.Slot,
		OpenPrice:       decimal.Zero,
		HighPrice:       decimal.Zero,
		LowPrice:        decimal.Zero,
		CurrentPrice:    decimal.Zero,
		MarketCap:       decimal.Zero,
		PeakMarketCap:   decimal.Zero,
		PriceUSD:        decimal.Zero,
		Liquidity:       decimal.Zero,
		PriceHistory:    make([]HistoryEntry, 0, 64),
		priceHistoryIdx: make(map[string]int),
		Volume:          make(map[string]VolumeBucket, 4),
		Holders:         make(map[string]*Holder),
	}
}

// AppendHistory records a new (key, price) pair. Callers are responsible for
// guaranteeing key monotonicity (the Market Engine does this under the
// per-mint lock).
func (m *MintState) AppendHistory(key string, price decimal.Decimal) {
	if m.priceHistoryIdx == nil {
		m.priceHistoryIdx = make(map[string]int)
	}
	m.priceHistoryIdx[key] = len(m.PriceHistory)
	m.PriceHistory = append(m.PriceHistory, HistoryEntry{Key: key, Price: price})
}

// LastHistoryKey returns the most recently appended history key, or "" if
// no swap has been recorded yet.
func (m *MintState) LastHistoryKey() string {
	if len(m.PriceHistory) == 0 {
		return ""
	}
	return m.PriceHistory[len(m.PriceHistory)-1].Key
}

// ————————————————————————————————————————————————————————————————————————
// Retired (stagnant) mints
// ————————————————————————————————————————————————————————————————————————

// OHLC is a final open/high/low/close snapshot recorded at retirement.
type OHLC struct {
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// RetiredMint is the historical record written when a mint is retired from
// the live table.
type RetiredMint struct {
	MintID          string
	Name            string
	Symbol          string
	Creator         string
	Holders         map[string]*Holder
	PriceHistory    []HistoryEntry
	TxCounts        TxCounts
	Volume          map[string]VolumeBucket
	PeakPriceChange decimal.Decimal // percent vs open
	PeakMarketCap   decimal.Decimal
	FinalMarketCap  decimal.Decimal
	FinalOHLC       OHLC
	MintSig         string
	BondingCurve    string
	SlotDelay       uint64
	RetiredAt       time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Creator reputation
// ————————————————————————————————————————————————————————————————————————

// CreatorAggregate is the derived per-creator rollup produced by the
// Reputation Analyzer.
type CreatorAggregate struct {
	Creator              string
	MintCount            int
	MedianOpenPrice      decimal.Decimal
	MedianPeakPrice      decimal.Decimal
	MedianCurrentPrice   decimal.Decimal
	MedianPeakMarketCap  decimal.Decimal
	MedianFinalMarketCap decimal.Decimal
	CreationDelays       []float64 // seconds, sorted successive gaps
	TotalSwaps           int
	SuccessRatios        []float64 // percent, one per successful mint
	TrustFactor          float64
	PerformanceScore     decimal.Decimal
	SuccessCount         int
	UnsuccessCount       int
	AvgSuccessRatio      float64
	MedianSuccessRatio   float64
}

// Leaderboard is a read-mostly, atomically-published snapshot of the
// current creator reputation rankings. Readers obtain a handle via Get();
// the handle remains valid (an immutable map) until a new snapshot replaces
// it.
type Leaderboard struct {
	Creators   map[string]CreatorAggregate
	ComputedAt time.Time
}

// Get returns a creator's aggregate and whether it is present.
func (l *Leaderboard) Get(creator string) (CreatorAggregate, bool) {
	if l == nil {
		return CreatorAggregate{}, false
	}
	agg, ok := l.Creators[creator]
	return agg, ok
}
