// Package market owns the in-memory per-mint state: it applies decoded
// Creation and Swap records, runs a Stagnancy Monitor per live mint, and
// writes through to the Store. Swap application for a single mint is
// strictly serialized by a per-mint lock; distinct mints proceed fully in
// parallel.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/internal/errs"
	"pumpsentinel/internal/solprice"
	"pumpsentinel/pkg/types"
)

// TotalSupply is the fixed total token supply of every bonding-curve mint.
var TotalSupply = decimal.NewFromInt(1_000_000_000)

const (
	stagnantNoSwapWindow  = 5 * time.Minute
	stagnantLowPriceFor   = 30 * time.Second
	stagnantLowPriceUnder = "0.00000003" // 3e-8 SOL
	monitorPollInterval   = 5 * time.Second
)

// Store is the persistence collaborator the Market Engine writes through to.
// Implemented by internal/store.
type Store interface {
	UpsertMintMeta(ctx context.Context, m *types.MintState) error
	SaveLiveMint(ctx context.Context, m *types.MintState) error
	RetireMint(ctx context.Context, r *types.RetiredMint) error
}

// mintEntry is the sharded lock-table entry for a single live mint. Its own
// Mutex guards both the MintState and the sub-second disambiguation counter;
// the Engine's RWMutex only protects the map's structure (insert/delete).
type mintEntry struct {
	mu         sync.Mutex
	state      *types.MintState
	lastSecond int64
	counter    int
	cancelMon  context.CancelFunc
}

// Engine owns every live mint's state.
type Engine struct {
	mu    sync.RWMutex
	mints map[string]*mintEntry

	store    Store
	solPrice *solprice.Provider
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New constructs a Market Engine.
func New(store Store, sp *solprice.Provider, logger *slog.Logger) *Engine {
	return &Engine{
		mints:    make(map[string]*mintEntry),
		store:    store,
		solPrice: sp,
		logger:   logger.With("component", "market"),
	}
}

// OnCreation inserts a live mint with zeroed price/volume fields. It is
// idempotent under a duplicate mint_id: the in-memory insert is a true
// no-op, but the Store write-through still runs as a 4-field upsert
// (name, symbol, owner, mint_sig) against the already-tracked row.
func (e *Engine) OnCreation(ctx context.Context, ev types.CreationEvent) error {
	e.mu.Lock()
	existing, tracked := e.mints[ev.Mint]
	if !tracked {
		monCtx, cancel := context.WithCancel(ctx)
		entry := &mintEntry{
			state:     types.NewMintState(ev),
			cancelMon: cancel,
		}
		e.mints[ev.Mint] = entry
		e.mu.Unlock()

		e.wg.Add(1)
		go e.runStagnancyMonitor(monCtx, ev.Mint)

		if err := e.store.UpsertMintMeta(ctx, entry.state); err != nil {
			return errs.Store("market.OnCreation", err)
		}
		return nil
	}
	e.mu.Unlock()

	existing.mu.Lock()
	snapshot := existing.state
	existing.mu.Unlock()

	if err := e.store.UpsertMintMeta(ctx, snapshot); err != nil {
		return errs.Store("market.OnCreation", err)
	}
	return nil
}

// OnSwap applies a decoded Swap record to its mint's in-memory state under
// that mint's exclusive lock.
func (e *Engine) OnSwap(ctx context.Context, ev types.SwapEvent) error {
	e.mu.RLock()
	entry, ok := e.mints[ev.Mint]
	e.mu.RUnlock()
	if !ok {
		return errs.Decode("market.OnSwap", fmt.Errorf("swap for untracked mint %s", ev.Mint))
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.state
	price := computePrice(ev.VirtualSolReserves, ev.VirtualTokenReserves)

	key := entry.nextHistoryKey(ev.Timestamp)
	s.AppendHistory(key, price)

	s.TxCounts.Swaps++
	if ev.IsBuy {
		s.TxCounts.Buys++
	} else {
		s.TxCounts.Sells++
	}

	applyHolderLedger(s, ev, price)

	if !s.HasSwap {
		s.FirstSwapSlot = ev.Slot
		s.LowPrice = price
		s.HasSwap = true
	} else if price.LessThan(s.LowPrice) {
		s.LowPrice = price
	}
	// The open price is the first non-zero price, not the first swap's: a
	// zero-reserve swap still counts transactions but leaves the open unset
	// until a real price lands.
	if s.OpenPrice.IsZero() {
		s.OpenPrice = price
	}
	if price.GreaterThan(s.HighPrice) {
		s.HighPrice = price
	}
	s.CurrentPrice = price

	solUSD := e.solPrice.Current()
	s.PriceUSD = price.Mul(solUSD)
	s.MarketCap = TotalSupply.Mul(price).Mul(solUSD)
	if s.MarketCap.GreaterThan(s.PeakMarketCap) {
		s.PeakMarketCap = s.MarketCap
	}
	s.Liquidity = computeLiquidity(ev.VirtualSolReserves, ev.VirtualTokenReserves, price, solUSD)

	classifyVolumeBucket(s)

	// Write-through while still holding the mint's lock, so Store updates
	// for one mint serialize in event order.
	if err := e.store.SaveLiveMint(ctx, s); err != nil {
		return errs.Store("market.OnSwap", err)
	}

	return nil
}

// GetState returns a read-only snapshot for the Session Controller. The
// returned pointer must not be mutated by the caller.
func (e *Engine) GetState(mint string) (*types.MintState, bool) {
	e.mu.RLock()
	entry, ok := e.mints[mint]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	snap := *entry.state
	snap.Holders = make(map[string]*types.Holder, len(entry.state.Holders))
	for user, h := range entry.state.Holders {
		hc := *h
		hc.BalanceChanges = append([]types.BalanceChange(nil), h.BalanceChanges...)
		snap.Holders[user] = &hc
	}
	return &snap, true
}

// ListMints returns a read-only snapshot of every currently live mint, used
// by the dashboard to render the active-mint table. Order is unspecified.
func (e *Engine) ListMints() []*types.MintState {
	e.mu.RLock()
	entries := make([]*mintEntry, 0, len(e.mints))
	for _, entry := range e.mints {
		entries = append(entries, entry)
	}
	e.mu.RUnlock()

	out := make([]*types.MintState, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		snap := *entry.state
		entry.mu.Unlock()
		out = append(out, &snap)
	}
	return out
}

// Shutdown cancels every live mint's Stagnancy Monitor and waits for them
// to exit.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	for _, entry := range e.mints {
		entry.cancelMon()
	}
	e.mu.RUnlock()
	e.wg.Wait()
}

// nextHistoryKey computes the unique, strictly-increasing price-history key
// for an event with the given integer-second unix timestamp, mutating the
// entry's disambiguation counter. Must be called under entry.mu.
func (e *mintEntry) nextHistoryKey(unixSeconds int64) string {
	if unixSeconds == e.lastSecond {
		e.counter++
	} else {
		e.lastSecond = unixSeconds
		e.counter = 0
	}
	return fmt.Sprintf("%d.%03d", unixSeconds, e.counter)
}

func computePrice(vsr, vtr uint64) decimal.Decimal {
	if vtr == 0 {
		return decimal.Zero
	}
	sol := decimal.NewFromInt(int64(vsr)).Div(decimal.NewFromInt(1_000_000_000))
	tok := decimal.NewFromInt(int64(vtr)).Div(decimal.NewFromInt(1_000_000))
	return sol.Div(tok)
}

func computeLiquidity(vsr, vtr uint64, price, solUSD decimal.Decimal) decimal.Decimal {
	sol := decimal.NewFromInt(int64(vsr)).Div(decimal.NewFromInt(1_000_000_000))
	tok := decimal.NewFromInt(int64(vtr)).Div(decimal.NewFromInt(1_000_000))
	return sol.Add(tok.Mul(price)).Mul(solUSD)
}

func applyHolderLedger(s *types.MintState, ev types.SwapEvent, price decimal.Decimal) {
	amount := decimal.NewFromInt(int64(ev.TokenAmount)).Div(decimal.NewFromInt(1_000_000))

	h, ok := s.Holders[ev.User]
	if !ok {
		h = &types.Holder{Balance: decimal.Zero}
		s.Holders[ev.User] = h
	}

	priorPrice := s.CurrentPrice

	if ev.IsBuy {
		h.Balance = h.Balance.Add(amount)
	} else {
		h.Balance = h.Balance.Sub(amount)
	}

	changeType := "sell"
	if ev.IsBuy {
		changeType = "buy"
	}
	h.BalanceChanges = append(h.BalanceChanges, types.BalanceChange{
		Type:      changeType,
		PriceWas:  priorPrice,
		Amount:    amount,
		Timestamp: time.Unix(ev.Timestamp, 0).UTC(),
	})
}

var volumeBucketThresholds = []struct {
	name string
	max  time.Duration
}{
	{"30s", 30 * time.Second},
	{"60s", 60 * time.Second},
	{"120s", 120 * time.Second},
	{"300s", 300 * time.Second},
}

func classifyVolumeBucket(s *types.MintState) {
	age := time.Since(s.Created)
	for _, b := range volumeBucketThresholds {
		if age <= b.max {
			s.Volume[b.name] = types.VolumeBucket{
				Swaps: s.TxCounts.Swaps,
				Buys:  s.TxCounts.Buys,
				Sells: s.TxCounts.Sells,
			}
			return
		}
	}
}
