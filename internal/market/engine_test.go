package market

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/internal/solprice"
	"pumpsentinel/pkg/types"
)

type fakeStore struct {
	mu      sync.Mutex
	upserts int
	saves   int
	retired []*types.RetiredMint
}

func (f *fakeStore) UpsertMintMeta(ctx context.Context, m *types.MintState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	return nil
}

func (f *fakeStore) SaveLiveMint(ctx context.Context, m *types.MintState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return nil
}

func (f *fakeStore) RetireMint(ctx context.Context, r *types.RetiredMint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retired = append(f.retired, r)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	fs := &fakeStore{}
	sp := solprice.New("http://unreachable.invalid", time.Minute, 150.0, discardLogger())
	return New(fs, sp, discardLogger()), fs
}

func TestOnCreationIdempotent(t *testing.T) {
	t.Parallel()

	e, fs := newTestEngine(t)
	ctx := context.Background()
	ev := types.CreationEvent{Mint: "MintA", Name: "A", Symbol: "A", User: "creatorA"}

	if err := e.OnCreation(ctx, ev); err != nil {
		t.Fatalf("first OnCreation() error = %v", err)
	}
	if err := e.OnCreation(ctx, ev); err != nil {
		t.Fatalf("second OnCreation() error = %v", err)
	}

	e.mu.RLock()
	n := len(e.mints)
	e.mu.RUnlock()
	if n != 1 {
		t.Errorf("tracked mint count = %d, want 1 (duplicate creation must be a no-op in memory)", n)
	}

	fs.mu.Lock()
	upserts := fs.upserts
	fs.mu.Unlock()
	if upserts != 2 {
		t.Errorf("store upserts = %d, want 2 (write-through runs even on duplicate creation)", upserts)
	}

	e.Shutdown()
}

func TestOnSwapUniqueOrderedKeys(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	ctx := context.Background()
	mint := "M"
	if err := e.OnCreation(ctx, types.CreationEvent{Mint: mint}); err != nil {
		t.Fatalf("OnCreation() error = %v", err)
	}
	defer e.Shutdown()

	timestamps := []int64{1700000000, 1700000000, 1700000001}
	for _, ts := range timestamps {
		ev := types.SwapEvent{
			Mint: mint, IsBuy: true, Timestamp: ts,
			VirtualSolReserves: 30_000_000_000, VirtualTokenReserves: 1_000_000_000,
		}
		if err := e.OnSwap(ctx, ev); err != nil {
			t.Fatalf("OnSwap() error = %v", err)
		}
	}

	state, ok := e.GetState(mint)
	if !ok {
		t.Fatalf("GetState() ok = false")
	}

	wantKeys := []string{"1700000000.000", "1700000000.001", "1700000001.000"}
	if len(state.PriceHistory) != len(wantKeys) {
		t.Fatalf("PriceHistory len = %d, want %d", len(state.PriceHistory), len(wantKeys))
	}
	for i, want := range wantKeys {
		if got := state.PriceHistory[i].Key; got != want {
			t.Errorf("PriceHistory[%d].Key = %q, want %q", i, got, want)
		}
	}
}

func TestOnSwapCounterConsistency(t *testing.T) {
	t.Parallel()

	e, fs := newTestEngine(t)
	ctx := context.Background()
	mint := "M"
	e.OnCreation(ctx, types.CreationEvent{Mint: mint})
	defer e.Shutdown()

	events := []bool{true, true, false, true, false, false}
	for i, isBuy := range events {
		ev := types.SwapEvent{
			Mint: mint, IsBuy: isBuy, Timestamp: 1700000000 + int64(i),
			VirtualSolReserves: 30_000_000_000, VirtualTokenReserves: 1_000_000_000,
		}
		if err := e.OnSwap(ctx, ev); err != nil {
			t.Fatalf("OnSwap() error = %v", err)
		}
	}

	state, _ := e.GetState(mint)
	if state.TxCounts.Swaps != state.TxCounts.Buys+state.TxCounts.Sells {
		t.Errorf("swaps(%d) != buys(%d)+sells(%d)", state.TxCounts.Swaps, state.TxCounts.Buys, state.TxCounts.Sells)
	}
	if state.TxCounts.Swaps != len(events) {
		t.Errorf("swaps = %d, want %d", state.TxCounts.Swaps, len(events))
	}

	fs.mu.Lock()
	saves := fs.saves
	fs.mu.Unlock()
	if saves != len(events) {
		t.Errorf("store write-throughs = %d, want %d (one per applied swap)", saves, len(events))
	}
}

func TestOnSwapOHLC(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	ctx := context.Background()
	mint := "M"
	e.OnCreation(ctx, types.CreationEvent{Mint: mint})
	defer e.Shutdown()

	// vsr/vtr chosen so price = vsr/1e9 / (vtr/1e6) lands on 1e-8, 5e-8, 2e-8, 7e-8.
	type sample struct{ vsr, vtr uint64 }
	samples := []sample{
		{vsr: 10, vtr: 1_000_000},  // price = 1e-8
		{vsr: 50, vtr: 1_000_000},  // price = 5e-8
		{vsr: 20, vtr: 1_000_000},  // price = 2e-8
		{vsr: 70, vtr: 1_000_000},  // price = 7e-8
	}
	for i, s := range samples {
		ev := types.SwapEvent{
			Mint: mint, IsBuy: true, Timestamp: 1700000000 + int64(i),
			VirtualSolReserves: s.vsr, VirtualTokenReserves: s.vtr,
		}
		if err := e.OnSwap(ctx, ev); err != nil {
			t.Fatalf("OnSwap() error = %v", err)
		}
	}

	state, _ := e.GetState(mint)
	want := map[string]decimal.Decimal{
		"open":    decimal.RequireFromString("0.00000001"),
		"high":    decimal.RequireFromString("0.00000007"),
		"low":     decimal.RequireFromString("0.00000001"),
		"current": decimal.RequireFromString("0.00000007"),
	}
	if !state.OpenPrice.Equal(want["open"]) {
		t.Errorf("OpenPrice = %s, want %s", state.OpenPrice, want["open"])
	}
	if !state.HighPrice.Equal(want["high"]) {
		t.Errorf("HighPrice = %s, want %s", state.HighPrice, want["high"])
	}
	if !state.LowPrice.Equal(want["low"]) {
		t.Errorf("LowPrice = %s, want %s", state.LowPrice, want["low"])
	}
	if !state.CurrentPrice.Equal(want["current"]) {
		t.Errorf("CurrentPrice = %s, want %s", state.CurrentPrice, want["current"])
	}
}

func TestOnSwapZeroTokenReserves(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	ctx := context.Background()
	mint := "M"
	e.OnCreation(ctx, types.CreationEvent{Mint: mint})
	defer e.Shutdown()

	// First swap has empty token reserves, so its price is zero; the event
	// must still count, but the open price waits for the first real price
	// and the zero must survive as the historical low.
	type sample struct{ vsr, vtr uint64 }
	samples := []sample{
		{vsr: 50, vtr: 0},          // price = 0
		{vsr: 50, vtr: 1_000_000},  // price = 5e-8
		{vsr: 20, vtr: 1_000_000},  // price = 2e-8
	}
	for i, s := range samples {
		ev := types.SwapEvent{
			Mint: mint, IsBuy: true, Timestamp: 1700000000 + int64(i),
			VirtualSolReserves: s.vsr, VirtualTokenReserves: s.vtr,
		}
		if err := e.OnSwap(ctx, ev); err != nil {
			t.Fatalf("OnSwap() error = %v", err)
		}
	}

	state, _ := e.GetState(mint)
	if state.TxCounts.Swaps != len(samples) {
		t.Errorf("swaps = %d, want %d (zero-price swap must still count)", state.TxCounts.Swaps, len(samples))
	}
	if want := decimal.RequireFromString("0.00000005"); !state.OpenPrice.Equal(want) {
		t.Errorf("OpenPrice = %s, want %s (first non-zero price)", state.OpenPrice, want)
	}
	if !state.LowPrice.IsZero() {
		t.Errorf("LowPrice = %s, want 0 (zero price is a legitimate low)", state.LowPrice)
	}
	if want := decimal.RequireFromString("0.00000005"); !state.HighPrice.Equal(want) {
		t.Errorf("HighPrice = %s, want %s", state.HighPrice, want)
	}
	if want := decimal.RequireFromString("0.00000002"); !state.CurrentPrice.Equal(want) {
		t.Errorf("CurrentPrice = %s, want %s", state.CurrentPrice, want)
	}
}

func TestOnSwapUntrackedMintErrors(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	defer e.Shutdown()

	err := e.OnSwap(context.Background(), types.SwapEvent{Mint: "ghost"})
	if err == nil {
		t.Fatalf("OnSwap() on an untracked mint: error = nil, want non-nil")
	}
}
