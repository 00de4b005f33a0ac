package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/pkg/types"
)

func TestLastHistoryAge(t *testing.T) {
	t.Parallel()

	s := types.NewMintState(types.CreationEvent{Mint: "M"})
	if _, ok := lastHistoryAge(s); ok {
		t.Errorf("lastHistoryAge() on empty history: ok = true, want false")
	}

	recentSec := time.Now().Add(-2 * time.Second).Unix()
	s.AppendHistory(formatKey(recentSec, 0), decimal.NewFromInt(1))

	age, ok := lastHistoryAge(s)
	if !ok {
		t.Fatalf("lastHistoryAge() ok = false, want true")
	}
	if age < time.Second || age > 5*time.Second {
		t.Errorf("lastHistoryAge() = %v, want roughly 2s", age)
	}
}

func formatKey(sec int64, counter int) string {
	return fmt.Sprintf("%d.%03d", sec, counter)
}

func TestPeakPriceChangePct(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		open decimal.Decimal
		high decimal.Decimal
		want decimal.Decimal
	}{
		{
			name: "zero open yields zero change",
			open: decimal.Zero,
			high: decimal.NewFromInt(100),
			want: decimal.Zero,
		},
		{
			name: "forty percent gain",
			open: decimal.NewFromInt(100),
			high: decimal.NewFromInt(140),
			want: decimal.NewFromInt(40),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := &types.MintState{OpenPrice: tc.open, HighPrice: tc.high}
			got := peakPriceChangePct(s)
			if !got.Equal(tc.want) {
				t.Errorf("peakPriceChangePct() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRetireMovesMintAndSnapshotsState(t *testing.T) {
	t.Parallel()

	e, fs := newTestEngine(t)
	ctx := context.Background()
	mint := "M"
	if err := e.OnCreation(ctx, types.CreationEvent{Mint: mint, User: "creatorA", Slot: 100}); err != nil {
		t.Fatalf("OnCreation() error = %v", err)
	}
	defer e.Shutdown()

	// Two swaps: price rises to 5e-8 then falls back to 1e-8, so the peak
	// market cap must come from the first swap, not the final state.
	swaps := []struct {
		vsr uint64
		ts  int64
	}{
		{vsr: 50, ts: 1700000000},
		{vsr: 10, ts: 1700000001},
	}
	for i, s := range swaps {
		ev := types.SwapEvent{
			Mint: mint, IsBuy: true, Timestamp: s.ts, Slot: 110 + uint64(i),
			VirtualSolReserves: s.vsr, VirtualTokenReserves: 1_000_000,
		}
		if err := e.OnSwap(ctx, ev); err != nil {
			t.Fatalf("OnSwap() error = %v", err)
		}
	}

	e.mu.RLock()
	entry := e.mints[mint]
	e.mu.RUnlock()
	e.retire(ctx, mint, entry)

	fs.mu.Lock()
	retired := append([]*types.RetiredMint(nil), fs.retired...)
	fs.mu.Unlock()
	if len(retired) != 1 {
		t.Fatalf("retired count = %d, want 1", len(retired))
	}

	r := retired[0]
	if r.SlotDelay != 10 {
		t.Errorf("SlotDelay = %d, want 10", r.SlotDelay)
	}
	if !r.PeakMarketCap.GreaterThan(r.FinalMarketCap) {
		t.Errorf("PeakMarketCap = %s, want greater than FinalMarketCap %s", r.PeakMarketCap, r.FinalMarketCap)
	}
	if !r.FinalOHLC.High.Equal(decimal.RequireFromString("0.00000005")) {
		t.Errorf("FinalOHLC.High = %s, want 0.00000005", r.FinalOHLC.High)
	}
	if !r.FinalOHLC.Close.Equal(decimal.RequireFromString("0.00000001")) {
		t.Errorf("FinalOHLC.Close = %s, want 0.00000001", r.FinalOHLC.Close)
	}

	if _, ok := e.GetState(mint); ok {
		t.Errorf("GetState() ok = true after retirement, want false")
	}
}

func TestRetirementReason(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		close decimal.Decimal
		want  string
	}{
		{name: "below threshold", close: decimal.RequireFromString("0.00000002"), want: "price-below-threshold"},
		{name: "above threshold", close: decimal.RequireFromString("0.0001"), want: "no-swap-window"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := &types.RetiredMint{FinalOHLC: types.OHLC{Close: tc.close}}
			if got := retirementReason(r); got != tc.want {
				t.Errorf("retirementReason() = %q, want %q", got, tc.want)
			}
		})
	}
}
