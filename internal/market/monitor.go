package market

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/pkg/types"
)

var lowPriceThreshold = decimal.RequireFromString(stagnantLowPriceUnder)

// runStagnancyMonitor polls a live mint every 5 seconds and retires it when
// either it has gone quiet for 5 minutes, or its price sits at or below the
// low-price threshold with no new swap for 30 seconds. If the monitor observes
// the live record already gone (retired by a racing call, or never
// inserted), it exits without retiring anything.
func (e *Engine) runStagnancyMonitor(ctx context.Context, mint string) {
	defer e.wg.Done()

	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.RLock()
		entry, ok := e.mints[mint]
		e.mu.RUnlock()
		if !ok {
			return
		}

		entry.mu.Lock()
		lastKeyAge, hasHistory := lastHistoryAge(entry.state)
		if !hasHistory {
			// Never traded; measure quiet time from creation so the
			// monitor eventually gives up instead of polling forever.
			lastKeyAge = time.Since(entry.state.Created)
		}
		belowThreshold := entry.state.HasSwap && entry.state.CurrentPrice.LessThanOrEqual(lowPriceThreshold)
		entry.mu.Unlock()

		shouldRetire := false
		switch {
		case lastKeyAge > stagnantNoSwapWindow:
			shouldRetire = true
		case belowThreshold && lastKeyAge >= stagnantLowPriceFor:
			shouldRetire = true
		}

		if shouldRetire && e.retire(ctx, mint, entry) {
			return
		}
	}
}

// lastHistoryAge returns how long ago the most recent price-history key was
// recorded, parsed from its integer-second prefix.
func lastHistoryAge(s *types.MintState) (time.Duration, bool) {
	key := s.LastHistoryKey()
	if key == "" {
		return 0, false
	}
	secStr, _, found := strings.Cut(key, ".")
	if !found {
		return 0, false
	}
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Since(time.Unix(sec, 0)), true
}

// retire builds the retired record and atomically moves it: the Store
// inserts into stagnant_mints (on-conflict-do-nothing) before deleting from
// the live table, then the mint is dropped from the in-memory table. It
// reports whether the move succeeded; on a Store failure the mint stays live
// and the monitor tries again on its next poll.
func (e *Engine) retire(ctx context.Context, mint string, entry *mintEntry) bool {
	entry.mu.Lock()
	s := entry.state
	retired := &types.RetiredMint{
		MintID:          s.MintID,
		Name:            s.Name,
		Symbol:          s.Symbol,
		Creator:         s.Creator,
		Holders:         s.Holders,
		PriceHistory:    s.PriceHistory,
		TxCounts:        s.TxCounts,
		Volume:          s.Volume,
		PeakPriceChange: peakPriceChangePct(s),
		PeakMarketCap:   s.PeakMarketCap,
		FinalMarketCap:  s.MarketCap,
		FinalOHLC: types.OHLC{
			Open:  s.OpenPrice,
			High:  s.HighPrice,
			Low:   s.LowPrice,
			Close: s.CurrentPrice,
		},
		MintSig:      s.MintSig,
		BondingCurve: s.BondingCurve,
		SlotDelay:    slotDelay(s),
		RetiredAt:    time.Now().UTC(),
	}
	entry.mu.Unlock()

	if err := e.store.RetireMint(ctx, retired); err != nil {
		e.logger.Error("retire mint failed, leaving in live table for retry",
			"mint", mint, "error", err)
		return false
	}

	e.mu.Lock()
	delete(e.mints, mint)
	e.mu.Unlock()

	e.logger.Info("mint retired", "mint", mint, "reason", retirementReason(retired))
	return true
}

func retirementReason(r *types.RetiredMint) string {
	if r.FinalOHLC.Close.LessThanOrEqual(lowPriceThreshold) {
		return "price-below-threshold"
	}
	return "no-swap-window"
}

// slotDelay is how many slots passed between the mint's creation and its
// first swap, or 0 when no swap ever landed.
func slotDelay(s *types.MintState) uint64 {
	if s.FirstSwapSlot == 0 || s.FirstSwapSlot < s.CreatedSlot {
		return 0
	}
	return s.FirstSwapSlot - s.CreatedSlot
}

func peakPriceChangePct(s *types.MintState) decimal.Decimal {
	if s.OpenPrice.IsZero() {
		return decimal.Zero
	}
	return s.HighPrice.Sub(s.OpenPrice).Div(s.OpenPrice).Mul(decimal.NewFromInt(100))
}
