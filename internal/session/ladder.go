package session

import (
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/pkg/types"
)

// sample is one point in the rolling 5-second composite-score window.
type sample struct {
	t     time.Time
	price decimal.Decimal
	swaps int
}

const compositeWindow = 5 * time.Second

// buildLadder constructs the profit ladder [step, 2*step, ...] up to
// ceiling. The first rung is always present even if it already exceeds
// ceiling, so increments[currentStep] is always a valid sell target.
func buildLadder(step, ceiling decimal.Decimal) []decimal.Decimal {
	out := []decimal.Decimal{step}
	for k := 2; ; k++ {
		incr := step.Mul(decimal.NewFromInt(int64(k)))
		if incr.GreaterThan(ceiling) {
			return out
		}
		out = append(out, incr)
	}
}

// tightenLadder shrinks the ladder after the fill price is known: if the buy
// landed above the open price, the creator's remaining profit range is
// smaller than what the original ladder was built from, so a tighter ceiling
// is computed once and the ladder is filtered against it.
func (c *Controller) tightenLadder() {
	if !c.buyPrice.GreaterThan(c.openPrice) {
		return
	}

	openToBuyDiffPct := percentChange(c.buyPrice, c.openPrice)
	if openToBuyDiffPct.IsZero() {
		return
	}

	profitRange := decimal.NewFromFloat(c.cfg.ProfitMargin * c.agg.MedianSuccessRatio)
	personalRange := profitRange.Sub(openToBuyDiffPct)
	if personalRange.IsNegative() {
		personalRange = decimal.Zero
	}
	personalFactor := personalRange.Div(openToBuyDiffPct)
	threshold := personalFactor.Mul(decimal.NewFromInt(100))

	filtered := make([]decimal.Decimal, 0, len(c.increments))
	for _, incr := range c.increments {
		if incr.LessThanOrEqual(threshold) {
			filtered = append(filtered, incr)
		}
	}
	if len(filtered) == 0 {
		filtered = []decimal.Decimal{decimal.NewFromFloat(c.cfg.PriceStepUnits)}
	}
	c.increments = filtered
	if c.currentStep >= len(c.increments) {
		c.currentStep = len(c.increments) - 1
	}
}

// advanceThreshold returns the selfPeakChange a session must reach before
// advancing from step to step+1: current plus half the gap to the next
// rung, except the first step, which collapses to half the gap alone.
func advanceThreshold(increments []decimal.Decimal, step int) decimal.Decimal {
	current := increments[step]
	next := increments[step+1]
	half := next.Sub(current).Div(decimal.NewFromInt(2))
	if step == 0 {
		return half
	}
	return current.Add(half)
}

// updateComposite appends the current sample, prunes samples older than the
// rolling window, and returns the composite momentum score: a weighted sum
// of price-change percent and per-second swap delta, clamped to [0, 100].
func (c *Controller) updateComposite(now time.Time, state *types.MintState) decimal.Decimal {
	c.window = append(c.window, sample{t: now, price: state.CurrentPrice, swaps: state.TxCounts.Swaps})

	cutoff := now.Add(-compositeWindow)
	i := 0
	for i < len(c.window) && c.window[i].t.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.window = c.window[i:]
	}

	oldest := c.window[0]
	latest := c.window[len(c.window)-1]

	priceChangePct := percentChange(latest.price, oldest.price)

	deltaT := latest.t.Sub(oldest.t).Seconds()
	var txMomentum decimal.Decimal
	if deltaT > 0 {
		deltaSwaps := decimal.NewFromInt(int64(latest.swaps - oldest.swaps))
		txMomentum = deltaSwaps.Div(decimal.NewFromFloat(deltaT)).Mul(decimal.NewFromInt(10))
	}

	composite := decimal.NewFromFloat(c.cfg.PriceTrendWeight).Mul(priceChangePct).
		Add(decimal.NewFromFloat(c.cfg.TxMomentumWeight).Mul(txMomentum))

	return clamp(composite, decimal.Zero, decimal.NewFromInt(100))
}

func clamp(d, min, max decimal.Decimal) decimal.Decimal {
	if d.LessThan(min) {
		return min
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}

// maybeAdvanceLadder moves the sell target one rung up when the session is
// safe, the peak gain has crossed the advance threshold, momentum is strong
// enough, and the cooldown since the last advance has elapsed.
func (c *Controller) maybeAdvanceLadder(condition string, selfPeakChange, composite decimal.Decimal, now time.Time) {
	if condition != ConditionSafe {
		return
	}
	if c.currentStep >= len(c.increments)-1 {
		return
	}
	threshold := advanceThreshold(c.increments, c.currentStep)
	if selfPeakChange.LessThan(threshold) {
		return
	}
	if composite.LessThanOrEqual(decimal.NewFromFloat(c.cfg.IncrementThreshold)) {
		return
	}
	// The cooldown only applies between advances; the first is free.
	if !c.lastIncrementTime.IsZero() && now.Sub(c.lastIncrementTime) <= c.cfg.IncrementCooldown {
		return
	}
	c.currentStep++
	c.lastIncrementTime = now
}

// maybeResetLadder drops the sell target back to the first rung on a
// malicious or drop-time condition, or on sells>buys with weak momentum.
func (c *Controller) maybeResetLadder(condition string, composite decimal.Decimal) {
	switch {
	case condition == ConditionMalicious || condition == ConditionDropTime:
		c.currentStep = 0
	case condition == ConditionSellsOverBuys && composite.LessThan(decimal.NewFromFloat(c.cfg.DecrementThreshold)):
		c.currentStep = 0
	}
}
