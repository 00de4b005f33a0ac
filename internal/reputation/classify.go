package reputation

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pumpsentinel/pkg/types"
)

// median returns the middle value of a sorted copy of vals: the middle
// element for an odd-length list, the mean of the two middle elements for
// an even-length list, and 0 for an empty list.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// medianDecimal is median for fixed-point samples, used for the price and
// market-cap aggregates that must not lose precision to float64.
func medianDecimal(vals []decimal.Decimal) decimal.Decimal {
	if len(vals) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].GreaterThan(sorted[j]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// parseHistoryKeySeconds recovers an approximate occurrence time from a
// price-history key of the form "{unix_seconds}.{3-digit counter}", treating
// the counter as a sub-second fraction. Good enough for "closest sample to a
// target time" comparisons; it is never used as a wall-clock value.
func parseHistoryKeySeconds(key string) (float64, bool) {
	secStr, counterStr, found := strings.Cut(key, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return 0, false
	}
	if !found {
		return float64(sec), true
	}
	counter, err := strconv.Atoi(counterStr)
	if err != nil {
		return float64(sec), true
	}
	return float64(sec) + float64(counter)/1000, true
}

// historySamples flattens a mint's price history into parallel
// timestamp/price slices in occurrence order, skipping any key that fails to
// parse.
func historySamples(h []types.HistoryEntry) ([]float64, []decimal.Decimal) {
	ts := make([]float64, 0, len(h))
	prices := make([]decimal.Decimal, 0, len(h))
	for _, e := range h {
		sec, ok := parseHistoryKeySeconds(e.Key)
		if !ok {
			continue
		}
		ts = append(ts, sec)
		prices = append(prices, e.Price)
	}
	return ts, prices
}

func firstTimestamp(m types.RetiredMint) (float64, bool) {
	if len(m.PriceHistory) == 0 {
		return 0, false
	}
	return parseHistoryKeySeconds(m.PriceHistory[0].Key)
}

// classify implements is_successful: the snipe price is the sample closest
// to firstTS+sniping_price_time, ties broken toward the earlier sample; a
// mint is successful if its peak is at least snipeToPeakRatio times the
// snipe price AND the peak occurs at or after minSwapsIdx in occurrence
// order. Returns the success flag and, when successful, the percent gain
// from snipe to peak.
func classify(timestamps []float64, prices []decimal.Decimal, snipingPriceTime, snipeToPeakRatio float64, minSwapsIdx int) (bool, float64) {
	if len(timestamps) == 0 || len(timestamps) != len(prices) {
		return false, 0
	}

	target := timestamps[0] + snipingPriceTime
	snipeIdx := 0
	bestDiff := abs(timestamps[0] - target)
	for i := 1; i < len(timestamps); i++ {
		d := abs(timestamps[i] - target)
		if d < bestDiff {
			bestDiff = d
			snipeIdx = i
		}
	}
	snipe := prices[snipeIdx]
	if snipe.IsZero() {
		return false, 0
	}

	peakIdx := 0
	for i := 1; i < len(prices); i++ {
		if prices[i].GreaterThan(prices[peakIdx]) {
			peakIdx = i
		}
	}
	peak := prices[peakIdx]

	if !peak.GreaterThanOrEqual(snipe.Mul(decimal.NewFromFloat(snipeToPeakRatio))) {
		return false, 0
	}
	if peakIdx < minSwapsIdx {
		return false, 0
	}

	ratio := peak.Sub(snipe).Div(snipe).Mul(decimal.NewFromInt(100))
	r, _ := ratio.Float64()
	return true, r
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
