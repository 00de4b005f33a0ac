package reputation

import (
	"testing"

	"github.com/shopspring/decimal"

	"pumpsentinel/internal/config"
	"pumpsentinel/pkg/types"
)

func TestMedian(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []float64
		want float64
	}{
		{name: "odd", in: []float64{1, 3, 5}, want: 3},
		{name: "even", in: []float64{1, 3, 5, 9}, want: 4.0},
		{name: "empty", in: nil, want: 0},
		{name: "unsorted odd", in: []float64{5, 1, 3}, want: 3},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := median(tc.in); got != tc.want {
				t.Errorf("median(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestClassifySuccessCase(t *testing.T) {
	t.Parallel()

	timestamps := []float64{0, 0.9, 1.1, 2.0, 3.0}
	prices := []decimal.Decimal{dec("100"), dec("110"), dec("120"), dec("160"), dec("170")}

	ok, ratio := classify(timestamps, prices, 1, 1.5, 3)
	if !ok {
		t.Fatalf("classify() ok = false, want true")
	}
	// (170-110)/110*100 = 54.545...
	if ratio < 54.4 || ratio > 54.6 {
		t.Errorf("ratio = %v, want ~54.5", ratio)
	}
}

func TestClassifyFailsOnPeakIndexTooEarly(t *testing.T) {
	t.Parallel()

	timestamps := []float64{0, 0.9, 1.1}
	prices := []decimal.Decimal{dec("100"), dec("110"), dec("500")}

	// peak occurs at index 2, but min swaps index required is 3.
	ok, _ := classify(timestamps, prices, 1, 1.5, 3)
	if ok {
		t.Errorf("classify() ok = true, want false (peak index below min swaps threshold)")
	}
}

func TestClassifyFailsOnInsufficientRatio(t *testing.T) {
	t.Parallel()

	timestamps := []float64{0, 0.9, 1.1, 2.0}
	prices := []decimal.Decimal{dec("100"), dec("110"), dec("120"), dec("120")}

	ok, _ := classify(timestamps, prices, 1, 1.5, 0)
	if ok {
		t.Errorf("classify() ok = true, want false (peak/snipe ratio below threshold)")
	}
}

func TestPassesGateIsPureFunctionOfAggregateAndConfig(t *testing.T) {
	t.Parallel()

	cfg := config.ReputationConfig{
		TotalSwapsAbove2Mints: 10,
		TotalSwapsAbove1Mint:  20,
		MedianPeakMCAbove2:    1000,
		MedianPeakMCAbove1:    5000,
		TrustFactorRatio:      0.5,
		SybilDelayThreshold:   900,
	}
	a := &Analyzer{cfg: cfg}

	cases := []struct {
		name string
		agg  types.CreatorAggregate
		want bool
	}{
		{
			name: "tier2 passes",
			agg: types.CreatorAggregate{
				MintCount: 2, TotalSwaps: 15,
				MedianPeakMarketCap: decimal.NewFromInt(2000),
				TrustFactor:          0.8,
			},
			want: true,
		},
		{
			name: "tier1 insufficient swaps",
			agg: types.CreatorAggregate{
				MintCount: 1, TotalSwaps: 5,
				MedianPeakMarketCap: decimal.NewFromInt(9000),
				TrustFactor:          0.8,
			},
			want: false,
		},
		{
			name: "trust factor too low",
			agg: types.CreatorAggregate{
				MintCount: 2, TotalSwaps: 15,
				MedianPeakMarketCap: decimal.NewFromInt(2000),
				TrustFactor:          0.1,
			},
			want: false,
		},
		{
			name: "sybil exclusion",
			agg: types.CreatorAggregate{
				MintCount: 2, TotalSwaps: 15,
				MedianPeakMarketCap: decimal.NewFromInt(2000),
				TrustFactor:          0.8,
				UnsuccessCount:       1,
				CreationDelays:       []float64{100},
			},
			want: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := a.passesGate(tc.agg); got != tc.want {
				t.Errorf("passesGate() = %v, want %v", got, tc.want)
			}
		})
	}
}
