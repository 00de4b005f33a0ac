package session

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"pumpsentinel/internal/config"
	"pumpsentinel/pkg/types"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewTrustLevel(t *testing.T) {
	t.Parallel()

	cfg := config.SessionConfig{
		PriceStepUnits:       5,
		ProfitMargin:         0.8,
		TrustLevel2MarketCap: 50000,
	}

	cases := []struct {
		name      string
		mintCount int
		peakMC    string
		want      int
	}{
		{name: "single mint always tl1", mintCount: 1, peakMC: "100000", want: 1},
		{name: "multi mint high peak mc is tl2", mintCount: 3, peakMC: "60000", want: 2},
		{name: "multi mint low peak mc is tl1", mintCount: 3, peakMC: "1000", want: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := New(Params{
				Mint:    "mint1",
				Creator: "creator1",
				Config:  cfg,
				Aggregate: types.CreatorAggregate{
					MintCount:           tc.mintCount,
					MedianPeakMarketCap: d(tc.peakMC),
					MedianSuccessRatio:  60,
				},
				Logger: testLogger(),
			})
			if c.trustLevel != tc.want {
				t.Errorf("trustLevel = %d, want %d", c.trustLevel, tc.want)
			}
		})
	}
}

func TestTightenLadderFiltersIncrements(t *testing.T) {
	t.Parallel()

	cfg := config.SessionConfig{
		PriceStepUnits: 5,
		ProfitMargin:   1.0,
	}
	c := New(Params{
		Config: cfg,
		Aggregate: types.CreatorAggregate{
			MintCount:          2,
			MedianSuccessRatio: 50, // profit_range = 1.0 * 50 = 50
		},
		OpenPrice: decimal.NewFromInt(100),
		Logger:    testLogger(),
	})
	// increments: 5,10,...,50
	if len(c.increments) != 10 {
		t.Fatalf("initial ladder len = %d, want 10", len(c.increments))
	}

	c.buyPrice = decimal.NewFromInt(120) // 20% above open
	c.tightenLadder()

	// personal_range = max(50-20, 0) = 30; personal_factor = 30/20 = 1.5; threshold = 150
	// every original rung (<=50) survives since threshold=150
	if len(c.increments) != 10 {
		t.Errorf("tightened ladder len = %d, want 10 (threshold above all rungs)", len(c.increments))
	}
}

func TestTightenLadderResetsToSingleStepWhenEmpty(t *testing.T) {
	t.Parallel()

	cfg := config.SessionConfig{
		PriceStepUnits: 5,
		ProfitMargin:   0.1,
	}
	c := New(Params{
		Config: cfg,
		Aggregate: types.CreatorAggregate{
			MintCount:          2,
			MedianSuccessRatio: 10, // profit_range = 0.1*10 = 1
		},
		OpenPrice: decimal.NewFromInt(100),
		Logger:    testLogger(),
	})

	c.buyPrice = decimal.NewFromInt(150) // 50% above open, dwarfing the 1%-wide profit range
	c.tightenLadder()

	if len(c.increments) != 1 || !c.increments[0].Equal(decimal.NewFromFloat(5)) {
		t.Errorf("increments = %v, want [5]", c.increments)
	}
}
