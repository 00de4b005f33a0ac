package session

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/internal/config"
	"pumpsentinel/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildLadder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		step    string
		ceiling string
		want    []string
	}{
		{name: "several rungs", step: "5", ceiling: "17", want: []string{"5", "10", "15"}},
		{name: "ceiling below step keeps one rung", step: "5", ceiling: "2", want: []string{"5"}},
		{name: "exact multiple included", step: "5", ceiling: "15", want: []string{"5", "10", "15"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := buildLadder(d(tc.step), d(tc.ceiling))
			if len(got) != len(tc.want) {
				t.Fatalf("buildLadder() = %v, want %v", got, tc.want)
			}
			for i, w := range tc.want {
				if !got[i].Equal(d(w)) {
					t.Errorf("buildLadder()[%d] = %v, want %v", i, got[i], w)
				}
			}
		})
	}
}

func TestAdvanceThresholdFirstStepCollapses(t *testing.T) {
	t.Parallel()

	increments := []decimal.Decimal{d("5"), d("10"), d("15")}

	got := advanceThreshold(increments, 0)
	if !got.Equal(d("2.5")) {
		t.Errorf("advanceThreshold(step 0) = %v, want 2.5", got)
	}

	got = advanceThreshold(increments, 1)
	if !got.Equal(d("12.5")) {
		t.Errorf("advanceThreshold(step 1) = %v, want 12.5", got)
	}
}

func TestMaybeAdvanceLadderFirstAdvanceSkipsCooldown(t *testing.T) {
	t.Parallel()

	c := New(Params{
		Config: config.SessionConfig{
			PriceStepUnits:     5,
			ProfitMargin:       1.0,
			IncrementThreshold: 50,
			IncrementCooldown:  time.Hour,
		},
		Aggregate: types.CreatorAggregate{
			MintCount:          2,
			MedianSuccessRatio: 50, // ladder 5,10,...,50
		},
		Logger: testLogger(),
	})

	now := time.Now()
	c.maybeAdvanceLadder(ConditionSafe, d("10"), d("60"), now)
	if c.currentStep != 1 {
		t.Fatalf("currentStep after first advance = %d, want 1 (no cooldown on the first advance)", c.currentStep)
	}

	// A second advance one second later meets every other criterion but must
	// wait out the cooldown.
	c.maybeAdvanceLadder(ConditionSafe, d("100"), d("60"), now.Add(time.Second))
	if c.currentStep != 1 {
		t.Errorf("currentStep = %d, want 1 (cooldown must block the second advance)", c.currentStep)
	}
}

func TestClassifyCondition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		malicious  bool
		isDropTime bool
		sells      int
		buys       int
		want       string
	}{
		{name: "malicious wins over everything", malicious: true, isDropTime: true, sells: 10, buys: 0, want: ConditionMalicious},
		{name: "drop-time over sells>buys", malicious: false, isDropTime: true, sells: 10, buys: 0, want: ConditionDropTime},
		{name: "sells over buys", malicious: false, isDropTime: false, sells: 3, buys: 1, want: ConditionSellsOverBuys},
		{name: "safe", malicious: false, isDropTime: false, sells: 1, buys: 3, want: ConditionSafe},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classifyCondition(tc.malicious, tc.isDropTime, types.TxCounts{Sells: tc.sells, Buys: tc.buys})
			if got != tc.want {
				t.Errorf("classifyCondition() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPercentChange(t *testing.T) {
	t.Parallel()

	got := percentChange(d("120"), d("100"))
	if !got.Equal(d("20")) {
		t.Errorf("percentChange(120,100) = %v, want 20", got)
	}

	if got := percentChange(d("120"), decimal.Zero); !got.IsZero() {
		t.Errorf("percentChange with zero base = %v, want 0", got)
	}
}
