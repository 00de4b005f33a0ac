// Package reputation is the creator reputation Analyzer: it loads the
// retired-mint table in fixed-size chunks, aggregates per-creator
// statistics, and publishes a Leaderboard of creators trusted enough to
// trade against.
package reputation

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pumpsentinel/internal/config"
	"pumpsentinel/internal/errs"
	"pumpsentinel/internal/store"
	"pumpsentinel/pkg/types"
)

// Store is the persistence collaborator the Analyzer reads from. Satisfied
// by *internal/store.Store.
type Store interface {
	DB() *gorm.DB
	CountStagnantMints(ctx context.Context) (int64, error)
}

// Analyzer runs the full chunked-read-and-aggregate pass that produces a
// fresh Leaderboard.
type Analyzer struct {
	store     Store
	cfg       config.ReputationConfig
	chunkSize int
	logger    *slog.Logger
}

// New constructs an Analyzer. chunkSize defaults to 25,000 when
// non-positive.
func New(s Store, cfg config.ReputationConfig, chunkSize int, logger *slog.Logger) *Analyzer {
	if chunkSize <= 0 {
		chunkSize = 25000
	}
	return &Analyzer{
		store:     s,
		cfg:       cfg,
		chunkSize: chunkSize,
		logger:    logger.With("component", "reputation"),
	}
}

// Run reads every retired mint, in mint_id order, in chunkSize pages, each
// page under its own repeatable-read transaction, then builds and returns a
// fresh Leaderboard. CPU-bound aggregation runs synchronously on the calling
// goroutine: there is no separate worker pool to hand it off to, only the
// guarantee that this goroutine is not the Orchestrator's dispatcher.
func (a *Analyzer) Run(ctx context.Context) (*types.Leaderboard, error) {
	total, err := a.store.CountStagnantMints(ctx)
	if err != nil {
		return nil, errs.Store("reputation.Run", err)
	}

	perCreator := make(map[string][]types.RetiredMint)
	seenMints := make(map[string]bool)

	for offset := int64(0); offset == 0 || offset < total; offset += int64(a.chunkSize) {
		var chunk []*types.RetiredMint
		txErr := a.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ").Error; err != nil {
				return err
			}
			loaded, err := store.LoadStagnantChunk(tx, int(offset), a.chunkSize)
			if err != nil {
				return err
			}
			chunk = loaded
			return nil
		})
		if txErr != nil {
			return nil, errs.Store("reputation.Run", txErr)
		}
		if len(chunk) == 0 {
			break
		}

		for _, rm := range chunk {
			if seenMints[rm.MintID] {
				continue
			}
			seenMints[rm.MintID] = true
			perCreator[rm.Creator] = append(perCreator[rm.Creator], *rm)
		}

		if len(chunk) < a.chunkSize {
			break
		}
	}

	creators := make(map[string]types.CreatorAggregate, len(perCreator))
	for creator, mints := range perCreator {
		agg := a.aggregate(creator, mints)
		if !a.passesGate(agg) {
			continue
		}
		creators[creator] = agg
	}

	a.logger.Info("reputation pass complete",
		"retired_mints_seen", len(seenMints),
		"creators_considered", len(perCreator),
		"creators_trusted", len(creators),
	)

	return &types.Leaderboard{Creators: creators, ComputedAt: time.Now().UTC()}, nil
}

// aggregate folds one creator's retired mints into a CreatorAggregate.
func (a *Analyzer) aggregate(creator string, mints []types.RetiredMint) types.CreatorAggregate {
	agg := types.CreatorAggregate{Creator: creator, MintCount: len(mints)}

	openPrices := make([]decimal.Decimal, 0, len(mints))
	peakPrices := make([]decimal.Decimal, 0, len(mints))
	currentPrices := make([]decimal.Decimal, 0, len(mints))
	peakMCs := make([]decimal.Decimal, 0, len(mints))
	finalMCs := make([]decimal.Decimal, 0, len(mints))
	firstTimestamps := make([]float64, 0, len(mints))
	successRatios := make([]float64, 0, len(mints))

	for _, m := range mints {
		agg.TotalSwaps += m.TxCounts.Swaps
		openPrices = append(openPrices, m.FinalOHLC.Open)
		peakPrices = append(peakPrices, m.FinalOHLC.High)
		currentPrices = append(currentPrices, m.FinalOHLC.Close)
		peakMCs = append(peakMCs, m.PeakMarketCap)
		finalMCs = append(finalMCs, m.FinalMarketCap)

		if ts, ok := firstTimestamp(m); ok {
			firstTimestamps = append(firstTimestamps, ts)
		}

		ts, prices := historySamples(m.PriceHistory)
		ok, ratio := classify(ts, prices, a.cfg.SnipingPriceTime, a.cfg.SnipeToPeakRatio, a.cfg.HighestPriceMinSwaps)
		if ok {
			agg.SuccessCount++
			successRatios = append(successRatios, ratio)
		} else {
			agg.UnsuccessCount++
		}
	}

	sort.Float64s(firstTimestamps)
	for i := 1; i < len(firstTimestamps); i++ {
		agg.CreationDelays = append(agg.CreationDelays, firstTimestamps[i]-firstTimestamps[i-1])
	}

	agg.MedianOpenPrice = medianDecimal(openPrices)
	agg.MedianPeakPrice = medianDecimal(peakPrices)
	agg.MedianCurrentPrice = medianDecimal(currentPrices)
	agg.MedianPeakMarketCap = medianDecimal(peakMCs)
	agg.MedianFinalMarketCap = medianDecimal(finalMCs)
	agg.SuccessRatios = successRatios
	agg.AvgSuccessRatio = avg(successRatios)
	agg.MedianSuccessRatio = median(successRatios)

	if total := agg.SuccessCount + agg.UnsuccessCount; total > 0 {
		agg.TrustFactor = float64(agg.SuccessCount) / float64(total)
	}

	peakMCFloat, _ := agg.MedianPeakMarketCap.Float64()
	openFloat, _ := agg.MedianOpenPrice.Float64()
	denom := math.Max(openFloat, 1)
	agg.PerformanceScore = decimal.NewFromFloat(
		float64(agg.MintCount) * peakMCFloat * agg.MedianSuccessRatio / denom,
	)

	return agg
}

// passesGate applies the two-tier mint_count/median_peak_mc/total_swaps
// gate, the trust_factor floor, and the sybil exclusion (an unsuccessful
// mint alongside a creation delay under the sybil threshold).
func (a *Analyzer) passesGate(agg types.CreatorAggregate) bool {
	peakMC, _ := agg.MedianPeakMarketCap.Float64()

	tier2 := agg.MintCount >= 2 && peakMC >= a.cfg.MedianPeakMCAbove2 && agg.TotalSwaps >= a.cfg.TotalSwapsAbove2Mints
	tier1 := agg.MintCount >= 1 && peakMC >= a.cfg.MedianPeakMCAbove1 && agg.TotalSwaps >= a.cfg.TotalSwapsAbove1Mint
	if !tier2 && !tier1 {
		return false
	}

	if agg.TrustFactor < a.cfg.TrustFactorRatio {
		return false
	}

	if agg.UnsuccessCount > 0 {
		for _, d := range agg.CreationDelays {
			if d < a.cfg.SybilDelayThreshold {
				return false
			}
		}
	}

	return true
}
