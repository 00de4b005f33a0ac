// Package session is the Session Controller: one goroutine per actively
// traded mint running a 10ms tick loop that decides when to buy, when to
// ride a rising price via a profit ladder, and when to exit. A session buys
// at most once; the sell is the terminal transition.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pumpsentinel/internal/blacklist"
	"pumpsentinel/internal/config"
	"pumpsentinel/internal/errs"
	"pumpsentinel/internal/journal"
	"pumpsentinel/internal/solprice"
	"pumpsentinel/internal/swapexec"
	"pumpsentinel/internal/wallet"
	"pumpsentinel/pkg/types"
)

const tickInterval = 10 * time.Millisecond

// Condition labels, in priority order (highest first). Exit reasons reuse
// these same strings plus "stagnant", which is not a condition but an
// independent exit trigger.
const (
	ConditionMalicious     = "malicious"
	ConditionDropTime      = "drop-time"
	ConditionSellsOverBuys = "sells>buys"
	ConditionSafe          = "safe"

	ReasonStagnant = "stagnant"
)

var lowPriceFloor = decimal.RequireFromString("0.00000003") // 3e-8 SOL

// MarketView is the Session Controller's read-only view of live mint state,
// implemented by *market.Engine.
type MarketView interface {
	GetState(mint string) (*types.MintState, bool)
}

// Controller runs the tick loop for a single mint from creation to exit.
type Controller struct {
	mint         string
	bondingCurve string
	creator      string

	cfg      config.SessionConfig
	market   MarketView
	exec     swapexec.Executor
	solPrice *solprice.Provider
	wallet   *wallet.Tracker
	bl       *blacklist.List
	results  *journal.Writer
	logger   *slog.Logger

	walletPubkey string
	openPrice    decimal.Decimal
	agg          types.CreatorAggregate
	trustLevel   int

	increments  []decimal.Decimal
	currentStep int
	tightened   bool

	bought        bool
	buyTxID       string
	buyPrice      decimal.Decimal
	tokenBalance  decimal.Decimal
	discoverTicks int

	refPeak             decimal.Decimal
	lastBuysCount       int
	lastBuysTimestamp   time.Time
	lastIncrementTime   time.Time // zero until the first ladder advance
	lastPriceChangeTime time.Time
	prevPrice           decimal.Decimal

	window []sample
}

// Params bundles the Controller's construction-time collaborators and the
// mint-specific context it was started for.
type Params struct {
	Mint         string
	BondingCurve string
	Creator      string
	OpenPrice    decimal.Decimal
	Aggregate    types.CreatorAggregate

	Config       config.SessionConfig
	WalletPubkey string

	Market    MarketView
	Exec      swapexec.Executor
	SolPrice  *solprice.Provider
	Wallet    *wallet.Tracker
	Blacklist *blacklist.List
	Results   *journal.Writer
	Logger    *slog.Logger
}

// New constructs a Controller. Trust level and the initial profit ladder are
// computed immediately.
func New(p Params) *Controller {
	trustLevel := 1
	if p.Aggregate.MintCount != 1 && p.Aggregate.MedianPeakMarketCap.GreaterThanOrEqual(decimal.NewFromFloat(p.Config.TrustLevel2MarketCap)) {
		trustLevel = 2
	}

	ceiling := decimal.NewFromFloat(p.Config.ProfitMargin * p.Aggregate.MedianSuccessRatio)
	step := decimal.NewFromFloat(p.Config.PriceStepUnits)
	increments := buildLadder(step, ceiling)

	now := time.Now()
	return &Controller{
		mint:         p.Mint,
		bondingCurve: p.BondingCurve,
		creator:      p.Creator,
		cfg:          p.Config,
		market:       p.Market,
		exec:         p.Exec,
		solPrice:     p.SolPrice,
		wallet:       p.Wallet,
		bl:           p.Blacklist,
		results:      p.Results,
		logger:       p.Logger.With("component", "session", "mint", p.Mint),
		walletPubkey: p.WalletPubkey,
		openPrice:    p.OpenPrice,
		agg:          p.Aggregate,
		trustLevel:   trustLevel,
		increments:          increments,
		currentStep:         0,
		refPeak:             decimal.Zero,
		lastBuysTimestamp:   now,
		lastPriceChangeTime: now,
		prevPrice:           decimal.Zero,
	}
}

// Run drives the tick loop until the session exits or ctx is cancelled.
// It always releases the wallet's single-session slot on return.
func (c *Controller) Run(ctx context.Context) {
	defer c.wallet.ReleaseSession(c.mint)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("session cancelled, no sell issued")
			return
		case <-ticker.C:
		}

		state, ok := c.market.GetState(c.mint)
		if !ok {
			c.logger.Warn("mint no longer tracked, aborting session")
			return
		}

		if !c.bought {
			bought, abort := c.issueBuy(ctx, state)
			if abort {
				return
			}
			if !bought {
				continue
			}
		}

		if c.buyPrice.IsZero() {
			if !c.discoverBuy(ctx, state) {
				if c.discoverTicks > 10 {
					c.logger.Warn("could not discover buy price/balance, aborting")
					return
				}
				continue
			}
			// The open price is unknown at session start (the session is
			// created from the Creation event, before any swap); pick it up
			// now that the mint has traded.
			if c.openPrice.IsZero() {
				c.openPrice = state.OpenPrice
			}
			c.lastPriceChangeTime = time.Now()
			c.prevPrice = state.CurrentPrice
		}

		done := c.tick(ctx, state)
		if done {
			return
		}
	}
}

// issueBuy invokes the Swap Executor's buy() once. bought reports that a
// buy_tx_id has been recorded; abort ends the session without a position
// (insufficient balance, or the curve migrated before the buy landed).
func (c *Controller) issueBuy(ctx context.Context, state *types.MintState) (bought, abort bool) {
	amountUSD := c.cfg.AmountBuyTL1
	if c.trustLevel == 2 {
		amountUSD = c.cfg.AmountBuyTL2
	}

	solUSD := c.solPrice.Current()
	lamports := toUint64(solprice.USDToLamports(decimal.NewFromFloat(amountUSD), solUSD))
	feeMicroLamports := toUint64(solprice.USDToMicroLamports(decimal.NewFromFloat(c.cfg.BuyFeeUSD), solUSD))

	feeLamports := toUint64(solprice.USDToLamports(decimal.NewFromFloat(c.cfg.BuyFeeUSD), solUSD))
	if !c.wallet.HasSufficientBalance(lamports + feeLamports) {
		c.logger.Warn("insufficient wallet balance, aborting session",
			"need_lamports", lamports+feeLamports, "have_lamports", c.wallet.Balance())
		return false, true
	}

	price := state.CurrentPrice
	if price.IsZero() {
		price = state.OpenPrice
	}
	var tokenAmount uint64
	if !price.IsZero() {
		tokens := solprice.LamportsToTokens(decimal.NewFromInt(int64(lamports)), price)
		tokenAmount = toUint64(solprice.TokenAmountToRaw(tokens))
	}

	res, err := c.exec.Buy(ctx, swapexec.BuyRequest{
		Mint:                     c.mint,
		BondingCurve:             c.bondingCurve,
		Lamports:                 lamports,
		Creator:                  c.creator,
		TokenAmount:              tokenAmount,
		PriorityFeeMicroLamports: feeMicroLamports,
		Slippage:                 c.cfg.SlippageAmount,
	})
	if err != nil {
		if errs.Is(err, errs.KindInstruction) {
			c.logger.Warn("buy instruction failed, aborting session", "error", err)
			return false, true
		}
		c.logger.Error("buy transport error", "error", err)
		return false, false
	}
	if res.Migrated {
		c.logger.Info("bonding curve migrated before buy landed, aborting")
		return false, true
	}

	c.wallet.Debit(lamports + feeLamports)
	c.buyTxID = res.TxID
	c.bought = true
	c.logger.Info("buy submitted", "tx_id", res.TxID, "amount_usd", amountUSD)
	return true, false
}

// tick runs one iteration of the decision logic against already-bought
// state. Returns true once the session should terminate.
func (c *Controller) tick(ctx context.Context, state *types.MintState) bool {
	now := time.Now()

	if !state.CurrentPrice.Equal(c.prevPrice) {
		c.lastPriceChangeTime = now
		c.prevPrice = state.CurrentPrice
	}

	selfPeakChange := percentChange(state.HighPrice, c.buyPrice)

	// Malicious detection: the reference peak only ratchets upward, so a
	// price that halves from any peak ever seen flags the mint.
	if state.HighPrice.GreaterThan(c.refPeak) {
		c.refPeak = state.HighPrice
	}
	malicious := state.CurrentPrice.LessThan(c.refPeak.Mul(decimal.NewFromFloat(0.5)))

	if state.TxCounts.Buys > c.lastBuysCount {
		c.lastBuysCount = state.TxCounts.Buys
		c.lastBuysTimestamp = now
	}
	isDropTime := now.Sub(c.lastBuysTimestamp) >= c.cfg.DropTime

	condition := classifyCondition(malicious, isDropTime, state.TxCounts)

	// Ladder re-tightening runs once, on the first tick after buyPrice is
	// known; tightenLadder itself no-ops when the fill landed at or below
	// the open.
	if !c.tightened {
		c.tightenLadder()
		c.tightened = true
	}

	composite := c.updateComposite(now, state)

	c.maybeAdvanceLadder(condition, selfPeakChange, composite, now)
	c.maybeResetLadder(condition, composite)

	toSell := c.increments[c.currentStep]

	reason, exit := c.checkExit(condition, selfPeakChange, toSell, state, now)
	if !exit {
		return false
	}

	c.sellAndClose(ctx, state, reason)
	return true
}

func classifyCondition(malicious, isDropTime bool, tx types.TxCounts) string {
	switch {
	case malicious:
		return ConditionMalicious
	case isDropTime:
		return ConditionDropTime
	case tx.Sells > tx.Buys:
		return ConditionSellsOverBuys
	default:
		return ConditionSafe
	}
}

func (c *Controller) checkExit(condition string, selfPeakChange, toSell decimal.Decimal, state *types.MintState, now time.Time) (string, bool) {
	if selfPeakChange.GreaterThanOrEqual(toSell) || condition == ConditionMalicious || condition == ConditionDropTime {
		return condition, true
	}
	if now.Sub(c.lastPriceChangeTime) > 1800*time.Second {
		return ReasonStagnant, true
	}
	if state.CurrentPrice.LessThan(lowPriceFloor) && now.Sub(c.lastPriceChangeTime) > c.cfg.StagnantUnderPrice {
		return ConditionMalicious, true
	}
	return "", false
}

func (c *Controller) sellAndClose(ctx context.Context, state *types.MintState, reason string) {
	solUSD := c.solPrice.Current()
	feeLamports := toUint64(solprice.USDToMicroLamports(decimal.NewFromFloat(c.cfg.SellFeeUSD), solUSD))
	tokenAmount := toUint64(solprice.TokenAmountToRaw(c.tokenBalance))

	res, err := c.sellWithRetry(ctx, swapexec.SellRequest{
		Mint:         c.mint,
		BondingCurve: c.bondingCurve,
		TokenAmount:  tokenAmount,
		MinSolOutput: 0,
		Creator:      c.creator,
		PriorityFee:  feeLamports,
	})

	migrated := err == nil && res.Migrated
	if err != nil {
		c.logger.Error("sell failed, position may remain on-chain", "error", err, "reason", reason)
	} else if !migrated {
		proceeds := toUint64(solprice.SOLToLamports(state.CurrentPrice.Mul(c.tokenBalance)))
		c.wallet.Credit(proceeds)
		if bal, balErr := c.exec.BalanceOfWallet(ctx); balErr == nil {
			c.wallet.SetBalance(bal)
		}
	}

	if reason == ConditionMalicious || reason == ConditionSellsOverBuys {
		if blErr := c.bl.Add(c.creator); blErr != nil {
			c.logger.Error("blacklist write failed", "error", blErr)
		}
	}

	pnl := percentChange(state.CurrentPrice, c.buyPrice)
	outcome := journal.TradeOutcome{
		Mint:       c.mint,
		Creator:    c.creator,
		BuyTxID:    c.buyTxID,
		Reason:     reason,
		BuyPrice:   c.buyPrice.String(),
		ExitPrice:  state.CurrentPrice.String(),
		PnLPercent: pnl.String(),
		Migrated:   migrated,
		Timestamp:  time.Now().UTC(),
	}
	if err == nil {
		outcome.SellTxID = res.TxID
	}
	if jErr := c.results.Append(outcome); jErr != nil {
		c.logger.Error("results journal write failed", "error", jErr)
	}

	c.logger.Info("session closed", "reason", reason, "pnl_pct", pnl.String(), "migrated", migrated)
}

// sellWithRetry retries a transient InstructionError sell after 20ms, capped
// at 6 attempts.
func (c *Controller) sellWithRetry(ctx context.Context, req swapexec.SellRequest) (swapexec.SwapResult, error) {
	const maxAttempts = 6
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := c.exec.Sell(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errs.Is(err, errs.KindInstruction) {
			return swapexec.SwapResult{}, err
		}
		select {
		case <-ctx.Done():
			return swapexec.SwapResult{}, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return swapexec.SwapResult{}, lastErr
}

func percentChange(to, from decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(decimal.NewFromInt(100))
}

// toUint64 rounds a non-negative decimal down to its integer lamport/raw
// representation. Negative inputs (which should not occur on this path)
// clamp to zero rather than wrapping.
func toUint64(d decimal.Decimal) uint64 {
	if d.IsNegative() {
		return 0
	}
	return uint64(d.Truncate(0).IntPart())
}
