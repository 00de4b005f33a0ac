// Package solprice provides a periodically refreshed SOL/USD quote and the
// small pure conversion helpers (USD <-> lamports <-> token amount) the
// Session Controller uses for buy/sell sizing.
//
// A quote fetched once at startup would let long-running sessions drift
// against the real market cap, so the provider keeps the quote warm with a
// background refresh and never returns zero: a configured fallback is used
// until the first successful fetch, and the last-known value is kept if the
// endpoint later becomes unreachable.
package solprice

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	lamportsPerSOL = 1_000_000_000
	microPerUnit   = 1_000_000
	tokenDecimals  = 1_000_000
)

// Provider keeps a background-refreshed SOL/USD quote.
type Provider struct {
	http     *resty.Client
	endpoint string
	fallback decimal.Decimal
	interval time.Duration
	logger   *slog.Logger

	quote atomic.Value // decimal.Decimal
}

// coingeckoResponse mirrors CoinGecko's simple-price response shape.
type coingeckoResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

// New constructs a Provider seeded with the fallback quote so callers never
// observe a zero price, even before the first refresh completes.
func New(endpoint string, refreshEvery time.Duration, fallbackUSD float64, logger *slog.Logger) *Provider {
	p := &Provider{
		http:     resty.New().SetTimeout(10 * time.Second),
		endpoint: endpoint,
		fallback: decimal.NewFromFloat(fallbackUSD),
		interval: refreshEvery,
		logger:   logger.With("component", "solprice"),
	}
	p.quote.Store(p.fallback)
	return p
}

// Current returns the latest known SOL/USD quote.
func (p *Provider) Current() decimal.Decimal {
	return p.quote.Load().(decimal.Decimal)
}

// Run refreshes the quote on Provider's interval until ctx is cancelled. It
// fetches once immediately so the process doesn't run on the fallback price
// longer than necessary.
func (p *Provider) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Provider) refresh(ctx context.Context) {
	quote, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("sol price refresh failed, keeping last known quote",
			"error", err, "quote", p.Current())
		return
	}
	p.quote.Store(quote)
	p.logger.Debug("sol price refreshed", "quote_usd", quote)
}

func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	var result coingeckoResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(p.endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch sol price: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("fetch sol price: status %d", resp.StatusCode())
	}
	if result.Solana.USD <= 0 {
		return decimal.Zero, fmt.Errorf("fetch sol price: non-positive quote %v", result.Solana.USD)
	}
	return decimal.NewFromFloat(result.Solana.USD), nil
}

// USDToLamports converts a USD amount to lamports at the given SOL/USD quote.
func USDToLamports(usd, solPriceUSD decimal.Decimal) decimal.Decimal {
	if solPriceUSD.IsZero() {
		return decimal.Zero
	}
	return usd.Div(solPriceUSD).Mul(decimal.NewFromInt(lamportsPerSOL))
}

// USDToMicroLamports converts a USD priority-fee budget into micro-lamports
// (the unit Solana's priority fee instruction expects).
func USDToMicroLamports(usd, solPriceUSD decimal.Decimal) decimal.Decimal {
	return USDToLamports(usd, solPriceUSD).Mul(decimal.NewFromInt(microPerUnit))
}

// SOLToLamports converts a SOL amount to lamports.
func SOLToLamports(sol decimal.Decimal) decimal.Decimal {
	return sol.Mul(decimal.NewFromInt(lamportsPerSOL))
}

// LamportsToTokens converts a lamport amount into a token amount at the
// given price (SOL per whole token).
func LamportsToTokens(lamports, pricePerToken decimal.Decimal) decimal.Decimal {
	if pricePerToken.IsZero() {
		return decimal.Zero
	}
	sol := lamports.Div(decimal.NewFromInt(lamportsPerSOL))
	return sol.Div(pricePerToken)
}

// TokenAmountToRaw converts a human token amount into the 6-decimal raw
// integer representation the program uses on the wire.
func TokenAmountToRaw(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(tokenDecimals))
}
