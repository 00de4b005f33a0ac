// Package swapexec is the Swap Executor collaborator: it submits buy/sell
// instructions against a mint's bonding curve and reports back transaction
// outcomes. On-chain transaction construction, signing, and RPC submission
// live behind an external relay/signer service; Client talks to it over a
// rate-limited, dry-run-aware REST surface.
package swapexec

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"pumpsentinel/internal/errs"
)

// Kind distinguishes which side of a swap get_swap_tx is reporting on.
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
)

// BuyRequest carries everything the relay needs to build and submit a buy.
type BuyRequest struct {
	Mint                     string
	BondingCurve             string
	Lamports                 uint64
	Creator                  string
	TokenAmount              uint64
	PriorityFeeMicroLamports uint64
	Slippage                 float64
}

// SellRequest carries everything the relay needs to build and submit a sell.
type SellRequest struct {
	Mint         string
	BondingCurve string
	TokenAmount  uint64
	MinSolOutput uint64
	Creator      string
	PriorityFee  uint64
}

// SwapResult is the outcome of a buy or sell call: either a transaction id,
// or the "migrated" sentinel meaning the bonding curve has graduated and no
// further swaps against it are possible.
type SwapResult struct {
	TxID     string
	Migrated bool
}

// SwapTxResult is the outcome of get_swap_tx: either a resolved balance/price
// pair, or an InstructionError meaning the transaction never landed.
type SwapTxResult struct {
	Balance          decimal.Decimal
	Price            decimal.Decimal
	InstructionError bool
}

// Executor is the Session Controller's collaborator for submitting and
// inspecting swaps. Implemented by *Client.
type Executor interface {
	Buy(ctx context.Context, req BuyRequest) (SwapResult, error)
	Sell(ctx context.Context, req SellRequest) (SwapResult, error)
	GetSwapTx(ctx context.Context, txID, mint string, kind Kind) (SwapTxResult, error)
	BalanceOfWallet(ctx context.Context) (uint64, error)
}

// Client is the REST-backed Executor implementation.
type Client struct {
	http   *resty.Client
	rl     *RateLimiter
	dryRun bool
}

// New constructs a Client against the given relay base URL.
func New(baseURL string, timeout time.Duration, dryRun bool) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	return &Client{
		http:   h,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
	}
}

type buyResponse struct {
	TxID     string `json:"tx_id"`
	Migrated bool   `json:"migrated"`
}

// Buy submits a pump.fun-style buy instruction.
func (c *Client) Buy(ctx context.Context, req BuyRequest) (SwapResult, error) {
	if c.dryRun {
		return SwapResult{TxID: fmt.Sprintf("dryrun-buy-%s-%d", req.Mint, time.Now().UnixNano())}, nil
	}
	if err := c.rl.Buy.Wait(ctx); err != nil {
		return SwapResult{}, errs.Transport("swapexec.Buy", err)
	}

	var out buyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"mint":                         req.Mint,
			"bonding_curve":                req.BondingCurve,
			"lamports":                     req.Lamports,
			"creator":                      req.Creator,
			"token_amount":                 req.TokenAmount,
			"priority_fee_micro_lamports":  req.PriorityFeeMicroLamports,
			"slippage":                     req.Slippage,
		}).
		SetResult(&out).
		Post("/buy")
	if err != nil {
		return SwapResult{}, errs.Transport("swapexec.Buy", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == 409 {
			return SwapResult{Migrated: true}, nil
		}
		return SwapResult{}, errs.Instruction("swapexec.Buy", fmt.Errorf("relay status %d: %s", resp.StatusCode(), resp.String()))
	}
	return SwapResult{TxID: out.TxID, Migrated: out.Migrated}, nil
}

// Sell submits a pump.fun-style sell instruction (pump_sell).
func (c *Client) Sell(ctx context.Context, req SellRequest) (SwapResult, error) {
	if c.dryRun {
		return SwapResult{TxID: fmt.Sprintf("dryrun-sell-%s-%d", req.Mint, time.Now().UnixNano())}, nil
	}
	if err := c.rl.Sell.Wait(ctx); err != nil {
		return SwapResult{}, errs.Transport("swapexec.Sell", err)
	}

	var out buyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"mint":            req.Mint,
			"bonding_curve":   req.BondingCurve,
			"token_amount":    req.TokenAmount,
			"min_sol_output":  req.MinSolOutput,
			"creator":         req.Creator,
			"priority_fee":    req.PriorityFee,
		}).
		SetResult(&out).
		Post("/sell")
	if err != nil {
		return SwapResult{}, errs.Transport("swapexec.Sell", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == 409 {
			return SwapResult{Migrated: true}, nil
		}
		return SwapResult{}, errs.Instruction("swapexec.Sell", fmt.Errorf("relay status %d: %s", resp.StatusCode(), resp.String()))
	}
	return SwapResult{TxID: out.TxID, Migrated: out.Migrated}, nil
}

type swapTxResponse struct {
	Balance          string `json:"balance"`
	Price            string `json:"price"`
	InstructionError bool   `json:"instruction_error"`
}

// GetSwapTx resolves the balance/price a landed swap produced — the
// fallback path when the holder-ledger scan in internal/session can't find
// our own fill within its retry budget.
func (c *Client) GetSwapTx(ctx context.Context, txID, mint string, kind Kind) (SwapTxResult, error) {
	if c.dryRun {
		return SwapTxResult{Balance: decimal.Zero, Price: decimal.Zero, InstructionError: true}, nil
	}
	if err := c.rl.Query.Wait(ctx); err != nil {
		return SwapTxResult{}, errs.Transport("swapexec.GetSwapTx", err)
	}

	var out swapTxResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tx_id": txID,
			"mint":  mint,
			"kind":  string(kind),
		}).
		SetResult(&out).
		Get("/get_swap_tx")
	if err != nil {
		return SwapTxResult{}, errs.Transport("swapexec.GetSwapTx", err)
	}
	if resp.IsError() || out.InstructionError {
		return SwapTxResult{InstructionError: true}, nil
	}

	balance, err := decimal.NewFromString(out.Balance)
	if err != nil {
		return SwapTxResult{InstructionError: true}, nil
	}
	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return SwapTxResult{InstructionError: true}, nil
	}
	return SwapTxResult{Balance: balance, Price: price}, nil
}

type balanceResponse struct {
	Lamports uint64 `json:"lamports"`
}

// dryRunBalanceLamports is the synthetic wallet balance reported in dry-run
// mode, large enough that sizing checks never refuse a simulated session.
const dryRunBalanceLamports = 100_000_000_000 // 100 SOL

// BalanceOfWallet reports the wallet's current lamport balance.
func (c *Client) BalanceOfWallet(ctx context.Context) (uint64, error) {
	if c.dryRun {
		return dryRunBalanceLamports, nil
	}
	if err := c.rl.Query.Wait(ctx); err != nil {
		return 0, errs.Transport("swapexec.BalanceOfWallet", err)
	}

	var out balanceResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/balance_of_wallet")
	if err != nil {
		return 0, errs.Transport("swapexec.BalanceOfWallet", err)
	}
	if resp.IsError() {
		return 0, errs.Transport("swapexec.BalanceOfWallet", fmt.Errorf("relay status %d", resp.StatusCode()))
	}
	return out.Lamports, nil
}
