package session

import (
	"context"

	"pumpsentinel/internal/swapexec"
	"pumpsentinel/pkg/types"
)

// discoverBuy finds our own fill price and resulting token balance from the
// holder ledger, retried for up to 10 ticks before falling back to a
// transaction-receipt lookup. Returns true once buyPrice/tokenBalance are
// known.
func (c *Controller) discoverBuy(ctx context.Context, state *types.MintState) bool {
	c.discoverTicks++

	if holder, ok := state.Holders[c.walletPubkey]; ok {
		for _, bc := range holder.BalanceChanges {
			if bc.Type == "buy" {
				c.buyPrice = bc.PriceWas
				c.tokenBalance = holder.Balance
				return true
			}
		}
	}

	if c.discoverTicks < 10 {
		return false
	}

	res, err := c.exec.GetSwapTx(ctx, c.buyTxID, c.mint, swapexec.KindBuy)
	if err != nil || res.InstructionError {
		return false
	}
	c.buyPrice = res.Price
	c.tokenBalance = res.Balance
	return true
}
