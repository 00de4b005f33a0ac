package orchestrator

import (
	"context"

	"pumpsentinel/internal/decode"
	"pumpsentinel/internal/errs"
	"pumpsentinel/internal/metrics"
	"pumpsentinel/internal/session"
	"pumpsentinel/pkg/types"
)

// dispatchFrames is the single dispatcher goroutine draining the Log
// Source's bounded frame channel. Each frame is handled by its own
// fire-and-forget goroutine, tracked in the shared WaitGroup for shutdown
// join.
func (o *Orchestrator) dispatchFrames() {
	for {
		select {
		case <-o.ctx.Done():
			return
		case frame, ok := <-o.source.Frames():
			if !ok {
				return
			}
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.handleFrame(frame)
			}()
		}
	}
}

func (o *Orchestrator) handleFrame(frame decode.Frame) {
	creation, swap, err := o.decoder.Decode(frame)
	if err != nil {
		metrics.DecodeErrors.Inc()
		if errs.Is(err, errs.KindDecode) {
			o.logger.Debug("dropping undecodable frame", "signature", frame.Signature, "error", err)
			return
		}
		o.logger.Warn("frame decode error", "signature", frame.Signature, "error", err)
		return
	}

	switch {
	case creation != nil:
		o.handleCreation(creation)
	case swap != nil:
		o.handleSwap(swap)
	}
}

func (o *Orchestrator) handleCreation(ev *types.CreationEvent) {
	if err := o.market.OnCreation(o.ctx, *ev); err != nil {
		o.logger.Error("market.OnCreation failed", "mint", ev.Mint, "error", err)
		return
	}
	o.maybeStartSession(*ev)
}

func (o *Orchestrator) handleSwap(ev *types.SwapEvent) {
	if err := o.market.OnSwap(o.ctx, *ev); err != nil {
		o.logger.Debug("market.OnSwap failed", "mint", ev.Mint, "error", err)
		return
	}
	metrics.SwapsApplied.Inc()
}

// sessionGateOpen reports whether a newly created mint is eligible for a
// trading session: its creator must be present on the current Leaderboard,
// must not be blacklisted, and the Analyzer must not be mid-refresh (a
// refresh in flight means the Leaderboard snapshot a caller just read may be
// about to be replaced).
func sessionGateOpen(onLeaderboard, blacklisted, refreshing bool) bool {
	return onLeaderboard && !blacklisted && !refreshing
}

// maybeStartSession applies the Session Controller's entry gate: the creator
// must be on the current Leaderboard, not blacklisted, the Analyzer must not
// be mid-refresh, and (when single_lock is configured) no other session may
// currently hold the wallet's one slot.
func (o *Orchestrator) maybeStartSession(ev types.CreationEvent) {
	agg, ok := o.leaderboardSnapshot().Get(ev.User)
	if !sessionGateOpen(ok, o.bl.Contains(ev.User), o.refreshing.Load()) {
		return
	}
	if !o.wallet.TryAcquireSession(ev.Mint) {
		return
	}

	state, ok := o.market.GetState(ev.Mint)
	if !ok {
		o.wallet.ReleaseSession(ev.Mint)
		return
	}

	ctrl := session.New(session.Params{
		Mint:         ev.Mint,
		BondingCurve: ev.BondingCurve,
		Creator:      ev.User,
		OpenPrice:    state.OpenPrice,
		Aggregate:    agg,
		Config:       o.cfg.Session,
		WalletPubkey: o.cfg.Chain.WalletPubkey,
		Market:       o.market,
		Exec:         o.exec,
		SolPrice:     o.solPrice,
		Wallet:       o.wallet,
		Blacklist:    o.bl,
		Results:      o.results,
		Logger:       o.logger,
	})

	sessionCtx, sessionCancel := context.WithCancel(o.ctx)
	o.sessionsMu.Lock()
	o.sessions[ev.Mint] = sessionCancel
	o.sessionsMu.Unlock()
	metrics.ActiveSessions.Inc()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer sessionCancel()
		defer func() {
			o.sessionsMu.Lock()
			delete(o.sessions, ev.Mint)
			o.sessionsMu.Unlock()
			metrics.ActiveSessions.Dec()
		}()
		ctrl.Run(sessionCtx)
	}()
}
