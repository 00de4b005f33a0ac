// Package orchestrator wires the Log Source, Event Decoder, Market Engine,
// Reputation Analyzer, and Session Controller into a single running process
// and owns startup/shutdown sequencing across them.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"pumpsentinel/internal/blacklist"
	"pumpsentinel/internal/config"
	"pumpsentinel/internal/decode"
	"pumpsentinel/internal/journal"
	"pumpsentinel/internal/logsource"
	"pumpsentinel/internal/market"
	"pumpsentinel/internal/reputation"
	"pumpsentinel/internal/solprice"
	"pumpsentinel/internal/store"
	"pumpsentinel/internal/swapexec"
	"pumpsentinel/internal/wallet"
	"pumpsentinel/pkg/types"
)

// Orchestrator owns every long-lived goroutine in the process and the
// shutdown sequencing across them.
type Orchestrator struct {
	cfg    config.Config
	logger *slog.Logger

	store    *store.Store
	solPrice *solprice.Provider
	source   *logsource.Source
	decoder  *decode.Decoder
	market   *market.Engine
	analyzer *reputation.Analyzer
	exec     swapexec.Executor
	wallet   *wallet.Tracker
	bl       *blacklist.List
	results  *journal.Writer
	lbWriter *journal.Writer

	leaderboard atomic.Value // *types.Leaderboard
	refreshing  atomic.Bool

	sessionsMu sync.Mutex
	sessions   map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every collaborator from cfg. It opens the Store connection pool
// but does not start any goroutines — call Start for that.
func New(cfg config.Config, logger *slog.Logger) (*Orchestrator, error) {
	st, err := store.Open(cfg.Store.DSN, cfg.Store.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	sp := solprice.New(cfg.SolPrice.Endpoint, cfg.SolPrice.RefreshEvery, cfg.SolPrice.FallbackUSD, logger)
	mkt := market.New(st, sp, logger)
	dec := decode.New(cfg.Chain.ProgramID)
	src := logsource.New(cfg.Chain.WSURL, cfg.Chain.ProgramID, cfg.Chain.CommitmentLvl, logger)
	analyzer := reputation.New(st, cfg.Reputation, cfg.Store.ChunkSize, logger)
	exec := swapexec.New(cfg.Executor.BaseURL, cfg.Executor.Timeout, cfg.DryRun)
	bl, err := blacklist.Load(cfg.Store.BlacklistPath)
	if err != nil {
		return nil, err
	}
	wt := wallet.New(cfg.Session.SingleLock)

	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		store:    st,
		solPrice: sp,
		source:   src,
		decoder:  dec,
		market:   mkt,
		analyzer: analyzer,
		exec:     exec,
		wallet:   wt,
		bl:       bl,
		results:  journal.NewWriter(cfg.Store.ResultsPath),
		lbWriter: journal.NewWriter(cfg.Store.LeaderboardPath),
		sessions: make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
	}
	o.leaderboard.Store(&types.Leaderboard{Creators: map[string]types.CreatorAggregate{}})
	return o, nil
}

// Start launches every background goroutine: the SOL/USD quote refresher,
// the Log Source subscription, the frame dispatcher, and the periodic
// Leaderboard refresh. It returns once everything is running; call Stop to
// shut down.
func (o *Orchestrator) Start() error {
	if balance, err := o.exec.BalanceOfWallet(o.ctx); err == nil {
		o.wallet.SetBalance(balance)
	} else {
		o.logger.Warn("initial balance_of_wallet failed, starting from zero", "error", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.solPrice.Run(o.ctx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.source.Run(o.ctx); err != nil && o.ctx.Err() == nil {
			o.logger.Error("log source stopped", "error", err)
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.dispatchFrames()
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runLeaderboardRefresh()
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop cancels the root context, waits for every in-flight frame handler,
// Stagnancy Monitor, and session to exit, then closes the Store pool.
func (o *Orchestrator) Stop() {
	o.logger.Info("shutting down...")

	o.cancel()
	o.wg.Wait()
	o.market.Shutdown()

	if err := o.source.Close(); err != nil {
		o.logger.Warn("log source close error", "error", err)
	}
	if err := o.store.Close(); err != nil {
		o.logger.Error("store close error", "error", err)
	}

	o.logger.Info("shutdown complete")
}

func (o *Orchestrator) leaderboardSnapshot() *types.Leaderboard {
	return o.leaderboard.Load().(*types.Leaderboard)
}

// Leaderboard returns the most recently published creator reputation
// snapshot, for the dashboard's /api/snapshot endpoint.
func (o *Orchestrator) Leaderboard() *types.Leaderboard {
	return o.leaderboardSnapshot()
}

// LiveMints returns a snapshot of every currently live mint, for the
// dashboard's active-mint table.
func (o *Orchestrator) LiveMints() []*types.MintState {
	return o.market.ListMints()
}

// ActiveSessionMints returns the mints with a currently running Session
// Controller.
func (o *Orchestrator) ActiveSessionMints() []string {
	return o.wallet.ActiveMints()
}

// WalletBalanceLamports returns the last-known wallet balance.
func (o *Orchestrator) WalletBalanceLamports() uint64 {
	return o.wallet.Balance()
}

// BlacklistSize returns the number of creators currently blacklisted.
func (o *Orchestrator) BlacklistSize() int {
	return o.bl.Len()
}

// RefreshInFlight reports whether the Reputation Analyzer is currently
// mid-refresh.
func (o *Orchestrator) RefreshInFlight() bool {
	return o.refreshing.Load()
}
