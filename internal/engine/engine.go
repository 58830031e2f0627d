// Package engine is the central orchestrator of the maker-farming bot.
//
// It wires together all subsystems:
//
//  1. exchange.Auth/Client handle signing and REST calls against the venue.
//  2. exchange.PriceFeed streams mark/bid/ask ticks into one shared
//     price.Tracker, keyed by symbol.
//  3. Engine starts one strategy.Strategy goroutine per configured symbol,
//     each with its own safety.Guard and orders.Manager — the
//     single-writer-per-symbol discipline needs no cross-symbol locking.
//  4. A typed event channel carries order/fill/rebalance/safety events to
//     the dashboard; store.Store persists per-symbol stats so a restart
//     resumes its counters instead of starting at zero.
//
// Lifecycle: New() → Start() → [runs until Stop()].
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/internal/exchange"
	"github.com/londonpotato1/standx-maker-bot/internal/orders"
	"github.com/londonpotato1/standx-maker-bot/internal/price"
	"github.com/londonpotato1/standx-maker-bot/internal/safety"
	"github.com/londonpotato1/standx-maker-bot/internal/store"
	"github.com/londonpotato1/standx-maker-bot/internal/strategy"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// symbolSlot bundles one symbol's running control loop together with the
// components the dashboard needs read access to.
type symbolSlot struct {
	symbol   types.Symbol
	strategy *strategy.Strategy
	cancel   context.CancelFunc
}

// Engine orchestrates every symbol's control loop and the shared exchange
// connectivity they run against.
type Engine struct {
	cfg    config.Config
	client *exchange.Client
	auth   *exchange.Auth
	feed   *exchange.PriceFeed
	tracker *price.Tracker
	store  *store.Store
	logger *slog.Logger

	events chan types.Event

	slotsMu sync.RWMutex
	slots   map[string]*symbolSlot

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds an Engine from config, wiring the exchange client, price feed,
// and one symbolSlot per cfg.Strategy.Symbols entry. It does not start any
// goroutines — call Start for that.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	auth, err := exchange.NewAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	client := exchange.NewClient(cfg, auth, logger)

	if cfg.API.ApiKey == "" {
		if err := auth.EnsureSession(func() (exchange.Credentials, error) {
			return client.DeriveSession(context.Background())
		}); err != nil {
			return nil, fmt.Errorf("derive session: %w", err)
		}
	}

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tracker := price.New(client, cfg.Strategy.RestFallbackInterval(), logger)
	feed := exchange.NewPriceFeed(cfg.API.WSURL, logger)

	eng := &Engine{
		cfg:     cfg,
		client:  client,
		auth:    auth,
		feed:    feed,
		tracker: tracker,
		store:   st,
		logger:  logger.With("component", "engine"),
		events:  make(chan types.Event, 256),
		slots:   make(map[string]*symbolSlot),
	}

	for _, ticker := range cfg.Strategy.Symbols {
		eng.slots[ticker] = eng.buildSlot(ticker)
	}

	return eng, nil
}

func (e *Engine) buildSlot(ticker string) *symbolSlot {
	spec := e.cfg.Strategy.SymbolSpec(ticker)
	sym := types.Symbol{
		Ticker:     ticker,
		MinQty:     decimal.NewFromFloat(spec.MinQty),
		PriceTick:  decimal.NewFromFloat(spec.PriceTick),
		NotionalDP: spec.NotionalDP,
	}

	guard := safety.New(e.cfg.Safety, e.logger, ticker)
	mgr := orders.New(ticker, e.client, e.cfg.Strategy, e.logger)
	strat := strategy.New(sym, e.cfg.Strategy, e.tracker, guard, mgr, e.client, e.events, e.logger)

	if snap, err := e.store.LoadStats(ticker); err == nil {
		strat.RestoreStats(snap)
	}

	return &symbolSlot{symbol: sym, strategy: strat}
}

// Events exposes the engine's outbound event channel for the dashboard
// bridge to consume.
func (e *Engine) Events() <-chan types.Event {
	return e.events
}

// Start launches the price feed, its tracker-feeding consumer, and one
// strategy goroutine per symbol.
func (e *Engine) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if err := e.feed.Subscribe(e.cfg.Strategy.Symbols); err != nil {
		cancel()
		return fmt.Errorf("subscribe price feed: %w", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.feed.Run(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("price feed stopped", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.tracker.Consume(ctx, e.feed.Updates())
	}()

	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	for ticker, slot := range e.slots {
		slotCtx, slotCancel := context.WithCancel(ctx)
		slot.cancel = slotCancel
		e.logger.Info("starting symbol", "symbol", ticker)
		e.wg.Add(1)
		go func(s *symbolSlot) {
			defer e.wg.Done()
			s.strategy.Run(slotCtx)
		}(slot)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.persistLoop(ctx)
	}()

	return nil
}

// Stop cancels every goroutine, waits for them to unwind (each strategy
// cancels its own resting orders on the way out), persists final stats, and
// closes the store.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	e.persistAll()
	if err := e.store.Close(); err != nil {
		e.logger.Error("store close failed", "error", err)
	}
	if err := e.feed.Close(); err != nil {
		e.logger.Warn("price feed close failed", "error", err)
	}
	close(e.events)
}

// persistLoop periodically checkpoints per-symbol stats so a crash loses at
// most one interval of counters.
func (e *Engine) persistLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.persistAll()
		}
	}
}

func (e *Engine) persistAll() {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	for ticker, slot := range e.slots {
		status := slot.strategy.Status()
		if err := e.store.SaveStats(ticker, status.Stats); err != nil {
			e.logger.Warn("persist stats failed", "symbol", ticker, "error", err)
		}
	}
}

// Snapshot implements api.SnapshotProvider: a point-in-time view across
// every symbol for the dashboard's REST endpoint.
func (e *Engine) Snapshot() []strategy.Status {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	out := make([]strategy.Status, 0, len(e.slots))
	for _, slot := range e.slots {
		out = append(out, slot.strategy.Status())
	}
	return out
}

// Config returns the engine's configuration, used by the dashboard to
// render a config summary.
func (e *Engine) Config() config.Config {
	return e.cfg
}
