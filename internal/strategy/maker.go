// Package strategy implements MakerFarmingStrategy: the per-symbol tick
// loop that turns a price reference and a safety decision into a resting
// quote ladder, using cross-interleaved cancel/replace so the book is never
// left one-sided longer than necessary.
package strategy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/band"
	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/internal/metrics"
	"github.com/londonpotato1/standx-maker-bot/internal/orders"
	"github.com/londonpotato1/standx-maker-bot/internal/price"
	"github.com/londonpotato1/standx-maker-bot/internal/safety"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// PositionProvider is the subset of the REST client the strategy needs to
// feed the safety gate's position check.
type PositionProvider interface {
	GetPosition(ctx context.Context, symbol string) (*types.PositionResult, error)
}

// pendingRebalance tracks a cross-interleaved replace sequence that may
// span multiple ticks when a step is skipped for a locked order.
type pendingRebalance struct {
	reference decimal.Decimal
	remaining []types.QuoteSpec
}

// Strategy owns one symbol's control loop: read the reference price,
// consult the safety gate, reconcile, flatten fills, and rebalance the
// ladder when it has drifted out of band. One Strategy runs per symbol as
// an independent goroutine — the single-writer-per-symbol discipline means
// no locking is needed between symbols, only within this one for the
// dashboard's concurrent reads.
type Strategy struct {
	symbol types.Symbol
	cfg    config.StrategyConfig

	tracker *price.Tracker
	guard   *safety.Guard
	orders  *orders.Manager
	venue   PositionProvider
	events  chan<- types.Event
	stats   Stats

	logger *slog.Logger

	mu               sync.RWMutex
	lastPlacedLadder decimal.Decimal
	haveLadder       bool
	lastRebalanceAt  time.Time
	pending          *pendingRebalance
}

// New creates a Strategy for one symbol. events may be nil (no dashboard
// wired); venue may be nil (position gate treated as flat).
func New(
	symbol types.Symbol,
	cfg config.StrategyConfig,
	tracker *price.Tracker,
	guard *safety.Guard,
	orderMgr *orders.Manager,
	venue PositionProvider,
	events chan<- types.Event,
	logger *slog.Logger,
) *Strategy {
	return &Strategy{
		symbol:  symbol,
		cfg:     cfg,
		tracker: tracker,
		guard:   guard,
		orders:  orderMgr,
		venue:   venue,
		events:  events,
		logger:  logger.With("component", "strategy", "symbol", symbol.Ticker),
	}
}

// Run drives the tick loop until ctx is cancelled or the safety guard
// latches an emergency stop for this symbol.
func (s *Strategy) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval())
	defer ticker.Stop()

	s.logger.Info("strategy started")
	var lastSync time.Time

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("strategy stopping, cancelling all resting orders")
			if err := s.orders.CancelAll(context.Background()); err != nil {
				s.logger.Error("shutdown cancel_all failed", "error", err)
			}
			return
		case <-ticker.C:
			if s.tick(ctx, &lastSync) {
				s.logger.Error("emergency stop latched, halting symbol")
				return
			}
		}
	}
}

// tick runs one control-loop iteration and reports whether the symbol
// should stop scheduling further ticks (position kill latch).
func (s *Strategy) tick(ctx context.Context, lastSync *time.Time) bool {
	snapshot, haveSnapshot := s.tracker.Latest(ctx, s.symbol.Ticker)
	if !haveSnapshot {
		s.logger.Debug("no price reference yet, skipping tick")
		return false
	}

	position, err := s.fetchPosition(ctx)
	if err != nil {
		s.logger.Warn("get_position failed, gating on a flat assumption", "error", err)
	}

	decision := s.guard.Gate(snapshot, haveSnapshot, position, time.Now())
	metrics.SafetyGate.WithLabelValues(s.symbol.Ticker).Set(float64(decision.Gate))
	metrics.MarkPrice.WithLabelValues(s.symbol.Ticker).Set(snapshot.Mark.InexactFloat64())

	if decision.Gate == types.GateKillAll {
		s.handleKillAll(ctx, decision)
		return s.guard.EmergencyStopped()
	}

	now := time.Now()
	if now.Sub(*lastSync) >= s.cfg.SyncInterval() {
		if err := s.orders.Sync(ctx); err != nil {
			s.logger.Warn("sync failed", "error", err)
		}
		*lastSync = now
		s.handleFills(ctx)
	}

	if decision.Gate == types.GatePauseNew {
		return false
	}

	s.mu.RLock()
	haveLadder := s.haveLadder
	cooldownOK := !haveLadder || now.Sub(s.lastRebalanceAt) >= s.cfg.RebalanceCooldown()
	pending := s.pending
	s.mu.RUnlock()

	if pending == nil && cooldownOK && s.shouldRebalance(snapshot) {
		s.startRebalance(snapshot)
	}

	s.mu.RLock()
	pending = s.pending
	s.mu.RUnlock()
	if pending != nil {
		s.stepRebalance(ctx, now)
	}

	return false
}

// shouldRebalance implements the rebalance decision: unset ladder, drift
// beyond threshold from the reference, or any resting order further than
// max_distance_bps from the current mark.
func (s *Strategy) shouldRebalance(snapshot types.PriceSnapshot) bool {
	s.mu.RLock()
	haveLadder := s.haveLadder
	reference := s.lastPlacedLadder
	s.mu.RUnlock()

	if !haveLadder {
		return true
	}

	driftBps := band.Distance(snapshot.Mark, reference)
	if driftBps.GreaterThanOrEqual(decimal.NewFromFloat(s.cfg.DriftThresholdBps)) {
		return true
	}

	for _, o := range s.orders.Snapshot() {
		if o.Status != types.StatusOpen {
			continue
		}
		if band.Distance(o.Price, snapshot.Mark).GreaterThan(decimal.NewFromFloat(s.cfg.MaxDistanceBps)) {
			return true
		}
	}
	return false
}

// startRebalance freezes the reference price and queues the full
// cross-interleaved replace sequence: BUY1, SELL1, BUY2, SELL2.
func (s *Strategy) startRebalance(snapshot types.PriceSnapshot) {
	specs := band.BuildLadder(distancesToDecimal(s.cfg.ResolvedDistancesBps()))
	s.mu.Lock()
	s.pending = &pendingRebalance{reference: snapshot.Mark, remaining: specs}
	s.mu.Unlock()
}

// stepRebalance advances the pending rebalance: for each remaining cell,
// cancel the resting order (if any) then place the replacement at the
// frozen reference price. A cell whose cancel comes back locked, or whose
// place fails, stays pending and is retried on the next tick.
func (s *Strategy) stepRebalance(ctx context.Context, now time.Time) {
	s.mu.RLock()
	p := s.pending
	s.mu.RUnlock()
	if p == nil {
		return
	}

	var stillPending []types.QuoteSpec
	restingOrders := s.orders.Snapshot()

	for _, spec := range p.remaining {
		key := types.OrderKey{Side: spec.Side, Slot: spec.Slot}

		if existing, ok := restingOrders[key]; ok {
			result, err := s.orders.Cancel(ctx, existing.ClientID, false)
			if err != nil {
				s.logger.Warn("cancel during rebalance failed", "side", spec.Side, "slot", spec.Slot, "error", err)
				stillPending = append(stillPending, spec)
				continue
			}
			if result == orders.CancelLocked {
				stillPending = append(stillPending, spec)
				continue
			}
			if result == orders.CancelOK {
				s.stats.incCancelled()
				metrics.OrdersCancelled.WithLabelValues(s.symbol.Ticker).Inc()
				s.emit(types.EventOrderCancelled, types.OrderEvent{
					ClientID: existing.ClientID, Side: spec.Side, Slot: spec.Slot,
					Price: existing.Price, Qty: existing.Qty,
				})
			}
		}

		quotePrice := band.QuotePriceForSymbol(s.symbol, p.reference, spec.Side, spec.OffsetBps)
		qty := s.orderQty(p.reference)

		clientID, err := s.orders.Place(ctx, spec.Side, spec.Slot, qty, quotePrice)
		if err != nil {
			s.logger.Warn("place during rebalance failed", "side", spec.Side, "slot", spec.Slot, "error", err)
			stillPending = append(stillPending, spec)
			continue
		}
		s.stats.incPlaced()
		metrics.OrdersPlaced.WithLabelValues(s.symbol.Ticker).Inc()
		s.emit(types.EventOrderPlaced, types.OrderEvent{
			ClientID: clientID, Side: spec.Side, Slot: spec.Slot, Price: quotePrice, Qty: qty,
		})
	}

	s.mu.Lock()
	if len(stillPending) == 0 {
		s.lastPlacedLadder = p.reference
		s.haveLadder = true
		s.lastRebalanceAt = now
		s.pending = nil
	} else {
		p.remaining = stillPending
	}
	s.mu.Unlock()

	if len(stillPending) == 0 {
		s.stats.incRebalances()
		metrics.Rebalances.WithLabelValues(s.symbol.Ticker).Inc()
		s.emit(types.EventRebalance, types.RebalanceEvent{Reference: p.reference, DriftBps: decimal.Zero})
	}
}

// handleFills drains fills observed during reconciliation and issues a
// reducing market order for each, flattening the resulting position.
func (s *Strategy) handleFills(ctx context.Context) {
	for _, fill := range s.orders.DrainFills() {
		s.stats.incFills()
		metrics.Fills.WithLabelValues(s.symbol.Ticker).Inc()
		s.emit(types.EventOrderFilled, fill)

		flattenSide := fill.Side.Opposite()
		if _, err := s.orders.Flatten(ctx, flattenSide, fill.Qty); err != nil {
			s.logger.Error("flatten failed", "client_id", fill.ClientID, "error", err)
			continue
		}
		s.stats.incLiquidations()
		metrics.Liquidations.WithLabelValues(s.symbol.Ticker).Inc()
	}
}

// handleKillAll cancels every resting order and resets the ladder state so
// the next OK tick performs a full fresh placement.
func (s *Strategy) handleKillAll(ctx context.Context, decision safety.Decision) {
	if err := s.orders.CancelAll(ctx); err != nil {
		s.logger.Error("kill_all cancel_all failed", "error", err)
	}

	s.mu.Lock()
	s.haveLadder = false
	s.lastPlacedLadder = decimal.Zero
	s.pending = nil
	s.mu.Unlock()

	s.stats.incKills()
	metrics.KillAllTotal.WithLabelValues(s.symbol.Ticker, decision.Reason).Inc()
	s.emit(types.EventSafetyTriggered, types.SafetyEvent{Gate: types.GateKillAll, Reason: decision.Reason, Until: decision.Until})

	if decision.Reason == "position" {
		s.emit(types.EventEmergencyStop, types.SafetyEvent{Gate: types.GateKillAll, Reason: decision.Reason})
	}
}

func (s *Strategy) fetchPosition(ctx context.Context) (types.PositionResult, error) {
	if s.venue == nil {
		return types.PositionResult{}, nil
	}
	pos, err := s.venue.GetPosition(ctx, s.symbol.Ticker)
	if err != nil {
		return types.PositionResult{}, err
	}
	return *pos, nil
}

// orderQty converts the configured USD notional into a quantity at the
// given reference price, floored to the symbol's minimum.
func (s *Strategy) orderQty(reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return s.symbol.MinQty
	}
	qty := decimal.NewFromFloat(s.cfg.OrderSizeUSD).Div(reference)
	if qty.LessThan(s.symbol.MinQty) {
		return s.symbol.MinQty
	}
	return qty
}

func (s *Strategy) emit(t types.EventType, data interface{}) {
	if s.events == nil {
		return
	}
	evt := types.Event{Type: t, Symbol: s.symbol.Ticker, Timestamp: time.Now(), Data: data}
	select {
	case s.events <- evt:
	default:
		s.logger.Debug("event channel full, dropping", "type", t)
	}
}

func distancesToDecimal(distances []int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(distances))
	for i, d := range distances {
		out[i] = decimal.NewFromInt(int64(d))
	}
	return out
}

// Status is a read-only snapshot of a symbol's control-loop state,
// consumed by the dashboard. It never mutates the guard's latch state or
// the tracker's push bookkeeping.
type Status struct {
	Symbol           string
	Snapshot         types.PriceSnapshot
	HaveSnapshot     bool
	Gate             types.Gate
	GateReason       string
	GateUntil        time.Time
	LastPlacedLadder decimal.Decimal
	HaveLadder       bool
	LastRebalanceAt  time.Time
	Orders           map[types.OrderKey]types.ManagedOrder
	Stats            Stats
}

// Status returns the current state for the dashboard without perturbing
// the safety guard or price tracker.
func (s *Strategy) Status() Status {
	snap, ok := s.tracker.LatestCached(s.symbol.Ticker)
	decision := s.guard.LastDecision()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Symbol:           s.symbol.Ticker,
		Snapshot:         snap,
		HaveSnapshot:     ok,
		Gate:             decision.Gate,
		GateReason:       decision.Reason,
		GateUntil:        decision.Until,
		LastPlacedLadder: s.lastPlacedLadder,
		HaveLadder:       s.haveLadder,
		LastRebalanceAt:  s.lastRebalanceAt,
		Orders:           s.orders.Snapshot(),
		Stats:            s.stats.Snapshot(),
	}
}

// RestoreStats seeds the counters from a persisted snapshot at startup.
func (s *Strategy) RestoreStats(snap Stats) {
	s.stats.restore(snap)
}
