// Package price implements PriceTracker: the freshest mark/mid/spread view
// per symbol, fed by the venue's push stream with a pull-based fallback.
package price

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

const bps10000 = 10000

// MarkRefresher is the subset of the REST client the tracker needs for its
// pull-based fallback.
type MarkRefresher interface {
	// GetMark returns the current mark/bid/ask tuple for symbol.
	GetMark(ctx context.Context, symbol string) (mark, bid, ask decimal.Decimal, err error)
}

// Tracker maintains the latest PriceSnapshot per symbol. Snapshots are
// monotonically replaced by timestamp; a push older than the stored
// snapshot is dropped. The tracker never fabricates missing fields —
// Latest returns (zero, false) when no reference price is available and
// callers must skip action rather than assume zero.
type Tracker struct {
	mu        sync.RWMutex
	snapshots map[string]types.PriceSnapshot
	lastPush  map[string]time.Time

	restFallbackInterval time.Duration
	rest                  MarkRefresher
	logger                *slog.Logger
}

// New creates a PriceTracker. rest may be nil if no REST fallback is wired
// (tests exercising push-only behavior).
func New(rest MarkRefresher, restFallbackInterval time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		snapshots:             make(map[string]types.PriceSnapshot),
		lastPush:              make(map[string]time.Time),
		restFallbackInterval:  restFallbackInterval,
		rest:                  rest,
		logger:                logger.With("component", "price_tracker"),
	}
}

// Latest returns the freshest snapshot for symbol, or false if none exists
// yet. If no push has arrived for restFallbackInterval, it issues a REST
// query to refresh mark before returning.
func (t *Tracker) Latest(ctx context.Context, symbol string) (types.PriceSnapshot, bool) {
	t.mu.RLock()
	last, havePush := t.lastPush[symbol]
	snap, haveSnap := t.snapshots[symbol]
	t.mu.RUnlock()

	stale := !havePush || time.Since(last) > t.restFallbackInterval
	if stale && t.rest != nil {
		if err := t.RefreshREST(ctx, symbol); err != nil {
			t.logger.Warn("rest fallback refresh failed", "symbol", symbol, "error", err)
		} else {
			t.mu.RLock()
			snap, haveSnap = t.snapshots[symbol]
			t.mu.RUnlock()
		}
	}

	return snap, haveSnap
}

// LatestCached returns the stored snapshot without triggering a REST
// fallback refresh — used by read-only callers like the dashboard.
func (t *Tracker) LatestCached(symbol string) (types.PriceSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.snapshots[symbol]
	return snap, ok
}

// OnPush applies a push-stream tick. Pushes older than the currently stored
// snapshot (by timestamp) are dropped.
func (t *Tracker) OnPush(update types.PushUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.snapshots[update.Symbol]
	if ok && !update.TS.After(existing.LastUpdateTS) {
		return
	}

	mid := update.Bid.Add(update.Ask).Div(decimal.NewFromInt(2))
	var spreadBps decimal.Decimal
	if !mid.IsZero() {
		spreadBps = update.Ask.Sub(update.Bid).Mul(decimal.NewFromInt(bps10000)).Div(mid)
	}

	t.snapshots[update.Symbol] = types.PriceSnapshot{
		Symbol:       update.Symbol,
		Mark:         update.Mark,
		Mid:          mid,
		Bid:          update.Bid,
		Ask:          update.Ask,
		SpreadBps:    spreadBps,
		LastUpdateTS: update.TS,
	}
	t.lastPush[update.Symbol] = time.Now()
}

// RefreshREST pulls a fresh mark via REST and merges it into the stored
// snapshot, used as the fallback when the push stream has gone quiet.
func (t *Tracker) RefreshREST(ctx context.Context, symbol string) error {
	if t.rest == nil {
		return fmt.Errorf("no rest fallback configured")
	}

	mark, bid, ask, err := t.rest.GetMark(ctx, symbol)
	if err != nil {
		return fmt.Errorf("refresh rest mark: %w", err)
	}

	t.OnPush(types.PushUpdate{
		Symbol: symbol,
		Mark:   mark,
		Bid:    bid,
		Ask:    ask,
		TS:     time.Now(),
	})
	return nil
}

// Consume drains a channel of push updates into the tracker until ctx is
// cancelled or the channel closes. Run as a goroutine by the engine.
func (t *Tracker) Consume(ctx context.Context, updates <-chan types.PushUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			t.OnPush(u)
		}
	}
}
