// Package safety implements SafetyGuard: the three-tier gate (OK /
// PAUSE_NEW / KILL_ALL) that the strategy tick loop consults before
// placing, rebalancing, or leaving orders resting.
package safety

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// Decision is the gate's output for one evaluation.
type Decision struct {
	Gate   types.Gate
	Reason string
	Until  time.Time // set for PAUSE_NEW: the latch's expiry
}

// markPoint is a single rolling-window observation.
type markPoint struct {
	at   time.Time
	mark decimal.Decimal
}

// Guard evaluates the safety gate for a single symbol. Not safe for
// concurrent use across symbols from the same instance; the engine creates
// one Guard per symbol, matching the single-writer-per-symbol discipline.
type Guard struct {
	cfg config.SafetyConfig

	mu          sync.Mutex
	window      []markPoint // rolling ~1s of mark observations
	pauseUntil  time.Time
	pauseReason string
	emergency   bool // position kill latch; cleared only by external reset

	lastDecision Decision

	logger *slog.Logger
}

// New creates a Guard for one symbol.
func New(cfg config.SafetyConfig, logger *slog.Logger, symbol string) *Guard {
	return &Guard{
		cfg:    cfg,
		logger: logger.With("component", "safety_guard", "symbol", symbol),
	}
}

// EmergencyStopped reports whether the position kill latch is set. Once
// set, the strategy stops scheduling ticks for this symbol until an
// external reset (a fresh process start).
func (g *Guard) EmergencyStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emergency
}

// Gate evaluates the decision table against the current snapshot and the
// rolling volatility window, in priority order: stale > hard-kill-vol >
// position > pre-kill-vol > divergence > OK. Position is a Fatal trigger and
// is checked ahead of the pre-kill pause causes so it can never be
// downgraded to a PAUSE_NEW by a simultaneous vol/divergence spike. A
// PAUSE_NEW latch, once set, persists until its `until` time regardless of
// conditions clearing early; multiple simultaneous pre-kill causes are
// coalesced with the max until.
func (g *Guard) Gate(snapshot types.PriceSnapshot, haveSnapshot bool, position types.PositionResult, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	decision := g.evaluate(snapshot, haveSnapshot, position, now)
	g.lastDecision = decision
	return decision
}

// LastDecision returns the most recently computed decision without
// re-evaluating the gate — used by read-only callers like the dashboard,
// which must not perturb the rolling volatility window or latch state.
func (g *Guard) LastDecision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastDecision
}

func (g *Guard) evaluate(snapshot types.PriceSnapshot, haveSnapshot bool, position types.PositionResult, now time.Time) Decision {
	if g.emergency {
		return Decision{Gate: types.GateKillAll, Reason: "position"}
	}

	staleThreshold := time.Duration(g.cfg.HardKill.StaleThresholdSeconds * float64(time.Second))
	if !haveSnapshot || snapshot.Stale(now, staleThreshold) {
		if g.cfg.StaleMode == "warn" {
			g.logger.Warn("stale price data (warn mode, not killing)")
			return g.applyLatch(Decision{Gate: types.GateOK}, now)
		}
		return Decision{Gate: types.GateKillAll, Reason: "stale"}
	}

	g.recordMark(snapshot.Mark, now)
	volBpsPerSec := g.volatility(now)

	if volBpsPerSec.GreaterThanOrEqual(decimal.NewFromFloat(g.cfg.HardKill.MaxVolatilityBps)) {
		return Decision{Gate: types.GateKillAll, Reason: "volatility"}
	}

	if position.NotionalUSD.GreaterThanOrEqual(decimal.NewFromFloat(g.cfg.MaxPositionUSD)) {
		g.emergency = true
		return Decision{Gate: types.GateKillAll, Reason: "position"}
	}

	pauseUntil := time.Time{}
	reason := ""

	if volBpsPerSec.GreaterThanOrEqual(decimal.NewFromFloat(g.cfg.PreKill.VolatilityThresholdBps)) {
		pauseUntil = now.Add(time.Duration(g.cfg.PreKill.PauseDurationSeconds * float64(time.Second)))
		reason = "volatility"
	}

	divergence := snapshot.MarkMidDivergenceBps()
	if divergence.GreaterThanOrEqual(decimal.NewFromFloat(g.cfg.PreKill.MarkMidDivergenceBps)) {
		candidateUntil := now.Add(time.Duration(g.cfg.PreKill.PauseDurationSeconds * float64(time.Second)))
		if candidateUntil.After(pauseUntil) {
			pauseUntil = candidateUntil
		}
		if reason == "" {
			reason = "divergence"
		} else {
			reason = "volatility+divergence"
		}
	}

	if !pauseUntil.IsZero() {
		return g.applyLatch(Decision{Gate: types.GatePauseNew, Reason: reason, Until: pauseUntil}, now)
	}

	return g.applyLatch(Decision{Gate: types.GateOK}, now)
}

// applyLatch enforces that an existing PAUSE_NEW latch persists until its
// expiry regardless of what the current tick's raw decision says.
func (g *Guard) applyLatch(decision Decision, now time.Time) Decision {
	if !g.pauseUntil.IsZero() && now.Before(g.pauseUntil) {
		return Decision{Gate: types.GatePauseNew, Reason: g.pauseReason, Until: g.pauseUntil}
	}

	if decision.Gate == types.GatePauseNew {
		if decision.Until.After(g.pauseUntil) {
			g.pauseUntil = decision.Until
			g.pauseReason = decision.Reason
		}
		return Decision{Gate: types.GatePauseNew, Reason: g.pauseReason, Until: g.pauseUntil}
	}

	g.pauseUntil = time.Time{}
	g.pauseReason = ""
	return decision
}

// recordMark appends a mark observation and trims the window to ~1 second.
func (g *Guard) recordMark(mark decimal.Decimal, now time.Time) {
	g.window = append(g.window, markPoint{at: now, mark: mark})

	cutoff := now.Add(-1100 * time.Millisecond)
	i := 0
	for i < len(g.window) && g.window[i].at.Before(cutoff) {
		i++
	}
	g.window = g.window[i:]
}

// volatility computes 10000*|mark_now - mark_1s_ago|/mark_1s_ago using the
// oldest sample still within the rolling window as the ~1s-ago reference,
// then divides by the seconds between that sample and the newest one to
// give bps per second.
func (g *Guard) volatility(now time.Time) decimal.Decimal {
	if len(g.window) < 2 {
		return decimal.Zero
	}
	oldest := g.window[0]
	newest := g.window[len(g.window)-1]
	if oldest.mark.IsZero() {
		return decimal.Zero
	}
	elapsed := newest.at.Sub(oldest.at).Seconds()
	if elapsed <= 0 {
		return decimal.Zero
	}
	bps := newest.mark.Sub(oldest.mark).Abs().Mul(decimal.NewFromInt(10000)).Div(oldest.mark)
	return bps.Div(decimal.NewFromFloat(elapsed))
}
