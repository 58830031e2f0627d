package safety

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func defaultSafetyConfig() config.SafetyConfig {
	cfg := config.SafetyConfig{}
	cfg.MaxPositionUSD = 50
	cfg.PreKill.VolatilityThresholdBps = 15
	cfg.PreKill.MarkMidDivergenceBps = 3
	cfg.PreKill.PauseDurationSeconds = 5
	cfg.HardKill.MaxVolatilityBps = 30
	cfg.HardKill.StaleThresholdSeconds = 30
	return cfg
}

func snap(mark, mid decimal.Decimal, ts time.Time) types.PriceSnapshot {
	return types.PriceSnapshot{Mark: mark, Mid: mid, LastUpdateTS: ts}
}

func TestGateOKHappyPath(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	now := time.Now()

	d := g.Gate(snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(94000), now), true, types.PositionResult{}, now)
	if d.Gate != types.GateOK {
		t.Errorf("Gate = %v, want OK", d.Gate)
	}
}

func TestGateStaleKillsAll(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	now := time.Now()
	old := snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(94000), now.Add(-40*time.Second))

	d := g.Gate(old, true, types.PositionResult{}, now)
	if d.Gate != types.GateKillAll || d.Reason != "stale" {
		t.Errorf("Gate = %+v, want KILL_ALL(stale)", d)
	}
}

func TestGateStaleWarnMode(t *testing.T) {
	t.Parallel()
	cfg := defaultSafetyConfig()
	cfg.StaleMode = "warn"
	g := New(cfg, testLogger(), "BTC-USD")
	now := time.Now()
	old := snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(94000), now.Add(-40*time.Second))

	d := g.Gate(old, true, types.PositionResult{}, now)
	if d.Gate != types.GateOK {
		t.Errorf("Gate = %+v, want OK in warn mode", d)
	}
}

func TestGateHardKillOnVolatility(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	t0 := time.Now()
	t1 := t0.Add(time.Second)

	g.Gate(snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(94000), t0), true, types.PositionResult{}, t0)
	d := g.Gate(snap(decimal.NewFromFloat(94300), decimal.NewFromFloat(94300), t1), true, types.PositionResult{}, t1)

	if d.Gate != types.GateKillAll || d.Reason != "volatility" {
		t.Errorf("Gate = %+v, want KILL_ALL(volatility)", d)
	}
}

func TestGatePreKillDivergenceLatches(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	now := time.Now()

	d := g.Gate(snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(93950.70), now), true, types.PositionResult{}, now)
	if d.Gate != types.GatePauseNew {
		t.Fatalf("Gate = %+v, want PAUSE_NEW", d)
	}

	// Conditions clear, but latch should persist until Until.
	later := now.Add(2 * time.Second)
	clear := g.Gate(snap(decimal.NewFromFloat(94001), decimal.NewFromFloat(94001), later), true, types.PositionResult{}, later)
	if clear.Gate != types.GatePauseNew {
		t.Errorf("Gate = %+v, want PAUSE_NEW to persist despite cleared divergence", clear)
	}

	afterExpiry := now.Add(6 * time.Second)
	resumed := g.Gate(snap(decimal.NewFromFloat(94002), decimal.NewFromFloat(94002), afterExpiry), true, types.PositionResult{}, afterExpiry)
	if resumed.Gate != types.GateOK {
		t.Errorf("Gate = %+v, want OK after latch expiry", resumed)
	}
}

func TestGatePositionKillSetsEmergencyLatch(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	now := time.Now()

	d := g.Gate(snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(94000), now), true, types.PositionResult{NotionalUSD: decimal.NewFromFloat(51)}, now)
	if d.Gate != types.GateKillAll || d.Reason != "position" {
		t.Errorf("Gate = %+v, want KILL_ALL(position)", d)
	}
	if !g.EmergencyStopped() {
		t.Error("expected emergency-stop latch to be set")
	}
}

func TestGatePositionKillTakesPrecedenceOverPreKillPause(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	now := time.Now()

	// Divergence alone would be a PAUSE_NEW condition, but a simultaneous
	// position breach must win — Fatal over transient.
	d := g.Gate(
		snap(decimal.NewFromFloat(94000), decimal.NewFromFloat(93950.70), now),
		true,
		types.PositionResult{NotionalUSD: decimal.NewFromFloat(51)},
		now,
	)
	if d.Gate != types.GateKillAll || d.Reason != "position" {
		t.Errorf("Gate = %+v, want KILL_ALL(position) even with a concurrent divergence pause condition", d)
	}
	if !g.EmergencyStopped() {
		t.Error("expected emergency-stop latch to be set")
	}
}

func TestGateAbsentSnapshotKillsAll(t *testing.T) {
	t.Parallel()
	g := New(defaultSafetyConfig(), testLogger(), "BTC-USD")
	now := time.Now()

	d := g.Gate(types.PriceSnapshot{}, false, types.PositionResult{}, now)
	if d.Gate != types.GateKillAll || d.Reason != "stale" {
		t.Errorf("Gate = %+v, want KILL_ALL(stale) for absent snapshot", d)
	}
}
