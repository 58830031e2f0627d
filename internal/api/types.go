package api

import (
	"time"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
)

// DashboardSnapshot represents the complete dashboard state: one entry per
// quoted symbol plus a summary of the active configuration.
type DashboardSnapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Symbols   []SymbolStatus `json:"symbols"`
	Config    ConfigSummary  `json:"config"`
}

// SymbolStatus represents per-symbol control-loop state.
type SymbolStatus struct {
	Symbol string `json:"symbol"`

	Mark        float64   `json:"mark"`
	Mid         float64   `json:"mid"`
	Bid         float64   `json:"bid"`
	Ask         float64   `json:"ask"`
	SpreadBps   float64   `json:"spread_bps"`
	LastUpdated time.Time `json:"last_updated"`
	IsStale     bool      `json:"is_stale"`

	Gate       string    `json:"gate"`
	GateReason string    `json:"gate_reason,omitempty"`
	GateUntil  time.Time `json:"gate_until,omitempty"`

	LastPlacedLadder float64   `json:"last_placed_ladder"`
	HaveLadder       bool      `json:"have_ladder"`
	LastRebalanceAt  time.Time `json:"last_rebalance_at"`

	Orders []OrderStatus `json:"orders"`
	Stats  StatsSummary  `json:"stats"`
}

// OrderStatus represents one resting ladder cell.
type OrderStatus struct {
	Side   string  `json:"side"`
	Slot   int     `json:"slot"`
	Price  float64 `json:"price"`
	Qty    float64 `json:"qty"`
	Status string  `json:"status"`
}

// StatsSummary mirrors strategy.Stats for JSON transport.
type StatsSummary struct {
	Placed       uint64 `json:"placed"`
	Cancelled    uint64 `json:"cancelled"`
	Rebalances   uint64 `json:"rebalances"`
	Fills        uint64 `json:"fills"`
	Liquidations uint64 `json:"liquidations"`
	Kills        uint64 `json:"kills"`
}

// ConfigSummary represents the active strategy/safety configuration.
type ConfigSummary struct {
	Symbols           []string `json:"symbols"`
	OrderSizeUSD      float64  `json:"order_size_usd"`
	OrderDistancesBps []int    `json:"order_distances_bps"`
	MinDistanceBps    float64  `json:"min_distance_bps"`
	MaxDistanceBps    float64  `json:"max_distance_bps"`
	DriftThresholdBps float64  `json:"drift_threshold_bps"`

	MaxPositionUSD         float64 `json:"max_position_usd"`
	VolatilityThresholdBps float64 `json:"volatility_threshold_bps"`
	MaxVolatilityBps       float64 `json:"max_volatility_bps"`
	StaleMode              string  `json:"stale_mode"`

	DryRun bool `json:"dry_run"`
}

// NewConfigSummary creates a config summary from the active configuration.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Symbols:           cfg.Strategy.Symbols,
		OrderSizeUSD:      cfg.Strategy.OrderSizeUSD,
		OrderDistancesBps: cfg.Strategy.ResolvedDistancesBps(),
		MinDistanceBps:    cfg.Strategy.MinDistanceBps,
		MaxDistanceBps:    cfg.Strategy.MaxDistanceBps,
		DriftThresholdBps: cfg.Strategy.DriftThresholdBps,

		MaxPositionUSD:         cfg.Safety.MaxPositionUSD,
		VolatilityThresholdBps: cfg.Safety.PreKill.VolatilityThresholdBps,
		MaxVolatilityBps:       cfg.Safety.HardKill.MaxVolatilityBps,
		StaleMode:              cfg.Safety.StaleMode,

		DryRun: cfg.DryRun,
	}
}
