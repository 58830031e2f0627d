package api

import (
	"time"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/internal/strategy"
)

// SnapshotProvider is the subset of the engine the dashboard needs: a
// point-in-time view across every quoted symbol plus the active config.
type SnapshotProvider interface {
	Snapshot() []strategy.Status
	Config() config.Config
}

// BuildSnapshot aggregates every symbol's control-loop state into a
// dashboard snapshot.
func BuildSnapshot(provider SnapshotProvider, cfg config.Config) DashboardSnapshot {
	statuses := provider.Snapshot()
	staleAfter := time.Duration(cfg.Safety.HardKill.StaleThresholdSeconds * float64(time.Second))

	symbols := make([]SymbolStatus, 0, len(statuses))
	for _, st := range statuses {
		symbols = append(symbols, convertStatus(st, staleAfter))
	}

	return DashboardSnapshot{
		Timestamp: time.Now(),
		Symbols:   symbols,
		Config:    NewConfigSummary(cfg),
	}
}

func convertStatus(st strategy.Status, staleAfter time.Duration) SymbolStatus {
	orders := make([]OrderStatus, 0, len(st.Orders))
	for key, o := range st.Orders {
		orders = append(orders, OrderStatus{
			Side:   string(key.Side),
			Slot:   int(key.Slot),
			Price:  o.Price.InexactFloat64(),
			Qty:    o.Qty.InexactFloat64(),
			Status: string(o.Status),
		})
	}

	return SymbolStatus{
		Symbol:           st.Symbol,
		Mark:             st.Snapshot.Mark.InexactFloat64(),
		Mid:              st.Snapshot.Mid.InexactFloat64(),
		Bid:              st.Snapshot.Bid.InexactFloat64(),
		Ask:              st.Snapshot.Ask.InexactFloat64(),
		SpreadBps:        st.Snapshot.SpreadBps.InexactFloat64(),
		LastUpdated:      st.Snapshot.LastUpdateTS,
		IsStale:          !st.HaveSnapshot || st.Snapshot.Stale(time.Now(), staleAfter),
		Gate:             st.Gate.String(),
		GateReason:       st.GateReason,
		GateUntil:        st.GateUntil,
		LastPlacedLadder: st.LastPlacedLadder.InexactFloat64(),
		HaveLadder:       st.HaveLadder,
		LastRebalanceAt:  st.LastRebalanceAt,
		Orders:           orders,
		Stats: StatsSummary{
			Placed:       st.Stats.Placed,
			Cancelled:    st.Stats.Cancelled,
			Rebalances:   st.Stats.Rebalances,
			Fills:        st.Stats.Fills,
			Liquidations: st.Stats.Liquidations,
			Kills:        st.Stats.Kills,
		},
	}
}
