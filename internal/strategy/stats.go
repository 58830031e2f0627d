package strategy

import "sync/atomic"

// Stats accumulates the counters the dashboard and the store persist for a
// symbol: placed/cancelled/rebalances/fills/liquidations/kill-all
// activations. Safe for concurrent reads from the dashboard while the
// owning strategy goroutine writes.
type Stats struct {
	Placed       uint64
	Cancelled    uint64
	Rebalances   uint64
	Fills        uint64
	Liquidations uint64
	Kills        uint64
}

func (s *Stats) incPlaced()       { atomic.AddUint64(&s.Placed, 1) }
func (s *Stats) incCancelled()    { atomic.AddUint64(&s.Cancelled, 1) }
func (s *Stats) incRebalances()   { atomic.AddUint64(&s.Rebalances, 1) }
func (s *Stats) incFills()        { atomic.AddUint64(&s.Fills, 1) }
func (s *Stats) incLiquidations() { atomic.AddUint64(&s.Liquidations, 1) }
func (s *Stats) incKills()        { atomic.AddUint64(&s.Kills, 1) }

// Snapshot returns a consistent-enough copy for reporting.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Placed:       atomic.LoadUint64(&s.Placed),
		Cancelled:    atomic.LoadUint64(&s.Cancelled),
		Rebalances:   atomic.LoadUint64(&s.Rebalances),
		Fills:        atomic.LoadUint64(&s.Fills),
		Liquidations: atomic.LoadUint64(&s.Liquidations),
		Kills:        atomic.LoadUint64(&s.Kills),
	}
}

// restore overwrites the counters from a persisted snapshot, used when the
// engine reloads state from the store on startup.
func (s *Stats) restore(snap Stats) {
	atomic.StoreUint64(&s.Placed, snap.Placed)
	atomic.StoreUint64(&s.Cancelled, snap.Cancelled)
	atomic.StoreUint64(&s.Rebalances, snap.Rebalances)
	atomic.StoreUint64(&s.Fills, snap.Fills)
	atomic.StoreUint64(&s.Liquidations, snap.Liquidations)
	atomic.StoreUint64(&s.Kills, snap.Kills)
}
