package api

import (
	"time"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// DashboardEvent is the thin envelope broadcast to every connected dashboard
// client. Data carries one of pkg/types' event payload structs (FillEvent,
// RebalanceEvent, SafetyEvent, OrderEvent) unchanged, so its prices and
// quantities marshal with decimal.Decimal's JSON encoding, whereas the REST
// snapshot carries them as float64.
type DashboardEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Symbol    string      `json:"symbol"`
	Data      interface{} `json:"data"`
}

// FromEngineEvent translates an engine-level types.Event into the wire
// envelope broadcast over the dashboard's websocket.
func FromEngineEvent(e types.Event) DashboardEvent {
	return DashboardEvent{
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Symbol:    e.Symbol,
		Data:      e.Data,
	}
}
