// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — symbols, quotes,
// managed orders, and venue event payloads. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// OrderType distinguishes resting maker quotes from reducing market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus is the lifecycle state of a ManagedOrder.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusSubmitted OrderStatus = "SUBMITTED"
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether the status no longer participates in reconciliation.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusFailed
}

// Slot is the ladder position: 1 (inner) or 2 (outer).
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// Band classifies a distance-from-reference into a points-multiplier tier.
type Band int

const (
	BandA   Band = iota // distance <= 10bps, multiplier 1.0
	BandB               // 10 < distance <= 30bps, multiplier 0.5
	BandC               // 30 < distance <= 100bps, multiplier 0.1
	BandOut             // distance > 100bps, multiplier 0
)

func (b Band) String() string {
	switch b {
	case BandA:
		return "A"
	case BandB:
		return "B"
	case BandC:
		return "C"
	default:
		return "OUT"
	}
}

// Multiplier returns the points-accrual multiplier for the band.
func (b Band) Multiplier() decimal.Decimal {
	switch b {
	case BandA:
		return decimal.NewFromFloat(1.0)
	case BandB:
		return decimal.NewFromFloat(0.5)
	case BandC:
		return decimal.NewFromFloat(0.1)
	default:
		return decimal.Zero
	}
}

// Gate is the three-state output of the SafetyGuard.
type Gate int

const (
	GateOK Gate = iota
	GatePauseNew
	GateKillAll
)

func (g Gate) String() string {
	switch g {
	case GateOK:
		return "OK"
	case GatePauseNew:
		return "PAUSE_NEW"
	case GateKillAll:
		return "KILL_ALL"
	default:
		return "UNKNOWN"
	}
}

// ————————————————————————————————————————————————————————————————————————
// Error categories (§7)
// ————————————————————————————————————————————————————————————————————————

// ErrorCategory classifies a venue error for retry/escalation decisions.
type ErrorCategory int

const (
	ErrNone ErrorCategory = iota
	ErrHTTP404
	ErrTimeout
	ErrRejected
	ErrNetwork
)

// VenueError wraps a categorized failure from a REST call.
type VenueError struct {
	Category ErrorCategory
	Message  string
}

func (e *VenueError) Error() string {
	return e.Message
}

// ————————————————————————————————————————————————————————————————————————
// Symbol metadata
// ————————————————————————————————————————————————————————————————————————

// Symbol carries the exchange-imposed constants for a tradable instrument.
type Symbol struct {
	Ticker     string          // e.g. "BTC-USD"
	MinQty     decimal.Decimal // exchange minimum order quantity
	PriceTick  decimal.Decimal // minimum price increment
	NotionalDP int32           // decimal places for notional rounding
}

// RoundPriceOutward rounds price away from the reference, per side, to the
// symbol's tick — BUY rounds down, SELL rounds up — so a quote never drifts
// inside the band's protective margin.
func (s Symbol) RoundPriceOutward(price decimal.Decimal, side Side) decimal.Decimal {
	if s.PriceTick.IsZero() {
		return price
	}
	ticks := price.Div(s.PriceTick)
	switch side {
	case BUY:
		return ticks.Floor().Mul(s.PriceTick)
	default:
		return ticks.Ceil().Mul(s.PriceTick)
	}
}

// ————————————————————————————————————————————————————————————————————————
// Price tracking
// ————————————————————————————————————————————————————————————————————————

// PriceSnapshot is the freshest mark/mid/spread view for a symbol.
type PriceSnapshot struct {
	Symbol       string
	Mark         decimal.Decimal
	Mid          decimal.Decimal
	Bid          decimal.Decimal
	Ask          decimal.Decimal
	SpreadBps    decimal.Decimal
	LastUpdateTS time.Time
}

// Stale reports whether the snapshot is older than threshold as of now.
func (p PriceSnapshot) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastUpdateTS) > threshold
}

// MarkMidDivergenceBps computes 10000*|mark-mid|/mid.
func (p PriceSnapshot) MarkMidDivergenceBps() decimal.Decimal {
	if p.Mid.IsZero() {
		return decimal.Zero
	}
	diff := p.Mark.Sub(p.Mid).Abs()
	return diff.Mul(decimal.NewFromInt(10000)).Div(p.Mid)
}

// PushUpdate is a single tick from the venue's push stream.
type PushUpdate struct {
	Symbol string
	Mark   decimal.Decimal
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	TS     time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Quotes and managed orders
// ————————————————————————————————————————————————————————————————————————

// QuoteSpec describes one desired resting quote in the ladder.
type QuoteSpec struct {
	Side      Side
	Slot      Slot
	OffsetBps decimal.Decimal
}

// OrderKey identifies a logical ladder cell.
type OrderKey struct {
	Side Side
	Slot Slot
}

// ManagedOrder is the OrderManager's local record of a single order.
type ManagedOrder struct {
	ClientID             string
	ExchangeID           string
	Symbol               string
	Side                 Side
	Slot                 Slot
	Qty                  decimal.Decimal
	Price                decimal.Decimal
	Status               OrderStatus
	CreatedAt            time.Time
	LockUntil            time.Time
	LastSeenOnExchangeAt time.Time
}

// Locked reports whether the order may not yet be voluntarily cancelled.
func (o ManagedOrder) Locked(now time.Time) bool {
	return now.Before(o.LockUntil)
}

// ————————————————————————————————————————————————————————————————————————
// Venue REST interface payloads (§6)
// ————————————————————————————————————————————————————————————————————————

// PlaceOrderRequest is the venue-agnostic place-order request.
type PlaceOrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        decimal.Decimal
	Price      decimal.Decimal // zero for market orders
	ClientID   string
	ReduceOnly bool
}

// PlaceOrderResult is returned on successful acceptance.
type PlaceOrderResult struct {
	ExchangeID string
}

// OpenOrder is one entry from list_open_orders.
type OpenOrder struct {
	ClientID   string
	ExchangeID string
	Side       Side
	Price      decimal.Decimal
	Qty        decimal.Decimal
	Status     string
}

// OrderStatusResult is the response shape for get_order.
type OrderStatusResult struct {
	Status string // "open", "filled", "cancelled"
}

// PositionResult is the response shape for get_position.
type PositionResult struct {
	NotionalUSD decimal.Decimal
	Side        Side
	Qty         decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Dashboard / downstream events (§6, §11)
// ————————————————————————————————————————————————————————————————————————

// EventType enumerates the typed events the engine emits for a front-end.
type EventType string

const (
	EventOrderPlaced     EventType = "order_placed"
	EventOrderCancelled  EventType = "order_cancelled"
	EventOrderFilled     EventType = "order_filled"
	EventRebalance       EventType = "rebalance"
	EventSafetyTriggered EventType = "safety_triggered"
	EventEmergencyStop   EventType = "emergency_stop"
)

// Event is the envelope placed on the engine's typed event channel.
type Event struct {
	Type      EventType   `json:"type"`
	Symbol    string      `json:"symbol"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// FillEvent payload for EventOrderFilled.
type FillEvent struct {
	ClientID string          `json:"client_id"`
	Side     Side            `json:"side"`
	Slot     Slot            `json:"slot"`
	Qty      decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
}

// RebalanceEvent payload for EventRebalance.
type RebalanceEvent struct {
	Reference decimal.Decimal `json:"reference"`
	DriftBps  decimal.Decimal `json:"drift_bps"`
}

// SafetyEvent payload for EventSafetyTriggered / EventEmergencyStop.
type SafetyEvent struct {
	Gate   Gate      `json:"gate"`
	Reason string    `json:"reason"`
	Until  time.Time `json:"until,omitempty"`
}

// OrderEvent payload for EventOrderPlaced / EventOrderCancelled.
type OrderEvent struct {
	ClientID   string          `json:"client_id"`
	ExchangeID string          `json:"exchange_id,omitempty"`
	Side       Side            `json:"side"`
	Slot       Slot            `json:"slot"`
	Price      decimal.Decimal `json:"price"`
	Qty        decimal.Decimal `json:"qty"`
	Reason     string          `json:"reason,omitempty"`
}
