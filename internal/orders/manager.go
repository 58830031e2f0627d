// Package orders implements OrderManager: the local order-book shadow and
// its reconciliation protocol against an eventually-consistent exchange.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/internal/errkind"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// CancelResult is the outcome of a Cancel call.
type CancelResult int

const (
	CancelOK CancelResult = iota
	CancelLocked
	CancelNotFound
)

// Venue is the subset of the REST client OrderManager drives. Satisfied by
// *exchange.Client; narrowed to an interface so tests can fake it.
type Venue interface {
	PlaceOrder(ctx context.Context, req types.PlaceOrderRequest) (*types.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, symbol, clientID string) error
	CancelAll(ctx context.Context, symbol string) error
	ListOpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error)
	GetOrder(ctx context.Context, symbol, clientID string) (*types.OrderStatusResult, error)
}

// Manager owns the local order-book shadow for one symbol. Place, Cancel,
// CancelAll, Sync and Flatten are called only by the strategy task that owns
// the symbol, matching the single-writer-per-symbol discipline; the mutex
// lets Snapshot and DrainFills be read from other goroutines (the dashboard).
type Manager struct {
	symbol string
	venue  Venue
	cfg    config.StrategyConfig

	mu     sync.Mutex
	orders map[types.OrderKey]*types.ManagedOrder

	fills []types.FillEvent

	logger *slog.Logger
}

// New creates an OrderManager for one symbol.
func New(symbol string, venue Venue, cfg config.StrategyConfig, logger *slog.Logger) *Manager {
	return &Manager{
		symbol: symbol,
		venue:  venue,
		cfg:    cfg,
		orders: make(map[types.OrderKey]*types.ManagedOrder),
		logger: logger.With("component", "order_manager", "symbol", symbol),
	}
}

// Place mints a client id, inserts a PENDING record, issues the REST place,
// and transitions to SUBMITTED on acceptance or FAILED on definitive error.
// Success is not contingent on the exchange having the order queryable yet.
func (m *Manager) Place(ctx context.Context, side types.Side, slot types.Slot, qty, price decimal.Decimal) (string, error) {
	clientID := uuid.NewString()
	now := time.Now()

	order := &types.ManagedOrder{
		ClientID:  clientID,
		Symbol:    m.symbol,
		Side:      side,
		Slot:      slot,
		Qty:       qty,
		Price:     price,
		Status:    types.StatusPending,
		CreatedAt: now,
		LockUntil: now.Add(m.cfg.OrderLock()),
	}

	key := types.OrderKey{Side: side, Slot: slot}
	m.mu.Lock()
	m.orders[key] = order
	m.mu.Unlock()

	result, err := m.venue.PlaceOrder(ctx, types.PlaceOrderRequest{
		Symbol:   m.symbol,
		Side:     side,
		Type:     types.OrderTypeLimit,
		Qty:      qty,
		Price:    price,
		ClientID: clientID,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		kind := errkind.Classify(err)
		if kind == errkind.Fatal {
			order.Status = types.StatusFailed
			return clientID, fmt.Errorf("place order: %w", err)
		}
		order.Status = types.StatusFailed
		m.logger.Warn("place order rejected", "side", side, "slot", slot, "error", err)
		return clientID, fmt.Errorf("place order: %w", err)
	}

	order.Status = types.StatusSubmitted
	order.ExchangeID = result.ExchangeID
	m.logger.Info("order placed", "client_id", clientID, "side", side, "slot", slot, "price", price, "qty", qty)
	return clientID, nil
}

// Cancel cancels a single order. If not force and the order is still
// locked, returns CancelLocked without calling the exchange. Cancellations
// are idempotent: a 404 or a rejection from the venue is treated as
// already-cancelled. Any other error (timeout, network, unclassified) is
// returned and the record is kept, so the caller can retry next tick.
func (m *Manager) Cancel(ctx context.Context, clientID string, force bool) (CancelResult, error) {
	m.mu.Lock()
	var order *types.ManagedOrder
	var key types.OrderKey
	for k, o := range m.orders {
		if o.ClientID == clientID {
			order, key = o, k
			break
		}
	}
	if order == nil {
		m.mu.Unlock()
		return CancelNotFound, nil
	}
	if !force && order.Locked(time.Now()) {
		m.mu.Unlock()
		return CancelLocked, nil
	}
	m.mu.Unlock()

	if err := m.venue.CancelOrder(ctx, m.symbol, clientID); err != nil {
		venueErr, _ := asVenueError(err)
		notFound := venueErr != nil && venueErr.Category == types.ErrHTTP404
		if !notFound && errkind.Classify(err) != errkind.LocalLogical {
			return CancelNotFound, fmt.Errorf("cancel order: %w", err)
		}
	}

	m.mu.Lock()
	order.Status = types.StatusCancelled
	delete(m.orders, key)
	m.mu.Unlock()

	return CancelOK, nil
}

// CancelAll force-cancels every locally-tracked order, ignoring locks. Used
// by KILL_ALL.
func (m *Manager) CancelAll(ctx context.Context) error {
	if err := m.venue.CancelAll(ctx, m.symbol); err != nil {
		m.logger.Error("cancel all failed", "error", err)
		return fmt.Errorf("cancel all: %w", err)
	}

	m.mu.Lock()
	for key, order := range m.orders {
		order.Status = types.StatusCancelled
		delete(m.orders, key)
	}
	m.mu.Unlock()

	m.logger.Warn("all orders cancelled")
	return nil
}

// Snapshot returns a copy of the currently tracked orders, keyed by
// (side, slot).
func (m *Manager) Snapshot() map[types.OrderKey]types.ManagedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.OrderKey]types.ManagedOrder, len(m.orders))
	for k, v := range m.orders {
		out[k] = *v
	}
	return out
}

// DrainFills returns and clears fill events accumulated since the last
// call. Called by the strategy once per tick after Sync.
func (m *Manager) DrainFills() []types.FillEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	fills := m.fills
	m.fills = nil
	return fills
}

// Sync performs one reconciliation pass:
//  1. Fetch the exchange's open-orders list for the symbol.
//  2. For each local SUBMITTED/OPEN order: skip if still within the grace
//     period; otherwise mark OPEN if present on the exchange, else issue a
//     targeted GetOrder and act on filled/cancelled/404/other per the
//     reconciliation protocol.
//  3. Orders observed on the exchange but absent locally are logged and
//     ignored — never adopted.
func (m *Manager) Sync(ctx context.Context) error {
	exchangeOrders, err := m.venue.ListOpenOrders(ctx, m.symbol)
	if err != nil {
		m.logger.Warn("sync: list open orders failed", "error", err)
		return nil
	}

	exchangeSet := make(map[string]bool, len(exchangeOrders)*2)
	for _, o := range exchangeOrders {
		if o.ClientID != "" {
			exchangeSet[o.ClientID] = true
		}
		if o.ExchangeID != "" {
			exchangeSet[o.ExchangeID] = true
		}
	}

	now := time.Now()
	m.mu.Lock()
	toCheck := make([]*types.ManagedOrder, 0, len(m.orders))
	toCheckKeys := make([]types.OrderKey, 0, len(m.orders))
	for k, o := range m.orders {
		if o.Status == types.StatusSubmitted || o.Status == types.StatusOpen {
			toCheck = append(toCheck, o)
			toCheckKeys = append(toCheckKeys, k)
		}
	}
	m.mu.Unlock()

	for i, order := range toCheck {
		if now.Sub(order.CreatedAt) < m.cfg.OrderGracePeriod() {
			continue
		}

		present := exchangeSet[order.ClientID] || (order.ExchangeID != "" && exchangeSet[order.ExchangeID])
		if present {
			m.mu.Lock()
			order.Status = types.StatusOpen
			order.LastSeenOnExchangeAt = now
			m.mu.Unlock()
			continue
		}

		m.reconcileMissing(ctx, order, toCheckKeys[i], now)
	}

	// Orders observed on the exchange but absent locally are defensive
	// noise (a prior instance may have left them) — log and ignore.
	m.mu.Lock()
	localIDs := make(map[string]bool, len(m.orders))
	for _, o := range m.orders {
		localIDs[o.ClientID] = true
		if o.ExchangeID != "" {
			localIDs[o.ExchangeID] = true
		}
	}
	m.mu.Unlock()
	for _, o := range exchangeOrders {
		if !localIDs[o.ClientID] && !localIDs[o.ExchangeID] {
			m.logger.Warn("unowned order observed on exchange, ignoring", "client_id", o.ClientID, "exchange_id", o.ExchangeID)
		}
	}

	return nil
}

func (m *Manager) reconcileMissing(ctx context.Context, order *types.ManagedOrder, key types.OrderKey, now time.Time) {
	status, err := m.venue.GetOrder(ctx, m.symbol, order.ClientID)
	if err != nil {
		kind := errkind.Classify(err)
		venueErr, _ := asVenueError(err)

		if venueErr != nil && venueErr.Category == types.ErrHTTP404 {
			m.mu.Lock()
			age := now.Sub(order.CreatedAt)
			if age > m.cfg.Order404Timeout() {
				order.Status = types.StatusCancelled
				delete(m.orders, key)
				m.logger.Info("order concluded cancelled after 404 timeout", "client_id", order.ClientID)
			}
			m.mu.Unlock()
			return
		}

		if kind == errkind.Transient {
			m.logger.Debug("get_order transient error, leaving unchanged", "client_id", order.ClientID, "error", err)
			return
		}
		m.logger.Warn("get_order error, leaving unchanged", "client_id", order.ClientID, "error", err)
		return
	}

	switch status.Status {
	case "filled":
		m.mu.Lock()
		order.Status = types.StatusFilled
		delete(m.orders, key)
		m.fills = append(m.fills, types.FillEvent{
			ClientID: order.ClientID,
			Side:     order.Side,
			Slot:     order.Slot,
			Qty:      order.Qty,
			Price:    order.Price,
		})
		m.mu.Unlock()
		m.logger.Info("fill observed during reconciliation", "client_id", order.ClientID, "side", order.Side, "slot", order.Slot)
	case "cancelled":
		m.mu.Lock()
		order.Status = types.StatusCancelled
		delete(m.orders, key)
		m.mu.Unlock()
	default:
		m.logger.Debug("get_order reports open, leaving unchanged", "client_id", order.ClientID)
	}
}

// Flatten issues a reducing market order, not tracked as a ladder cell —
// the one-shot liquidation that follows a fill, per the reconciliation
// protocol's reduce_only handling.
func (m *Manager) Flatten(ctx context.Context, side types.Side, qty decimal.Decimal) (string, error) {
	clientID := uuid.NewString()
	_, err := m.venue.PlaceOrder(ctx, types.PlaceOrderRequest{
		Symbol:     m.symbol,
		Side:       side,
		Type:       types.OrderTypeMarket,
		Qty:        qty,
		ClientID:   clientID,
		ReduceOnly: true,
	})
	if err != nil {
		m.logger.Error("flatten order failed", "side", side, "qty", qty, "error", err)
		return clientID, fmt.Errorf("flatten: %w", err)
	}
	m.logger.Info("flatten order placed", "client_id", clientID, "side", side, "qty", qty)
	return clientID, nil
}

func asVenueError(err error) (*types.VenueError, bool) {
	var ve *types.VenueError
	ok := errors.As(err, &ve)
	return ve, ok
}
