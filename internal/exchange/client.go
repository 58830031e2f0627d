// Package exchange implements the REST and WebSocket clients for the
// perpetual-futures venue.
//
// The REST client (Client) exposes the five operations the quoting engine
// consumes:
//   - PlaceOrder:      place_order  — new limit or reducing market order
//   - CancelOrder:     cancel_order — cancel by client_id
//   - ListOpenOrders:  list_open_orders — current resting orders for a symbol
//   - GetOrder:        get_order   — targeted status lookup, used during reconciliation
//   - GetPosition:     get_position — notional/side/qty for the safety gate
//
// Every request is retried on 5xx and on transport errors. All requests
// except DeriveSession wait on a per-category TokenBucket, and all except
// GetMark are signed through the opaque Auth collaborator (DeriveSession
// with L1 headers, the rest with L2 HMAC headers).
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// Client is the venue's REST API client.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.BaseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger.With("component", "exchange_client"),
	}
}

func classifyHTTPError(resp *resty.Response, err error) *types.VenueError {
	if err != nil {
		return &types.VenueError{Category: types.ErrNetwork, Message: err.Error()}
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &types.VenueError{Category: types.ErrHTTP404, Message: "not found"}
	case resp.StatusCode() == http.StatusRequestTimeout:
		return &types.VenueError{Category: types.ErrTimeout, Message: "request timeout"}
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		return &types.VenueError{Category: types.ErrRejected, Message: resp.String()}
	case resp.StatusCode() >= 500:
		return &types.VenueError{Category: types.ErrNetwork, Message: resp.String()}
	default:
		return nil
	}
}

type placeOrderWire struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Qty        string `json:"qty"`
	Price      string `json:"price,omitempty"`
	ClientID   string `json:"client_id"`
	ReduceOnly bool   `json:"reduce_only,omitempty"`
}

// PlaceOrder submits a new order and returns the exchange-assigned ID.
// Success does not imply the order is yet queryable via ListOpenOrders —
// the reconciliation grace period exists precisely for that gap.
func (c *Client) PlaceOrder(ctx context.Context, req types.PlaceOrderRequest) (*types.PlaceOrderResult, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place order", "symbol", req.Symbol, "side", req.Side, "price", req.Price)
		return &types.PlaceOrderResult{ExchangeID: "dry-run-" + req.ClientID}, nil
	}
	if err := c.rl.Place.Wait(ctx); err != nil {
		return nil, err
	}

	wire := placeOrderWire{
		Symbol:     req.Symbol,
		Side:       string(req.Side),
		Type:       string(req.Type),
		Qty:        req.Qty.String(),
		ClientID:   req.ClientID,
		ReduceOnly: req.ReduceOnly,
	}
	if req.Type == types.OrderTypeLimit {
		wire.Price = req.Price.String()
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal place order: %w", err)
	}
	headers, err := c.auth.Sign("POST", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("sign place order: %w", err)
	}

	var result struct {
		ExchangeID string `json:"exchange_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/orders")
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		return nil, fmt.Errorf("place order: %w", venueErr)
	}

	return &types.PlaceOrderResult{ExchangeID: result.ExchangeID}, nil
}

// CancelOrder cancels a single order by client_id. Idempotent at the venue
// boundary: a 404 here is treated as already-cancelled and returns nil, not
// an error.
func (c *Client) CancelOrder(ctx context.Context, symbol, clientID string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel order", "client_id", clientID)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	path := fmt.Sprintf("/orders/%s", clientID)
	headers, err := c.auth.Sign("DELETE", path, "")
	if err != nil {
		return fmt.Errorf("sign cancel order: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		Delete(path)
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		if venueErr.Category == types.ErrHTTP404 {
			return nil
		}
		return fmt.Errorf("cancel order: %w", venueErr)
	}
	return nil
}

// CancelAll force-cancels every open order, ignoring venue-side locks.
// Used by KILL_ALL.
func (c *Client) CancelAll(ctx context.Context, symbol string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all orders", "symbol", symbol)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	headers, err := c.auth.Sign("DELETE", "/orders", "")
	if err != nil {
		return fmt.Errorf("sign cancel all: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		Delete("/orders")
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		return fmt.Errorf("cancel all: %w", venueErr)
	}
	return nil
}

// ListOpenOrders fetches the venue's view of resting orders for a symbol.
func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	var wire []struct {
		ClientID   string `json:"client_id"`
		ExchangeID string `json:"exchange_id"`
		Side       string `json:"side"`
		Price      string `json:"price"`
		Qty        string `json:"qty"`
		Status     string `json:"status"`
	}
	headers, err := c.auth.Sign("GET", "/orders", "")
	if err != nil {
		return nil, fmt.Errorf("sign list open orders: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Get("/orders")
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		return nil, fmt.Errorf("list open orders: %w", venueErr)
	}

	orders := make([]types.OpenOrder, 0, len(wire))
	for _, o := range wire {
		price, _ := decimal.NewFromString(o.Price)
		qty, _ := decimal.NewFromString(o.Qty)
		orders = append(orders, types.OpenOrder{
			ClientID:   o.ClientID,
			ExchangeID: o.ExchangeID,
			Side:       types.Side(o.Side),
			Price:      price,
			Qty:        qty,
			Status:     o.Status,
		})
	}
	return orders, nil
}

// GetOrder performs the targeted lookup reconciliation falls back to when an
// order is absent from ListOpenOrders.
func (c *Client) GetOrder(ctx context.Context, symbol, clientID string) (*types.OrderStatusResult, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.Sign("GET", "/order", "")
	if err != nil {
		return nil, fmt.Errorf("sign get order: %w", err)
	}

	var result struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetQueryParam("client_id", clientID).
		SetResult(&result).
		Get("/order")
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		return nil, venueErr
	}

	return &types.OrderStatusResult{Status: result.Status}, nil
}

// GetPosition fetches the current position notional/side/qty that feeds the
// safety gate's position check.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*types.PositionResult, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.Sign("GET", "/position", "")
	if err != nil {
		return nil, fmt.Errorf("sign get position: %w", err)
	}

	var wire struct {
		NotionalUSD string `json:"notional_usd"`
		Side        string `json:"side"`
		Qty         string `json:"qty"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Get("/position")
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		return nil, fmt.Errorf("get position: %w", venueErr)
	}

	notional, _ := decimal.NewFromString(wire.NotionalUSD)
	qty, _ := decimal.NewFromString(wire.Qty)
	return &types.PositionResult{
		NotionalUSD: notional,
		Side:        types.Side(wire.Side),
		Qty:         qty,
	}, nil
}

// GetMark fetches a fresh mark/bid/ask tuple via REST. Used by PriceTracker
// as the pull-based fallback when the push stream has gone quiet; not part
// of the spec's named REST surface but necessary to give refresh_rest an
// endpoint to call.
func (c *Client) GetMark(ctx context.Context, symbol string) (mark, bid, ask decimal.Decimal, err error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	var wire struct {
		Mark string `json:"mark"`
		Bid  string `json:"bid"`
		Ask  string `json:"ask"`
	}
	resp, httpErr := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Get("/ticker")
	if venueErr := classifyHTTPError(resp, httpErr); venueErr != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("get mark: %w", venueErr)
	}

	mark, _ = decimal.NewFromString(wire.Mark)
	bid, _ = decimal.NewFromString(wire.Bid)
	ask, _ = decimal.NewFromString(wire.Ask)
	return mark, bid, ask, nil
}

// DeriveSession performs the one-time L1 handshake to obtain L2 credentials.
func (c *Client) DeriveSession(ctx context.Context) (Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return Credentials{}, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/session")
	if venueErr := classifyHTTPError(resp, err); venueErr != nil {
		return Credentials{}, fmt.Errorf("derive session: %w", venueErr)
	}

	c.logger.Info("session derived", "api_key", result.ApiKey)
	return result, nil
}
