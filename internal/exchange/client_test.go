package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClientConfig(baseURL string) config.Config {
	var cfg config.Config
	cfg.API.BaseURL = baseURL
	cfg.Wallet.PrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	cfg.Wallet.ChainID = 137
	cfg.API.ApiKey = "k"
	cfg.API.Secret = "c2VjcmV0LXZhbHVl"
	cfg.API.Passphrase = "p"
	return cfg
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := testClientConfig(srv.URL)
	auth, err := NewAuth(cfg)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return NewClient(cfg, auth, testLogger())
}

func TestNewClientDryRunFromConfig(t *testing.T) {
	t.Parallel()
	cfg := testClientConfig("http://localhost")
	cfg.DryRun = true
	auth, err := NewAuth(cfg)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	c := NewClient(cfg, auth, testLogger())

	if !c.dryRun {
		t.Error("client.dryRun should be true when config.DryRun is true")
	}
}

func TestPlaceOrderDryRun(t *testing.T) {
	t.Parallel()
	cfg := testClientConfig("http://localhost")
	cfg.DryRun = true
	auth, err := NewAuth(cfg)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	c := NewClient(cfg, auth, testLogger())

	result, err := c.PlaceOrder(context.Background(), types.PlaceOrderRequest{
		Symbol:   "BTC-USD",
		Side:     types.BUY,
		Type:     types.OrderTypeLimit,
		Qty:      decimal.NewFromFloat(1),
		Price:    decimal.NewFromFloat(50000),
		ClientID: "abc-123",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if result.ExchangeID == "" {
		t.Error("expected a non-empty dry-run exchange ID")
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"exchange_id": "ex-1"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	result, err := c.PlaceOrder(context.Background(), types.PlaceOrderRequest{
		Symbol:   "BTC-USD",
		Side:     types.BUY,
		Type:     types.OrderTypeLimit,
		Qty:      decimal.NewFromFloat(1),
		Price:    decimal.NewFromFloat(50000),
		ClientID: "abc-123",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if result.ExchangeID != "ex-1" {
		t.Errorf("ExchangeID = %q, want ex-1", result.ExchangeID)
	}
}

func TestCancelOrder404TreatedAsSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if err := c.CancelOrder(context.Background(), "BTC-USD", "abc-123"); err != nil {
		t.Fatalf("CancelOrder should treat a 404 as already-cancelled, got: %v", err)
	}
}

func TestCancelOrderRejectedPropagates(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if err := c.CancelOrder(context.Background(), "BTC-USD", "abc-123"); err == nil {
		t.Fatal("expected an error for a rejected cancel")
	}
}

func TestListOpenOrdersParsesWire(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"client_id": "c1", "exchange_id": "e1", "side": "BUY", "price": "50000", "qty": "1", "status": "OPEN"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	orders, err := c.ListOpenOrders(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("ListOpenOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if orders[0].ClientID != "c1" || orders[0].Side != types.BUY {
		t.Errorf("unexpected order: %+v", orders[0])
	}
	if !orders[0].Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Price = %s, want 50000", orders[0].Price)
	}
}

func TestGetPositionParsesWire(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"notional_usd": "1234.50",
			"side":         "SELL",
			"qty":          "0.5",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	pos, err := c.GetPosition(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos.Side != types.SELL {
		t.Errorf("Side = %q, want SELL", pos.Side)
	}
	if !pos.NotionalUSD.Equal(decimal.NewFromFloat(1234.50)) {
		t.Errorf("NotionalUSD = %s, want 1234.50", pos.NotionalUSD)
	}
}

func TestGetMarkParsesWire(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"mark": "50000", "bid": "49995", "ask": "50005"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	mark, bid, ask, err := c.GetMark(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("GetMark: %v", err)
	}
	if !mark.Equal(decimal.NewFromInt(50000)) || !bid.Equal(decimal.NewFromInt(49995)) || !ask.Equal(decimal.NewFromInt(50005)) {
		t.Errorf("got mark=%s bid=%s ask=%s", mark, bid, ask)
	}
}

func TestDeriveSessionReturnsCredentials(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Credentials{ApiKey: "new-key", Secret: "c2VjcmV0", Passphrase: "pass"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	creds, err := c.DeriveSession(context.Background())
	if err != nil {
		t.Fatalf("DeriveSession: %v", err)
	}
	if creds.ApiKey != "new-key" {
		t.Errorf("ApiKey = %q, want new-key", creds.ApiKey)
	}
}
