// ws.go implements the venue's push-price WebSocket feed.
//
// A single channel subscription per symbol delivers {mark, bid, ask, ts}
// tuples. The feed auto-reconnects with exponential backoff (1s -> 30s max)
// and re-subscribes to all tracked symbols on reconnection. A read deadline
// (90s) ensures silent server failures are detected within ~2 missed pings;
// the staleness watchdog in SafetyGuard is the correctness backstop, not
// this reconnect logic.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	pushBufferSize   = 256
)

// wireTick is the raw JSON shape of a push update.
type wireTick struct {
	Symbol string `json:"symbol"`
	Mark   string `json:"mark"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	TS     int64  `json:"ts"` // unix millis
}

// PriceFeed manages the single WebSocket connection carrying push price
// updates for every subscribed symbol.
type PriceFeed struct {
	url string

	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	pushCh chan types.PushUpdate

	logger *slog.Logger
}

// NewPriceFeed creates a WebSocket feed for push price updates.
func NewPriceFeed(wsURL string, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		pushCh:     make(chan types.PushUpdate, pushBufferSize),
		logger:     logger.With("component", "ws_price"),
	}
}

// Updates returns a read-only channel of push price updates.
func (f *PriceFeed) Updates() <-chan types.PushUpdate { return f.pushCh }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *PriceFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("price feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe adds symbols to the feed's subscription set. Callable before the
// connection exists — Run sends the initial subscription for the whole set
// once dialed, and reconnects replay it the same way. If the feed is already
// connected, the new symbols are also sent immediately.
func (f *PriceFeed) Subscribe(symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		f.subscribed[s] = true
	}
	f.subscribedMu.Unlock()

	f.connMu.Lock()
	connected := f.conn != nil
	f.connMu.Unlock()
	if !connected {
		return nil
	}

	return f.writeJSON(struct {
		Operation string   `json:"operation"`
		Symbols   []string `json:"symbols"`
	}{Operation: "subscribe", Symbols: symbols})
}

// Close gracefully closes the connection.
func (f *PriceFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *PriceFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("price feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *PriceFeed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(struct {
		Operation string   `json:"operation"`
		Symbols   []string `json:"symbols"`
	}{Operation: "subscribe", Symbols: symbols})
}

func (f *PriceFeed) dispatchMessage(data []byte) {
	var tick wireTick
	if err := json.Unmarshal(data, &tick); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}
	if tick.Symbol == "" {
		return
	}

	mark, err1 := decimal.NewFromString(tick.Mark)
	bid, err2 := decimal.NewFromString(tick.Bid)
	ask, err3 := decimal.NewFromString(tick.Ask)
	if err1 != nil || err2 != nil || err3 != nil {
		f.logger.Warn("malformed push tick, dropping", "symbol", tick.Symbol)
		return
	}

	update := types.PushUpdate{
		Symbol: tick.Symbol,
		Mark:   mark,
		Bid:    bid,
		Ask:    ask,
		TS:     time.UnixMilli(tick.TS),
	}

	select {
	case f.pushCh <- update:
	default:
		f.logger.Warn("push channel full, dropping tick", "symbol", tick.Symbol)
	}
}

func (f *PriceFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *PriceFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *PriceFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
