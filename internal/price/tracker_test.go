package price

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOnPushMonotonic(t *testing.T) {
	t.Parallel()

	tr := New(nil, 5*time.Second, testLogger())
	now := time.Now()

	tr.OnPush(types.PushUpdate{
		Symbol: "BTC-USD",
		Mark:   decimal.NewFromFloat(94000),
		Bid:    decimal.NewFromFloat(93999),
		Ask:    decimal.NewFromFloat(94001),
		TS:     now,
	})
	tr.OnPush(types.PushUpdate{
		Symbol: "BTC-USD",
		Mark:   decimal.NewFromFloat(1), // stale, older ts, should be dropped
		Bid:    decimal.NewFromFloat(1),
		Ask:    decimal.NewFromFloat(1),
		TS:     now.Add(-time.Second),
	})

	snap, ok := tr.Latest(context.Background(), "BTC-USD")
	if !ok {
		t.Fatal("expected snapshot to exist")
	}
	if !snap.Mark.Equal(decimal.NewFromFloat(94000)) {
		t.Errorf("mark = %s, want 94000 (older push should have been dropped)", snap.Mark)
	}
}

func TestLatestAbsentReturnsFalse(t *testing.T) {
	t.Parallel()

	tr := New(nil, 5*time.Second, testLogger())
	_, ok := tr.Latest(context.Background(), "ETH-USD")
	if ok {
		t.Error("expected no snapshot for unseen symbol")
	}
}

func TestSnapshotStale(t *testing.T) {
	t.Parallel()

	snap := types.PriceSnapshot{LastUpdateTS: time.Now().Add(-40 * time.Second)}
	if !snap.Stale(time.Now(), 30*time.Second) {
		t.Error("expected snapshot older than threshold to be stale")
	}

	fresh := types.PriceSnapshot{LastUpdateTS: time.Now()}
	if fresh.Stale(time.Now(), 30*time.Second) {
		t.Error("expected fresh snapshot to not be stale")
	}
}

type fakeMarkRefresher struct {
	mark, bid, ask decimal.Decimal
	calls          int
}

func (f *fakeMarkRefresher) GetMark(ctx context.Context, symbol string) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	f.calls++
	return f.mark, f.bid, f.ask, nil
}

func TestLatestFallsBackToREST(t *testing.T) {
	t.Parallel()

	fake := &fakeMarkRefresher{
		mark: decimal.NewFromFloat(95000),
		bid:  decimal.NewFromFloat(94999),
		ask:  decimal.NewFromFloat(95001),
	}
	tr := New(fake, 5*time.Second, testLogger())

	snap, ok := tr.Latest(context.Background(), "BTC-USD")
	if !ok {
		t.Fatal("expected REST fallback to populate a snapshot")
	}
	if fake.calls != 1 {
		t.Errorf("GetMark calls = %d, want 1", fake.calls)
	}
	if !snap.Mark.Equal(decimal.NewFromFloat(95000)) {
		t.Errorf("mark = %s, want 95000", snap.Mark)
	}
}
