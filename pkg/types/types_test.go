package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRoundPriceOutward(t *testing.T) {
	t.Parallel()

	sym := Symbol{Ticker: "BTC-USD", PriceTick: decimal.NewFromFloat(0.5)}

	tests := []struct {
		name  string
		price float64
		side  Side
		want  string
	}{
		{"buy rounds down", 100.3, BUY, "100"},
		{"sell rounds up", 100.3, SELL, "100.5"},
		{"buy already on tick", 100.5, BUY, "100.5"},
		{"sell already on tick", 100.5, SELL, "100.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sym.RoundPriceOutward(decimal.NewFromFloat(tt.price), tt.side)
			if got.String() != tt.want {
				t.Errorf("RoundPriceOutward(%v, %v) = %s, want %s", tt.price, tt.side, got, tt.want)
			}
		})
	}
}

func TestRoundPriceOutwardZeroTick(t *testing.T) {
	t.Parallel()

	sym := Symbol{Ticker: "BTC-USD"}
	price := decimal.NewFromFloat(123.456)
	if got := sym.RoundPriceOutward(price, BUY); !got.Equal(price) {
		t.Errorf("expected zero tick to leave price unchanged, got %s", got)
	}
}

func TestPriceSnapshotStale(t *testing.T) {
	t.Parallel()

	now := time.Now()
	snap := PriceSnapshot{LastUpdateTS: now.Add(-10 * time.Second)}

	if snap.Stale(now, 20*time.Second) {
		t.Error("expected fresh snapshot within threshold")
	}
	if !snap.Stale(now, 5*time.Second) {
		t.Error("expected snapshot older than threshold to be stale")
	}
}

func TestPriceSnapshotMarkMidDivergenceBps(t *testing.T) {
	t.Parallel()

	snap := PriceSnapshot{
		Mark: decimal.NewFromFloat(101),
		Mid:  decimal.NewFromFloat(100),
	}
	got := snap.MarkMidDivergenceBps()
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("MarkMidDivergenceBps() = %s, want 100", got)
	}

	zero := PriceSnapshot{Mark: decimal.NewFromFloat(101), Mid: decimal.Zero}
	if !zero.MarkMidDivergenceBps().IsZero() {
		t.Error("expected zero divergence when mid is zero")
	}
}
