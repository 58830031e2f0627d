package band

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

func TestQuotePriceSign(t *testing.T) {
	t.Parallel()

	ref := decimal.NewFromFloat(94000.00)
	offset := decimal.NewFromInt(8)

	buy := QuotePrice(ref, types.BUY, offset)
	sell := QuotePrice(ref, types.SELL, offset)

	if !buy.LessThan(ref) {
		t.Errorf("BUY quote %s should be below reference %s", buy, ref)
	}
	if !sell.GreaterThan(ref) {
		t.Errorf("SELL quote %s should be above reference %s", sell, ref)
	}
}

func TestDistanceRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		offset int64
		side   types.Side
	}{
		{"buy 6bps", 6, types.BUY},
		{"sell 6bps", 6, types.SELL},
		{"buy 8bps", 8, types.BUY},
		{"sell 8bps", 8, types.SELL},
	}

	ref := decimal.NewFromFloat(94000.00)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			off := decimal.NewFromInt(tt.offset)
			price := QuotePrice(ref, tt.side, off)
			dist := Distance(price, ref)
			delta := dist.Sub(off).Abs()
			if delta.GreaterThan(decimal.NewFromFloat(0.01)) {
				t.Errorf("distance(%s, %s) = %s, want ~%d", price, ref, dist, tt.offset)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		distance float64
		want     types.Band
	}{
		{0, types.BandA},
		{10, types.BandA},
		{10.01, types.BandB},
		{30, types.BandB},
		{30.01, types.BandC},
		{100, types.BandC},
		{100.01, types.BandOut},
	}

	for _, tt := range tests {
		got := Classify(decimal.NewFromFloat(tt.distance))
		if got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestBuildLadder(t *testing.T) {
	t.Parallel()

	offsets := []decimal.Decimal{decimal.NewFromInt(6), decimal.NewFromInt(8)}
	specs := BuildLadder(offsets)

	if len(specs) != 4 {
		t.Fatalf("BuildLadder len = %d, want 4", len(specs))
	}

	want := []types.OrderKey{
		{Side: types.BUY, Slot: types.Slot1},
		{Side: types.SELL, Slot: types.Slot1},
		{Side: types.BUY, Slot: types.Slot2},
		{Side: types.SELL, Slot: types.Slot2},
	}
	for i, spec := range specs {
		key := types.OrderKey{Side: spec.Side, Slot: spec.Slot}
		if key != want[i] {
			t.Errorf("specs[%d] key = %+v, want %+v", i, key, want[i])
		}
	}
}

func TestQuotePriceForSymbolRoundsOutward(t *testing.T) {
	t.Parallel()

	sym := types.Symbol{
		Ticker:    "BTC-USD",
		MinQty:    decimal.NewFromFloat(0.0001),
		PriceTick: decimal.NewFromFloat(0.10),
	}
	ref := decimal.NewFromFloat(94000.00)

	buy := QuotePriceForSymbol(sym, ref, types.BUY, decimal.NewFromInt(6))
	sell := QuotePriceForSymbol(sym, ref, types.SELL, decimal.NewFromInt(6))

	if !buy.Mod(sym.PriceTick).IsZero() {
		t.Errorf("buy price %s not tick-aligned", buy)
	}
	if !sell.Mod(sym.PriceTick).IsZero() {
		t.Errorf("sell price %s not tick-aligned", sell)
	}
	if buy.GreaterThan(QuotePrice(ref, types.BUY, decimal.NewFromInt(6))) {
		t.Error("buy should round down (outward), not up")
	}
	if sell.LessThan(QuotePrice(ref, types.SELL, decimal.NewFromInt(6))) {
		t.Error("sell should round up (outward), not down")
	}
}
