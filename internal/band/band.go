// Package band implements the pure price/distance math shared by the
// strategy and the safety guard: translating a reference price and a signed
// basis-point offset into a quote price, and classifying a distance into the
// venue's points-multiplier tiers.
package band

import (
	"github.com/shopspring/decimal"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

var (
	bps10000 = decimal.NewFromInt(10000)
	bpsA     = decimal.NewFromInt(10)
	bpsB     = decimal.NewFromInt(30)
	bpsC     = decimal.NewFromInt(100)
)

// QuotePrice returns reference*(1 ± offsetBps/10000), minus for BUY, plus for
// SELL, so a BUY quote always sits below the reference and a SELL above it.
func QuotePrice(reference decimal.Decimal, side types.Side, offsetBps decimal.Decimal) decimal.Decimal {
	frac := offsetBps.Div(bps10000)
	if side == types.BUY {
		return reference.Mul(decimal.NewFromInt(1).Sub(frac))
	}
	return reference.Mul(decimal.NewFromInt(1).Add(frac))
}

// Distance returns 10000*|price-reference|/reference in bps.
func Distance(price, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return price.Sub(reference).Abs().Mul(bps10000).Div(reference)
}

// Classify buckets a bps distance into A/B/C/OUT.
func Classify(distanceBps decimal.Decimal) types.Band {
	switch {
	case distanceBps.LessThanOrEqual(bpsA):
		return types.BandA
	case distanceBps.LessThanOrEqual(bpsB):
		return types.BandB
	case distanceBps.LessThanOrEqual(bpsC):
		return types.BandC
	default:
		return types.BandOut
	}
}

// BuildLadder returns the Cartesian product of {BUY, SELL} with the
// configured offset list, slot 1 for the first offset and slot 2 for the
// second — the desired four-quote ladder for a symbol.
func BuildLadder(offsetsBps []decimal.Decimal) []types.QuoteSpec {
	specs := make([]types.QuoteSpec, 0, len(offsetsBps)*2)
	for i, off := range offsetsBps {
		slot := types.Slot1
		if i > 0 {
			slot = types.Slot2
		}
		specs = append(specs,
			types.QuoteSpec{Side: types.BUY, Slot: slot, OffsetBps: off},
			types.QuoteSpec{Side: types.SELL, Slot: slot, OffsetBps: off},
		)
	}
	return specs
}

// QuotePriceForSymbol computes QuotePrice then rounds outward to the
// symbol's tick so a quote never drifts inside the band's protective margin.
func QuotePriceForSymbol(sym types.Symbol, reference decimal.Decimal, side types.Side, offsetBps decimal.Decimal) decimal.Decimal {
	raw := QuotePrice(reference, side, offsetBps)
	return sym.RoundPriceOutward(raw, side)
}
