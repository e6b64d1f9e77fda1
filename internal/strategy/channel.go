package strategy

import (
	"errors"
	"fmt"

	"bn-breakout-bot/internal/market"

	"github.com/shopspring/decimal"
)

var ErrInsufficientHistory = errors.New("insufficient bar history")

// ComputeLevels derives the channel from bars ordered oldest first. The newest
// bar is still forming and is excluded; the entry window covers the entryBars
// closed bars before it and the exit window the exitBars closed bars before it.
func ComputeLevels(bars []market.Bar, entryBars, exitBars int, pricePrecision int32) (PriceLevels, error) {
	if entryBars < 1 || exitBars < 1 {
		return PriceLevels{}, fmt.Errorf("windows must be >= 1: entry=%d exit=%d", entryBars, exitBars)
	}
	required := max(entryBars, exitBars) + 1
	if len(bars) < required {
		return PriceLevels{}, fmt.Errorf("have %d bars, need %d: %w", len(bars), required, ErrInsufficientHistory)
	}
	last := len(bars) - 1
	entry := bars[last-entryBars : last]
	exit := bars[last-exitBars : last]
	return PriceLevels{
		LongEntry:  Round(maxHigh(entry), pricePrecision),
		LongExit:   Round(minLow(exit), pricePrecision),
		ShortEntry: Round(minLow(entry), pricePrecision),
		ShortExit:  Round(maxHigh(exit), pricePrecision),
	}, nil
}

// Round uses half-to-even rounding at the given number of decimal places.
func Round(value decimal.Decimal, places int32) decimal.Decimal {
	return value.RoundBank(places)
}

func maxHigh(bars []market.Bar) decimal.Decimal {
	out := bars[0].High
	for _, bar := range bars[1:] {
		if bar.High.GreaterThan(out) {
			out = bar.High
		}
	}
	return out
}

func minLow(bars []market.Bar) decimal.Decimal {
	out := bars[0].Low
	for _, bar := range bars[1:] {
		if bar.Low.LessThan(out) {
			out = bar.Low
		}
	}
	return out
}
