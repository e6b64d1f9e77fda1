package strategy

import (
	"bn-breakout-bot/internal/config"

	"github.com/shopspring/decimal"
)

// Sizer turns balances into entry quantities for one asset.
type Sizer struct {
	EachTrade         decimal.Decimal
	MaxPerAsset       decimal.Decimal
	QuantityPrecision int32
}

func NewSizer(cfg config.AssetConfig, meta AssetMetadata) Sizer {
	return Sizer{
		EachTrade:         decimal.NewFromFloat(cfg.EachTrade),
		MaxPerAsset:       decimal.NewFromFloat(cfg.MaxPerSymbol),
		QuantityPrecision: meta.QuantityPrecision,
	}
}

// CanTrade reports whether exposure is strictly below the per-asset cap.
func (s Sizer) CanTrade(exposure, totalBalance decimal.Decimal) bool {
	return exposure.LessThan(s.MaxPerAsset.Mul(totalBalance))
}

// Quantity is eachTrade × available / markPrice at quantity precision.
func (s Sizer) Quantity(available, markPrice decimal.Decimal) decimal.Decimal {
	if markPrice.Sign() <= 0 || available.Sign() <= 0 {
		return decimal.Zero
	}
	return Round(s.EachTrade.Mul(available).Div(markPrice), s.QuantityPrecision)
}

// CappedQuantity is Quantity limited so the added margin keeps exposure within
// the per-asset cap. The position runs at 1x, so margin equals notional.
func (s Sizer) CappedQuantity(available, markPrice, exposure, totalBalance decimal.Decimal) decimal.Decimal {
	qty := s.Quantity(available, markPrice)
	if qty.IsZero() {
		return qty
	}
	headroom := s.MaxPerAsset.Mul(totalBalance).Sub(exposure)
	if headroom.Sign() <= 0 {
		return decimal.Zero
	}
	limit := headroom.Div(markPrice).RoundDown(s.QuantityPrecision)
	return decimal.Min(qty, limit)
}
