package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrAssetNotFound = errors.New("asset not found")

// InferPosition maps an exchange position record to its direction and the
// margin committed to it.
func InferPosition(p PositionSnapshot) (Direction, decimal.Decimal) {
	switch p.SignedAmount.Sign() {
	case 0:
		return DirectionNone, decimal.Zero
	case 1:
		return DirectionLong, p.InitialMargin
	default:
		return DirectionShort, p.InitialMargin
	}
}

// FindPosition returns the account record for asset. When the account reports
// more than one record for the asset the first non-flat one wins.
func FindPosition(account AccountSnapshot, asset string) (PositionSnapshot, error) {
	var (
		found PositionSnapshot
		ok    bool
	)
	for _, p := range account.Positions {
		if p.Asset != asset {
			continue
		}
		if !p.SignedAmount.IsZero() {
			return p, nil
		}
		if !ok {
			found, ok = p, true
		}
	}
	if !ok {
		return PositionSnapshot{}, fmt.Errorf("%s not in account positions: %w", asset, ErrAssetNotFound)
	}
	return found, nil
}
