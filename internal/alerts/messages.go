package alerts

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const prefix = "[breakout]"

func EmergencyClose(asset, direction string, qty, mark, exit decimal.Decimal) string {
	return fmt.Sprintf("%s %s %s closed at market: mark %s crossed exit %s, qty %s", prefix, asset, direction, mark, exit, qty)
}

func Reentry(asset, direction string, qty, mark decimal.Decimal) string {
	return fmt.Sprintf("%s %s added to %s: qty %s at mark %s", prefix, asset, direction, qty, mark)
}

func UnitStopped(asset string, err error) string {
	return fmt.Sprintf("%s %s stopped: %v", prefix, asset, err)
}
