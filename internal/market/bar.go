package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one kline interval of one asset, oldest first when in a slice.
type Bar struct {
	Asset    string
	Interval string
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
}
