package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction is the net exposure of one asset. It is always derived from the
// exchange-reported signed amount and never stored between cycles.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "NONE"
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Sign maps the direction to -1, 0 or 1.
func (d Direction) Sign() int {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

type Action string

const (
	ActionEmergencyClose Action = "EMERGENCY_CLOSE"
	ActionRefreshStop    Action = "REFRESH_STOP"
	ActionBracket        Action = "BRACKET"
)

// PriceLevels are the four channel prices, rounded to the asset's price precision.
type PriceLevels struct {
	LongEntry  decimal.Decimal
	LongExit   decimal.Decimal
	ShortEntry decimal.Decimal
	ShortExit  decimal.Decimal
}

type PositionSnapshot struct {
	Asset         string
	SignedAmount  decimal.Decimal
	InitialMargin decimal.Decimal
}

type AccountSnapshot struct {
	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	Positions        []PositionSnapshot
}

type AssetMetadata struct {
	Symbol            string
	PricePrecision    int32
	QuantityPrecision int32
}

// OrderIntent is one order the decision wants resting or executed. Quantity is
// unset when ClosePosition is true.
type OrderIntent struct {
	Asset         string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	StopPrice     decimal.Decimal
	ClosePosition bool
	Reason        string
}

func (o OrderIntent) String() string {
	switch {
	case o.Type == OrderTypeMarket:
		return fmt.Sprintf("%s %s %s qty=%s", o.Reason, o.Side, o.Type, o.Quantity)
	case o.ClosePosition:
		return fmt.Sprintf("%s %s %s stop=%s close", o.Reason, o.Side, o.Type, o.StopPrice)
	default:
		return fmt.Sprintf("%s %s %s stop=%s qty=%s", o.Reason, o.Side, o.Type, o.StopPrice, o.Quantity)
	}
}
