package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ReasonEmergencyClose = "emergency_close"
	ReasonProtectiveStop = "protective_stop"
	ReasonLongEntry      = "long_entry"
	ReasonShortEntry     = "short_entry"
	ReasonReentry        = "reentry"
)

// Input is everything one cycle knows: fresh exchange reads plus configuration.
type Input struct {
	Asset      string
	Levels     PriceLevels
	MarkPrice  decimal.Decimal
	Position   PositionSnapshot
	Account    AccountSnapshot
	Sizer      Sizer
	ReentryDue bool
}

// Plan is the outcome of one cycle. When ReplaceOpenOrders is set the executor
// makes Orders the complete set of open orders for the asset; otherwise Orders
// are submitted on top of whatever is resting.
type Plan struct {
	Asset             string
	Direction         Direction
	Exposure          decimal.Decimal
	CanTrade          bool
	Quantity          decimal.Decimal
	Action            Action
	ReplaceOpenOrders bool
	Orders            []OrderIntent
	Skipped           []string
}

// Decide runs the per-cycle transition table. It holds no state: the same
// input always yields the same plan.
func Decide(in Input) (Plan, error) {
	direction, exposure := InferPosition(in.Position)
	plan := Plan{
		Asset:     in.Asset,
		Direction: direction,
		Exposure:  exposure,
		CanTrade:  in.Sizer.CanTrade(exposure, in.Account.TotalBalance),
		Quantity:  in.Sizer.Quantity(in.Account.AvailableBalance, in.MarkPrice),
	}
	switch direction {
	case DirectionLong:
		if ExitTriggered(direction, in.Levels, in.MarkPrice) {
			plan.Action = ActionEmergencyClose
			plan.Orders = []OrderIntent{marketClose(in.Asset, SideSell, in.Position.SignedAmount)}
			return plan, nil
		}
		plan.Action = ActionRefreshStop
		plan.ReplaceOpenOrders = true
		plan.Orders = []OrderIntent{protectiveStop(in.Asset, SideSell, in.Levels.LongExit)}
		plan.addReentry(in, SideBuy)
	case DirectionShort:
		if ExitTriggered(direction, in.Levels, in.MarkPrice) {
			plan.Action = ActionEmergencyClose
			plan.Orders = []OrderIntent{marketClose(in.Asset, SideBuy, in.Position.SignedAmount)}
			return plan, nil
		}
		plan.Action = ActionRefreshStop
		plan.ReplaceOpenOrders = true
		plan.Orders = []OrderIntent{protectiveStop(in.Asset, SideBuy, in.Levels.ShortExit)}
		plan.addReentry(in, SideSell)
	case DirectionNone:
		plan.Action = ActionBracket
		plan.ReplaceOpenOrders = true
		switch {
		case !plan.CanTrade:
			plan.Skipped = append(plan.Skipped, "entry: exposure cap reached")
		case plan.Quantity.IsZero():
			plan.Skipped = append(plan.Skipped, "entry: quantity rounds to zero")
		default:
			plan.Orders = []OrderIntent{
				entryStop(in.Asset, SideBuy, in.Levels.LongEntry, plan.Quantity, ReasonLongEntry),
				entryStop(in.Asset, SideSell, in.Levels.ShortEntry, plan.Quantity, ReasonShortEntry),
			}
		}
	default:
		return Plan{}, fmt.Errorf("unhandled direction %s", direction)
	}
	return plan, nil
}

// ExitTriggered reports whether the mark price is already beyond the exit
// level of a held position, i.e. the resting stop was not reached in time.
func ExitTriggered(direction Direction, levels PriceLevels, mark decimal.Decimal) bool {
	switch direction {
	case DirectionLong:
		return mark.LessThan(levels.LongExit)
	case DirectionShort:
		return mark.GreaterThan(levels.ShortExit)
	default:
		return false
	}
}

func (p *Plan) addReentry(in Input, side Side) {
	if !in.ReentryDue {
		return
	}
	if !p.CanTrade {
		p.Skipped = append(p.Skipped, "reentry: exposure cap reached")
		return
	}
	qty := in.Sizer.CappedQuantity(in.Account.AvailableBalance, in.MarkPrice, p.Exposure, in.Account.TotalBalance)
	if qty.IsZero() {
		p.Skipped = append(p.Skipped, "reentry: quantity rounds to zero")
		return
	}
	p.Orders = append(p.Orders, OrderIntent{
		Asset:    in.Asset,
		Side:     side,
		Type:     OrderTypeMarket,
		Quantity: qty,
		Reason:   ReasonReentry,
	})
}

func marketClose(asset string, side Side, signedAmount decimal.Decimal) OrderIntent {
	return OrderIntent{
		Asset:    asset,
		Side:     side,
		Type:     OrderTypeMarket,
		Quantity: signedAmount.Abs(),
		Reason:   ReasonEmergencyClose,
	}
}

func protectiveStop(asset string, side Side, stop decimal.Decimal) OrderIntent {
	return OrderIntent{
		Asset:         asset,
		Side:          side,
		Type:          OrderTypeStopMarket,
		StopPrice:     stop,
		ClosePosition: true,
		Reason:        ReasonProtectiveStop,
	}
}

func entryStop(asset string, side Side, stop, qty decimal.Decimal, reason string) OrderIntent {
	return OrderIntent{
		Asset:     asset,
		Side:      side,
		Type:      OrderTypeStopMarket,
		StopPrice: stop,
		Quantity:  qty,
		Reason:    reason,
	}
}
