package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLevels() PriceLevels {
	return PriceLevels{
		LongEntry:  d("119"),
		LongExit:   d("100"),
		ShortEntry: d("90"),
		ShortExit:  d("119"),
	}
}

func testInput(amount, margin, mark string) Input {
	pos := PositionSnapshot{Asset: "BTCUSDT", SignedAmount: d(amount), InitialMargin: d(margin)}
	return Input{
		Asset:     "BTCUSDT",
		Levels:    testLevels(),
		MarkPrice: d(mark),
		Position:  pos,
		Account: AccountSnapshot{
			TotalBalance:     d("1000"),
			AvailableBalance: d("1000"),
			Positions:        []PositionSnapshot{pos},
		},
		Sizer: testSizer(),
	}
}

func TestDecideLongEmergencyClose(t *testing.T) {
	plan, err := Decide(testInput("0.5", "50", "99"))
	require.NoError(t, err)

	assert.Equal(t, DirectionLong, plan.Direction)
	assert.Equal(t, ActionEmergencyClose, plan.Action)
	assert.False(t, plan.ReplaceOpenOrders)
	require.Len(t, plan.Orders, 1)
	order := plan.Orders[0]
	assert.Equal(t, SideSell, order.Side)
	assert.Equal(t, OrderTypeMarket, order.Type)
	assert.Equal(t, "0.5", order.Quantity.String())
	assert.Equal(t, ReasonEmergencyClose, order.Reason)
}

func TestDecideLongRefreshesStop(t *testing.T) {
	plan, err := Decide(testInput("0.5", "50", "105"))
	require.NoError(t, err)

	assert.Equal(t, ActionRefreshStop, plan.Action)
	assert.True(t, plan.ReplaceOpenOrders)
	require.Len(t, plan.Orders, 1)
	order := plan.Orders[0]
	assert.Equal(t, SideSell, order.Side)
	assert.Equal(t, OrderTypeStopMarket, order.Type)
	assert.True(t, order.ClosePosition)
	assert.True(t, order.StopPrice.Equal(d("100")))
	assert.True(t, order.Quantity.IsZero())
}

func TestDecideLongAtExitLevelKeepsStop(t *testing.T) {
	plan, err := Decide(testInput("0.5", "50", "100"))
	require.NoError(t, err)
	assert.Equal(t, ActionRefreshStop, plan.Action)
}

func TestDecideShortEmergencyClose(t *testing.T) {
	plan, err := Decide(testInput("-2", "200", "120"))
	require.NoError(t, err)

	assert.Equal(t, DirectionShort, plan.Direction)
	assert.Equal(t, ActionEmergencyClose, plan.Action)
	require.Len(t, plan.Orders, 1)
	assert.Equal(t, SideBuy, plan.Orders[0].Side)
	assert.Equal(t, OrderTypeMarket, plan.Orders[0].Type)
	assert.Equal(t, "2", plan.Orders[0].Quantity.String())
}

func TestDecideShortRefreshesStop(t *testing.T) {
	plan, err := Decide(testInput("-2", "200", "110"))
	require.NoError(t, err)

	assert.Equal(t, ActionRefreshStop, plan.Action)
	assert.True(t, plan.ReplaceOpenOrders)
	require.Len(t, plan.Orders, 1)
	assert.Equal(t, SideBuy, plan.Orders[0].Side)
	assert.Equal(t, OrderTypeStopMarket, plan.Orders[0].Type)
	assert.True(t, plan.Orders[0].ClosePosition)
	assert.True(t, plan.Orders[0].StopPrice.Equal(d("119")))
}

func TestDecideFlatPlacesBracket(t *testing.T) {
	plan, err := Decide(testInput("0", "0", "100"))
	require.NoError(t, err)

	assert.Equal(t, DirectionNone, plan.Direction)
	assert.Equal(t, ActionBracket, plan.Action)
	assert.True(t, plan.ReplaceOpenOrders)
	assert.True(t, plan.CanTrade)
	assert.Empty(t, plan.Skipped)
	// 0.05 × 1000 / 100
	assert.Equal(t, "0.5", plan.Quantity.String())

	require.Len(t, plan.Orders, 2)
	buy, sell := plan.Orders[0], plan.Orders[1]
	assert.Equal(t, SideBuy, buy.Side)
	assert.Equal(t, OrderTypeStopMarket, buy.Type)
	assert.True(t, buy.StopPrice.Equal(d("119")))
	assert.Equal(t, "0.5", buy.Quantity.String())
	assert.False(t, buy.ClosePosition)
	assert.Equal(t, ReasonLongEntry, buy.Reason)

	assert.Equal(t, SideSell, sell.Side)
	assert.Equal(t, OrderTypeStopMarket, sell.Type)
	assert.True(t, sell.StopPrice.Equal(d("90")))
	assert.Equal(t, "0.5", sell.Quantity.String())
	assert.Equal(t, ReasonShortEntry, sell.Reason)
}

func TestDecideFlatSkipsWhenCapReached(t *testing.T) {
	in := testInput("0", "0", "100")
	in.Account.TotalBalance = decimal.Zero
	plan, err := Decide(in)
	require.NoError(t, err)

	assert.False(t, plan.CanTrade)
	assert.True(t, plan.ReplaceOpenOrders)
	assert.Empty(t, plan.Orders)
	assert.Equal(t, []string{"entry: exposure cap reached"}, plan.Skipped)
}

func TestDecideFlatSkipsZeroQuantity(t *testing.T) {
	in := testInput("0", "0", "60000")
	in.Account.AvailableBalance = d("1")
	plan, err := Decide(in)
	require.NoError(t, err)

	assert.True(t, plan.CanTrade)
	assert.True(t, plan.Quantity.IsZero())
	assert.Empty(t, plan.Orders)
	assert.Equal(t, []string{"entry: quantity rounds to zero"}, plan.Skipped)
}

func TestDecideIsDeterministic(t *testing.T) {
	in := testInput("0", "0", "100")
	first, err := Decide(in)
	require.NoError(t, err)
	second, err := Decide(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecideReentryAddsCappedMarketOrder(t *testing.T) {
	in := testInput("0.5", "480", "105")
	in.ReentryDue = true
	plan, err := Decide(in)
	require.NoError(t, err)

	require.Len(t, plan.Orders, 2)
	assert.Equal(t, ReasonProtectiveStop, plan.Orders[0].Reason)
	add := plan.Orders[1]
	assert.Equal(t, ReasonReentry, add.Reason)
	assert.Equal(t, SideBuy, add.Side)
	assert.Equal(t, OrderTypeMarket, add.Type)
	// Headroom 500 - 480 = 20 at mark 105 → 0.190 units, below the 0.476 sizing.
	assert.True(t, add.Quantity.Equal(d("0.19")), "qty %s", add.Quantity)
}

func TestDecideReentryShortSide(t *testing.T) {
	in := testInput("-1", "100", "110")
	in.ReentryDue = true
	plan, err := Decide(in)
	require.NoError(t, err)

	require.Len(t, plan.Orders, 2)
	assert.Equal(t, SideSell, plan.Orders[1].Side)
	assert.Equal(t, "0.455", plan.Orders[1].Quantity.String())
}

func TestDecideReentrySkippedAtCap(t *testing.T) {
	in := testInput("0.5", "500", "105")
	in.ReentryDue = true
	plan, err := Decide(in)
	require.NoError(t, err)

	require.Len(t, plan.Orders, 1)
	assert.Equal(t, []string{"reentry: exposure cap reached"}, plan.Skipped)
}

func TestDecideReentryIgnoredOnEmergency(t *testing.T) {
	in := testInput("0.5", "50", "95")
	in.ReentryDue = true
	plan, err := Decide(in)
	require.NoError(t, err)

	require.Len(t, plan.Orders, 1)
	assert.Equal(t, ReasonEmergencyClose, plan.Orders[0].Reason)
}

func TestExitTriggered(t *testing.T) {
	levels := testLevels()
	assert.True(t, ExitTriggered(DirectionLong, levels, d("99.99")))
	assert.False(t, ExitTriggered(DirectionLong, levels, d("100")))
	assert.True(t, ExitTriggered(DirectionShort, levels, d("119.01")))
	assert.False(t, ExitTriggered(DirectionShort, levels, d("119")))
	assert.False(t, ExitTriggered(DirectionNone, levels, d("1")))
}

func TestOrderIntentString(t *testing.T) {
	stop := protectiveStop("BTCUSDT", SideSell, d("100"))
	assert.Equal(t, "protective_stop SELL STOP_MARKET stop=100 close", stop.String())
	entry := entryStop("BTCUSDT", SideBuy, d("119"), d("0.5"), ReasonLongEntry)
	assert.Equal(t, "long_entry BUY STOP_MARKET stop=119 qty=0.5", entry.String())
}
