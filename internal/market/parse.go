package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseKlines converts kline rows ([openTime, open, high, low, close, ...]) into
// bars. Rows arrive oldest first and keep that order.
func ParseKlines(asset, interval string, rows [][]any) ([]Bar, error) {
	bars := make([]Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("kline %d: want at least 5 fields, got %d", i, len(row))
		}
		openMs, ok := int64FromAny(row[0])
		if !ok {
			return nil, fmt.Errorf("kline %d: bad open time %v", i, row[0])
		}
		var prices [4]decimal.Decimal
		for j := range prices {
			v, ok := decimalFromAny(row[j+1])
			if !ok {
				return nil, fmt.Errorf("kline %d: bad price field %d: %v", i, j+1, row[j+1])
			}
			prices[j] = v
		}
		bars = append(bars, Bar{
			Asset:    asset,
			Interval: interval,
			OpenTime: time.UnixMilli(openMs).UTC(),
			Open:     prices[0],
			High:     prices[1],
			Low:      prices[2],
			Close:    prices[3],
		})
	}
	return bars, nil
}

// MarkPriceEvent is one markPriceUpdate from the futures stream.
type MarkPriceEvent struct {
	Symbol    string
	Price     decimal.Decimal
	EventTime time.Time
}

// ParseMarkPriceEvent accepts either a raw markPriceUpdate or the combined
// stream wrapper {"stream": ..., "data": {...}}.
func ParseMarkPriceEvent(payload map[string]any) (MarkPriceEvent, bool) {
	data := payload
	if nested, ok := toMap(payload["data"]); ok {
		data = nested
	}
	if stringFromAny(data["e"]) != "markPriceUpdate" {
		return MarkPriceEvent{}, false
	}
	symbol := strings.ToUpper(stringFromAny(data["s"]))
	price, ok := decimalFromAny(data["p"])
	if symbol == "" || !ok || price.Sign() <= 0 {
		return MarkPriceEvent{}, false
	}
	event := MarkPriceEvent{Symbol: symbol, Price: price}
	if ms, ok := int64FromAny(data["E"]); ok {
		event.EventTime = time.UnixMilli(ms).UTC()
	}
	return event, true
}

func decodePayload(msg json.RawMessage) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("empty payload")
	}
	return payload, nil
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func decimalFromAny(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	case int64:
		return decimal.NewFromInt(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	default:
		return decimal.Decimal{}, false
	}
}

func int64FromAny(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
