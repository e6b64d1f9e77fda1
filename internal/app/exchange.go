package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"bn-breakout-bot/internal/binance/rest"
	"bn-breakout-bot/internal/market"
	"bn-breakout-bot/internal/strategy"

	"github.com/shopspring/decimal"
)

// Exchange is everything a trading unit needs from the venue.
type Exchange interface {
	FetchBars(ctx context.Context, asset, interval string, limit int) ([]market.Bar, error)
	FetchMarkPrice(ctx context.Context, asset string) (decimal.Decimal, error)
	FetchAccountSnapshot(ctx context.Context) (strategy.AccountSnapshot, error)
	FetchAssetMetadata(ctx context.Context, asset string) (strategy.AssetMetadata, error)
	CancelOpenOrders(ctx context.Context, asset string) error
	SubmitOrder(ctx context.Context, intent strategy.OrderIntent, clientOrderID string) (string, error)
	SetLeverage(ctx context.Context, asset string, leverage int) error
}

type restAPI interface {
	MarkPriceKlines(ctx context.Context, symbol, interval string, limit int) ([][]any, error)
	MarkPrice(ctx context.Context, symbol string) (rest.PremiumIndex, error)
	ExchangeInfo(ctx context.Context) (rest.ExchangeInfo, error)
	Account(ctx context.Context) (rest.Account, error)
	CancelAllOpenOrders(ctx context.Context, symbol string) error
	NewOrder(ctx context.Context, req rest.OrderRequest) (rest.OrderResponse, error)
	ChangeLeverage(ctx context.Context, symbol string, leverage int) (rest.LeverageResponse, error)
}

type markSource interface {
	Price(symbol string) (decimal.Decimal, bool)
}

// binanceExchange adapts the REST client, and the mark price stream when one
// is running, to Exchange.
type binanceExchange struct {
	rest  restAPI
	marks markSource

	mu       sync.Mutex
	metadata map[string]strategy.AssetMetadata
}

func newBinanceExchange(api restAPI, marks markSource) *binanceExchange {
	return &binanceExchange{rest: api, marks: marks}
}

func (e *binanceExchange) FetchBars(ctx context.Context, asset, interval string, limit int) ([]market.Bar, error) {
	rows, err := e.rest.MarkPriceKlines(ctx, asset, interval, limit)
	if err != nil {
		return nil, err
	}
	return market.ParseKlines(asset, interval, rows)
}

func (e *binanceExchange) FetchMarkPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	if e.marks != nil {
		if price, ok := e.marks.Price(asset); ok {
			return price, nil
		}
	}
	index, err := e.rest.MarkPrice(ctx, asset)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !index.MarkPrice.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%s: invalid mark price %s", asset, index.MarkPrice)
	}
	return index.MarkPrice, nil
}

func (e *binanceExchange) FetchAccountSnapshot(ctx context.Context) (strategy.AccountSnapshot, error) {
	account, err := e.rest.Account(ctx)
	if err != nil {
		return strategy.AccountSnapshot{}, err
	}
	snapshot := strategy.AccountSnapshot{
		TotalBalance:     account.TotalWalletBalance,
		AvailableBalance: account.AvailableBalance,
		Positions:        make([]strategy.PositionSnapshot, 0, len(account.Positions)),
	}
	for _, p := range account.Positions {
		snapshot.Positions = append(snapshot.Positions, strategy.PositionSnapshot{
			Asset:         p.Symbol,
			SignedAmount:  p.PositionAmt,
			InitialMargin: p.InitialMargin,
		})
	}
	return snapshot, nil
}

// FetchAssetMetadata loads exchange info once and serves every later lookup
// from memory; precisions do not change while the process runs.
func (e *binanceExchange) FetchAssetMetadata(ctx context.Context, asset string) (strategy.AssetMetadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metadata == nil {
		info, err := e.rest.ExchangeInfo(ctx)
		if err != nil {
			return strategy.AssetMetadata{}, err
		}
		e.metadata = make(map[string]strategy.AssetMetadata, len(info.Symbols))
		for _, s := range info.Symbols {
			e.metadata[s.Symbol] = strategy.AssetMetadata{
				Symbol:            s.Symbol,
				PricePrecision:    s.PricePrecision,
				QuantityPrecision: s.QuantityPrecision,
			}
		}
	}
	meta, ok := e.metadata[asset]
	if !ok {
		return strategy.AssetMetadata{}, fmt.Errorf("%s not in exchange info: %w", asset, strategy.ErrAssetNotFound)
	}
	return meta, nil
}

func (e *binanceExchange) CancelOpenOrders(ctx context.Context, asset string) error {
	return e.rest.CancelAllOpenOrders(ctx, asset)
}

func (e *binanceExchange) SubmitOrder(ctx context.Context, intent strategy.OrderIntent, clientOrderID string) (string, error) {
	resp, err := e.rest.NewOrder(ctx, orderRequest(intent, clientOrderID))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (e *binanceExchange) SetLeverage(ctx context.Context, asset string, leverage int) error {
	_, err := e.rest.ChangeLeverage(ctx, asset, leverage)
	return err
}

func orderRequest(intent strategy.OrderIntent, clientOrderID string) rest.OrderRequest {
	req := rest.OrderRequest{
		Symbol:        intent.Asset,
		Side:          string(intent.Side),
		Type:          string(intent.Type),
		ClosePosition: intent.ClosePosition,
		ReduceOnly:    intent.Reason == strategy.ReasonEmergencyClose,
		ClientOrderID: clientOrderID,
	}
	if !intent.ClosePosition {
		req.Quantity = intent.Quantity
	}
	if intent.Type == strategy.OrderTypeStopMarket {
		req.StopPrice = intent.StopPrice
	}
	return req
}
