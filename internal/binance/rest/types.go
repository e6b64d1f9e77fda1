package rest

import "github.com/shopspring/decimal"

type PremiumIndex struct {
	Symbol    string          `json:"symbol"`
	MarkPrice decimal.Decimal `json:"markPrice"`
	Time      int64           `json:"time"`
}

type Account struct {
	TotalWalletBalance decimal.Decimal   `json:"totalWalletBalance"`
	AvailableBalance   decimal.Decimal   `json:"availableBalance"`
	CanTrade           bool              `json:"canTrade"`
	Positions          []AccountPosition `json:"positions"`
}

type AccountPosition struct {
	Symbol        string          `json:"symbol"`
	PositionAmt   decimal.Decimal `json:"positionAmt"`
	InitialMargin decimal.Decimal `json:"initialMargin"`
	PositionSide  string          `json:"positionSide"`
	Leverage      string          `json:"leverage"`
}

type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol            string `json:"symbol"`
	Status            string `json:"status"`
	PricePrecision    int32  `json:"pricePrecision"`
	QuantityPrecision int32  `json:"quantityPrecision"`
}

// OrderRequest covers the MARKET and STOP_MARKET orders the bot places.
// Quantity is omitted when ClosePosition is set.
type OrderRequest struct {
	Symbol        string
	Side          string
	Type          string
	Quantity      decimal.Decimal
	StopPrice     decimal.Decimal
	ClosePosition bool
	ReduceOnly    bool
	WorkingType   string
	ClientOrderID string
}

type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Side          string `json:"side"`
}

type LeverageResponse struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}
