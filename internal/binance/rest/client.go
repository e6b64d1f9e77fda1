package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const apiKeyHeader = "X-MBX-APIKEY"

type Options struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	Timeout           time.Duration
	RecvWindow        time.Duration
	RequestsPerSecond float64
}

// Client talks to the USDⓈ-M futures REST API. It is safe for concurrent use;
// all units share one client and one request limiter.
type Client struct {
	http       *resty.Client
	apiKey     string
	apiSecret  string
	recvWindow time.Duration
	limiter    *rate.Limiter
	now        func() time.Time
	log        *zap.Logger
}

func New(opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}
	return &Client{
		http:       httpClient,
		apiKey:     strings.TrimSpace(opts.APIKey),
		apiSecret:  strings.TrimSpace(opts.APISecret),
		recvWindow: opts.RecvWindow,
		limiter:    rate.NewLimiter(limit, burst),
		now:        time.Now,
		log:        log,
	}
}

// MarkPriceKlines returns raw kline rows, oldest first.
func (c *Client) MarkPriceKlines(ctx context.Context, symbol, interval string, limit int) ([][]any, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	var rows [][]any
	if err := c.public(ctx, http.MethodGet, "/fapi/v1/markPriceKlines", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) MarkPrice(ctx context.Context, symbol string) (PremiumIndex, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var out PremiumIndex
	err := c.public(ctx, http.MethodGet, "/fapi/v1/premiumIndex", params, &out)
	return out, err
}

func (c *Client) ExchangeInfo(ctx context.Context) (ExchangeInfo, error) {
	var out ExchangeInfo
	err := c.public(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, &out)
	return out, err
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	var out Account
	err := c.signed(ctx, http.MethodGet, "/fapi/v2/account", url.Values{}, &out)
	return out, err
}

func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	return c.signed(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, nil)
}

func (c *Client) NewOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", req.Type)
	if req.ClosePosition {
		params.Set("closePosition", "true")
	} else {
		params.Set("quantity", req.Quantity.String())
	}
	if !req.StopPrice.IsZero() {
		params.Set("stopPrice", req.StopPrice.String())
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.WorkingType != "" {
		params.Set("workingType", req.WorkingType)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	var out OrderResponse
	err := c.signed(ctx, http.MethodPost, "/fapi/v1/order", params, &out)
	return out, err
}

func (c *Client) ChangeLeverage(ctx context.Context, symbol string, leverage int) (LeverageResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	var out LeverageResponse
	err := c.signed(ctx, http.MethodPost, "/fapi/v1/leverage", params, &out)
	return out, err
}

func (c *Client) public(ctx context.Context, method, path string, params url.Values, out any) error {
	return c.do(ctx, method, path, params.Encode(), false, out)
}

func (c *Client) signed(ctx context.Context, method, path string, params url.Values, out any) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return errors.New("api key and secret are required for signed endpoints")
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	query := params.Encode()
	query += "&signature=" + sign(c.apiSecret, query)
	return c.do(ctx, method, path, query, true, out)
}

func (c *Client) do(ctx context.Context, method, path, query string, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req := c.http.R().SetContext(ctx).SetError(&APIError{})
	target := path
	if query != "" {
		// Appended raw so the signed parameter order reaches the server untouched.
		target += "?" + query
	}
	if signed {
		req.SetHeader(apiKeyHeader, c.apiKey)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, target)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil || (apiErr.Code == 0 && apiErr.Msg == "") {
			apiErr = &APIError{Msg: strings.TrimSpace(string(resp.Body()))}
		}
		apiErr.HTTPStatus = resp.StatusCode()
		c.log.Debug("binance request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", apiErr.HTTPStatus),
			zap.Int("code", apiErr.Code),
		)
		return apiErr
	}
	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
