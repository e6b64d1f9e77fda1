package market

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"bn-breakout-bot/internal/binance/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type markQuote struct {
	price      decimal.Decimal
	receivedAt time.Time
}

// MarkFeed keeps the latest streamed mark price per symbol. It is a transport
// cache: callers fall back to REST when a quote is missing or stale.
type MarkFeed struct {
	ws     *ws.Client
	log    *zap.Logger
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	quotes map[string]markQuote
}

func NewMarkFeed(wsClient *ws.Client, maxAge time.Duration, log *zap.Logger) *MarkFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &MarkFeed{
		ws:     wsClient,
		log:    log,
		maxAge: maxAge,
		now:    time.Now,
		quotes: make(map[string]markQuote),
	}
}

// MarkPriceStream is the per-second mark price stream name for a symbol.
func MarkPriceStream(symbol string) string {
	return strings.ToLower(symbol) + "@markPrice@1s"
}

func (f *MarkFeed) Start(ctx context.Context, symbols []string) error {
	if f.ws == nil || len(symbols) == 0 {
		return nil
	}
	if err := f.ws.Connect(ctx); err != nil {
		return err
	}
	streams := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		streams = append(streams, MarkPriceStream(symbol))
	}
	if err := f.ws.Subscribe(ctx, streams...); err != nil {
		return err
	}
	go func() {
		if err := f.ws.Run(ctx, f.handleMessage); err != nil && ctx.Err() == nil {
			f.log.Warn("mark feed stopped", zap.Error(err))
		}
	}()
	return nil
}

// Price returns the cached mark price if it is younger than the max age.
func (f *MarkFeed) Price(symbol string) (decimal.Decimal, bool) {
	if f == nil {
		return decimal.Decimal{}, false
	}
	f.mu.RLock()
	quote, ok := f.quotes[strings.ToUpper(symbol)]
	f.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, false
	}
	if f.maxAge > 0 && f.now().Sub(quote.receivedAt) > f.maxAge {
		return decimal.Decimal{}, false
	}
	return quote.price, true
}

func (f *MarkFeed) handleMessage(msg json.RawMessage) {
	payload, err := decodePayload(msg)
	if err != nil {
		f.log.Debug("ws decode error", zap.Error(err))
		return
	}
	event, ok := ParseMarkPriceEvent(payload)
	if !ok {
		return
	}
	f.update(event)
}

func (f *MarkFeed) update(event MarkPriceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[event.Symbol] = markQuote{price: event.Price, receivedAt: f.now()}
}
