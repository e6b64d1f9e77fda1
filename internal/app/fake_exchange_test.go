package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/journal"
	"bn-breakout-bot/internal/market"
	"bn-breakout-bot/internal/strategy"

	"github.com/shopspring/decimal"
)

type fakeExchange struct {
	mu        sync.Mutex
	meta      map[string]strategy.AssetMetadata
	bars      map[string][]market.Bar
	marks     map[string]decimal.Decimal
	account   strategy.AccountSnapshot
	barsDelay map[string]time.Duration
	submitErr map[strategy.Side]error

	calls     []string
	leverage  map[string]int
	barCalls  map[string][]time.Time
	submitted []strategy.OrderIntent
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		meta:      make(map[string]strategy.AssetMetadata),
		bars:      make(map[string][]market.Bar),
		marks:     make(map[string]decimal.Decimal),
		barsDelay: make(map[string]time.Duration),
		submitErr: make(map[strategy.Side]error),
		leverage:  make(map[string]int),
		barCalls:  make(map[string][]time.Time),
	}
}

// addAsset registers a tradable asset with a 21-bar ramp and a flat position.
func (f *fakeExchange) addAsset(asset string, mark string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[asset] = strategy.AssetMetadata{Symbol: asset, PricePrecision: 2, QuantityPrecision: 3}
	f.bars[asset] = rampBars(asset, 21)
	f.marks[asset] = decimal.RequireFromString(mark)
	f.account.Positions = append(f.account.Positions, strategy.PositionSnapshot{Asset: asset})
}

func (f *fakeExchange) setPosition(asset, amount, margin string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.account.Positions {
		if p.Asset == asset {
			f.account.Positions[i].SignedAmount = decimal.RequireFromString(amount)
			f.account.Positions[i].InitialMargin = decimal.RequireFromString(margin)
		}
	}
}

func (f *fakeExchange) setBalances(total, available string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account.TotalBalance = decimal.RequireFromString(total)
	f.account.AvailableBalance = decimal.RequireFromString(available)
}

func (f *fakeExchange) FetchBars(ctx context.Context, asset, interval string, limit int) ([]market.Bar, error) {
	f.mu.Lock()
	f.barCalls[asset] = append(f.barCalls[asset], time.Now())
	first := len(f.barCalls[asset]) == 1
	delay := f.barsDelay[asset]
	bars := f.bars[asset]
	f.mu.Unlock()
	if first && delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (f *fakeExchange) FetchMarkPrice(_ context.Context, asset string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mark, ok := f.marks[asset]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no mark for %s", asset)
	}
	return mark, nil
}

func (f *fakeExchange) FetchAccountSnapshot(context.Context) (strategy.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.account
	snapshot.Positions = append([]strategy.PositionSnapshot(nil), f.account.Positions...)
	return snapshot, nil
}

func (f *fakeExchange) FetchAssetMetadata(_ context.Context, asset string) (strategy.AssetMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.meta[asset]
	if !ok {
		return strategy.AssetMetadata{}, fmt.Errorf("%s: %w", asset, strategy.ErrAssetNotFound)
	}
	return meta, nil
}

func (f *fakeExchange) CancelOpenOrders(_ context.Context, asset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "cancel "+asset)
	return nil
}

func (f *fakeExchange) SubmitOrder(_ context.Context, intent strategy.OrderIntent, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("submit %s %s %s", intent.Asset, intent.Side, intent.Type))
	if err := f.submitErr[intent.Side]; err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, intent)
	return fmt.Sprintf("%d", len(f.submitted)), nil
}

func (f *fakeExchange) SetLeverage(_ context.Context, asset string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverage[asset] = leverage
	return nil
}

func (f *fakeExchange) snapshotCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeExchange) cycleStarts(asset string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.barCalls[asset]...)
}

// rampBars builds bars whose highs run 100, 101, ... and lows 90, 91, ...
func rampBars(asset string, n int) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		high := decimal.NewFromInt(int64(100 + i))
		low := decimal.NewFromInt(int64(90 + i))
		bars[i] = market.Bar{
			Asset:    asset,
			Interval: "1d",
			OpenTime: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:     low,
			High:     high,
			Low:      low,
			Close:    high,
		}
	}
	return bars
}

func testAssetConfig(symbol string, poll time.Duration) config.AssetConfig {
	return config.AssetConfig{
		Symbol:       symbol,
		EntryBars:    20,
		ExitBars:     10,
		EachTrade:    0.05,
		MaxPerSymbol: 0.5,
		Interval:     "1d",
		PollInterval: poll,
	}
}

func fastRetry() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

type recordingSink struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *recordingSink) Record(_ context.Context, entry journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingSink) last() (journal.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return journal.Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Send(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingNotifier) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type recordingBars struct {
	mu   sync.Mutex
	bars []market.Bar
}

func (r *recordingBars) EnqueueBar(bar market.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = append(r.bars, bar)
}
