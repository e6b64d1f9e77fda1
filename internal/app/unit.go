package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bn-breakout-bot/internal/alerts"
	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/exec"
	"bn-breakout-bot/internal/journal"
	"bn-breakout-bot/internal/market"
	"bn-breakout-bot/internal/metrics"
	"bn-breakout-bot/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	unitLeverage  = 1
	recordTimeout = 5 * time.Second
	alertTimeout  = 10 * time.Second
)

type barSink interface {
	EnqueueBar(bar market.Bar)
}

// unit trades one asset. Its only carried value is the re-entry counter;
// direction, exposure and balances are read from the exchange every cycle.
type unit struct {
	cfg      config.AssetConfig
	exchange Exchange
	executor *exec.Executor
	journal  journal.Sink
	bars     barSink
	notifier alerts.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time

	meta    strategy.AssetMetadata
	sizer   strategy.Sizer
	reentry *strategy.ReentryCounter
}

type unitDeps struct {
	exchange Exchange
	executor *exec.Executor
	journal  journal.Sink
	bars     barSink
	notifier alerts.Notifier
	metrics  metrics.Provider
	log      *zap.Logger
}

func newUnit(cfg config.AssetConfig, deps unitDeps) *unit {
	log := deps.log
	if log == nil {
		log = zap.NewNop()
	}
	sink := deps.journal
	if sink == nil {
		sink = journal.Discard{}
	}
	notifier := deps.notifier
	if notifier == nil {
		notifier = alerts.Noop{}
	}
	provider := deps.metrics
	if provider == nil {
		provider = metrics.NoopProvider()
	}
	return &unit{
		cfg:      cfg,
		exchange: deps.exchange,
		executor: deps.executor,
		journal:  sink,
		bars:     deps.bars,
		notifier: notifier,
		metrics:  provider.ForAsset(cfg.Symbol),
		log:      log.With(zap.String("asset", cfg.Symbol)),
		now:      time.Now,
		reentry:  strategy.NewReentryCounter(cfg.ReentryBars),
	}
}

// Run prepares the asset and then cycles until ctx is cancelled or a fatal
// error occurs. The next cycle starts one poll interval after the previous
// one started, or right away when the previous one overran.
func (u *unit) Run(ctx context.Context) error {
	if err := u.setup(ctx); err != nil {
		return err
	}
	u.log.Info("unit started",
		zap.Int("entry_bars", u.cfg.EntryBars),
		zap.Int("exit_bars", u.cfg.ExitBars),
		zap.String("interval", u.cfg.Interval),
		zap.Int32("price_precision", u.meta.PricePrecision),
		zap.Int32("quantity_precision", u.meta.QuantityPrecision),
	)
	for {
		start := u.now()
		if err := u.cycle(ctx); err != nil {
			return err
		}
		wait := u.cfg.PollInterval - u.now().Sub(start)
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (u *unit) setup(ctx context.Context) error {
	err := u.executor.Retry(ctx, "fetch asset metadata", func() error {
		meta, err := u.exchange.FetchAssetMetadata(ctx, u.cfg.Symbol)
		u.meta = meta
		return err
	})
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	u.sizer = strategy.NewSizer(u.cfg, u.meta)
	err = u.executor.Retry(ctx, "set leverage", func() error {
		return u.exchange.SetLeverage(ctx, u.cfg.Symbol, unitLeverage)
	})
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return nil
}

// cycle runs one decision. It returns an error only when the unit must stop.
func (u *unit) cycle(ctx context.Context) error {
	started := u.now()
	var bars []market.Bar
	err := u.executor.Retry(ctx, "fetch bars", func() error {
		var err error
		bars, err = u.exchange.FetchBars(ctx, u.cfg.Symbol, u.cfg.Interval, u.cfg.RequiredBars())
		return err
	})
	if err != nil {
		return u.abort(ctx, started, "fetch bars", err)
	}
	levels, err := strategy.ComputeLevels(bars, u.cfg.EntryBars, u.cfg.ExitBars, u.meta.PricePrecision)
	if err != nil {
		return u.abort(ctx, started, "compute levels", err)
	}
	if len(bars) >= 2 && u.bars != nil {
		u.bars.EnqueueBar(bars[len(bars)-2])
	}

	var mark decimal.Decimal
	err = u.executor.Retry(ctx, "fetch mark price", func() error {
		var err error
		mark, err = u.exchange.FetchMarkPrice(ctx, u.cfg.Symbol)
		return err
	})
	if err != nil {
		return u.abort(ctx, started, "fetch mark price", err)
	}
	var account strategy.AccountSnapshot
	err = u.executor.Retry(ctx, "fetch account", func() error {
		var err error
		account, err = u.exchange.FetchAccountSnapshot(ctx)
		return err
	})
	if err != nil {
		return u.abort(ctx, started, "fetch account", err)
	}
	position, err := strategy.FindPosition(account, u.cfg.Symbol)
	if err != nil {
		return u.abort(ctx, started, "find position", err)
	}

	direction, _ := strategy.InferPosition(position)
	exitTriggered := strategy.ExitTriggered(direction, levels, mark)
	plan, err := strategy.Decide(strategy.Input{
		Asset:      u.cfg.Symbol,
		Levels:     levels,
		MarkPrice:  mark,
		Position:   position,
		Account:    account,
		Sizer:      u.sizer,
		ReentryDue: u.reentry.Observe(direction, exitTriggered),
	})
	if err != nil {
		return u.abort(ctx, started, "decide", err)
	}

	results, execErr := u.executor.Execute(ctx, plan)
	u.report(ctx, started, levels, mark, plan, results, execErr)
	if execErr != nil {
		return u.classify(ctx, "execute", execErr)
	}
	return nil
}

// abort records a cycle that ended before a decision and reports whether the
// failure is fatal for the unit.
func (u *unit) abort(ctx context.Context, started time.Time, stage string, err error) error {
	if ctx.Err() == nil {
		u.record(ctx, journal.Entry{Time: started, Asset: u.cfg.Symbol, Error: fmt.Sprintf("%s: %v", stage, err)})
	}
	return u.classify(ctx, stage, err)
}

func (u *unit) classify(ctx context.Context, stage string, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, strategy.ErrAssetNotFound), errors.Is(err, exec.ErrRetriesExhausted):
		return fmt.Errorf("%s: %w", stage, err)
	case errors.Is(err, strategy.ErrInsufficientHistory):
		u.metrics.CyclesAborted.Inc()
		u.log.Warn("cycle aborted", zap.String("stage", stage), zap.Error(err))
		return nil
	default:
		u.metrics.CyclesAborted.Inc()
		u.log.Error("cycle aborted", zap.String("stage", stage), zap.Error(err))
		return nil
	}
}

func (u *unit) report(ctx context.Context, started time.Time, levels strategy.PriceLevels, mark decimal.Decimal, plan strategy.Plan, results []exec.Result, execErr error) {
	u.metrics.Cycles.Inc()
	u.metrics.Direction.Set(float64(plan.Direction.Sign()))
	if len(plan.Skipped) > 0 {
		u.metrics.EntriesSkipped.Inc()
	}

	entry := journal.Entry{
		Time:       started,
		Asset:      u.cfg.Symbol,
		LongEntry:  levels.LongEntry,
		LongExit:   levels.LongExit,
		ShortEntry: levels.ShortEntry,
		ShortExit:  levels.ShortExit,
		MarkPrice:  mark,
		Direction:  plan.Direction.String(),
		Exposure:   plan.Exposure,
		CanTrade:   plan.CanTrade,
		Quantity:   plan.Quantity,
		Action:     string(plan.Action),
		Skipped:    plan.Skipped,
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	}
	intents := make([]string, 0, len(results))
	for _, res := range results {
		entry.Orders = append(entry.Orders, journalOrder(res))
		intents = append(intents, res.Intent.String())
		if !res.Placed() {
			u.metrics.OrdersRejected.Inc()
			continue
		}
		u.metrics.OrdersPlaced.Inc()
		switch res.Intent.Reason {
		case strategy.ReasonEmergencyClose:
			u.metrics.EmergencyCloses.Inc()
			exit := levels.LongExit
			if plan.Direction == strategy.DirectionShort {
				exit = levels.ShortExit
			}
			u.alert(ctx, alerts.EmergencyClose(u.cfg.Symbol, plan.Direction.String(), res.Intent.Quantity, mark, exit))
		case strategy.ReasonReentry:
			u.metrics.Reentries.Inc()
			u.alert(ctx, alerts.Reentry(u.cfg.Symbol, plan.Direction.String(), res.Intent.Quantity, mark))
		}
	}

	u.log.Info("cycle decided",
		zap.Stringer("long_entry", levels.LongEntry),
		zap.Stringer("long_exit", levels.LongExit),
		zap.Stringer("short_entry", levels.ShortEntry),
		zap.Stringer("short_exit", levels.ShortExit),
		zap.Stringer("mark_price", mark),
		zap.Stringer("direction", plan.Direction),
		zap.Stringer("exposure", plan.Exposure),
		zap.Bool("can_trade", plan.CanTrade),
		zap.Stringer("quantity", plan.Quantity),
		zap.String("action", string(plan.Action)),
		zap.Strings("intents", intents),
		zap.Strings("skipped", plan.Skipped),
		zap.Int("reentry_cycles", u.reentry.Cycles()),
		zap.Duration("elapsed", u.now().Sub(started)),
	)
	u.record(ctx, entry)
}

func (u *unit) record(ctx context.Context, entry journal.Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := u.journal.Record(ctx, entry); err != nil {
		u.log.Warn("journal record failed", zap.Error(err))
	}
}

func (u *unit) alert(ctx context.Context, message string) {
	ctx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	if err := u.notifier.Send(ctx, message); err != nil {
		u.log.Warn("alert send failed", zap.Error(err))
	}
}

func journalOrder(res exec.Result) journal.Order {
	order := journal.Order{
		Side:          string(res.Intent.Side),
		Type:          string(res.Intent.Type),
		ClosePosition: res.Intent.ClosePosition,
		Reason:        res.Intent.Reason,
		ClientOrderID: res.ClientOrderID,
		OrderID:       res.OrderID,
	}
	if !res.Intent.Quantity.IsZero() {
		order.Quantity = res.Intent.Quantity.String()
	}
	if !res.Intent.StopPrice.IsZero() {
		order.StopPrice = res.Intent.StopPrice.String()
	}
	if res.Err != nil {
		order.Error = res.Err.Error()
	}
	return order
}
