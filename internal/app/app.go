package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bn-breakout-bot/internal/alerts"
	"bn-breakout-bot/internal/binance/rest"
	"bn-breakout-bot/internal/binance/ws"
	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/exec"
	"bn-breakout-bot/internal/journal"
	"bn-breakout-bot/internal/journal/sqlite"
	"bn-breakout-bot/internal/market"
	"bn-breakout-bot/internal/metrics"
	"bn-breakout-bot/internal/timescale"

	"go.uber.org/zap"
)

const metricsShutdownTimeout = 5 * time.Second

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	exchange  Exchange
	marks     *market.MarkFeed
	executor  *exec.Executor
	store     *sqlite.Store
	timescale *timescale.Writer
	prom      *metrics.Prometheus
	metrics   metrics.Provider
	alerts    alerts.Notifier
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	restClient := newRESTClient(cfg, log)
	var marks *market.MarkFeed
	if cfg.WS.EnabledValue() {
		wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)
		marks = market.NewMarkFeed(wsClient, cfg.WS.MaxPriceAge, log)
	}
	exchange := newBinanceExchange(restClient, marks)

	var store *sqlite.Store
	if cfg.Journal.Enabled {
		var err error
		store, err = sqlite.New(cfg.Journal.SQLitePath)
		if err != nil {
			return nil, err
		}
	}
	tsWriter, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	var (
		prom     *metrics.Prometheus
		provider = metrics.NoopProvider()
	)
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		provider = prom
	}
	return &App{
		cfg:       cfg,
		log:       log,
		exchange:  exchange,
		marks:     marks,
		executor:  exec.New(exchange, cfg.Retry, log),
		store:     store,
		timescale: tsWriter,
		prom:      prom,
		metrics:   provider,
		alerts:    alerts.NewTelegram(cfg.Telegram, log),
	}, nil
}

func newRESTClient(cfg *config.Config, log *zap.Logger) *rest.Client {
	return rest.New(rest.Options{
		BaseURL:           cfg.REST.BaseURL,
		APIKey:            cfg.Connection.APIKey,
		APISecret:         cfg.Connection.APISecret,
		Timeout:           cfg.REST.Timeout,
		RecvWindow:        cfg.REST.RecvWindow,
		RequestsPerSecond: cfg.REST.RequestsPerSecond,
	}, log)
}

// Run starts one unit per configured asset and blocks until all of them have
// returned. Cancelling ctx stops every unit; a unit's fatal error stops only
// that unit and is reported in the joined result.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	assets := a.cfg.Trading.Assets()
	symbols := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbols = append(symbols, asset.Symbol)
	}

	a.timescale.Start(ctx)
	if a.marks != nil {
		if err := a.marks.Start(ctx, symbols); err != nil {
			a.log.Warn("mark price stream unavailable, using rest", zap.Error(err))
		}
	}
	if a.prom != nil {
		a.serveMetrics(ctx)
	}

	supervisor := NewSupervisor(a.log, a.unitExited)
	for _, asset := range assets {
		u := newUnit(asset, unitDeps{
			exchange: a.exchange,
			executor: a.executor,
			journal:  a.journalSink(),
			bars:     a.timescale,
			notifier: a.alerts,
			metrics:  a.metrics,
			log:      a.log,
		})
		supervisor.Go(ctx, asset.Symbol, u.Run)
	}
	a.log.Info("units started", zap.Strings("assets", symbols))
	return supervisor.Wait()
}

func (a *App) journalSink() journal.Sink {
	var sinks journal.Multi
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	if a.timescale != nil {
		sinks = append(sinks, a.timescale)
	}
	if len(sinks) == 0 {
		return journal.Discard{}
	}
	return sinks
}

func (a *App) unitExited(asset string, err error) {
	a.metrics.ForAsset(asset).UnitStopped.Inc()
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if sendErr := a.alerts.Send(ctx, alerts.UnitStopped(asset, err)); sendErr != nil {
		a.log.Warn("alert send failed", zap.String("asset", asset), zap.Error(sendErr))
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.log.Info("metrics listening", zap.String("address", srv.Addr), zap.String("path", a.cfg.Metrics.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
}

func (a *App) close() {
	if a.timescale != nil {
		if decisions, bars := a.timescale.Dropped(); decisions > 0 || bars > 0 {
			a.log.Warn("timescale records dropped", zap.Uint64("decisions", decisions), zap.Uint64("bars", bars))
		}
		if err := a.timescale.Close(); err != nil {
			a.log.Warn("timescale close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("journal close failed", zap.Error(err))
		}
	}
}
