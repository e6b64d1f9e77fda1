package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/journal"
	"bn-breakout-bot/internal/market"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Writer ships decisions and closed bars to TimescaleDB off the trading path.
// Enqueueing never blocks; when a queue is full the record is dropped and
// counted.
type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	decisions chan journal.Entry
	bars      chan market.Bar
	started   atomic.Bool
	dropDec   atomic.Uint64
	dropBar   atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := newWriter(db, cfg, log)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, cfg config.TimescaleConfig, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		decisions: make(chan journal.Entry, queueSize),
		bars:      make(chan market.Bar, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Record implements journal.Sink by queueing the entry.
func (w *Writer) Record(_ context.Context, entry journal.Entry) error {
	if w == nil {
		return nil
	}
	select {
	case w.decisions <- entry:
	default:
		if w.dropDec.Add(1) == 1 {
			w.log.Warn("timescale decision queue full")
		}
	}
	return nil
}

func (w *Writer) EnqueueBar(bar market.Bar) {
	if w == nil {
		return
	}
	select {
	case w.bars <- bar:
	default:
		if w.dropBar.Add(1) == 1 {
			w.log.Warn("timescale bar queue full")
		}
	}
}

// Dropped reports how many decisions and bars were discarded on full queues.
func (w *Writer) Dropped() (decisions, bars uint64) {
	if w == nil {
		return 0, 0
	}
	return w.dropDec.Load(), w.dropBar.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-w.decisions:
			w.writeDecision(ctx, entry)
		case bar := <-w.bars:
			w.writeBar(ctx, bar)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		asset TEXT NOT NULL,
		interval TEXT NOT NULL,
		open NUMERIC NOT NULL,
		high NUMERIC NOT NULL,
		low NUMERIC NOT NULL,
		close NUMERIC NOT NULL,
		PRIMARY KEY (ts, asset, interval)
	)`, w.table("mark_price_bars"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		asset TEXT NOT NULL,
		long_entry NUMERIC NOT NULL,
		long_exit NUMERIC NOT NULL,
		short_entry NUMERIC NOT NULL,
		short_exit NUMERIC NOT NULL,
		mark_price NUMERIC NOT NULL,
		direction TEXT NOT NULL,
		exposure NUMERIC NOT NULL,
		can_trade BOOLEAN NOT NULL,
		quantity NUMERIC NOT NULL,
		action TEXT NOT NULL,
		orders BYTEA,
		error TEXT NOT NULL DEFAULT ''
	)`, w.table("decisions"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"mark_price_bars", "decisions"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeDecision(ctx context.Context, entry journal.Entry) {
	if w.db == nil {
		return
	}
	orders, err := msgpack.Marshal(entry.Orders)
	if err != nil {
		w.log.Warn("timescale decision encode failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, asset, long_entry, long_exit, short_entry, short_exit, mark_price,
		direction, exposure, can_trade, quantity, action, orders, error
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	)`, w.table("decisions"))
	if _, err := w.db.ExecContext(ctx, query,
		entry.Time,
		entry.Asset,
		entry.LongEntry.String(),
		entry.LongExit.String(),
		entry.ShortEntry.String(),
		entry.ShortExit.String(),
		entry.MarkPrice.String(),
		entry.Direction,
		entry.Exposure.String(),
		entry.CanTrade,
		entry.Quantity.String(),
		entry.Action,
		orders,
		entry.Error,
	); err != nil {
		w.log.Warn("timescale decision insert failed", zap.Error(err))
	}
}

func (w *Writer) writeBar(ctx context.Context, bar market.Bar) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, asset, interval, open, high, low, close
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	)
	ON CONFLICT (ts, asset, interval) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close`, w.table("mark_price_bars"))
	if _, err := w.db.ExecContext(ctx, query,
		bar.OpenTime,
		bar.Asset,
		bar.Interval,
		bar.Open.String(),
		bar.High.String(),
		bar.Low.String(),
		bar.Close.String(),
	); err != nil {
		w.log.Warn("timescale bar upsert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
