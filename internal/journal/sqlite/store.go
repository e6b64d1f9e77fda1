package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bn-breakout-bot/internal/journal"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer connection; units record concurrently.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		asset TEXT NOT NULL,
		long_entry TEXT NOT NULL,
		long_exit TEXT NOT NULL,
		short_entry TEXT NOT NULL,
		short_exit TEXT NOT NULL,
		mark_price TEXT NOT NULL,
		direction TEXT NOT NULL,
		exposure TEXT NOT NULL,
		can_trade INTEGER NOT NULL,
		quantity TEXT NOT NULL,
		action TEXT NOT NULL,
		orders BLOB,
		skipped BLOB,
		error TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS decisions_asset_ts ON decisions (asset, ts)`)
	return err
}

func (s *Store) Record(ctx context.Context, entry journal.Entry) error {
	orders, err := msgpack.Marshal(entry.Orders)
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	skipped, err := msgpack.Marshal(entry.Skipped)
	if err != nil {
		return fmt.Errorf("encode skipped: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO decisions (
		ts, asset, long_entry, long_exit, short_entry, short_exit, mark_price,
		direction, exposure, can_trade, quantity, action, orders, skipped, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Time.UTC().UnixMilli(),
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
		skipped,
		entry.Error,
	)
	return err
}

// Recent returns up to limit entries for asset, newest first.
func (s *Store) Recent(ctx context.Context, asset string, limit int) ([]journal.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		ts, asset, long_entry, long_exit, short_entry, short_exit, mark_price,
		direction, exposure, can_trade, quantity, action, orders, skipped, error
	FROM decisions WHERE asset = ? ORDER BY ts DESC, id DESC LIMIT ?`, asset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []journal.Entry
	for rows.Next() {
		var (
			entry                                      journal.Entry
			ts                                         int64
			longEntry, longExit, shortEntry, shortExit string
			mark, exposure, quantity                   string
			orders, skipped                            []byte
		)
		if err := rows.Scan(&ts, &entry.Asset, &longEntry, &longExit, &shortEntry, &shortExit, &mark,
			&entry.Direction, &exposure, &entry.CanTrade, &quantity, &entry.Action, &orders, &skipped, &entry.Error); err != nil {
			return nil, err
		}
		entry.Time = time.UnixMilli(ts).UTC()
		for _, field := range []struct {
			dst *decimal.Decimal
			raw string
		}{
			{&entry.LongEntry, longEntry},
			{&entry.LongExit, longExit},
			{&entry.ShortEntry, shortEntry},
			{&entry.ShortExit, shortExit},
			{&entry.MarkPrice, mark},
			{&entry.Exposure, exposure},
			{&entry.Quantity, quantity},
		} {
			v, err := decimal.NewFromString(field.raw)
			if err != nil {
				return nil, fmt.Errorf("decode decimal %q: %w", field.raw, err)
			}
			*field.dst = v
		}
		if len(orders) > 0 {
			if err := msgpack.Unmarshal(orders, &entry.Orders); err != nil {
				return nil, fmt.Errorf("decode orders: %w", err)
			}
		}
		if len(skipped) > 0 {
			if err := msgpack.Unmarshal(skipped, &entry.Skipped); err != nil {
				return nil, fmt.Errorf("decode skipped: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
