package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Entry is the audit record of one decision cycle. Entries are written for
// operators only; nothing in the trading path reads them back.
type Entry struct {
	Time       time.Time
	Asset      string
	LongEntry  decimal.Decimal
	LongExit   decimal.Decimal
	ShortEntry decimal.Decimal
	ShortExit  decimal.Decimal
	MarkPrice  decimal.Decimal
	Direction  string
	Exposure   decimal.Decimal
	CanTrade   bool
	Quantity   decimal.Decimal
	Action     string
	Orders     []Order
	Skipped    []string
	Error      string
}

type Order struct {
	Side          string `msgpack:"side"`
	Type          string `msgpack:"type"`
	Quantity      string `msgpack:"qty,omitempty"`
	StopPrice     string `msgpack:"stop,omitempty"`
	ClosePosition bool   `msgpack:"close,omitempty"`
	Reason        string `msgpack:"reason"`
	ClientOrderID string `msgpack:"cid,omitempty"`
	OrderID       string `msgpack:"oid,omitempty"`
	Error         string `msgpack:"err,omitempty"`
}

type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Multi fans an entry out to every sink and reports all failures together.
type Multi []Sink

func (m Multi) Record(ctx context.Context, entry Entry) error {
	var err error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		err = multierr.Append(err, sink.Record(ctx, entry))
	}
	return err
}

type Discard struct{}

func (Discard) Record(context.Context, Entry) error { return nil }
